package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveExample("de", "correct", time.Millisecond)
	m.RuleTested("de")
	m.Failure("de", "match_count")
	m.RunFinished("pass")
	assert.Nil(t, m.Registry())
	assert.NoError(t, m.WriteTextfile(filepath.Join(t.TempDir(), "x.prom")))
}

func TestCounters(t *testing.T) {
	m := New()
	m.ObserveExample("de", "incorrect", 2*time.Millisecond)
	m.ObserveExample("de", "incorrect", time.Millisecond)
	m.RuleTested("de")
	m.Failure("de", "false_positive")
	m.RunFinished("fail")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.examplesChecked.WithLabelValues("de", "incorrect")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.rulesTested.WithLabelValues("de")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.failures.WithLabelValues("de", "false_positive")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("fail")))
}

func TestWriteTextfile(t *testing.T) {
	m := New()
	m.Failure("en", "match_count")

	path := filepath.Join(t.TempDir(), "ruleconform.prom")
	require.NoError(t, m.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), `ruleconform_failures_total{kind="match_count",language="en"} 1`))
}
