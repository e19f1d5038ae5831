// Package publish sends conformance reports to a NATS JetStream stream.
package publish

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/c360studio/semstreams/message"
	"github.com/c360studio/semstreams/natsclient"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/c360studio/ruleconform/conformance"
)

// StreamName is the JetStream stream that stores published reports.
const StreamName = "RULECONFORM"

const source = "ruleconform"

// StreamPublisher is the subset of *natsclient.Client the Publisher needs.
type StreamPublisher interface {
	PublishToStream(ctx context.Context, subject string, data []byte) error
}

// Publisher wraps reports in a message envelope and publishes them.
type Publisher struct {
	client  StreamPublisher
	subject string
	newID   func() string
	logger  *slog.Logger
}

// NewPublisher creates a Publisher for subject.
func NewPublisher(client StreamPublisher, subject string, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{
		client:  client,
		subject: subject,
		newID:   uuid.NewString,
		logger:  logger,
	}
}

// Publish sends report and returns the run ID stamped on the envelope.
func (p *Publisher) Publish(ctx context.Context, report *conformance.Report, languages []string) (string, error) {
	payload := ReportPayload{
		RunID:       p.newID(),
		Source:      source,
		Languages:   languages,
		OK:          report.OK(),
		FatalErrors: report.FatalErrors,
		Failures:    report.Failures,
	}
	if err := payload.Validate(); err != nil {
		return "", fmt.Errorf("invalid report payload: %w", err)
	}

	baseMsg := message.NewBaseMessage(ReportType, &payload, source)
	data, err := json.Marshal(baseMsg)
	if err != nil {
		return "", fmt.Errorf("marshal report: %w", err)
	}

	if err := p.client.PublishToStream(ctx, p.subject, data); err != nil {
		return "", fmt.Errorf("publish to %s: %w", p.subject, err)
	}

	p.logger.Info("Published conformance report", "subject", p.subject,
		"run_id", payload.RunID, "failures", len(payload.Failures))
	return payload.RunID, nil
}

// Connect opens a NATS connection and waits until it is usable.
func Connect(ctx context.Context, url string, logger *slog.Logger) (*natsclient.Client, error) {
	logger.Info("Connecting to NATS", "url", url)

	client, err := natsclient.NewClient(url,
		natsclient.WithName("ruleconform"),
		natsclient.WithMaxReconnects(-1),
		natsclient.WithReconnectWait(time.Second),
		natsclient.WithCircuitBreakerThreshold(20),
		natsclient.WithHealthInterval(30*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("create NATS client: %w", err)
	}

	if err := client.Connect(ctx); err != nil {
		return nil, wrapNATSError(err, url)
	}

	connCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := client.WaitForConnection(connCtx); err != nil {
		return nil, wrapNATSError(err, url)
	}

	logger.Info("Connected to NATS", "url", url)
	return client, nil
}

// EnsureStream creates or updates the report stream so that subject is
// captured.
func EnsureStream(ctx context.Context, client *natsclient.Client, subject string) error {
	js, err := client.JetStream()
	if err != nil {
		return fmt.Errorf("get jetstream: %w", err)
	}

	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:        StreamName,
		Description: "Rule conformance reports",
		Subjects:    []string{subject},
		Storage:     jetstream.FileStorage,
		MaxAge:      30 * 24 * time.Hour,
	})
	if err != nil {
		return fmt.Errorf("ensure stream %s: %w", StreamName, err)
	}
	return nil
}

// wrapNATSError adds a hint when the server is unreachable.
func wrapNATSError(err error, url string) error {
	errStr := err.Error()
	if errors.Is(err, context.DeadlineExceeded) ||
		strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "no servers available") ||
		strings.Contains(errStr, "timeout") {
		return fmt.Errorf("NATS connection failed: %w\n\nNATS is not running at %s. Start a server or drop --nats.", err, url)
	}
	return fmt.Errorf("NATS connection failed: %w", err)
}
