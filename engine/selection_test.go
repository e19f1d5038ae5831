package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSelection_Defaults(t *testing.T) {
	sel := Defaults()
	assert.True(t, sel.IsEnabled("A", true))
	assert.False(t, sel.IsEnabled("B", false))
}

func TestSelection_DisableAllThenEnable(t *testing.T) {
	sel := Defaults().Disable("X").DisableAll().Enable("A")

	assert.True(t, sel.IsEnabled("A", false), "explicitly enabled rule is active even when default-off")
	assert.False(t, sel.IsEnabled("B", true), "default-on rule is inactive after DisableAll")
	assert.False(t, sel.IsEnabled("X", true))
}

func TestSelection_Immutable(t *testing.T) {
	base := Defaults()
	withA := base.Disable("A")
	withB := withA.Enable("B")

	assert.True(t, base.IsEnabled("A", true), "base unchanged by Disable")
	assert.False(t, withA.IsEnabled("A", true))
	assert.False(t, withA.IsEnabled("B", false), "withA unchanged by Enable")
	assert.True(t, withB.IsEnabled("B", false))
}

func TestSelection_Isolate(t *testing.T) {
	sel := Only("A", "B").Isolate("C")
	assert.False(t, sel.IsEnabled("A", true))
	assert.False(t, sel.IsEnabled("B", true))
	assert.True(t, sel.IsEnabled("C", false))
}

func TestSelection_EnableOverridesDisable(t *testing.T) {
	sel := Defaults().Disable("A").Enable("A")
	assert.True(t, sel.IsEnabled("A", false))
}

func TestSelection_String(t *testing.T) {
	assert.Equal(t, "defaults", Defaults().String())
	assert.Equal(t, "only +A,+B", Only("B", "A").String())
	assert.Equal(t, "defaults -X", Defaults().Disable("X").String())
}
