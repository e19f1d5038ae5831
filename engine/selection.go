package engine

import (
	"maps"
	"slices"
	"strings"
)

// Selection is an immutable description of which rules are active.
//
// A selection either follows each rule's default state, optionally adjusted
// by explicit enables and disables, or is restricted to an explicit set after
// DisableAll.
type Selection struct {
	onlyExplicit bool
	enabled      map[string]struct{}
	disabled     map[string]struct{}
}

// Defaults returns a selection that honours each rule's default state.
func Defaults() Selection {
	return Selection{}
}

// Only returns a selection with exactly the given rules enabled.
func Only(ids ...string) Selection {
	sel := Defaults().DisableAll()
	for _, id := range ids {
		sel = sel.Enable(id)
	}
	return sel
}

// DisableAll returns a selection with every rule disabled.
func (s Selection) DisableAll() Selection {
	return Selection{onlyExplicit: true}
}

// Enable returns a copy of s with id enabled.
func (s Selection) Enable(id string) Selection {
	out := s.clone()
	if out.enabled == nil {
		out.enabled = make(map[string]struct{})
	}
	out.enabled[id] = struct{}{}
	delete(out.disabled, id)
	return out
}

// Disable returns a copy of s with id disabled.
func (s Selection) Disable(id string) Selection {
	out := s.clone()
	if out.disabled == nil {
		out.disabled = make(map[string]struct{})
	}
	out.disabled[id] = struct{}{}
	delete(out.enabled, id)
	return out
}

// IsEnabled reports whether a rule with the given default state is active.
func (s Selection) IsEnabled(id string, defaultOn bool) bool {
	if _, ok := s.disabled[id]; ok {
		return false
	}
	if _, ok := s.enabled[id]; ok {
		return true
	}
	return !s.onlyExplicit && defaultOn
}

// Isolate returns the selection that activates only id, whatever s holds.
func (s Selection) Isolate(id string) Selection {
	return s.DisableAll().Enable(id)
}

// String renders the selection for logs.
func (s Selection) String() string {
	var b strings.Builder
	if s.onlyExplicit {
		b.WriteString("only")
	} else {
		b.WriteString("defaults")
	}
	if len(s.enabled) > 0 {
		b.WriteString(" +")
		b.WriteString(strings.Join(slices.Sorted(maps.Keys(s.enabled)), ",+"))
	}
	if len(s.disabled) > 0 {
		b.WriteString(" -")
		b.WriteString(strings.Join(slices.Sorted(maps.Keys(s.disabled)), ",-"))
	}
	return b.String()
}

func (s Selection) clone() Selection {
	return Selection{
		onlyExplicit: s.onlyExplicit,
		enabled:      maps.Clone(s.enabled),
		disabled:     maps.Clone(s.disabled),
	}
}
