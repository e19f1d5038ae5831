package conformance

import (
	"errors"
	"fmt"
)

// ErrFatal is matched by every error that signals structural corruption of
// the rule catalogue. Such errors stop a run instead of being batched.
var ErrFatal = errors.New("fatal catalogue error")

// DuplicateIDError reports one rule ID used by two distinct implementations.
type DuplicateIDError struct {
	ID        string
	Impl      string
	OtherImpl string
	Language  string
}

func (e *DuplicateIDError) Error() string {
	return fmt.Sprintf("rule id occurs more than once: '%s', one of them %s, the other one %s, language: %s",
		e.ID, e.Impl, e.OtherImpl, e.Language)
}

// Unwrap lets errors.Is(err, ErrFatal) match.
func (e *DuplicateIDError) Unwrap() error {
	return ErrFatal
}

// InvalidIDFormatError reports a rule ID outside ^[A-Z_][A-Z0-9_]+$.
type InvalidIDFormatError struct {
	ID       string
	Language string
}

func (e *InvalidIDFormatError) Error() string {
	return fmt.Sprintf("invalid character in rule id: '%s', language: %s, only [A-Z0-9_] are allowed and the first character must be in [A-Z_]",
		e.ID, e.Language)
}

// Unwrap lets errors.Is(err, ErrFatal) match.
func (e *InvalidIDFormatError) Unwrap() error {
	return ErrFatal
}

// IsFatal reports whether err stops a conformance run.
func IsFatal(err error) bool {
	return errors.Is(err, ErrFatal)
}
