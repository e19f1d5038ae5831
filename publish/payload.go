package publish

import (
	"encoding/json"
	"fmt"

	"github.com/c360studio/semstreams/component"
	"github.com/c360studio/semstreams/message"

	"github.com/c360studio/ruleconform/conformance"
)

// ReportPayload carries one conformance report on the message bus.
type ReportPayload struct {
	// RunID distinguishes publications; it is not part of the report itself.
	RunID     string   `json:"run_id"`
	Source    string   `json:"source"`
	Languages []string `json:"languages"`
	OK        bool     `json:"ok"`

	FatalErrors []string              `json:"fatal_errors"`
	Failures    []conformance.Failure `json:"failures"`
}

// ReportType is the message type for conformance reports.
var ReportType = message.Type{
	Domain:   "ruleconform",
	Category: "conformance-report",
	Version:  "v1",
}

// Schema implements message.Payload.
func (p *ReportPayload) Schema() message.Type {
	return ReportType
}

// Validate implements message.Payload.
func (p *ReportPayload) Validate() error {
	if p.RunID == "" {
		return fmt.Errorf("run_id is required")
	}
	if p.OK && (len(p.FatalErrors) > 0 || len(p.Failures) > 0) {
		return fmt.Errorf("report marked ok but carries %d failure(s) and %d fatal error(s)",
			len(p.Failures), len(p.FatalErrors))
	}
	return nil
}

// MarshalJSON implements json.Marshaler.
func (p *ReportPayload) MarshalJSON() ([]byte, error) {
	type Alias ReportPayload
	return json.Marshal((*Alias)(p))
}

// UnmarshalJSON implements json.Unmarshaler.
func (p *ReportPayload) UnmarshalJSON(data []byte) error {
	type Alias ReportPayload
	return json.Unmarshal(data, (*Alias)(p))
}

func init() {
	if err := component.RegisterPayload(&component.PayloadRegistration{
		Domain:      ReportType.Domain,
		Category:    ReportType.Category,
		Version:     ReportType.Version,
		Description: "Rule conformance report: fatal errors and recoverable failures of one run",
		Factory:     func() any { return &ReportPayload{} },
	}); err != nil {
		panic("failed to register ReportPayload: " + err.Error())
	}
}
