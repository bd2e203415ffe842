package portrait

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Fields is the closed set of portrait attributes. It is the only shape the
// store persists: unknown top-level keys are rejected at decode time so the
// schema cannot drift across versions.
type Fields struct {
	Position       string   `json:"position"`
	Background     string   `json:"background,omitempty"`
	Requirements   string   `json:"requirements,omitempty"`
	Keywords       []string `json:"keywords,omitempty"`
	DrillQuestions []string `json:"drillQuestions,omitempty"`
	FilterRules    []string `json:"filterRules,omitempty"`
	NotifyTarget   string   `json:"notifyTarget,omitempty"`
	Active         bool     `json:"active"`
}

// DecodeFields parses a raw JSON object into Fields, rejecting unknown keys
// and applying defaults (active defaults to true when omitted). The decoded
// value is validated before it is returned.
func DecodeFields(raw []byte) (Fields, error) {
	var aux struct {
		Position       string   `json:"position"`
		Background     string   `json:"background"`
		Requirements   string   `json:"requirements"`
		Keywords       []string `json:"keywords"`
		DrillQuestions []string `json:"drillQuestions"`
		FilterRules    []string `json:"filterRules"`
		NotifyTarget   string   `json:"notifyTarget"`
		Active         *bool    `json:"active"`
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&aux); err != nil {
		return Fields{}, &ValidationError{Msg: fmt.Sprintf("malformed portrait fields: %v", err)}
	}

	f := Fields{
		Position:       aux.Position,
		Background:     aux.Background,
		Requirements:   aux.Requirements,
		Keywords:       aux.Keywords,
		DrillQuestions: aux.DrillQuestions,
		FilterRules:    aux.FilterRules,
		NotifyTarget:   aux.NotifyTarget,
		Active:         true,
	}
	if aux.Active != nil {
		f.Active = *aux.Active
	}

	if err := f.Validate(); err != nil {
		return Fields{}, err
	}
	return f, nil
}

// Validate checks the required fields. Position is the only mandatory
// attribute; everything else is optional.
func (f Fields) Validate() error {
	if strings.TrimSpace(f.Position) == "" {
		return &ValidationError{Msg: "position is required"}
	}
	return nil
}
