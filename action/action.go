// Package action defines the closed decision contract between the model and
// the dispatcher: one record type per action, a registry keyed by the tool
// discriminator, and the NextStep envelope the model fills in each step.
//
// The catalog is sealed. A new variant must implement the unexported marker
// and register itself in catalog.go; the dispatcher's type switch is the
// matching exhaustive consumer.
package action

import (
	"encoding/json"
	"fmt"

	"github.com/richinex/stepwise/remote"
)

// Request is one concrete action the model may choose. It is a sealed
// interface: only types in this package implement it.
type Request interface {
	remote.Request
	isAction()
}

// Outcome codes carried by the terminal response.
type Outcome string

const (
	OutcomeCompleted          Outcome = "ok"
	OutcomeUnsupported        Outcome = "none_unsupported"
	OutcomeDeniedSecurity     Outcome = "denied_security"
	OutcomeNeedsClarification Outcome = "needs_clarification"
)

// NextStep is the decision envelope the model returns each iteration.
// Only the first planned step is authoritative; the rest of the plan is
// advisory context for the next query and is discarded.
type NextStep struct {
	CurrentState       string   `json:"current_state"`
	PlanRemainingSteps []string `json:"plan_remaining_steps_brief"`
	TaskCompleted      bool     `json:"task_completed"`
	Function           Request  `json:"-"`
}

// maxPlannedSteps bounds the advisory plan length.
const maxPlannedSteps = 5

// UnmarshalJSON decodes the envelope and resolves the tagged function field
// against the action registry.
func (s *NextStep) UnmarshalJSON(data []byte) error {
	var aux struct {
		CurrentState       string          `json:"current_state"`
		PlanRemainingSteps []string        `json:"plan_remaining_steps_brief"`
		TaskCompleted      bool            `json:"task_completed"`
		Function           json.RawMessage `json:"function"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	s.CurrentState = aux.CurrentState
	s.PlanRemainingSteps = aux.PlanRemainingSteps
	s.TaskCompleted = aux.TaskCompleted

	if len(aux.Function) == 0 {
		s.Function = nil
		return nil
	}

	fn, err := Decode(aux.Function)
	if err != nil {
		return err
	}
	s.Function = fn
	return nil
}

// Validate enforces the envelope constraints the schema promises.
func (s *NextStep) Validate() error {
	if len(s.PlanRemainingSteps) < 1 || len(s.PlanRemainingSteps) > maxPlannedSteps {
		return fmt.Errorf("plan must contain 1..%d steps, got %d", maxPlannedSteps, len(s.PlanRemainingSteps))
	}
	if s.Function == nil {
		return fmt.Errorf("missing function selection")
	}
	return nil
}

// Decode resolves a raw tagged action record into its concrete type.
func Decode(raw json.RawMessage) (Request, error) {
	var probe struct {
		Tool string `json:"tool"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, fmt.Errorf("decode action tag: %w", err)
	}
	if probe.Tool == "" {
		return nil, fmt.Errorf("action record has no tool tag")
	}

	info, ok := catalog[probe.Tool]
	if !ok {
		return nil, fmt.Errorf("unknown action %q", probe.Tool)
	}

	req := info.make()
	if err := json.Unmarshal(raw, req); err != nil {
		return nil, fmt.Errorf("decode %s: %w", probe.Tool, err)
	}
	return req, nil
}

// Name returns the catalog name used when recording the action in the log.
func Name(req Request) string {
	if info, ok := catalog[req.Tool()]; ok {
		return info.name
	}
	return req.Tool()
}

// Marshal serializes an action with its tool tag, the inverse of Decode.
func Marshal(req Request) (json.RawMessage, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	tagged, err := json.Marshal(struct {
		Tool string `json:"tool"`
	}{Tool: req.Tool()})
	if err != nil {
		return nil, err
	}
	if string(body) == "{}" {
		return tagged, nil
	}
	// splice {"tool":...} and the field object
	merged := append(tagged[:len(tagged)-1], ',')
	merged = append(merged, body[1:]...)
	return merged, nil
}
