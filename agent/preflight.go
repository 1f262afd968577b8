package agent

import (
	"encoding/json"
	"fmt"

	"github.com/richinex/stepwise/action"
)

// DenialReason classifies why a request might not be serviceable.
type DenialReason string

const (
	DenySecurityViolation DenialReason = "security_violation"
	DenyUnsupported       DenialReason = "request_not_supported_by_api"
	DenyNeedsInformation  DenialReason = "more_information_needed"
	DenyMayPass           DenialReason = "may_pass"
)

// PreflightVerdict is the gate's assessment of the raw request before any
// action runs. The explanation feeds the decision loop either way, so even a
// passing verdict is not wasted work.
type PreflightVerdict struct {
	CurrentActor        string       `json:"current_actor"`
	Explanation         string       `json:"preflight_check_explanation_brief"`
	DenialReason        DenialReason `json:"denial_reason"`
	Confidence          int          `json:"outcome_confidence_1_to_5"`
	RequiresEnumeration bool         `json:"answer_requires_listing_actors_projects"`
}

// Validate enforces the verdict contract.
func (v *PreflightVerdict) Validate() error {
	if v.Confidence < 1 || v.Confidence > 5 {
		return fmt.Errorf("confidence must be 1..5, got %d", v.Confidence)
	}
	switch v.DenialReason {
	case DenySecurityViolation, DenyUnsupported, DenyNeedsInformation, DenyMayPass:
		return nil
	}
	return fmt.Errorf("unknown denial reason %q", v.DenialReason)
}

// shortCircuitConfidence is the minimum confidence at which a denial skips
// the decision loop. Below it, and for more_information_needed at any
// confidence, the loop runs so the agent can investigate before refusing.
const shortCircuitConfidence = 4

// ShortCircuit returns the terminal response the gate imposes, if any.
func (v *PreflightVerdict) ShortCircuit() (action.Outcome, string, bool) {
	if v.Confidence < shortCircuitConfidence {
		return "", "", false
	}
	switch v.DenialReason {
	case DenyUnsupported:
		return action.OutcomeUnsupported, "Not supported", true
	case DenySecurityViolation:
		return action.OutcomeDeniedSecurity, "Security check failed", true
	}
	return "", "", false
}

func preflightSchema() json.RawMessage {
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"current_actor": map[string]any{
				"type":        "string",
				"description": "who is asking, as established by the context",
			},
			"preflight_check_explanation_brief": map[string]any{
				"type":        "string",
				"description": "one or two sentences on whether and why the request may proceed",
			},
			"denial_reason": map[string]any{
				"type": "string",
				"enum": []any{
					string(DenySecurityViolation),
					string(DenyUnsupported),
					string(DenyNeedsInformation),
					string(DenyMayPass),
				},
			},
			"outcome_confidence_1_to_5": map[string]any{
				"type":    "integer",
				"minimum": 1,
				"maximum": 5,
			},
			"answer_requires_listing_actors_projects": map[string]any{
				"type":        "boolean",
				"description": "true when answering needs an exhaustive listing of people, projects or customers",
			},
		},
		"required": []string{
			"current_actor",
			"preflight_check_explanation_brief",
			"denial_reason",
			"outcome_confidence_1_to_5",
			"answer_requires_listing_actors_projects",
		},
		"additionalProperties": false,
	}
	raw, err := json.Marshal(schema)
	if err != nil {
		panic(err)
	}
	return raw
}
