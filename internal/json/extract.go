// Package json extracts JSON documents from LLM replies.
//
// Providers without native structured output return the contract object
// embedded in prose or fenced in markdown. This package recovers the raw
// object so the caller can unmarshal it against the expected contract.
package json

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Extract returns the JSON object portion of a model reply.
// Handled patterns:
//  1. Pure JSON reply - returned as is
//  2. JSON fenced in markdown code blocks (```json ... ```)
//  3. JSON object embedded in surrounding text - first '{' to last '}'
//
// Only objects are handled; the closed contracts are all objects.
func Extract(reply string) (string, error) {
	reply = stripFences(reply)

	var probe any
	if err := json.Unmarshal([]byte(reply), &probe); err == nil {
		return reply, nil
	}

	start := strings.Index(reply, "{")
	if start != -1 {
		end := strings.LastIndex(reply, "}")
		if end > start {
			candidate := reply[start : end+1]
			if err := json.Unmarshal([]byte(candidate), &probe); err == nil {
				return candidate, nil
			}
		}
	}

	preview := reply
	if len(preview) > 100 {
		preview = preview[:100] + "..."
	}
	return "", fmt.Errorf("no valid JSON object in reply: %q", preview)
}

// Unmarshal extracts the JSON portion of a reply and unmarshals it into T.
func Unmarshal[T any](reply string) (T, error) {
	var result T
	raw, err := Extract(reply)
	if err != nil {
		return result, err
	}
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		return result, fmt.Errorf("unmarshal extracted JSON: %w", err)
	}
	return result, nil
}

// stripFences removes markdown code fences around a reply.
func stripFences(reply string) string {
	trimmed := strings.TrimSpace(reply)

	if strings.HasPrefix(trimmed, "```json") {
		trimmed = strings.TrimSpace(strings.TrimPrefix(trimmed, "```json"))
	} else if strings.HasPrefix(trimmed, "```") {
		trimmed = strings.TrimSpace(strings.TrimPrefix(trimmed, "```"))
	}

	if strings.HasSuffix(trimmed, "```") {
		trimmed = strings.TrimSpace(strings.TrimSuffix(trimmed, "```"))
	}

	return trimmed
}
