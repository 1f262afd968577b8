package agent

import (
	"github.com/richinex/stepwise/action"
	"github.com/richinex/stepwise/llm"
	"github.com/richinex/stepwise/remote"
)

// State is the phase of the decision loop.
type State int

const (
	// StateAwaitingDecision means the next model query has not run yet.
	StateAwaitingDecision State = iota
	// StateDispatching means a decided action is being executed.
	StateDispatching
	// StateTerminated means the run ended with a terminal response.
	StateTerminated
	// StateExhausted means the step budget ran out before a terminal response.
	StateExhausted
)

func (s State) String() string {
	switch s {
	case StateAwaitingDecision:
		return "awaiting_decision"
	case StateDispatching:
		return "dispatching"
	case StateTerminated:
		return "terminated"
	case StateExhausted:
		return "exhausted"
	}
	return "unknown"
}

// RunResult summarizes one completed task run.
type RunResult struct {
	// State is the loop's final phase: Terminated or Exhausted.
	State State
	// Outcome, Message and Links carry the terminal response when the run
	// terminated; zero otherwise.
	Outcome action.Outcome
	Message string
	Links   []remote.Link
	// Steps is the number of decision steps executed, not counting the
	// preflight check.
	Steps int
	// Usage is the cumulative token spend of the run.
	Usage llm.TokenUsage
}
