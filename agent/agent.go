// Package agent runs the decision loop: a preflight security gate followed
// by up to MaxSteps structured decisions, each dispatched against the
// back-office service with the observation fed back into the conversation.
package agent

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/richinex/stepwise/action"
	"github.com/richinex/stepwise/llm"
	"github.com/richinex/stepwise/remote"
)

// DefaultMaxSteps bounds the decision loop.
const DefaultMaxSteps = 20

// DefaultInstructions is the operating preamble of the system prompt; the
// distilled company knowledge and actor context follow it.
const DefaultInstructions = `You are an assistant automating a company's back-office on behalf of the requester.

Use the available functions to execute the current request.

- To confirm access to a project, get or find the project (and get it after finding).
- Archiving time entries and deleting wiki pages are reversible operations.
- Finish with a terminal response when the task is done, or when it cannot be completed (internal error, not permitted, or clarification needed).
- Always include links to the entities the answer mentions.`

// Config tunes a Runner. The zero value uses the defaults.
type Config struct {
	// MaxSteps is the decision budget per task (default DefaultMaxSteps).
	MaxSteps int
}

func (c Config) withDefaults() Config {
	if c.MaxSteps <= 0 {
		c.MaxSteps = DefaultMaxSteps
	}
	return c
}

// Runner executes one task at a time against a dispatcher.
type Runner struct {
	client     *llm.Client
	dispatcher *Dispatcher
	logger     *zap.Logger
	cfg        Config

	nextStepFormat  *llm.ResponseFormat
	preflightFormat *llm.ResponseFormat
}

// NewRunner wires a runner. A nil logger disables tracing.
func NewRunner(client *llm.Client, dispatcher *Dispatcher, logger *zap.Logger, cfg Config) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		client:          client,
		dispatcher:      dispatcher,
		logger:          logger,
		cfg:             cfg.withDefaults(),
		nextStepFormat:  llm.NewJSONSchemaFormat("next_step", action.NextStepSchema()),
		preflightFormat: llm.NewJSONSchemaFormat("preflight_check", preflightSchema()),
	}
}

// Run executes one task. The system prompt carries the distilled company
// knowledge and actor context; taskText is the raw request.
//
// Domain errors from dispatched actions are recoverable: they become ERROR
// observations the model can react to. Transport errors abort the run.
func (r *Runner) Run(ctx context.Context, systemPrompt, taskText string) (RunResult, error) {
	log := []llm.ChatMessage{
		llm.SystemMessage(systemPrompt),
		llm.UserMessage(fmt.Sprintf("Request: %q", taskText)),
	}

	verdict, err := llm.Query[PreflightVerdict](ctx, r.client, log, r.preflightFormat)
	if err != nil {
		return RunResult{}, fmt.Errorf("preflight check: %w", err)
	}
	r.logger.Debug("preflight verdict",
		zap.String("actor", verdict.CurrentActor),
		zap.String("reason", string(verdict.DenialReason)),
		zap.Int("confidence", verdict.Confidence))

	if outcome, message, denied := verdict.ShortCircuit(); denied {
		r.logger.Info("preflight denial",
			zap.String("outcome", string(outcome)),
			zap.String("explanation", verdict.Explanation))
		if _, err := r.dispatcher.Dispatch(ctx, &action.Respond{
			Message: message,
			Outcome: outcome,
		}); err != nil {
			return RunResult{}, fmt.Errorf("deliver preflight denial: %w", err)
		}
		return RunResult{
			State:   StateTerminated,
			Outcome: outcome,
			Message: message,
			Usage:   r.client.Usage(),
		}, nil
	}

	// The gate's reasoning stays in context so the loop does not redo it.
	log = append(log, llm.SystemMessage(verdict.Explanation))

	for i := 1; i <= r.cfg.MaxSteps; i++ {
		callID := fmt.Sprintf("step_%d", i)

		step, err := llm.Query[action.NextStep](ctx, r.client, log, r.nextStepFormat)
		if err != nil {
			return RunResult{}, fmt.Errorf("%s: decide: %w", callID, err)
		}

		args, err := action.Marshal(step.Function)
		if err != nil {
			return RunResult{}, fmt.Errorf("%s: encode action: %w", callID, err)
		}
		r.logger.Debug("decision",
			zap.String("step", callID),
			zap.String("action", action.Name(step.Function)),
			zap.String("plan", step.PlanRemainingSteps[0]))

		// Record the decision as an assistant tool call; only the first
		// planned step survives into the log.
		log = append(log, llm.ChatMessage{
			Role:    "assistant",
			Content: step.PlanRemainingSteps[0],
			ToolCalls: []llm.ToolCall{{
				ID:        callID,
				Name:      action.Name(step.Function),
				Arguments: args,
			}},
		})

		var observation string
		payload, err := r.dispatcher.Dispatch(ctx, step.Function)
		switch {
		case err == nil:
			observation = "DONE: " + string(payload)
		case remote.IsDomainError(err):
			r.logger.Debug("recoverable failure",
				zap.String("step", callID), zap.Error(err))
			observation = "ERROR: " + err.Error()
		default:
			return RunResult{}, fmt.Errorf("%s: dispatch %s: %w", callID, action.Name(step.Function), err)
		}

		// A terminal response ends the run even when its delivery was
		// rejected; there is nothing sensible left to decide.
		if respond, ok := step.Function.(*action.Respond); ok {
			r.logger.Info("run terminated",
				zap.String("outcome", string(respond.Outcome)),
				zap.Int("steps", i))
			return RunResult{
				State:   StateTerminated,
				Outcome: respond.Outcome,
				Message: respond.Message,
				Links:   respond.Links,
				Steps:   i,
				Usage:   r.client.Usage(),
			}, nil
		}

		log = append(log, llm.ToolMessage(callID, observation))
	}

	r.logger.Warn("step budget exhausted", zap.Int("max_steps", r.cfg.MaxSteps))
	return RunResult{
		State: StateExhausted,
		Steps: r.cfg.MaxSteps,
		Usage: r.client.Usage(),
	}, nil
}
