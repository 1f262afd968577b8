// Command execution for CLI commands.
//
// Information Hiding:
// - Session and task orchestration hidden
// - Provider and cache setup hidden
// - Output formatting hidden

package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/richinex/stepwise/action"
	"github.com/richinex/stepwise/agent"
	"github.com/richinex/stepwise/bench"
	"github.com/richinex/stepwise/config"
	"github.com/richinex/stepwise/distill"
	"github.com/richinex/stepwise/llm"
	"github.com/richinex/stepwise/remote"
)

// Options holds CLI execution options.
type Options struct {
	Provider string
	// MaxSteps overrides the decision budget from the environment when > 0.
	MaxSteps int
	Verbose  bool
	Logger   *zap.Logger
}

// RunSession starts a benchmark session, runs every task in it and submits
// the session for scoring. A failing task does not stop the session.
func RunSession(ctx context.Context, opts Options) error {
	deps, err := buildDeps(opts)
	if err != nil {
		return err
	}
	defer deps.close()

	runID := uuid.NewString()[:8]
	session, err := deps.bench.StartSession(ctx, bench.SessionParams{
		Benchmark:    deps.settings.Bench.Benchmark,
		Workspace:    deps.settings.Bench.Workspace,
		Name:         fmt.Sprintf("NextStep (%s) %s", deps.settings.LLM.Model, runID),
		Architecture: "NextStep schema-guided agent",
	})
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}

	status, err := deps.bench.SessionStatus(ctx, session.SessionID)
	if err != nil {
		return fmt.Errorf("session status: %w", err)
	}
	fmt.Printf("Session %s has %d tasks\n", session.SessionID, len(status.Tasks))

	for _, task := range status.Tasks {
		fmt.Println(strings.Repeat("=", 40))
		fmt.Printf("Starting task %s (%s): %s\n", task.TaskID, task.SpecID, task.Text)

		if err := deps.bench.StartTask(ctx, task.TaskID); err != nil {
			return fmt.Errorf("start task %s: %w", task.TaskID, err)
		}

		if err := deps.runTask(ctx, task); err != nil {
			// The task is completed either way; the grader sees what the
			// agent managed to do before failing.
			fmt.Fprintf(os.Stderr, "Task %s failed: %v\n", task.TaskID, err)
			deps.logger.Error("task failed", zap.String("task", task.TaskID), zap.Error(err))
		}

		result, err := deps.bench.CompleteTask(ctx, task.TaskID)
		if err != nil {
			return fmt.Errorf("complete task %s: %w", task.TaskID, err)
		}
		if result.Eval != nil {
			fmt.Printf("\nSCORE: %.2f\n%s\n", result.Eval.Score, indent(result.Eval.Logs, "  "))
		}
	}

	if err := deps.bench.SubmitSession(ctx, session.SessionID); err != nil {
		return fmt.Errorf("submit session: %w", err)
	}
	fmt.Printf("Session %s submitted\n", session.SessionID)
	return nil
}

// RunTask runs a single task from an existing session and completes it.
func RunTask(ctx context.Context, opts Options, sessionID, taskID string) error {
	deps, err := buildDeps(opts)
	if err != nil {
		return err
	}
	defer deps.close()

	status, err := deps.bench.SessionStatus(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("session status: %w", err)
	}

	var task *bench.Task
	for i := range status.Tasks {
		if status.Tasks[i].TaskID == taskID {
			task = &status.Tasks[i]
			break
		}
	}
	if task == nil {
		return fmt.Errorf("task %s not found in session %s", taskID, sessionID)
	}

	fmt.Printf("Starting task %s (%s): %s\n", task.TaskID, task.SpecID, task.Text)
	if err := deps.bench.StartTask(ctx, task.TaskID); err != nil {
		return fmt.Errorf("start task %s: %w", taskID, err)
	}

	if err := deps.runTask(ctx, *task); err != nil {
		fmt.Fprintf(os.Stderr, "Task %s failed: %v\n", taskID, err)
		deps.logger.Error("task failed", zap.String("task", taskID), zap.Error(err))
	}

	result, err := deps.bench.CompleteTask(ctx, task.TaskID)
	if err != nil {
		return fmt.Errorf("complete task %s: %w", taskID, err)
	}
	if result.Eval != nil {
		fmt.Printf("\nSCORE: %.2f\n%s\n", result.Eval.Score, indent(result.Eval.Logs, "  "))
	}
	return nil
}

// deps bundles everything a session run needs.
type deps struct {
	settings config.Settings
	provider llm.Provider
	bench    *bench.Client
	store    distill.Store
	logger   *zap.Logger
}

func buildDeps(opts Options) (*deps, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	provider, err := createProvider(opts.Provider)
	if err != nil {
		return nil, err
	}

	settings, err := config.New(opts.Provider)
	if err != nil {
		return nil, err
	}
	if opts.MaxSteps > 0 {
		settings.Agent.MaxSteps = opts.MaxSteps
	}

	store, err := openStore(settings.Cache.Path)
	if err != nil {
		return nil, fmt.Errorf("open knowledge cache: %w", err)
	}

	return &deps{
		settings: settings,
		provider: provider,
		bench:    bench.NewClient(settings.Bench.BaseURL, settings.Bench.APIKey),
		store:    store,
		logger:   logger,
	}, nil
}

// openStore picks the cache backend by path shape: a .db path gets the
// SQLite store, anything else is treated as a directory of one record file
// per fingerprint.
func openStore(path string) (distill.Store, error) {
	if filepath.Ext(path) == ".db" {
		return distill.OpenSQLite(path)
	}
	return distill.OpenFileStore(path)
}

func (d *deps) close() {
	if err := d.store.Close(); err != nil {
		d.logger.Warn("close knowledge cache", zap.Error(err))
	}
}

// runTask executes one task end to end: actor resolution, knowledge
// materialization, then the decision loop.
func (d *deps) runTask(ctx context.Context, task bench.Task) error {
	api := remote.NewClient(task.APIURL, task.APIToken)

	about, err := api.WhoAmI(ctx)
	if err != nil {
		return fmt.Errorf("resolve actor: %w", err)
	}

	// Each task gets its own client so usage is accounted per task.
	client := llm.NewClient(d.provider)

	distiller := distill.NewDistiller(client, d.store, action.NextStepSchema(), d.logger)
	knowledge, fingerprint, err := distiller.Materialize(ctx, api)
	if err != nil {
		return fmt.Errorf("materialize knowledge: %w", err)
	}
	d.logger.Debug("knowledge ready",
		zap.String("task", task.TaskID),
		zap.String("fingerprint", fingerprint))

	actor := distill.ActorContext{Identity: about}
	if actor.Authenticated() {
		profile, err := api.GetEmployee(ctx, about.CurrentUser)
		if err != nil {
			return fmt.Errorf("load actor profile: %w", err)
		}
		actor.Profile = &profile
	}

	prompt := distill.SystemPrompt(agent.DefaultInstructions, knowledge, actor)
	runner := agent.NewRunner(client, agent.NewDispatcher(api, about), d.logger,
		agent.Config{MaxSteps: d.settings.Agent.MaxSteps})

	result, err := runner.Run(ctx, prompt, task.Text)
	if err != nil {
		return err
	}

	switch result.State {
	case agent.StateTerminated:
		fmt.Printf("agent %s (%d steps, %d tokens). Summary:\n%s\n",
			result.Outcome, result.Steps, result.Usage.TotalTokens, result.Message)
		for _, link := range result.Links {
			fmt.Printf("  - link %s: %s\n", link.Kind, link.ID)
		}
	case agent.StateExhausted:
		fmt.Printf("agent exhausted its %d-step budget without responding\n", result.Steps)
	}
	return nil
}

func createProvider(providerName string) (llm.Provider, error) {
	if providerName == "" {
		return nil, fmt.Errorf("--provider is required for this command")
	}

	providerType, err := llm.ParseProviderType(providerName)
	if err != nil {
		return nil, err
	}

	settings, err := config.New(providerName)
	if err != nil {
		return nil, err
	}

	apiKey, err := config.APIKeyFor(providerName)
	if err != nil {
		return nil, err
	}

	return providerType.
		Model(settings.LLM.Model).
		MaxTokens(settings.LLM.MaxTokens).
		Temperature(float32(settings.LLM.Temperature)).
		APIKey(apiKey)
}

func indent(s, prefix string) string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		if line != "" {
			lines[i] = prefix + line
		}
	}
	return strings.Join(lines, "\n")
}
