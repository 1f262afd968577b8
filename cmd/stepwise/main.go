// Package main provides the stepwise CLI entry point.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/richinex/stepwise/cli"
)

var (
	// Global flags
	provider string
	maxSteps int
	verbose  bool
)

func main() {
	// Load .env file if present (ignore "file not found" errors)
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			fmt.Fprintf(os.Stderr, "Warning: failed to load .env file: %v\n", err)
		}
	}

	rootCmd := &cobra.Command{
		Use:   "stepwise",
		Short: "Schema-guided back-office agent",
		Long: `An autonomous agent that executes back-office tasks one structured
decision at a time: a preflight security gate, a closed action catalog,
and distilled company rules cached per documentation fingerprint.`,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVarP(&provider, "provider", "p", "", "LLM provider (openai, anthropic, deepseek, gemini)")
	rootCmd.PersistentFlags().IntVar(&maxSteps, "max-steps", 0, "Decision step budget per task (default from AGENT_MAX_STEPS)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Show verbose output")

	rootCmd.AddCommand(sessionCmd(), taskCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func sessionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "session",
		Short: "Run a full benchmark session",
		Long: `Start a benchmark session, run the agent on every task in it and
submit the session for scoring. Task credentials and endpoints come from
the coordinator; provider settings come from the environment.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := buildLogger()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			opts := cli.Options{
				Provider: provider,
				MaxSteps: maxSteps,
				Verbose:  verbose,
				Logger:   logger,
			}
			return cli.RunSession(context.Background(), opts)
		},
	}
}

func taskCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "task <session-id> <task-id>",
		Short: "Run a single task from an existing session",
		Long: `Look a task up in an already started session, run the agent on it and
complete it for grading. Useful for reruns and debugging one task.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := buildLogger()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			opts := cli.Options{
				Provider: provider,
				MaxSteps: maxSteps,
				Verbose:  verbose,
				Logger:   logger,
			}
			return cli.RunTask(context.Background(), opts, args[0], args[1])
		},
	}
}

func buildLogger() (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	return cfg.Build()
}
