// Package main is the entry point for the diffsum CLI.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/diffsum/diffsum/internal/config"
	"github.com/diffsum/diffsum/internal/log"
)

// Version information set via ldflags during build.
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "diffsum",
		Short: "Generate commit messages and changelogs from diffs",
		Long: `diffsum summarizes staged changes into a commit message using a language
model. Large diffs are split into token-bounded chunks, summarized in
parallel, and combined into a single message.

Configuration is loaded in the following order (later sources override earlier):
  1. Default values
  2. ~/.diffsum/config.yaml
  3. ./.diffsum.yaml
  4. .env file
  5. Environment variables (DIFFSUM_* plus OPENAI_API_KEY / ANTHROPIC_API_KEY)
  6. Command line flags`,
		SilenceUsage: true,
	}

	cmd.AddCommand(commitCmd())
	cmd.AddCommand(changelogCmd())
	cmd.AddCommand(configCmd())
	cmd.AddCommand(versionCmd())

	return cmd
}

// loadConfig loads layered configuration, applying any flag overrides last.
func loadConfig(envFile string, overrides ...config.AppConfigOption) (config.AppConfig, error) {
	cfg, err := config.Load(envFile)
	if err != nil {
		return config.AppConfig{}, fmt.Errorf("load config: %w", err)
	}
	return cfg.Apply(overrides...), nil
}

// setupRun configures logging and returns a signal-aware context tagged with
// a fresh run ID.
func setupRun(cfg config.AppConfig, verbose bool) (context.Context, context.CancelFunc, *log.Logger) {
	if verbose {
		cfg = cfg.Apply(config.WithLogLevel("DEBUG"))
	}
	logger := log.Configure(cfg)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	ctx = log.WithRunID(ctx, log.NewRunID())
	return ctx, cancel, logger
}
