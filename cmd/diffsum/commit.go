package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/diffsum/diffsum/infrastructure/git"
	"github.com/diffsum/diffsum/infrastructure/jira"
	"github.com/diffsum/diffsum/internal/config"
	"github.com/diffsum/diffsum/internal/log"
)

func commitCmd() *cobra.Command {
	var (
		envFile      string
		providerName string
		model        string
		language     string
		workTime     string
		ticket       string
		apply        bool
		edit         bool
		verbose      bool
	)

	cmd := &cobra.Command{
		Use:   "commit",
		Short: "Generate a commit message for staged changes",
		Long: `Generate a commit message for the staged changes in the current repository.

The message is printed to stdout. With --apply the commit is created
immediately; with --edit your editor opens on the message first.

A ticket ID found in the branch name is prefixed to the subject line, and
--work-time appends a "#time" work log line in Jira notation.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(envFile,
				config.WithProvider(providerName),
				config.WithModel(model),
				config.WithLanguage(language),
			)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return runCommit(cfg, workTime, ticket, apply, edit, verbose)
		},
	}

	cmd.Flags().StringVar(&envFile, "env-file", "", "Path to .env file (default: .env in current directory)")
	cmd.Flags().StringVar(&providerName, "provider", "", "Backend: openai, anthropic, ollama")
	cmd.Flags().StringVar(&model, "model", "", "Model identifier")
	cmd.Flags().StringVar(&language, "language", "", "Output language code (default: en)")
	cmd.Flags().StringVar(&workTime, "work-time", "", "Work log duration, e.g. \"2h 30m\"")
	cmd.Flags().StringVar(&ticket, "ticket", "", "Ticket ID override, e.g. PROJ-123")
	cmd.Flags().BoolVarP(&apply, "apply", "a", false, "Create the commit with the generated message")
	cmd.Flags().BoolVarP(&edit, "edit", "e", false, "Open the editor on the message before committing")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	return cmd
}

func runCommit(cfg config.AppConfig, workTime, ticket string, apply, edit, verbose bool) error {
	ctx, cancel, logger := setupRun(cfg, verbose)
	defer cancel()

	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("get working directory: %w", err)
	}

	repo, err := git.Open(cwd, logger.Slog())
	if err != nil {
		return err
	}

	diffText, err := repo.StagedDiff(ctx)
	if err != nil {
		if errors.Is(err, git.ErrNoStagedChanges) {
			return fmt.Errorf("nothing staged; use git add first")
		}
		return err
	}

	tctx, err := ticketContext(cfg, repo, workTime, ticket, logger)
	if err != nil {
		return err
	}

	summarizer, cleanup, err := buildSummarizer(cfg, logger)
	if err != nil {
		return err
	}
	defer func() { _ = cleanup() }()

	result, err := summarizer.CommitMessage(ctx, diffText, tctx)
	if err != nil {
		return err
	}

	message := result.Message()
	logger.InfoContext(ctx, "commit message generated",
		slog.Bool("chunked", result.Chunked()),
		slog.Int("chunks", result.ChunkCount()),
		slog.Int("failed_chunks", result.FailedChunks()),
	)
	if result.Degraded() {
		logger.WarnContext(ctx, "some chunks could not be summarized; review the message carefully")
	}

	if edit {
		message, err = repo.EditMessage(ctx, message)
		if err != nil {
			return err
		}
		if message == "" {
			return fmt.Errorf("aborting: empty commit message")
		}
	}

	fmt.Println(message)

	if apply || edit {
		if err := repo.Commit(ctx, message); err != nil {
			return err
		}
		logger.InfoContext(ctx, "commit created")
	}

	return nil
}

// ticketContext assembles the issue-tracker annotations from config, flags,
// and the branch name.
func ticketContext(cfg config.AppConfig, repo *git.Repository, workTime, ticket string, logger *log.Logger) (jira.Context, error) {
	var normalized string
	if workTime != "" {
		var err error
		normalized, err = jira.NormalizeWorkTime(workTime)
		if err != nil {
			return jira.Context{}, err
		}
	}

	if ticket != "" {
		if !jira.ValidTicket(ticket) {
			return jira.Context{}, fmt.Errorf("invalid ticket ID %q", ticket)
		}
		return jira.NewContext(ticket, normalized), nil
	}

	if !cfg.Ticket().Enabled() {
		return jira.NewContext("", normalized), nil
	}

	extractor, err := jira.NewExtractor(cfg.Ticket().Pattern())
	if err != nil {
		return jira.Context{}, err
	}

	branch, err := repo.CurrentBranch()
	if err != nil {
		logger.Warn("cannot determine branch, skipping ticket extraction", "error", err.Error())
		return jira.NewContext("", normalized), nil
	}

	return jira.NewContext(extractor.FromBranch(branch), normalized), nil
}
