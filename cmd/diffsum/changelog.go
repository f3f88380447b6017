package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/diffsum/diffsum/infrastructure/git"
	"github.com/diffsum/diffsum/internal/config"
)

func changelogCmd() *cobra.Command {
	var (
		envFile  string
		model    string
		language string
		from     string
		to       string
		output   string
		force    bool
		verbose  bool
	)

	cmd := &cobra.Command{
		Use:   "changelog",
		Short: "Generate a changelog from commit history",
		Long: `Generate a changelog from the commit messages in a revision range.

The range defaults to everything since the most recent tag. The result is
printed to stdout, or written to a file with --output.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(envFile,
				config.WithModel(model),
				config.WithLanguage(language),
			)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return runChangelog(cfg, from, to, output, force, verbose)
		},
	}

	cmd.Flags().StringVar(&envFile, "env-file", "", "Path to .env file (default: .env in current directory)")
	cmd.Flags().StringVar(&model, "model", "", "Model identifier")
	cmd.Flags().StringVar(&language, "language", "", "Output language code (default: en)")
	cmd.Flags().StringVar(&from, "from", "", "Start revision, exclusive (default: latest tag)")
	cmd.Flags().StringVar(&to, "to", "", "End revision, inclusive (default: HEAD)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write the changelog to this file")
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite the output file if it exists")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	return cmd
}

func runChangelog(cfg config.AppConfig, from, to, output string, force, verbose bool) error {
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

	if from == "" {
		from, err = repo.LatestTag()
		if err != nil {
			if !errors.Is(err, git.ErrNoTags) {
				return err
			}
			// No tags yet: cover the whole history.
			from = ""
		}
	}

	messages, err := repo.CommitMessages(from, to)
	if err != nil {
		return err
	}
	if len(messages) == 0 {
		return fmt.Errorf("no commits in range")
	}

	logger.InfoContext(ctx, "generating changelog",
		slog.String("from", from),
		slog.String("to", to),
		slog.Int("commits", len(messages)),
	)

	summarizer, cleanup, err := buildSummarizer(cfg, logger)
	if err != nil {
		return err
	}
	defer func() { _ = cleanup() }()

	changelog, err := summarizer.Changelog(ctx, messages)
	if err != nil {
		return err
	}

	if output == "" {
		fmt.Println(changelog)
		return nil
	}

	if !force {
		if _, err := os.Stat(output); err == nil {
			return fmt.Errorf("%s already exists; use --force to overwrite", output)
		}
	}
	if err := os.WriteFile(output, []byte(changelog+"\n"), 0o644); err != nil {
		return fmt.Errorf("write changelog: %w", err)
	}
	logger.InfoContext(ctx, "changelog written", slog.String("path", output))
	return nil
}
