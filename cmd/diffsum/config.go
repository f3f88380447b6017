package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/diffsum/diffsum/internal/config"
)

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and initialize configuration",
	}

	cmd.AddCommand(configInitCmd())
	cmd.AddCommand(configShowCmd())
	cmd.AddCommand(configPathCmd())

	return cmd
}

func configInitCmd() *cobra.Command {
	var project bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a config file with the default values",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.GlobalConfigPath()
			if project {
				path = config.ProjectConfigPath()
			}

			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("%s already exists", path)
			}
			if dir := filepath.Dir(path); dir != "." {
				if err := os.MkdirAll(dir, 0o755); err != nil {
					return fmt.Errorf("create config directory: %w", err)
				}
			}

			if err := defaultFileConfig().WriteFile(path); err != nil {
				return err
			}
			fmt.Fprintf(os.Stderr, "wrote %s\n", path)
			return nil
		},
	}

	cmd.Flags().BoolVar(&project, "project", false, "Write ./.diffsum.yaml instead of the user-level file")

	return cmd
}

func configShowCmd() *cobra.Command {
	var envFile string

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(envFile)
			if err != nil {
				return err
			}

			out, err := yaml.Marshal(fileConfigFrom(cfg))
			if err != nil {
				return fmt.Errorf("marshal config: %w", err)
			}
			fmt.Print(string(out))
			return nil
		},
	}

	cmd.Flags().StringVar(&envFile, "env-file", "", "Path to .env file (default: .env in current directory)")

	return cmd
}

func configPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the config file locations",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("global:  %s\n", config.GlobalConfigPath())
			fmt.Printf("project: %s\n", config.ProjectConfigPath())
		},
	}
}

// defaultFileConfig mirrors the built-in defaults as a writable file.
func defaultFileConfig() config.FileConfig {
	return fileConfigFrom(config.NewAppConfig())
}

// fileConfigFrom projects an AppConfig onto the file layout. API keys are
// deliberately excluded; they belong in the environment.
func fileConfigFrom(cfg config.AppConfig) config.FileConfig {
	var f config.FileConfig
	f.Provider = cfg.Provider()
	f.Model = cfg.Model()
	f.BaseURL = cfg.BaseURL()
	f.Language = cfg.Language()
	f.LogLevel = cfg.LogLevel()
	f.LogFormat = string(cfg.LogFormat())
	useLocal := cfg.UseLocalForChunks()
	f.Local.UseForChunks = &useLocal
	f.Local.Model = cfg.LocalModel()
	f.Local.BaseURL = cfg.LocalBaseURL()
	f.Chunking.Threshold = cfg.Chunking().Threshold()
	f.Chunking.ChunkSize = cfg.Chunking().ChunkSize()
	f.Chunking.OverlapTokens = cfg.Chunking().OverlapTokens()
	f.MaxParallel = cfg.MaxParallel()
	f.LocalMaxParallel = cfg.LocalMaxParallel()
	f.MaxInputTokens = cfg.MaxInputTokens()
	f.MaxContextLines = cfg.MaxContextLines()
	f.Retry.MaxRetries = cfg.Retry().MaxRetries()
	f.Retry.InitialDelaySeconds = cfg.Retry().InitialDelay().Seconds()
	f.Retry.MaxDelaySeconds = cfg.Retry().MaxDelay().Seconds()
	f.Retry.BackoffMultiplier = cfg.Retry().BackoffMultiplier()
	f.Retry.MinIntervalSeconds = cfg.Retry().MinInterval().Seconds()
	f.TimeoutSeconds = cfg.Timeout().Seconds()
	f.CacheDir = cfg.CacheDir()
	enabled := cfg.Ticket().Enabled()
	f.Ticket.Enabled = &enabled
	f.Ticket.Pattern = cfg.Ticket().Pattern()
	return f
}
