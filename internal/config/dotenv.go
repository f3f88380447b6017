package config

import (
	"os"

	"github.com/joho/godotenv"
)

// LoadDotEnv loads environment variables from a .env file.
// If path is empty, it loads from ".env" in the current directory.
// If the file does not exist, it silently returns nil (not an error).
func LoadDotEnv(path string) error {
	if path == "" {
		path = ".env"
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	// godotenv.Load never overwrites variables already present in the
	// environment, which gives real env vars precedence over the file.
	return godotenv.Load(path)
}

// Load assembles the effective configuration from all layers:
// user-level YAML, then repository-level YAML, then .env, then environment
// variables. Later layers win.
func Load(envPath string) (AppConfig, error) {
	cfg := NewAppConfig()

	global, err := LoadFile(GlobalConfigPath())
	if err != nil {
		return AppConfig{}, err
	}
	cfg = cfg.Apply(global.Options(cfg)...)

	project, err := LoadFile(ProjectConfigPath())
	if err != nil {
		return AppConfig{}, err
	}
	cfg = cfg.Apply(project.Options(cfg)...)

	if err := LoadDotEnv(envPath); err != nil {
		return AppConfig{}, err
	}

	envCfg, err := LoadFromEnv()
	if err != nil {
		return AppConfig{}, err
	}
	cfg = cfg.Apply(envCfg.Options(cfg)...)

	return cfg, nil
}
