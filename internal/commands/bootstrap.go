package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"fintrack/internal/backend"
	"fintrack/internal/config"
	"fintrack/internal/log"
)

// loadEnvFile loads a dotenv file for local development. A missing file is
// not an error; variables already set in the environment win.
func loadEnvFile(path string) {
	if path == "" {
		return
	}
	if _, err := os.Stat(path); err != nil {
		return
	}
	_ = godotenv.Load(path)
}

// loadConfig reads and validates the environment.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setupLogger builds the application logger from LOG_LEVEL and LOG_FORMAT
// and installs it as the slog default.
func setupLogger(cfg *config.Config) (*log.Logger, error) {
	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	format, err := log.ParseFormat(cfg.LogFormat)
	if err != nil {
		return nil, err
	}
	logConfig := log.DefaultConfig()
	logConfig.Level = level
	logConfig.Format = format
	logger := log.New(logConfig)
	log.SetDefault(logger)
	return logger, nil
}

// openStore creates the configured backend. Persistent backends are
// migrated on open.
func openStore(ctx context.Context, cfg *config.Config, logger *log.Logger) (*backend.BackendResult, error) {
	backendConfig, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, err
	}
	res, err := backend.NewFactory(logger.Slog(log.ComponentStorage)).CreateBackend(ctx, backendConfig)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", backendConfig.Type, err)
	}
	return res, nil
}

// bootstrap runs the steps every subcommand shares.
func bootstrap(ctx context.Context) (*config.Config, *log.Logger, *backend.BackendResult, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, nil, err
	}
	logger, err := setupLogger(cfg)
	if err != nil {
		return nil, nil, nil, err
	}
	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		return nil, nil, nil, err
	}
	return cfg, logger, store, nil
}
