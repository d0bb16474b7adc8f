package main

import (
	"fmt"

	"github.com/raaihank/gdpr-sentinel/internal/app"
	"github.com/raaihank/gdpr-sentinel/internal/config"
	"github.com/raaihank/gdpr-sentinel/internal/logger"
	"github.com/spf13/cobra"
)

// setup loads configuration, applies command overrides and builds the services.
// Logs go to stderr so stdout stays machine readable.
func setup(cmd *cobra.Command, opts *rootOptions, override func(*config.Config)) (*config.Config, *logger.Logger, *app.Services, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load config: %w", err)
	}
	if override != nil {
		override(cfg)
	}

	log, err := logger.New(logger.Config{
		Level:  opts.logLevel,
		Format: "console",
		Output: cmd.ErrOrStderr(),
	})
	if err != nil {
		return nil, nil, nil, fmt.Errorf("init logger: %w", err)
	}

	services, err := app.Build(cfg, log)
	if err != nil {
		log.Sync()
		return nil, nil, nil, err
	}
	return cfg, log, services, nil
}
