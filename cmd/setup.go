package main

import (
	"context"
	"fmt"
	"os"

	"github.com/desertthunder/hlsx/internal/shared"
	"github.com/urfave/cli/v3"
)

// Setup creates the config file when missing, then the cache directory and content index.
func (r *Runner) Setup(ctx context.Context, cmd *cli.Command) error {
	configPath := r.configPath
	if configPath == "" {
		configPath = cmd.String("config")
	}

	if r.config == nil {
		if _, err := os.Stat(configPath); err != nil {
			r.logger.Info("config file not found, creating from template", "path", configPath)
			if err := shared.CreateConfigFile(configPath); err != nil {
				return err
			}
			r.logger.Info("config file created", "path", configPath)
		}
	}

	config, err := r.loadConfig(cmd)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := os.MkdirAll(config.Cache.ContentPath(), 0755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}

	r.logger.Info("initializing content index", "path", config.Database.Path)
	db, err := shared.OpenIndex(config.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	r.logger.Infof("setup complete for cache: %v", config.Cache.Dir)
	r.writePlain("✓ Cache ready at %s\n", config.Cache.Dir)
	r.writePlain("  Content index: %s\n", config.Database.Path)
	return nil
}
