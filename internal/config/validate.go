package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validatePipeline(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.WorkspaceRoot) == "" {
		return errors.New("paths.workspace_root must be set")
	}
	if strings.Contains(c.Paths.WorkspaceRoot, UserPlaceholder) && c.User == "" {
		return fmt.Errorf("paths.workspace_root uses %s but no user name is set; export LAYERREDUCE_USER", UserPlaceholder)
	}
	if strings.ContainsAny(c.Paths.WorkSubdir, `/\`) {
		return fmt.Errorf("paths.work_subdir %q must be a single directory name", c.Paths.WorkSubdir)
	}
	return nil
}

func (c *Config) validatePipeline() error {
	if strings.ContainsAny(c.Pipeline.ExportFolder, `/\`) {
		return fmt.Errorf("pipeline.export_folder %q must be a single directory name", c.Pipeline.ExportFolder)
	}
	if c.Pipeline.Workers < 0 {
		return errors.New("pipeline.workers must be zero or positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
		return nil
	default:
		return fmt.Errorf("logging.level %q must be one of debug, info, warn, error", c.Logging.Level)
	}
}
