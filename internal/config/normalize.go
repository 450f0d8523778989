package config

import (
	"fmt"
	"os"
	"strings"
)

// userEnvVars are consulted in order to find the current user name.
var userEnvVars = []string{"LAYERREDUCE_USER", "USERNAME", "USER"}

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizePipeline()
	c.normalizeLogging()
	c.normalizeUser()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.WorkspaceRoot) == "" {
		c.Paths.WorkspaceRoot = defaultWorkspaceRoot
	}
	if c.Paths.WorkspaceRoot, err = expandPath(strings.TrimSpace(c.Paths.WorkspaceRoot)); err != nil {
		return fmt.Errorf("paths.workspace_root: %w", err)
	}
	c.Paths.WorkSubdir = strings.TrimSpace(c.Paths.WorkSubdir)
	if c.Paths.WorkSubdir == "" {
		c.Paths.WorkSubdir = defaultWorkSubdir
	}
	if c.Paths.LogDir, err = expandPath(strings.TrimSpace(c.Paths.LogDir)); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.CatalogPath) == "" {
		c.Paths.CatalogPath = defaultCatalogPath
	}
	if c.Paths.CatalogPath, err = expandPath(strings.TrimSpace(c.Paths.CatalogPath)); err != nil {
		return fmt.Errorf("paths.catalog_path: %w", err)
	}
	return nil
}

func (c *Config) normalizePipeline() {
	c.Pipeline.ExportFolder = strings.TrimSpace(c.Pipeline.ExportFolder)
	if c.Pipeline.ExportFolder == "" {
		c.Pipeline.ExportFolder = defaultExportFolder
	}
	c.Pipeline.TaskName = strings.TrimSpace(c.Pipeline.TaskName)
	if c.Pipeline.TaskName == "" {
		c.Pipeline.TaskName = defaultTaskName
	}
	c.Pipeline.PublishDescription = strings.TrimSpace(c.Pipeline.PublishDescription)
	if c.Pipeline.PublishDescription == "" {
		c.Pipeline.PublishDescription = defaultPublishDescription
	}
	c.Pipeline.OmittedStatus = strings.TrimSpace(c.Pipeline.OmittedStatus)
	if c.Pipeline.OmittedStatus == "" {
		c.Pipeline.OmittedStatus = defaultOmittedStatus
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

func (c *Config) normalizeUser() {
	c.User = strings.TrimSpace(c.User)
	if c.User != "" {
		return
	}
	for _, key := range userEnvVars {
		if value, ok := os.LookupEnv(key); ok && strings.TrimSpace(value) != "" {
			c.User = strings.TrimSpace(value)
			return
		}
	}
}
