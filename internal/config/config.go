package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// UserPlaceholder is substituted with the sanitized user name in
// paths.workspace_root.
const UserPlaceholder = "{user}"

// Paths contains directory and file locations.
type Paths struct {
	WorkspaceRoot string `toml:"workspace_root"`
	WorkSubdir    string `toml:"work_subdir"`
	LogDir        string `toml:"log_dir"`
	CatalogPath   string `toml:"catalog_path"`
}

// Pipeline contains configuration for the channel-reduction run.
type Pipeline struct {
	// ExportFolder is the directory name that marks the root of a shot's
	// layer export inside the deliverable path.
	ExportFolder string `toml:"export_folder"`
	// TaskName is the catalog task whose versions feed the run and receive
	// the publish.
	TaskName string `toml:"task_name"`
	// Workers bounds the layer worker pool. Zero means one worker per CPU.
	Workers            int    `toml:"workers"`
	Publish            bool   `toml:"publish"`
	PublishDescription string `toml:"publish_description"`
	// OmittedStatus is the version status that makes a catalog version unusable.
	OmittedStatus string `toml:"omitted_status"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for layerreduce.
//
// Configuration sections by subsystem:
//   - Paths: user workspace, log directory and catalog database
//   - Pipeline: export folder naming, catalog task, worker pool and publishing
//   - Logging: log format and level
type Config struct {
	Paths    Paths    `toml:"paths"`
	Pipeline Pipeline `toml:"pipeline"`
	Logging  Logging  `toml:"logging"`

	// User is resolved from the environment, never from the file.
	User string `toml:"-"`
}

// ConfigEnvVar names a config file to use when --config is not given.
const ConfigEnvVar = "LAYERREDUCE_CONFIG"

// DefaultConfigPath returns the absolute path of the per-user config file.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/layerreduce/config.toml")
}

// Load finds, decodes, normalizes and validates the configuration. An
// explicit path that does not exist yields defaults with exists=false.
func Load(path string) (cfg *Config, resolved string, exists bool, err error) {
	resolved, exists, err = locate(path)
	if err != nil {
		return nil, "", false, err
	}

	c := Default()
	if exists {
		if err := decodeFile(resolved, &c); err != nil {
			return nil, "", false, err
		}
	}
	if err := c.normalize(); err != nil {
		return nil, "", false, err
	}
	if err := c.Validate(); err != nil {
		return nil, "", false, err
	}
	return &c, resolved, exists, nil
}

func decodeFile(path string, cfg *Config) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	dec := toml.NewDecoder(file)
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			return fmt.Errorf("parse config %s: %s", path, strict.String())
		}
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

// locate picks the config file: the explicit path, then $LAYERREDUCE_CONFIG,
// then the per-user file, then ./layerreduce.toml.
func locate(path string) (string, bool, error) {
	if path == "" {
		path = strings.TrimSpace(os.Getenv(ConfigEnvVar))
	}
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		ok, err := isFile(expanded)
		return expanded, ok, err
	}

	userPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}
	projectPath, err := filepath.Abs("layerreduce.toml")
	if err != nil {
		return "", false, err
	}
	for _, candidate := range []string{userPath, projectPath} {
		if ok, _ := isFile(candidate); ok {
			return candidate, true, nil
		}
	}
	return userPath, false, nil
}

func isFile(path string) (bool, error) {
	info, err := os.Stat(path)
	switch {
	case err == nil:
		return !info.IsDir(), nil
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	default:
		return false, fmt.Errorf("stat config: %w", err)
	}
}

// WorkspaceDir returns the user's personal workspace root with the user
// placeholder filled in. Dots in the user name become underscores, matching
// how the studio names personal folders.
func (c *Config) WorkspaceDir() string {
	user := strings.ReplaceAll(c.User, ".", "_")
	return strings.ReplaceAll(c.Paths.WorkspaceRoot, UserPlaceholder, user)
}

// WorkDir is the directory inside the workspace that receives staged projects.
func (c *Config) WorkDir() string {
	return filepath.Join(c.WorkspaceDir(), c.Paths.WorkSubdir)
}

// WorkerCount returns the size of the layer worker pool.
func (c *Config) WorkerCount() int {
	if c.Pipeline.Workers > 0 {
		return c.Pipeline.Workers
	}
	return runtime.GOMAXPROCS(0)
}

// EnsureDirectories creates the log and catalog directories.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Paths.LogDir}
	if c.Paths.CatalogPath != "" {
		dirs = append(dirs, filepath.Dir(c.Paths.CatalogPath))
	}
	for _, dir := range dirs {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// expandPath resolves a leading ~ and makes the path absolute.
func expandPath(value string) (string, error) {
	if value == "" {
		return "", nil
	}
	if value == "~" || strings.HasPrefix(value, "~/") || strings.HasPrefix(value, `~\`) {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		value = filepath.Join(home, value[1:])
	}
	abs, err := filepath.Abs(filepath.Clean(value))
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", value, err)
	}
	return abs, nil
}

// ExpandPath applies the config path rules to a user supplied path.
func ExpandPath(value string) (string, error) {
	return expandPath(value)
}

// SampleConfig returns the embedded sample configuration.
func SampleConfig() string {
	return sampleConfig
}

// CreateSample writes the sample configuration to path.
func CreateSample(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
