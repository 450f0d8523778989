package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"layerreduce/internal/config"
)

// TestUser is the user name stamped on generated configs.
const TestUser = "test.artist"

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t           testing.TB
	baseDir     string
	cfg         *config.Config
	noWorkspace bool
}

// NewConfig produces a config seeded with unique temp directories per test.
// The user workspace directory exists unless WithoutWorkspace is given; log
// and catalog paths live under the same temp root.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.User = TestUser
	cfgVal.Paths.WorkspaceRoot = filepath.Join(base, "users", config.UserPlaceholder)
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.CatalogPath = filepath.Join(base, "catalog.db")
	cfgVal.Pipeline.Workers = 2
	cfgVal.Pipeline.Publish = false

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	if !builder.noWorkspace {
		if err := os.MkdirAll(builder.cfg.WorkspaceDir(), 0o755); err != nil {
			t.Fatalf("mkdir workspace: %v", err)
		}
	}
	return builder.cfg
}

// WithWorkers overrides the layer worker pool size.
func WithWorkers(n int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Pipeline.Workers = n
	}
}

// WithPublish toggles publishing of the finished project folder.
func WithPublish(enabled bool) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Pipeline.Publish = enabled
	}
}

// WithoutWorkspace points the workspace root at a directory that does not exist.
func WithoutWorkspace() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Paths.WorkspaceRoot = filepath.Join(b.baseDir, "missing", config.UserPlaceholder)
		b.noWorkspace = true
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.CatalogPath)
}
