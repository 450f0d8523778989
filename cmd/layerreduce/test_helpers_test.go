package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"layerreduce/internal/config"
	"layerreduce/internal/testsupport"
)

type cliTestEnv struct {
	cfg        *config.Config
	configPath string
	baseDir    string
}

func setupCLITestEnv(t *testing.T, opts ...testsupport.ConfigOption) *cliTestEnv {
	t.Helper()

	cfg := testsupport.NewConfig(t, opts...)
	base := testsupport.BaseDir(cfg)
	t.Setenv("HOME", filepath.Join(base, "home"))
	t.Setenv("LAYERREDUCE_USER", testsupport.TestUser)
	t.Setenv(config.ConfigEnvVar, "")

	configPath := filepath.Join(base, "config.toml")
	writeTestConfig(t, configPath, cfg)

	return &cliTestEnv{cfg: cfg, configPath: configPath, baseDir: base}
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	content := fmt.Sprintf(`[paths]
workspace_root = %q
work_subdir = %q
log_dir = %q
catalog_path = %q

[pipeline]
export_folder = %q
task_name = %q
workers = %d
publish = %t
omitted_status = %q
`,
		cfg.Paths.WorkspaceRoot,
		cfg.Paths.WorkSubdir,
		cfg.Paths.LogDir,
		cfg.Paths.CatalogPath,
		cfg.Pipeline.ExportFolder,
		cfg.Pipeline.TaskName,
		cfg.Pipeline.Workers,
		cfg.Pipeline.Publish,
		cfg.Pipeline.OmittedStatus,
	)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
