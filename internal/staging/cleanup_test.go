package staging

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"layerreduce/internal/logging"
)

func makeProject(t *testing.T, workDir, name string, age time.Duration, files map[string]string) string {
	t.Helper()
	dir := filepath.Join(workDir, name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("create %s: %v", name, err)
	}
	for rel, content := range files {
		path := filepath.Join(dir, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("create parent of %s: %v", rel, err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("write %s: %v", rel, err)
		}
	}
	stamp := time.Now().Add(-age)
	if err := os.Chtimes(dir, stamp, stamp); err != nil {
		t.Fatalf("set time on %s: %v", name, err)
	}
	return dir
}

func TestCleanStaleMissingWorkDirIsNoop(t *testing.T) {
	for _, dir := range []string{"", "   ", filepath.Join(t.TempDir(), "missing")} {
		result := CleanStale(context.Background(), dir, time.Hour, logging.NewNop())
		if len(result.Removed) != 0 || len(result.Errors) != 0 {
			t.Errorf("expected empty result for %q, got %+v", dir, result)
		}
	}
}

func TestCleanStaleRemovesOnlyOldProjectFolders(t *testing.T) {
	workDir := t.TempDir()
	old := makeProject(t, workDir, "sh010_harmony", 2*time.Hour, map[string]string{"layers/bg/a.exr": "x"})
	recent := makeProject(t, workDir, "sh020_harmony", 0, nil)
	notes := filepath.Join(workDir, "notes.txt")
	if err := os.WriteFile(notes, []byte("keep"), 0o644); err != nil {
		t.Fatal(err)
	}
	past := time.Now().Add(-3 * time.Hour)
	if err := os.Chtimes(notes, past, past); err != nil {
		t.Fatal(err)
	}

	result := CleanStale(context.Background(), workDir, time.Hour, logging.NewNop())

	if len(result.Removed) != 1 || result.Removed[0] != old {
		t.Fatalf("expected only %s removed, got %v", old, result.Removed)
	}
	for path, want := range map[string]bool{old: false, recent: true, notes: true} {
		_, err := os.Stat(path)
		if exists := err == nil; exists != want {
			t.Errorf("%s exists = %v, want %v", filepath.Base(path), exists, want)
		}
	}
}

func TestCleanStaleStopsOnCanceledContext(t *testing.T) {
	workDir := t.TempDir()
	dir := makeProject(t, workDir, "old", 2*time.Hour, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	result := CleanStale(ctx, workDir, time.Hour, logging.NewNop())
	if len(result.Removed) != 0 || len(result.Errors) != 1 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if _, err := os.Stat(dir); err != nil {
		t.Fatal("directory should survive a canceled cleanup")
	}
}

func TestListDirectoriesMissingWorkDir(t *testing.T) {
	for _, path := range []string{"", filepath.Join(t.TempDir(), "missing")} {
		dirs, err := ListDirectories(path)
		if err != nil || dirs != nil {
			t.Fatalf("ListDirectories(%q) = %v, %v; want nil, nil", path, dirs, err)
		}
	}
}

func TestListDirectoriesSortsAndSizes(t *testing.T) {
	workDir := t.TempDir()
	makeProject(t, workDir, "sh020_harmony", 0, nil)
	first := makeProject(t, workDir, "sh010_harmony", time.Hour, map[string]string{
		"scene.xstage":         "12345",
		"layers/bg/a.exr":      "123",
		"clips/sh010_v003.mov": "12",
	})
	if err := os.WriteFile(filepath.Join(workDir, "not-a-dir.txt"), []byte("test"), 0o644); err != nil {
		t.Fatal(err)
	}

	dirs, err := ListDirectories(workDir)
	if err != nil {
		t.Fatalf("ListDirectories: %v", err)
	}
	if len(dirs) != 2 || dirs[0].Name != "sh010_harmony" || dirs[1].Name != "sh020_harmony" {
		t.Fatalf("unexpected listing: %+v", dirs)
	}
	if dirs[0].Path != first || dirs[0].Size != 10 || dirs[0].ModTime.IsZero() {
		t.Fatalf("unexpected first entry: %+v", dirs[0])
	}

	data, err := json.Marshal(dirs[0])
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"size_bytes":10`) {
		t.Fatalf("unexpected JSON shape: %s", data)
	}
}
