package main

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"layerreduce/internal/catalog"
	"layerreduce/internal/testsupport"
)

// seedExport writes an export tree for sh010 v003 with one reducible layer
// and one broken layer, and records the version in the catalog.
func seedExport(t *testing.T, env *cliTestEnv) {
	t.Helper()
	cfg := env.cfg
	root := filepath.Join(env.baseDir, "shows", "demo", "sh010", cfg.Pipeline.ExportFolder)
	testsupport.WriteFile(t, filepath.Join(root, "source", "v003", "sh010_harmony", "scene.xstage"), 32)
	movie := filepath.Join(root, "movies", "v003", "sh010_v003.mov")
	testsupport.WriteFile(t, movie, 64)

	n := 4
	chans := append(testsupport.RGBA("beauty", n, 0.5), testsupport.RGBA("bg_tonal", n, 1)...)
	testsupport.WriteSequence(t, filepath.Join(root, "layers", "bg", "v003"), "bg", "v003", 2, 2, 2, chans...)
	if err := os.MkdirAll(filepath.Join(root, "layers", "broken", "v001"), 0o755); err != nil {
		t.Fatalf("mkdir broken layer: %v", err)
	}

	store := testsupport.MustOpenCatalog(t, cfg)
	ctx := context.Background()
	shot, err := store.AddShot(ctx, "sh010")
	if err != nil {
		t.Fatalf("AddShot: %v", err)
	}
	task, err := store.AddTask(ctx, shot.ID, cfg.Pipeline.TaskName)
	if err != nil {
		t.Fatalf("AddTask: %v", err)
	}
	if _, err := store.AddVersion(ctx, catalog.NewVersion{TaskID: task.ID, Code: "sh010_taLayerExport_v003", Path: movie}); err != nil {
		t.Fatalf("AddVersion: %v", err)
	}
}

func TestRunCommandJSON(t *testing.T) {
	env := setupCLITestEnv(t, testsupport.WithWorkers(1))
	seedExport(t, env)

	out, _, err := runCLI(t, []string{"--json", "run", "sh010"}, env.configPath)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	var payload runOutput
	if err := json.Unmarshal([]byte(out), &payload); err != nil {
		t.Fatalf("invalid JSON %q: %v", out, err)
	}
	if payload.Version != "sh010_taLayerExport_v003" || payload.Done != 1 || payload.Failed != 1 {
		t.Fatalf("unexpected summary: %+v", payload)
	}
	if len(payload.Layers) != 2 || payload.Layers[0].Layer != "bg" || payload.Layers[1].Layer != "broken" {
		t.Fatalf("unexpected layers: %+v", payload.Layers)
	}
	bg := payload.Layers[0]
	if bg.Sequence != "bg_v003.@@@@.exr" || bg.Frames != 2 {
		t.Fatalf("unexpected bg result: %+v", bg)
	}
	if len(bg.Empty) != 1 || bg.Empty[0] != "bg_tonal" {
		t.Fatalf("tonal group should be dropped, got %v", bg.Empty)
	}
	if payload.Layers[1].Cause != "resolution error" {
		t.Fatalf("broken layer cause = %q", payload.Layers[1].Cause)
	}
	if payload.Published != "" {
		t.Fatalf("publish is disabled in tests, got %q", payload.Published)
	}
}

func TestRunCommandTextSummary(t *testing.T) {
	env := setupCLITestEnv(t, testsupport.WithPublish(true))
	seedExport(t, env)

	out, _, err := runCLI(t, []string{"run", "sh010"}, env.configPath)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	requireContains(t, out, "1 done, 1 failed")
	requireContains(t, out, "sh010_taLayerExport_v004")
	requireContains(t, out, "resolution error")
}

func TestRunCommandNoPublishFlag(t *testing.T) {
	env := setupCLITestEnv(t, testsupport.WithPublish(true))
	seedExport(t, env)

	out, _, err := runCLI(t, []string{"run", "sh010", "--no-publish"}, env.configPath)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	requireContains(t, out, "skipped")
}

func TestRunCommandUnknownShotFails(t *testing.T) {
	env := setupCLITestEnv(t)

	_, stderr, err := runCLI(t, []string{"run", "sh404"}, env.configPath)
	if err == nil {
		t.Fatal("expected an error for an unknown shot")
	}
	requireContains(t, stderr, "run aborted")
}
