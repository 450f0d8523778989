package pipeline_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/gofrs/flock"

	"layerreduce/internal/catalog"
	"layerreduce/internal/config"
	"layerreduce/internal/exr"
	"layerreduce/internal/logging"
	"layerreduce/internal/pipeline"
	"layerreduce/internal/services"
	"layerreduce/internal/testsupport"
)

type shotFixture struct {
	cfg   *config.Config
	store *catalog.Store
	task  *catalog.Task
	movie string
}

// newShotFixture builds an export tree for sh010 v006 with two layers and
// registers the shot, its export task and two versions in the catalog.
func newShotFixture(t *testing.T, opts ...testsupport.ConfigOption) shotFixture {
	t.Helper()
	cfg := testsupport.NewConfig(t, opts...)
	store := testsupport.MustOpenCatalog(t, cfg)
	ctx := context.Background()

	root := filepath.Join(testsupport.BaseDir(cfg), "shows", "demo", "sh010", cfg.Pipeline.ExportFolder)
	testsupport.WriteFile(t, filepath.Join(root, "source", "v006", "sh010_harmony", "sh010_harmony.xstage"), 64)
	movie := filepath.Join(root, "movies", "v006", "sh010_taLayerExport_v006.mov")
	testsupport.WriteFile(t, movie, 128)

	layers := filepath.Join(root, "layers")
	n := w * h
	testsupport.WriteSequence(t, filepath.Join(layers, "bg", "v006"), "bg", "v006", 2, w, h,
		append(testsupport.RGBA("beauty", n, 0.25), testsupport.RGBA("fx_smoke_matte", n, 1)...)...)
	testsupport.WriteSequence(t, filepath.Join(layers, "chars", "v005"), "chars", "v005", 1, w, h,
		testsupport.RGBA("beauty", n, 1)...)

	shot, err := store.AddShot(ctx, "sh010")
	if err != nil {
		t.Fatalf("AddShot: %v", err)
	}
	task, err := store.AddTask(ctx, shot.ID, cfg.Pipeline.TaskName)
	if err != nil {
		t.Fatalf("AddTask: %v", err)
	}
	for _, v := range []catalog.NewVersion{
		{TaskID: task.ID, Code: "sh010_taLayerExport_v005", Path: filepath.Join(root, "movies", "v005", "old.mov")},
		{TaskID: task.ID, Code: "sh010_taLayerExport_v006", Path: movie},
	} {
		if _, err := store.AddVersion(ctx, v); err != nil {
			t.Fatalf("AddVersion: %v", err)
		}
	}
	return shotFixture{cfg: cfg, store: store, task: task, movie: movie}
}

func TestReduceShotStagesReducesAndPublishes(t *testing.T) {
	fx := newShotFixture(t, testsupport.WithPublish(true))

	report, err := pipeline.ReduceShot(context.Background(), fx.cfg, "sh010", pipeline.ShotOptions{
		Catalog:   fx.store,
		Publisher: fx.store,
		Logger:    logging.NewNop(),
	})
	if err != nil {
		t.Fatalf("ReduceShot failed: %v", err)
	}
	if report.RunID == "" {
		t.Fatal("expected a run id")
	}
	if report.Version.Code != "sh010_taLayerExport_v006" {
		t.Fatalf("selected version = %q", report.Version.Code)
	}
	if len(report.Layers.Done()) != 2 {
		t.Fatalf("expected both layers done: %+v", report.Layers.Layers)
	}

	project := filepath.Join(fx.cfg.WorkDir(), "sh010_harmony")
	if report.Stage.ProjectDir != project {
		t.Fatalf("project = %q, want %q", report.Stage.ProjectDir, project)
	}
	if _, err := os.Stat(filepath.Join(project, "clips", filepath.Base(fx.movie))); err != nil {
		t.Fatalf("clip not staged: %v", err)
	}

	img, err := exr.ReadFile(filepath.Join(project, "layers", "bg", "bg_v006.0002.exr"))
	if err != nil {
		t.Fatalf("read reduced frame: %v", err)
	}
	names := img.ChannelNames()
	want := []string{"beauty.A", "beauty.B", "beauty.G", "beauty.R", "fx_smoke_matte.mask"}
	if len(names) != len(want) {
		t.Fatalf("channels = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("channels = %v, want %v", names, want)
		}
	}

	// chars only has v005, which the v005 catalog version accepts.
	if _, err := os.Stat(filepath.Join(project, "layers", "chars", "chars_v005.0001.exr")); err != nil {
		t.Fatalf("fallback layer missing: %v", err)
	}

	if report.Published == nil || report.Published.Code != "sh010_taLayerExport_v007" {
		t.Fatalf("unexpected published version: %+v", report.Published)
	}
	if report.Published.Path != project {
		t.Fatalf("published path = %q", report.Published.Path)
	}
}

func TestReduceShotSkipsPublishWhenDisabled(t *testing.T) {
	fx := newShotFixture(t)
	report, err := pipeline.ReduceShot(context.Background(), fx.cfg, "sh010", pipeline.ShotOptions{
		Catalog:   fx.store,
		Publisher: fx.store,
	})
	if err != nil {
		t.Fatalf("ReduceShot failed: %v", err)
	}
	if report.Published != nil {
		t.Fatalf("expected no publish, got %+v", report.Published)
	}
}

func TestReduceShotLookupFailures(t *testing.T) {
	t.Run("unknown shot", func(t *testing.T) {
		fx := newShotFixture(t)
		_, err := pipeline.ReduceShot(context.Background(), fx.cfg, "sh999", pipeline.ShotOptions{Catalog: fx.store})
		if !errors.Is(err, services.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("all versions omitted", func(t *testing.T) {
		fx := newShotFixture(t)
		ctx := context.Background()
		shot, err := fx.store.FindShot(ctx, "sh010")
		if err != nil {
			t.Fatalf("FindShot: %v", err)
		}
		versions, err := fx.store.FindVersionsForShotTask(ctx, shot.ID, fx.task.Name)
		if err != nil {
			t.Fatalf("FindVersionsForShotTask: %v", err)
		}
		for _, v := range versions {
			if err := fx.store.SetStatus(ctx, v.ID, fx.cfg.Pipeline.OmittedStatus); err != nil {
				t.Fatalf("SetStatus: %v", err)
			}
		}
		_, err = pipeline.ReduceShot(ctx, fx.cfg, "sh010", pipeline.ShotOptions{Catalog: fx.store})
		if !errors.Is(err, services.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("missing workspace", func(t *testing.T) {
		fx := newShotFixture(t, testsupport.WithoutWorkspace())
		_, err := pipeline.ReduceShot(context.Background(), fx.cfg, "sh010", pipeline.ShotOptions{Catalog: fx.store})
		if !errors.Is(err, services.ErrStaging) {
			t.Fatalf("expected ErrStaging, got %v", err)
		}
	})
}

func TestReduceShotRefusesConcurrentRun(t *testing.T) {
	fx := newShotFixture(t)
	if err := fx.cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	held := flock.New(filepath.Join(fx.cfg.Paths.LogDir, pipeline.LockFileName))
	ok, err := held.TryLock()
	if err != nil || !ok {
		t.Fatalf("hold lock: %v %v", ok, err)
	}
	t.Cleanup(func() { _ = held.Unlock() })

	_, err = pipeline.ReduceShot(context.Background(), fx.cfg, "sh010", pipeline.ShotOptions{Catalog: fx.store})
	if !errors.Is(err, services.ErrStaging) {
		t.Fatalf("expected ErrStaging while locked, got %v", err)
	}
}

type failingPublisher struct{}

func (failingPublisher) Publish(context.Context, string, int64, string) (*catalog.Version, error) {
	return nil, errors.New("tracker offline")
}

func TestReduceShotReportsPublishFailure(t *testing.T) {
	fx := newShotFixture(t, testsupport.WithPublish(true))
	report, err := pipeline.ReduceShot(context.Background(), fx.cfg, "sh010", pipeline.ShotOptions{
		Catalog:   fx.store,
		Publisher: failingPublisher{},
	})
	if err == nil {
		t.Fatal("expected publish error")
	}
	if services.Fatal(err) {
		t.Fatal("publish failures are not fatal staging errors")
	}
	if len(report.Layers.Done()) != 2 {
		t.Fatalf("layers should still be reduced: %+v", report.Layers.Layers)
	}
}
