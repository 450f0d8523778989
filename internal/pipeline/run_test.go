package pipeline_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"layerreduce/internal/exr"
	"layerreduce/internal/logging"
	"layerreduce/internal/pipeline"
	"layerreduce/internal/services"
	"layerreduce/internal/testsupport"
)

const w, h = 4, 2

// writeLayer writes a two-frame v006 sequence for layer: a live beauty group
// and an all-zero spare group, so every frame gets rewritten.
func writeLayer(t *testing.T, layersDir, layer, version string) {
	t.Helper()
	chans := append(testsupport.RGBA("beauty", w*h, 0.5), testsupport.RGBA("spare", w*h, 0)...)
	testsupport.WriteSequence(t, filepath.Join(layersDir, layer, version), layer, version, 2, w, h, chans...)
}

func TestRunIsolatesFailingLayer(t *testing.T) {
	base := t.TempDir()
	src := filepath.Join(base, "layers")
	dst := filepath.Join(base, "out")
	for _, layer := range []string{"layer1", "layer2", "layer3", "layer4", "layer5"} {
		writeLayer(t, src, layer, "v006")
	}
	corrupt := filepath.Join(src, "layer3", "v006", "layer3_v006.0002.exr")
	if err := os.WriteFile(corrupt, []byte("garbage"), 0o644); err != nil {
		t.Fatalf("corrupt frame: %v", err)
	}
	testsupport.WriteFile(t, filepath.Join(src, "README.txt"), 10)

	report := pipeline.Run(context.Background(), pipeline.Request{
		SourceLayersDir: src,
		DestLayersDir:   dst,
		Version:         "v006",
		Workers:         3,
		Logger:          logging.NewNop(),
	})
	if report.Err != nil {
		t.Fatalf("unexpected report error: %v", report.Err)
	}
	if len(report.Layers) != 5 {
		t.Fatalf("expected 5 layer results, got %d", len(report.Layers))
	}
	if got := len(report.Done()); got != 4 {
		t.Fatalf("expected 4 done, got %d", got)
	}
	failed := report.Failed()
	if len(failed) != 1 || failed[0].Layer != "layer3" {
		t.Fatalf("expected layer3 to fail, got %+v", failed)
	}
	if !errors.Is(failed[0].Err, services.ErrDecode) {
		t.Fatalf("expected decode error, got %v", failed[0].Err)
	}
	if kind, _ := failed[0].Cause(); kind != services.ErrDecode.Error() {
		t.Fatalf("cause kind = %q", kind)
	}
	if _, err := os.Stat(filepath.Join(dst, "layer3")); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("failed layer must leave no output folder, stat err = %v", err)
	}
	if len(failed[0].Files) != 0 {
		t.Fatalf("failed layer still lists files %v", failed[0].Files)
	}

	for i, res := range report.Layers {
		if i > 0 && report.Layers[i-1].Layer > res.Layer {
			t.Fatal("report must be sorted by layer name")
		}
		if res.State != pipeline.StateDone {
			continue
		}
		if res.Sequence != res.Layer+"_v006.@@@@.exr" {
			t.Errorf("%s sequence = %q", res.Layer, res.Sequence)
		}
		if len(res.Empty) != 1 || res.Empty[0] != "spare" {
			t.Errorf("%s empty = %v", res.Layer, res.Empty)
		}
		img, err := exr.ReadFile(filepath.Join(dst, res.Layer, res.Layer+"_v006.0001.exr"))
		if err != nil {
			t.Fatalf("read output: %v", err)
		}
		if img.Channel("spare.R") != nil || img.Channel("beauty.R") == nil {
			t.Errorf("%s output channels = %v", res.Layer, img.ChannelNames())
		}
	}
}

func TestProcessLayerFailureKeepsUnrelatedDestinationFiles(t *testing.T) {
	base := t.TempDir()
	src := filepath.Join(base, "layers")
	dst := filepath.Join(base, "out")
	writeLayer(t, src, "fx", "v006")
	corrupt := filepath.Join(src, "fx", "v006", "fx_v006.0002.exr")
	if err := os.WriteFile(corrupt, []byte("garbage"), 0o644); err != nil {
		t.Fatalf("corrupt frame: %v", err)
	}
	notes := filepath.Join(dst, "fx", "notes.txt")
	testsupport.WriteFile(t, notes, 8)

	res := pipeline.ProcessLayer(context.Background(), pipeline.Job{
		Layer:         "fx",
		SourceRoot:    filepath.Join(src, "fx"),
		DestLayersDir: dst,
		Version:       "v006",
	}, nil, logging.NewNop())
	if res.State != pipeline.StateFailed {
		t.Fatalf("expected failure, got %s", res.State)
	}
	if _, err := os.Stat(filepath.Join(dst, "fx", "fx_v006.0001.exr")); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("partial frame must be removed, stat err = %v", err)
	}
	if _, err := os.Stat(notes); err != nil {
		t.Fatalf("unrelated file must survive: %v", err)
	}
}

func TestRunFallsBackToAcceptableVersion(t *testing.T) {
	base := t.TempDir()
	src := filepath.Join(base, "layers")
	dst := filepath.Join(base, "out")
	writeLayer(t, src, "bg", "v002")
	writeLayer(t, src, "bg", "v005")
	writeLayer(t, src, "fx", "v002")

	report := pipeline.Run(context.Background(), pipeline.Request{
		SourceLayersDir: src,
		DestLayersDir:   dst,
		Version:         "v006",
		Acceptable:      []string{"sh010_taLayerExport_v005"},
		Logger:          logging.NewNop(),
	})
	if len(report.Layers) != 2 {
		t.Fatalf("expected 2 results, got %d", len(report.Layers))
	}
	bg, fx := report.Layers[0], report.Layers[1]
	if bg.State != pipeline.StateDone || bg.SourceVersion != "v005" || bg.Label != "v005" {
		t.Fatalf("unexpected bg result: %+v", bg)
	}
	if _, err := os.Stat(filepath.Join(dst, "bg", "bg_v005.0001.exr")); err != nil {
		t.Fatalf("expected fallback output: %v", err)
	}
	if fx.State != pipeline.StateFailed || !errors.Is(fx.Err, services.ErrResolution) {
		t.Fatalf("expected fx resolution failure, got %+v", fx)
	}
}

func TestRunCopiesNonRasterLayersVerbatim(t *testing.T) {
	base := t.TempDir()
	src := filepath.Join(base, "layers")
	dst := filepath.Join(base, "out")
	testsupport.WriteFile(t, filepath.Join(src, "notes", "v006", "notes_v006.txt"), 42)

	report := pipeline.Run(context.Background(), pipeline.Request{
		SourceLayersDir: src,
		DestLayersDir:   dst,
		Version:         "v006",
	})
	if len(report.Done()) != 1 {
		t.Fatalf("expected the notes layer to succeed: %+v", report.Layers)
	}
	if report.Layers[0].Sequence != "" {
		t.Fatalf("non-raster layers have no sequence label, got %q", report.Layers[0].Sequence)
	}
	info, err := os.Stat(filepath.Join(dst, "notes", "notes_v006.txt"))
	if err != nil || info.Size() != 42 {
		t.Fatalf("expected verbatim copy, got %v %v", info, err)
	}
}

func TestRunCanceledContextFailsEveryLayer(t *testing.T) {
	base := t.TempDir()
	src := filepath.Join(base, "layers")
	for _, layer := range []string{"a", "b", "c"} {
		writeLayer(t, src, layer, "v006")
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report := pipeline.Run(ctx, pipeline.Request{
		SourceLayersDir: src,
		DestLayersDir:   filepath.Join(base, "out"),
		Version:         "v006",
	})
	if len(report.Failed()) != 3 {
		t.Fatalf("expected all layers to fail, got %+v", report.Layers)
	}
	for _, res := range report.Layers {
		if !errors.Is(res.Err, services.ErrCanceled) || !errors.Is(res.Err, context.Canceled) {
			t.Fatalf("expected canceled error, got %v", res.Err)
		}
	}
}

func TestRunMissingLayersDir(t *testing.T) {
	report := pipeline.Run(context.Background(), pipeline.Request{
		SourceLayersDir: filepath.Join(t.TempDir(), "missing"),
	})
	if report.Err == nil {
		t.Fatal("expected an error for a missing layers folder")
	}
	if len(report.Layers) != 0 {
		t.Fatalf("expected no results, got %d", len(report.Layers))
	}
}

func TestStateTerminal(t *testing.T) {
	for _, s := range []pipeline.State{pipeline.StatePending, pipeline.StateResolving, pipeline.StateClassifying, pipeline.StateRewriting} {
		if s.Terminal() {
			t.Errorf("%s must not be terminal", s)
		}
	}
	if !pipeline.StateDone.Terminal() || !pipeline.StateFailed.Terminal() {
		t.Error("done and failed are terminal")
	}
}
