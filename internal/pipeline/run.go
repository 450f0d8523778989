package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"sync"
	"time"

	"layerreduce/internal/channels"
	"layerreduce/internal/logging"
)

// Request describes one fan-out over the layers of a shot.
type Request struct {
	// SourceLayersDir holds one folder per layer.
	SourceLayersDir string
	// DestLayersDir is the layers folder of the staged project.
	DestLayersDir string
	// Version is the desired version label, e.g. v006.
	Version string
	// Acceptable lists non-omitted version codes, newest first.
	Acceptable []string
	// Workers bounds concurrency; <= 0 uses GOMAXPROCS.
	Workers int
	Codec   channels.Codec
	Logger  *slog.Logger
}

// Report collects the layer results of a run, sorted by layer name.
type Report struct {
	Layers     []LayerResult
	StartedAt  time.Time
	FinishedAt time.Time
	// Err is set when the layers folder itself could not be listed.
	Err error
}

// Done returns the layers that finished successfully.
func (r Report) Done() []LayerResult { return r.filter(StateDone) }

// Failed returns the layers that failed.
func (r Report) Failed() []LayerResult { return r.filter(StateFailed) }

func (r Report) filter(state State) []LayerResult {
	var out []LayerResult
	for _, l := range r.Layers {
		if l.State == state {
			out = append(out, l)
		}
	}
	return out
}

// Run processes every layer folder of req.SourceLayersDir on a bounded worker
// pool and waits for all of them. Units share no state; a failing layer is
// logged and recorded without affecting its siblings. Entries that are not
// directories are skipped. A canceled ctx fails the layers not yet finished.
func Run(ctx context.Context, req Request) Report {
	logger := req.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	report := Report{StartedAt: time.Now().UTC()}

	layers, err := listLayers(req.SourceLayersDir)
	if err != nil {
		report.Err = err
		report.FinishedAt = time.Now().UTC()
		return report
	}

	workers := req.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers > len(layers) {
		workers = len(layers)
	}
	logger.Info("processing layers",
		logging.Int("layers", len(layers)),
		logging.Int("workers", workers),
		logging.String("version", req.Version),
		logging.String(logging.FieldEventType, "run_start"),
	)

	jobs := make(chan Job)
	results := make(chan LayerResult, len(layers))

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				results <- ProcessLayer(ctx, job, req.Codec, logger)
			}
		}()
	}

	go func() {
		for _, layer := range layers {
			jobs <- Job{
				Layer:         layer,
				SourceRoot:    filepath.Join(req.SourceLayersDir, layer),
				DestLayersDir: req.DestLayersDir,
				Version:       req.Version,
				Acceptable:    req.Acceptable,
			}
		}
		close(jobs)
		wg.Wait()
		close(results)
	}()

	for res := range results {
		if res.State == StateFailed {
			kind, msg := res.Cause()
			logging.ErrorWithContext(logger, "layer failed", "layer_failed",
				logging.Layer(res.Layer),
				logging.String("cause", kind),
				logging.String("detail", msg),
				logging.String(logging.FieldErrorHint, "inspect the layer folder and rerun"),
			)
		}
		report.Layers = append(report.Layers, res)
	}
	sort.Slice(report.Layers, func(i, j int) bool { return report.Layers[i].Layer < report.Layers[j].Layer })
	report.FinishedAt = time.Now().UTC()

	logger.Info("layers processed",
		logging.Int("done", len(report.Done())),
		logging.Int("failed", len(report.Failed())),
		logging.Duration("duration", report.FinishedAt.Sub(report.StartedAt)),
		logging.String(logging.FieldEventType, "run_complete"),
	)
	return report
}

func listLayers(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("list layers in %s: %w", dir, err)
	}
	layers := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			layers = append(layers, e.Name())
		}
	}
	sort.Strings(layers)
	return layers, nil
}
