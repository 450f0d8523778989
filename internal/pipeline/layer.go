package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"layerreduce/internal/channels"
	"layerreduce/internal/layout"
	"layerreduce/internal/logging"
	"layerreduce/internal/services"
)

// Job is the unit of work for one layer.
type Job struct {
	Layer string
	// SourceRoot is the layer folder holding its v### versions.
	SourceRoot string
	// DestLayersDir receives <layer>/ with the rewritten frames.
	DestLayersDir string
	// Version is the desired version; empty means the latest on disk.
	Version string
	// Acceptable lists version codes that may stand in for Version.
	Acceptable []string
}

// LayerResult is the outcome of one layer unit.
type LayerResult struct {
	Layer string
	State State
	// SourceVersion is the version folder that was processed.
	SourceVersion string
	// Label is the version label stamped onto output file names.
	Label  string
	Output string
	Files  []string
	// Sequence is the generic name of the written sequence, e.g.
	// beauty_v006.@@@@.exr.
	Sequence      string
	Empty         []string
	Matte         []string
	ColorOverride []string
	Skipped       []string
	Err           error
	Duration      time.Duration
}

// Cause returns the marker label and message of a failed result.
func (r LayerResult) Cause() (string, string) {
	return services.Details(r.Err)
}

// ProcessLayer runs one layer through resolve, classify and rewrite. It never
// panics outward and never returns an error: failures are reported in the
// result with StateFailed.
func ProcessLayer(ctx context.Context, job Job, codec channels.Codec, logger *slog.Logger) (res LayerResult) {
	started := time.Now()
	res = LayerResult{Layer: job.Layer, State: StatePending}
	if codec == nil {
		codec = channels.EXRCodec{}
	}
	ctx = services.WithLayer(ctx, job.Layer)
	logger = logging.WithContext(ctx, logger)

	fail := func(err error) LayerResult {
		res.State = StateFailed
		res.Err = err
		res.Duration = time.Since(started)
		return res
	}
	enter := func(state State) error {
		if err := ctx.Err(); err != nil {
			return services.Wrap(services.ErrCanceled, string(state), "", job.Layer, err)
		}
		res.State = state
		logger.Debug("layer stage", logging.String(logging.FieldStage, string(state)))
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			res = fail(fmt.Errorf("layer %s panicked while %s: %v", job.Layer, res.State, r))
		}
	}()

	if err := enter(StateResolving); err != nil {
		return fail(err)
	}
	versionPath, err := resolveVersion(job)
	if err != nil {
		return fail(services.Wrap(services.ErrResolution, string(StateResolving), "resolve version", job.Layer, err))
	}
	res.SourceVersion = filepath.Base(versionPath)
	if job.Version != "" && res.SourceVersion != job.Version {
		logging.WarnWithContext(logger, "desired version missing, using fallback", "version_fallback",
			logging.String("desired", job.Version),
			logging.String("using", res.SourceVersion),
			logging.String(logging.FieldErrorHint, "check that the layer was exported for "+job.Version),
			logging.String(logging.FieldImpact, "layer comes from an older version"),
		)
	}

	if err := enter(StateClassifying); err != nil {
		return fail(err)
	}
	cls, err := channels.Classify(ctx, versionPath, codec, logger)
	if err != nil {
		if canceled(err) {
			return fail(services.Wrap(services.ErrCanceled, string(StateClassifying), "", job.Layer, err))
		}
		return fail(services.Wrap(services.ErrDecode, string(StateClassifying), "classify", versionPath, err))
	}
	res.Empty = cls.Empty.Sorted()
	res.Matte = cls.Matte.Sorted()
	res.ColorOverride = cls.ColorOverride.Sorted()
	res.Skipped = cls.Skipped

	if err := enter(StateRewriting); err != nil {
		return fail(err)
	}
	dest, label, err := layout.PrepareDestination(versionPath, job.DestLayersDir)
	if err != nil {
		return fail(services.Wrap(services.ErrStaging, string(StateRewriting), "prepare destination", job.Layer, err))
	}
	res.Output = dest
	res.Label = label
	files, err := channels.RewriteSequence(ctx, versionPath, dest, label, cls, codec)
	res.Files = files
	if err != nil {
		discardPartial(dest, files, logger)
		res.Files = nil
		if canceled(err) {
			err = services.Wrap(services.ErrCanceled, string(StateRewriting), "", job.Layer, err)
		}
		return fail(err)
	}
	if cls.Raster && len(files) > 0 {
		res.Sequence = channels.GenericLabel(files[0])
	}

	res.State = StateDone
	res.Duration = time.Since(started)
	logger.Info("layer reduced",
		logging.String("source_version", res.SourceVersion),
		logging.String("output", dest),
		logging.Int("frames", len(files)),
		logging.String("sequence", res.Sequence),
		logging.Duration("duration", res.Duration),
		logging.String(logging.FieldEventType, "layer_done"),
	)
	return res
}

// discardPartial removes the frames a failed layer managed to write, and its
// destination folder when nothing else is left in it.
func discardPartial(dest string, written []string, logger *slog.Logger) {
	for _, name := range written {
		if err := os.Remove(filepath.Join(dest, name)); err != nil && !errors.Is(err, fs.ErrNotExist) {
			logger.Warn("failed to remove partial output", logging.String("file", name), logging.Error(err))
		}
	}
	if err := os.Remove(dest); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logger.Debug("destination kept", logging.String("output", dest), logging.Error(err))
	}
}

func resolveVersion(job Job) (string, error) {
	if job.Version == "" {
		latest, err := layout.Latest(job.SourceRoot)
		if err != nil {
			return "", err
		}
		return latest, nil
	}
	return layout.Resolve(job.SourceRoot, job.Version, job.Acceptable)
}

func canceled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
