package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"layerreduce/internal/catalog"
	"layerreduce/internal/channels"
	"layerreduce/internal/config"
	"layerreduce/internal/logging"
	"layerreduce/internal/services"
	"layerreduce/internal/staging"
)

// LockFileName guards the work directory against concurrent runs.
const LockFileName = "layerreduce.lock"

// Catalog answers the version queries a run needs.
type Catalog interface {
	FindShot(ctx context.Context, code string) (*catalog.Shot, error)
	FindTask(ctx context.Context, shotID int64, name string) (*catalog.Task, error)
	FindVersionsForShotTask(ctx context.Context, shotID int64, taskName string) ([]catalog.Version, error)
}

// Publisher registers a finished project folder as a new version of a task.
type Publisher interface {
	Publish(ctx context.Context, path string, taskID int64, description string) (*catalog.Version, error)
}

// ShotOptions wires the collaborators of ReduceShot.
type ShotOptions struct {
	Catalog   Catalog
	Publisher Publisher
	Codec     channels.Codec
	Logger    *slog.Logger
}

// ShotReport is the outcome of a full shot run.
type ShotReport struct {
	RunID     string
	Shot      string
	Version   catalog.Version
	Stage     staging.Result
	Layers    Report
	Published *catalog.Version
}

// ReduceShot runs the whole reduction for one shot: it looks up the usable
// versions of the export task, stages the project of the newest one, reduces
// every layer and publishes the result when enabled.
//
// Missing shots, tasks or versions return services.ErrNotFound; staging
// problems return services.ErrStaging. Layer failures do not produce an
// error; they are reported in the returned ShotReport.
func ReduceShot(ctx context.Context, cfg *config.Config, shotCode string, opts ShotOptions) (ShotReport, error) {
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	report := ShotReport{RunID: uuid.NewString(), Shot: shotCode}
	ctx = services.WithRunID(ctx, report.RunID)
	logger = logging.WithContext(ctx, logger).With(logging.String("shot", shotCode))

	shot, err := opts.Catalog.FindShot(ctx, shotCode)
	if err != nil {
		return report, lookupError("find shot", shotCode, err)
	}
	task, err := opts.Catalog.FindTask(ctx, shot.ID, cfg.Pipeline.TaskName)
	if err != nil {
		return report, lookupError("find task", cfg.Pipeline.TaskName, err)
	}
	all, err := opts.Catalog.FindVersionsForShotTask(ctx, shot.ID, task.Name)
	if err != nil {
		return report, lookupError("find versions", shotCode, err)
	}
	usable := catalog.UsableVersions(all, cfg.Pipeline.OmittedStatus)
	if len(usable) == 0 {
		return report, services.Wrap(services.ErrNotFound, "catalog", "find versions",
			fmt.Sprintf("%s has no usable %s version", shotCode, task.Name), nil)
	}
	report.Version = usable[0]
	logger.Info("selected version",
		logging.String("version", report.Version.Code),
		logging.String("path", report.Version.Path),
		logging.Int("usable_versions", len(usable)),
		logging.Int("omitted_versions", len(all)-len(usable)),
	)

	if err := cfg.EnsureDirectories(); err != nil {
		return report, services.Wrap(services.ErrConfiguration, "config", "ensure directories", "", err)
	}
	lock := flock.New(filepath.Join(cfg.Paths.LogDir, LockFileName))
	ok, err := lock.TryLock()
	if err != nil {
		return report, services.Wrap(services.ErrStaging, "lock", "acquire", lock.Path(), err)
	}
	if !ok {
		return report, services.Wrap(services.ErrStaging, "lock", "acquire",
			"another layerreduce run is using "+cfg.WorkDir(), nil)
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			logger.Warn("failed to release run lock", logging.Error(err))
		}
	}()

	staged, err := staging.Stage(ctx, staging.Options{
		Deliverable:  report.Version.Path,
		ExportFolder: cfg.Pipeline.ExportFolder,
		WorkspaceDir: cfg.WorkspaceDir(),
		WorkDir:      cfg.WorkDir(),
	}, logger)
	if err != nil {
		return report, err
	}
	report.Stage = staged

	report.Layers = Run(ctx, Request{
		SourceLayersDir: staged.SourceLayersDir,
		DestLayersDir:   staged.LayersDir,
		Version:         staged.Version,
		Acceptable:      catalog.Codes(usable),
		Workers:         cfg.WorkerCount(),
		Codec:           opts.Codec,
		Logger:          logger,
	})
	if report.Layers.Err != nil {
		return report, services.Wrap(services.ErrStaging, "pipeline", "list layers", "", report.Layers.Err)
	}

	if !cfg.Pipeline.Publish || opts.Publisher == nil {
		logger.Info("publish skipped", logging.String("project", staged.ProjectDir))
		return report, nil
	}
	if err := ctx.Err(); err != nil {
		return report, services.Wrap(services.ErrCanceled, "publish", "", staged.ProjectDir, err)
	}
	published, err := opts.Publisher.Publish(ctx, staged.ProjectDir, task.ID, cfg.Pipeline.PublishDescription)
	if err != nil {
		logging.ErrorWithContext(logger, "publish failed", "publish_failed",
			logging.Error(err),
			logging.String("project", staged.ProjectDir),
			logging.String(logging.FieldErrorHint, "publish the project folder manually"),
		)
		return report, fmt.Errorf("publish %s: %w", staged.ProjectDir, err)
	}
	report.Published = published
	logger.Info("project published",
		logging.String("version", published.Code),
		logging.String("project", staged.ProjectDir),
		logging.String(logging.FieldEventType, "publish_complete"),
	)
	return report, nil
}

func lookupError(op, subject string, err error) error {
	if errors.Is(err, catalog.ErrNotFound) {
		return services.Wrap(services.ErrNotFound, "catalog", op, subject, err)
	}
	return fmt.Errorf("%s %s: %w", op, subject, err)
}
