package staging

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"layerreduce/internal/fileutil"
	"layerreduce/internal/logging"
	"layerreduce/internal/services"
)

const stageName = "staging"

// Options describe one folder preparation.
type Options struct {
	// Deliverable is the movie path of the version being reduced. It lives
	// somewhere below <...>/<ExportFolder> and its path carries a v<digits>
	// token naming the version.
	Deliverable string
	// ExportFolder is the directory name that marks the export root.
	ExportFolder string
	// WorkspaceDir must already exist; it is the user's workspace root.
	WorkspaceDir string
	// WorkDir receives the copied project tree.
	WorkDir string
}

// Result reports the folders produced by Stage.
type Result struct {
	ProjectDir       string
	LayersDir        string
	ClipsDir         string
	SourceLayersDir  string
	Version          string
	PermissionErrors []error
}

// ExportRoot splits a deliverable path into its export root and the first
// version token that follows it.
func ExportRoot(deliverable, exportFolder string) (root, version string, ok bool) {
	if strings.TrimSpace(exportFolder) == "" {
		return "", "", false
	}
	pattern := regexp.MustCompile(`^(.*?` + regexp.QuoteMeta(exportFolder) + `)[\\/].*?[\\/](v\d+)\b`)
	m := pattern.FindStringSubmatch(deliverable)
	if m == nil {
		return "", "", false
	}
	return m[1], m[2], true
}

// Stage copies the project tree of the deliverable's version into the work
// directory, creates its layers and clips folders, copies the deliverable
// into clips and clears read-only attributes on the copy. Missing inputs are
// reported as services.ErrStaging; read-only clearing is best effort.
func Stage(ctx context.Context, opts Options, logger *slog.Logger) (Result, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	ctx = services.WithStage(ctx, stageName)
	logger = logging.WithContext(ctx, logger)

	root, version, ok := ExportRoot(opts.Deliverable, opts.ExportFolder)
	if !ok {
		return Result{}, services.Wrap(services.ErrStaging, stageName, "locate export root",
			fmt.Sprintf("%q has no %s/.../v### segment", opts.Deliverable, opts.ExportFolder), nil)
	}
	sourceVersion := filepath.Join(root, "source", version)
	if !isDir(sourceVersion) {
		return Result{}, services.Wrap(services.ErrStaging, stageName, "locate source version",
			"missing "+sourceVersion, nil)
	}
	if !isDir(opts.WorkspaceDir) {
		return Result{}, services.Wrap(services.ErrStaging, stageName, "locate workspace",
			"missing "+opts.WorkspaceDir, nil)
	}
	project, err := projectName(sourceVersion)
	if err != nil {
		return Result{}, services.Wrap(services.ErrStaging, stageName, "locate project", sourceVersion, err)
	}
	if err := ctx.Err(); err != nil {
		return Result{}, services.Wrap(services.ErrCanceled, stageName, "copy project", "", err)
	}

	if err := os.MkdirAll(opts.WorkDir, 0o755); err != nil {
		return Result{}, services.Wrap(services.ErrStaging, stageName, "create work dir", opts.WorkDir, err)
	}
	logger.Info("copying project tree",
		logging.String("source", sourceVersion),
		logging.String("destination", opts.WorkDir),
		logging.String(logging.FieldEventType, "stage_copy"),
	)
	if err := fileutil.CopyTree(sourceVersion, opts.WorkDir); err != nil {
		return Result{}, services.Wrap(services.ErrStaging, stageName, "copy project", sourceVersion, err)
	}

	res := Result{
		ProjectDir:      filepath.Join(opts.WorkDir, project),
		SourceLayersDir: filepath.Join(root, "layers"),
		Version:         version,
	}
	res.LayersDir = filepath.Join(res.ProjectDir, "layers")
	res.ClipsDir = filepath.Join(res.ProjectDir, "clips")
	for _, dir := range []string{res.LayersDir, res.ClipsDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return Result{}, services.Wrap(services.ErrStaging, stageName, "create folder", dir, err)
		}
	}

	clip := filepath.Join(res.ClipsDir, filepath.Base(opts.Deliverable))
	if err := fileutil.CopyFile(opts.Deliverable, clip); err != nil {
		return Result{}, services.Wrap(services.ErrStaging, stageName, "copy deliverable", opts.Deliverable, err)
	}

	for _, permErr := range fileutil.ClearReadOnly(opts.WorkDir) {
		wrapped := services.Wrap(services.ErrPermission, stageName, "clear read-only", "", permErr)
		res.PermissionErrors = append(res.PermissionErrors, wrapped)
		logging.WarnWithContext(logger, "could not clear read-only attribute", "stage_permission",
			logging.Error(wrapped),
			logging.String(logging.FieldErrorHint, "check ownership of the work directory"),
			logging.String(logging.FieldImpact, "later writes to this path may fail"),
		)
	}

	logger.Info("project staged",
		logging.String("project", res.ProjectDir),
		logging.String("version", version),
		logging.String(logging.FieldEventType, "stage_complete"),
	)
	return res, nil
}

// projectName returns the first directory inside the source version folder,
// falling back to the first entry of any kind.
func projectName(sourceVersion string) (string, error) {
	entries, err := os.ReadDir(sourceVersion)
	if err != nil {
		return "", err
	}
	if len(entries) == 0 {
		return "", errors.New("source version folder is empty")
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	if len(names) == 0 {
		return entries[0].Name(), nil
	}
	sort.Strings(names)
	return names[0], nil
}

func isDir(path string) bool {
	if strings.TrimSpace(path) == "" {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
