package staging

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"layerreduce/internal/logging"
)

// DirInfo describes one staged project folder in the work directory.
type DirInfo struct {
	Name    string    `json:"name"`
	Path    string    `json:"path"`
	ModTime time.Time `json:"modified"`
	Size    int64     `json:"size_bytes"`
}

// CleanupError pairs a folder with the reason it could not be removed.
type CleanupError struct {
	Path string
	Err  error
}

// CleanStaleResult lists removed folders and per-folder failures.
type CleanStaleResult struct {
	Removed []string
	Errors  []CleanupError
}

// CleanStale removes project folders in workDir whose modification time is
// older than maxAge. A missing or blank workDir is not an error.
func CleanStale(ctx context.Context, workDir string, maxAge time.Duration, logger *slog.Logger) CleanStaleResult {
	var result CleanStaleResult
	dirs, err := projectFolders(workDir, false)
	if err != nil {
		result.Errors = append(result.Errors, CleanupError{Path: workDir, Err: err})
		return result
	}

	cutoff := time.Now().Add(-maxAge)
	for _, dir := range dirs {
		if err := ctx.Err(); err != nil {
			result.Errors = append(result.Errors, CleanupError{Path: workDir, Err: err})
			return result
		}
		if !dir.ModTime.Before(cutoff) {
			continue
		}
		if err := os.RemoveAll(dir.Path); err != nil {
			result.Errors = append(result.Errors, CleanupError{Path: dir.Path, Err: err})
			logging.WarnWithContext(logger, "failed to remove stale project folder", "workdir_cleanup_failed",
				logging.String("path", dir.Path),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check work directory permissions"),
				logging.String(logging.FieldImpact, "disk space not reclaimed"),
			)
			continue
		}
		result.Removed = append(result.Removed, dir.Path)
		if logger != nil {
			logger.Info("removed stale project folder",
				logging.String("path", dir.Path),
				logging.Duration("age", time.Since(dir.ModTime)),
				logging.String(logging.FieldEventType, "workdir_cleanup"),
			)
		}
	}
	return result
}

// ListDirectories returns the project folders in workDir with their sizes,
// ordered by name.
func ListDirectories(workDir string) ([]DirInfo, error) {
	return projectFolders(workDir, true)
}

func projectFolders(workDir string, withSize bool) ([]DirInfo, error) {
	workDir = strings.TrimSpace(workDir)
	if workDir == "" {
		return nil, nil
	}
	entries, err := os.ReadDir(workDir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var dirs []DirInfo
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			// Removed between ReadDir and Info.
			continue
		}
		dir := DirInfo{
			Name:    entry.Name(),
			Path:    filepath.Join(workDir, entry.Name()),
			ModTime: info.ModTime(),
		}
		if withSize {
			dir.Size = treeSize(dir.Path)
		}
		dirs = append(dirs, dir)
	}
	sort.Slice(dirs, func(i, j int) bool { return dirs[i].Name < dirs[j].Name })
	return dirs, nil
}

// treeSize sums regular file sizes under root, skipping unreadable entries.
func treeSize(root string) int64 {
	var size int64
	_ = filepath.WalkDir(root, func(_ string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if info, err := d.Info(); err == nil && info.Mode().IsRegular() {
			size += info.Size()
		}
		return nil
	})
	return size
}
