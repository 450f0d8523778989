package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"layerreduce/internal/config"
)

// ErrNotFound is returned when a shot or task does not exist.
var ErrNotFound = errors.New("catalog record not found")

// timestampLayout is fixed width so stored timestamps sort as text.
const timestampLayout = "2006-01-02T15:04:05.000000000Z07:00"

// DefaultVersionStatus is assigned to new versions unless told otherwise.
const DefaultVersionStatus = "rev"

// Store is the SQLite-backed asset catalog: shots, their tasks, and the
// versions delivered for each task.
type Store struct {
	db   *sql.DB
	path string
}

// Open connects to the catalog configured in cfg, creating it if needed.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	return OpenPath(cfg.Paths.CatalogPath)
}

// OpenPath connects to the catalog database at path.
func OpenPath(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create catalog directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: path}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string { return s.path }

// AddShot registers a shot code.
func (s *Store) AddShot(ctx context.Context, code string) (*Shot, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, errors.New("shot code is required")
	}
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		"INSERT INTO shots (code, created_at) VALUES (?, ?)",
		code, now.Format(timestampLayout))
	if err != nil {
		return nil, fmt.Errorf("insert shot: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return &Shot{ID: id, Code: code, CreatedAt: now}, nil
}

// AddTask registers a task on a shot.
func (s *Store) AddTask(ctx context.Context, shotID int64, name string) (*Task, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.New("task name is required")
	}
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		"INSERT INTO tasks (shot_id, name, created_at) VALUES (?, ?, ?)",
		shotID, name, now.Format(timestampLayout))
	if err != nil {
		return nil, fmt.Errorf("insert task: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return &Task{ID: id, ShotID: shotID, Name: name, CreatedAt: now}, nil
}

// NewVersion describes a version to record.
type NewVersion struct {
	TaskID      int64
	Code        string
	Path        string
	Status      string
	Description string
}

// AddVersion records a delivered version for a task.
func (s *Store) AddVersion(ctx context.Context, in NewVersion) (*Version, error) {
	if strings.TrimSpace(in.Code) == "" {
		return nil, errors.New("version code is required")
	}
	if strings.TrimSpace(in.Path) == "" {
		return nil, errors.New("version path is required")
	}
	task, err := s.taskByID(ctx, in.TaskID)
	if err != nil {
		return nil, err
	}
	status := strings.TrimSpace(in.Status)
	if status == "" {
		status = DefaultVersionStatus
	}
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO versions (shot_id, task_id, code, path, status, description, created_at)
         VALUES (?, ?, ?, ?, ?, ?, ?)`,
		task.ShotID, task.ID, in.Code, in.Path, status, nullableString(in.Description), now.Format(timestampLayout))
	if err != nil {
		return nil, fmt.Errorf("insert version: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return &Version{
		ID:          id,
		ShotID:      task.ShotID,
		TaskID:      task.ID,
		TaskName:    task.Name,
		Code:        in.Code,
		Path:        in.Path,
		Status:      status,
		Description: in.Description,
		CreatedAt:   now,
	}, nil
}

// FindShot looks a shot up by code.
func (s *Store) FindShot(ctx context.Context, code string) (*Shot, error) {
	var (
		shot    Shot
		created string
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT id, code, created_at FROM shots WHERE code = ?", code,
	).Scan(&shot.ID, &shot.Code, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: shot %q", ErrNotFound, code)
	}
	if err != nil {
		return nil, fmt.Errorf("query shot: %w", err)
	}
	shot.CreatedAt = parseTime(created)
	return &shot, nil
}

// FindTask looks a task up by shot and name.
func (s *Store) FindTask(ctx context.Context, shotID int64, name string) (*Task, error) {
	var (
		task    Task
		created string
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT id, shot_id, name, created_at FROM tasks WHERE shot_id = ? AND name = ?", shotID, name,
	).Scan(&task.ID, &task.ShotID, &task.Name, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: task %q on shot %d", ErrNotFound, name, shotID)
	}
	if err != nil {
		return nil, fmt.Errorf("query task: %w", err)
	}
	task.CreatedAt = parseTime(created)
	return &task, nil
}

// ListShots returns every shot ordered by code.
func (s *Store) ListShots(ctx context.Context) ([]Shot, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, code, created_at FROM shots ORDER BY code")
	if err != nil {
		return nil, fmt.Errorf("query shots: %w", err)
	}
	defer rows.Close()

	var shots []Shot
	for rows.Next() {
		var (
			shot    Shot
			created string
		)
		if err := rows.Scan(&shot.ID, &shot.Code, &created); err != nil {
			return nil, fmt.Errorf("scan shot: %w", err)
		}
		shot.CreatedAt = parseTime(created)
		shots = append(shots, shot)
	}
	return shots, rows.Err()
}

func (s *Store) taskByID(ctx context.Context, id int64) (*Task, error) {
	var (
		task    Task
		created string
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT id, shot_id, name, created_at FROM tasks WHERE id = ?", id,
	).Scan(&task.ID, &task.ShotID, &task.Name, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: task %d", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("query task: %w", err)
	}
	task.CreatedAt = parseTime(created)
	return &task, nil
}

const versionColumns = "v.id, v.shot_id, v.task_id, t.name, v.code, v.path, v.status, v.description, v.created_at"

// FindVersionsForShotTask returns every version of the named task on a shot,
// newest first. Omitted versions are included; see UsableVersions.
func (s *Store) FindVersionsForShotTask(ctx context.Context, shotID int64, taskName string) ([]Version, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+versionColumns+`
         FROM versions v JOIN tasks t ON t.id = v.task_id
         WHERE v.shot_id = ? AND t.name = ?
         ORDER BY v.created_at DESC, v.id DESC`,
		shotID, taskName)
	if err != nil {
		return nil, fmt.Errorf("query versions: %w", err)
	}
	defer rows.Close()
	return scanVersions(rows)
}

// ListVersions returns every version of a shot across tasks, newest first.
func (s *Store) ListVersions(ctx context.Context, shotID int64) ([]Version, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+versionColumns+`
         FROM versions v JOIN tasks t ON t.id = v.task_id
         WHERE v.shot_id = ?
         ORDER BY v.created_at DESC, v.id DESC`,
		shotID)
	if err != nil {
		return nil, fmt.Errorf("query versions: %w", err)
	}
	defer rows.Close()
	return scanVersions(rows)
}

// SetStatus updates the status of a version, e.g. to omit it.
func (s *Store) SetStatus(ctx context.Context, versionID int64, status string) error {
	res, err := s.db.ExecContext(ctx, "UPDATE versions SET status = ? WHERE id = ?", status, versionID)
	if err != nil {
		return fmt.Errorf("update version status: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: version %d", ErrNotFound, versionID)
	}
	return nil
}

var trailingVersion = regexp.MustCompile(`v(\d+)$`)

// Publish records the folder at path as the next version of the task. The
// version code is <shot>_<task>_v<NNN>, numbered after the highest existing
// version of the task.
func (s *Store) Publish(ctx context.Context, path string, taskID int64, description string) (*Version, error) {
	task, err := s.taskByID(ctx, taskID)
	if err != nil {
		return nil, err
	}
	var shotCode string
	if err := s.db.QueryRowContext(ctx, "SELECT code FROM shots WHERE id = ?", task.ShotID).Scan(&shotCode); err != nil {
		return nil, fmt.Errorf("query shot: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, "SELECT code FROM versions WHERE task_id = ?", taskID)
	if err != nil {
		return nil, fmt.Errorf("query versions: %w", err)
	}
	highest := 0
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan version code: %w", err)
		}
		if m := trailingVersion.FindStringSubmatch(code); m != nil {
			if n, err := strconv.Atoi(m[1]); err == nil && n > highest {
				highest = n
			}
		}
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	code := fmt.Sprintf("%s_%s_v%03d", shotCode, taskSlug(task.Name), highest+1)
	return s.AddVersion(ctx, NewVersion{
		TaskID:      taskID,
		Code:        code,
		Path:        path,
		Description: description,
	})
}

// taskSlug turns "TA Layer Export" into "taLayerExport".
func taskSlug(name string) string {
	words := strings.Fields(name)
	var b strings.Builder
	for i, w := range words {
		if i == 0 {
			b.WriteString(strings.ToLower(w))
			continue
		}
		b.WriteString(strings.ToUpper(w[:1]))
		b.WriteString(w[1:])
	}
	return b.String()
}

func scanVersions(rows *sql.Rows) ([]Version, error) {
	var out []Version
	for rows.Next() {
		var (
			v           Version
			description sql.NullString
			created     string
		)
		if err := rows.Scan(&v.ID, &v.ShotID, &v.TaskID, &v.TaskName, &v.Code, &v.Path, &v.Status, &description, &created); err != nil {
			return nil, fmt.Errorf("scan version: %w", err)
		}
		v.Description = description.String
		v.CreatedAt = parseTime(created)
		out = append(out, v)
	}
	return out, rows.Err()
}

func parseTime(raw string) time.Time {
	t, err := time.Parse(timestampLayout, raw)
	if err != nil {
		return time.Time{}
	}
	return t
}

func nullableString(value string) any {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return value
}
