package catalog

import "time"

// Shot is a tracked shot, identified by its code (e.g. "sh010").
type Shot struct {
	ID        int64
	Code      string
	CreatedAt time.Time
}

// Task is a named unit of work on a shot.
type Task struct {
	ID        int64
	ShotID    int64
	Name      string
	CreatedAt time.Time
}

// Version is one delivered revision of a task. Path points at the
// deliverable: a movie for exported versions, a folder for published ones.
type Version struct {
	ID          int64
	ShotID      int64
	TaskID      int64
	TaskName    string
	Code        string
	Path        string
	Status      string
	Description string
	CreatedAt   time.Time
}

// Omitted reports whether the version carries the omitted status.
func (v Version) Omitted(omittedStatus string) bool {
	return v.Status == omittedStatus
}

// UsableVersions drops omitted versions, keeping the order of versions.
func UsableVersions(versions []Version, omittedStatus string) []Version {
	out := make([]Version, 0, len(versions))
	for _, v := range versions {
		if !v.Omitted(omittedStatus) {
			out = append(out, v)
		}
	}
	return out
}

// Codes returns the version codes in order.
func Codes(versions []Version) []string {
	codes := make([]string, len(versions))
	for i, v := range versions {
		codes[i] = v.Code
	}
	return codes
}
