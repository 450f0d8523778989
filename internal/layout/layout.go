package layout

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// ErrNotFound is returned when no usable version directory exists for a layer.
var ErrNotFound = errors.New("no usable version")

var versionPattern = regexp.MustCompile(`^v(\d+)$`)

// ParseVersion returns the numeric part of a version label such as "v006".
func ParseVersion(name string) (int, bool) {
	m := versionPattern.FindStringSubmatch(name)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}

// Versions lists the version directories directly under dir, highest first.
// Entries that are not directories or not named v<digits> are ignored.
func Versions(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	type version struct {
		name string
		num  int
	}
	var found []version
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		if n, ok := ParseVersion(entry.Name()); ok {
			found = append(found, version{name: entry.Name(), num: n})
		}
	}
	sort.SliceStable(found, func(i, j int) bool {
		if found[i].num != found[j].num {
			return found[i].num > found[j].num
		}
		return found[i].name > found[j].name
	})
	names := make([]string, len(found))
	for i, v := range found {
		names[i] = v.name
	}
	return names, nil
}

// Latest returns the path of the highest version directory under dir.
func Latest(dir string) (string, error) {
	versions, err := Versions(dir)
	if err != nil {
		return "", err
	}
	if len(versions) == 0 {
		return "", fmt.Errorf("%w: no version directories in %s", ErrNotFound, dir)
	}
	return filepath.Join(dir, versions[0]), nil
}

// Resolve picks the version directory of a layer to process. The desired
// version wins when it exists. Otherwise each acceptable version code is
// tried in order, and the first sibling version directory (highest first)
// whose label appears in that code is used.
//
// The fallback is stricter than a plain substring test: only v<digits>
// siblings are candidates, and the label must end where the code's number
// ends, so "v01" never stands in for "sh010_v012" and a "wip" folder never
// matches a code that happens to contain "wip".
func Resolve(layerRoot, desired string, acceptable []string) (string, error) {
	if desired != "" {
		path := filepath.Join(layerRoot, desired)
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			return path, nil
		}
	}

	versions, err := Versions(layerRoot)
	if err != nil {
		return "", err
	}
	for _, code := range acceptable {
		for _, name := range versions {
			if containsVersionToken(code, name) {
				return filepath.Join(layerRoot, name), nil
			}
		}
	}
	return "", fmt.Errorf("%w: %s has no version among %d acceptable", ErrNotFound, filepath.Base(layerRoot), len(acceptable))
}

// containsVersionToken reports whether label occurs in code without being
// the prefix of a longer number, so "v01" does not match "sh010_v012".
func containsVersionToken(code, label string) bool {
	for from := 0; from < len(code); {
		i := strings.Index(code[from:], label)
		if i < 0 {
			return false
		}
		end := from + i + len(label)
		if end == len(code) || !isDigit(code[end]) {
			return true
		}
		from = from + i + 1
	}
	return false
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }

// PrepareDestination derives the layer name and version label from the last
// two segments of sourceVersionPath, creates destRoot/<layer> and returns it
// together with the label. Calling it again is harmless.
func PrepareDestination(sourceVersionPath, destRoot string) (string, string, error) {
	clean := filepath.Clean(sourceVersionPath)
	label := filepath.Base(clean)
	layer := filepath.Base(filepath.Dir(clean))
	if label == "." || label == string(filepath.Separator) || layer == "." || layer == string(filepath.Separator) {
		return "", "", fmt.Errorf("source version path %q has no layer and version segments", sourceVersionPath)
	}
	dest := filepath.Join(destRoot, layer)
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return "", "", fmt.Errorf("create destination %s: %w", dest, err)
	}
	return dest, label, nil
}
