package channels

import (
	"path/filepath"
	"regexp"
	"strings"
)

var versionToken = regexp.MustCompile(`v\d+`)

// SplitName splits a channel name into its group base and component at the
// last dot. A name without a dot is its own group with an empty component.
func SplitName(name string) (base, component string) {
	i := strings.LastIndexByte(name, '.')
	if i < 0 {
		return name, ""
	}
	return name[:i], name[i+1:]
}

// MaskName is the name of the derived coverage channel of a group.
func MaskName(base string) string {
	return base + ".mask"
}

// IsFrameFile reports whether name looks like an OpenEXR frame.
func IsFrameFile(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ".exr")
}

// VersionedName replaces the first v<digits> token of the file's base name
// with label. Names without a version token are returned unchanged.
//
//	VersionedName("beauty_v002.0001.exr", "v006") == "beauty_v006.0001.exr"
func VersionedName(name, label string) string {
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	loc := versionToken.FindStringIndex(stem)
	if loc == nil {
		return name
	}
	return stem[:loc[0]] + label + stem[loc[1]:] + ext
}

// GenericLabel turns a frame file name into the sequence pattern used when
// reporting a layer, replacing the frame number with one @ per digit.
//
//	GenericLabel("beauty_v006.0001.exr") == "beauty_v006.@@@@.exr"
func GenericLabel(name string) string {
	parts := strings.Split(name, ".")
	if len(parts) < 3 {
		return name
	}
	frame := parts[len(parts)-2]
	if frame == "" || strings.Trim(frame, "0123456789") != "" {
		return name
	}
	parts[len(parts)-2] = strings.Repeat("@", len(frame))
	return strings.Join(parts, ".")
}
