// Package layout derives the on-disk version layout of layer exports: which
// version directory of a layer to read, and where its rewritten frames go.
//
// Versions are directories named v<digits> and are ordered by their numeric
// suffix. Nothing here is indexed; every call scans the filesystem.
package layout
