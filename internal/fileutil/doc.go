// Package fileutil holds the file copy helpers shared by staging and the
// rewriter: verified single-file copies, recursive tree copies that merge
// into an existing destination, and clearing of read-only attributes on
// copied trees.
package fileutil
