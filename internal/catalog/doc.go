// Package catalog is the asset-tracking store behind layerreduce: shots,
// their tasks, and the versions delivered for each task, kept in SQLite.
//
// The pipeline asks it which versions of the layer-export task exist for a
// shot, and records the finished project folder as a new version once a run
// completes.
package catalog
