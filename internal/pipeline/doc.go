// Package pipeline fans the layers of a shot out to a bounded worker pool.
//
// Each layer runs resolve, classify and rewrite in order on its own subtree;
// a failure is recorded against that layer only. ReduceShot wraps a run with
// the catalog lookup, folder staging and publishing around it.
package pipeline
