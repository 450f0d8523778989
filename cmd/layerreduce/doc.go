// Package main hosts the layerreduce CLI entrypoint and command graph.
//
// The Cobra command tree runs the reduction for a shot, inspects single
// version folders, manages the asset catalog and the work directory, and
// scaffolds configuration. Heavy lifting lives in the internal packages;
// commands here resolve configuration, build the logger and render results.
package main
