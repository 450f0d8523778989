// Package services defines shared utilities consumed by the pipeline stages and
// the command line.
//
// Key responsibilities:
//   - Context helpers that stamp layer names, stage names, and run identifiers
//     for logging.
//   - Structured error markers plus the Wrap helper, so a layer failure can be
//     reported by kind and a staging failure can be told apart from a
//     per-layer one.
package services
