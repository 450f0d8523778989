// Package staging prepares the project folder a reduction run writes into.
//
// Stage copies the exported project tree of the selected version into the
// user's work directory and lays out its layers and clips folders. The
// cleanup helpers list and prune old project folders left in the work
// directory by earlier runs.
package staging
