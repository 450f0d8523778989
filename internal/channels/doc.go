// Package channels decides which channels of a layer's image sequence are
// worth keeping and rewrites each frame accordingly.
//
// Channels are grouped by the part of their name before the last dot. A
// classification pass over every frame of a version folder sorts groups into
// three disjoint sets: empty groups (all zero, or tonal passes) that are
// dropped, matte groups that collapse to their alpha, and color-override
// groups that collapse to their red channel. Collapsed groups are written as
// a single <base>.mask channel.
package channels
