// Package exr reads and writes single-part scanline OpenEXR images.
//
// The codec covers what the channel-reduction pipeline consumes: HALF, FLOAT
// and UINT channels at full resolution, stored uncompressed or with the ZIPS
// and ZIP schemes. Sample data is kept as raw little-endian bytes so that a
// channel copied from one image to another is bit-identical. Header
// attributes the codec does not interpret are preserved verbatim.
//
// Tiled, deep, multipart and subsampled files, and the remaining compression
// schemes, are rejected with ErrUnsupported.
package exr
