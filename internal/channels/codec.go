package channels

import "layerreduce/internal/exr"

// Codec reads and writes frame files. The default is the OpenEXR codec; tests
// substitute failing or counting implementations.
type Codec interface {
	ReadFile(path string) (*exr.Image, error)
	WriteFile(path string, img *exr.Image) error
}

// EXRCodec is the Codec backed by package exr.
type EXRCodec struct{}

func (EXRCodec) ReadFile(path string) (*exr.Image, error) { return exr.ReadFile(path) }

func (EXRCodec) WriteFile(path string, img *exr.Image) error { return exr.WriteFile(path, img) }
