package testsupport

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"layerreduce/internal/exr"
)

// WriteFile fills the target path with the requested number of bytes using a
// simple repeating pattern. A size <= 0 writes a single byte.
func WriteFile(t testing.TB, path string, size int64) {
	t.Helper()

	if size <= 0 {
		size = 1
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	buf := make([]byte, size)
	for i := range buf {
		buf[i] = 0x42
	}
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// Filled returns a channel of n samples all equal to value.
func Filled(name string, t exr.PixelType, n int, value float32) exr.Channel {
	values := make([]float32, n)
	for i := range values {
		values[i] = value
	}
	return exr.NewChannel(name, t, values)
}

// RGBA returns the four HALF channels of group base filled with value.
func RGBA(base string, n int, value float32) []exr.Channel {
	return []exr.Channel{
		Filled(base+".R", exr.Half, n, value),
		Filled(base+".G", exr.Half, n, value),
		Filled(base+".B", exr.Half, n, value),
		Filled(base+".A", exr.Half, n, value),
	}
}

// WriteFrame encodes a width x height frame holding chans to path.
func WriteFrame(t testing.TB, path string, width, height int, chans ...exr.Channel) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	img := exr.New(width, height)
	img.Channels = chans
	if err := exr.WriteFile(path, img); err != nil {
		t.Fatalf("write frame %s: %v", path, err)
	}
}

// WriteSequence writes frames 1..count of a layer version folder named
// <layer>_<version>.%04d.exr, all holding chans.
func WriteSequence(t testing.TB, dir, layer, version string, count, width, height int, chans ...exr.Channel) []string {
	t.Helper()

	names := make([]string, 0, count)
	for i := 1; i <= count; i++ {
		name := fmt.Sprintf("%s_%s.%04d.exr", layer, version, i)
		WriteFrame(t, filepath.Join(dir, name), width, height, chans...)
		names = append(names, name)
	}
	return names
}

// InflateDataWindow rewrites the dataWindow of the frame at path so it claims
// width x height pixels while the pixel data stays as written.
func InflateDataWindow(t testing.TB, path string, width, height int32) {
	t.Helper()

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	key := []byte("dataWindow\x00box2i\x00")
	at := bytes.Index(raw, key)
	if at < 0 {
		t.Fatalf("%s has no dataWindow attribute", path)
	}
	box := raw[at+len(key)+4:]
	binary.LittleEndian.PutUint32(box[0:], 0)
	binary.LittleEndian.PutUint32(box[4:], 0)
	binary.LittleEndian.PutUint32(box[8:], uint32(width-1))
	binary.LittleEndian.PutUint32(box[12:], uint32(height-1))
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
