package exr

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
)

const maxShortName = 31

// WriteFile encodes img to path, replacing any existing file.
func WriteFile(path string, img *Image) error {
	f, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := f.Name()
	defer func() {
		_ = f.Close()
		_ = os.Remove(tmpName)
	}()

	if err := Encode(f, img); err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

// Encode writes img as a single-part scanline OpenEXR file. Channels are
// stored sorted by name. The compression of img is kept when supported and
// falls back to ZIP otherwise.
func Encode(w io.Writer, img *Image) error {
	width, height := img.Width(), img.Height()
	if width <= 0 || height <= 0 {
		return fmt.Errorf("%w: empty data window", ErrFormat)
	}
	compression := img.Compression
	if !compression.supported() {
		compression = ZIPCompression
	}

	fileOrder := make([]*Channel, len(img.Channels))
	for i := range img.Channels {
		ch := &img.Channels[i]
		if ch.Type.Size() == 0 {
			return fmt.Errorf("%w: channel %q pixel type %d", ErrFormat, ch.Name, int32(ch.Type))
		}
		if want := width * height * ch.Type.Size(); len(ch.Data) != want {
			return fmt.Errorf("%w: channel %q has %d bytes, want %d", ErrFormat, ch.Name, len(ch.Data), want)
		}
		fileOrder[i] = ch
	}
	sort.SliceStable(fileOrder, func(i, j int) bool { return fileOrder[i].Name < fileOrder[j].Name })
	for i := 1; i < len(fileOrder); i++ {
		if fileOrder[i].Name == fileOrder[i-1].Name {
			return fmt.Errorf("%w: duplicate channel %q", ErrFormat, fileOrder[i].Name)
		}
	}

	header, err := encodeHeader(img, fileOrder, compression)
	if err != nil {
		return err
	}

	lpb := compression.linesPerBlock()
	chunks := (height + lpb - 1) / lpb
	var body bytes.Buffer
	offsets := make([]uint64, chunks)
	base := uint64(len(header) + 8*chunks)
	yMin := int(img.DataWindow.YMin)

	for c := 0; c < chunks; c++ {
		first := c * lpb
		lines := lpb
		if first+lines > height {
			lines = height - first
		}
		var raw bytes.Buffer
		for l := 0; l < lines; l++ {
			row := first + l
			for _, ch := range fileOrder {
				n := width * ch.Type.Size()
				raw.Write(ch.Data[row*n : (row+1)*n])
			}
		}

		data := raw.Bytes()
		if compression != NoCompression && len(data) > 0 {
			packed, err := zipPack(data)
			if err != nil {
				return err
			}
			if len(packed) < len(data) {
				data = packed
			}
		}

		offsets[c] = base + uint64(body.Len())
		writeInt32(&body, int32(yMin+first))
		writeInt32(&body, int32(len(data)))
		body.Write(data)
	}

	var table bytes.Buffer
	for _, off := range offsets {
		var b [8]byte
		binary.LittleEndian.PutUint64(b[:], off)
		table.Write(b[:])
	}

	for _, part := range [][]byte{header, table.Bytes(), body.Bytes()} {
		if _, err := w.Write(part); err != nil {
			return err
		}
	}
	return nil
}

func encodeHeader(img *Image, fileOrder []*Channel, compression Compression) ([]byte, error) {
	longNames := false
	checkName := func(s string) error {
		if len(s) == 0 || len(s) > 255 {
			return fmt.Errorf("%w: invalid name length %d", ErrFormat, len(s))
		}
		if len(s) > maxShortName {
			longNames = true
		}
		return nil
	}

	var chlist bytes.Buffer
	for _, ch := range fileOrder {
		if err := checkName(ch.Name); err != nil {
			return nil, err
		}
		chlist.WriteString(ch.Name)
		chlist.WriteByte(0)
		writeInt32(&chlist, int32(ch.Type))
		linear := byte(0)
		if ch.Linear {
			linear = 1
		}
		chlist.Write([]byte{linear, 0, 0, 0})
		writeInt32(&chlist, 1)
		writeInt32(&chlist, 1)
	}
	chlist.WriteByte(0)

	var attrs bytes.Buffer
	put := func(name, typ string, value []byte) error {
		if err := checkName(name); err != nil {
			return err
		}
		if err := checkName(typ); err != nil {
			return err
		}
		attrs.WriteString(name)
		attrs.WriteByte(0)
		attrs.WriteString(typ)
		attrs.WriteByte(0)
		writeInt32(&attrs, int32(len(value)))
		attrs.Write(value)
		return nil
	}

	required := []Attribute{
		{Name: "channels", Type: "chlist", Value: chlist.Bytes()},
		{Name: "compression", Type: "compression", Value: []byte{byte(compression)}},
		{Name: "dataWindow", Type: "box2i", Value: boxBytes(img.DataWindow)},
		{Name: "displayWindow", Type: "box2i", Value: boxBytes(img.DisplayWindow)},
		{Name: "lineOrder", Type: "lineOrder", Value: []byte{0}},
		{Name: "pixelAspectRatio", Type: "float", Value: floatBytes(img.PixelAspectRatio)},
		{Name: "screenWindowCenter", Type: "v2f", Value: append(floatBytes(img.ScreenWindowCenter[0]), floatBytes(img.ScreenWindowCenter[1])...)},
		{Name: "screenWindowWidth", Type: "float", Value: floatBytes(img.ScreenWindowWidth)},
	}
	for _, a := range append(required, img.Extra...) {
		if err := put(a.Name, a.Type, a.Value); err != nil {
			return nil, err
		}
	}
	attrs.WriteByte(0)

	var out bytes.Buffer
	var head [8]byte
	binary.LittleEndian.PutUint32(head[0:], magic)
	version := uint32(2)
	if longNames {
		version |= flagLongNames
	}
	binary.LittleEndian.PutUint32(head[4:], version)
	out.Write(head[:])
	out.Write(attrs.Bytes())
	return out.Bytes(), nil
}

func boxBytes(b Box) []byte {
	out := make([]byte, 16)
	binary.LittleEndian.PutUint32(out[0:], uint32(b.XMin))
	binary.LittleEndian.PutUint32(out[4:], uint32(b.YMin))
	binary.LittleEndian.PutUint32(out[8:], uint32(b.XMax))
	binary.LittleEndian.PutUint32(out[12:], uint32(b.YMax))
	return out
}

func floatBytes(f float32) []byte {
	out := make([]byte, 4)
	binary.LittleEndian.PutUint32(out, math.Float32bits(f))
	return out
}

func writeInt32(buf *bytes.Buffer, v int32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], uint32(v))
	buf.Write(b[:])
}
