package exr

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
)

const (
	magic = 20000630

	flagTiled     = 0x200
	flagLongNames = 0x400
	flagDeep      = 0x800
	flagMultipart = 0x1000

	// maxInflateRatio is the most a deflate stream can expand.
	maxInflateRatio = 1032
)

// ReadFile decodes the OpenEXR file at path.
func ReadFile(path string) (*Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return img, nil
}

// Decode reads a single-part scanline OpenEXR image from r.
func Decode(r io.Reader) (*Image, error) {
	buf, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	d := &decoder{buf: buf}
	return d.decode()
}

type decoder struct {
	buf []byte
	pos int
}

func (d *decoder) decode() (*Image, error) {
	m, err := d.uint32()
	if err != nil {
		return nil, err
	}
	if m != magic {
		return nil, fmt.Errorf("%w: bad magic number", ErrFormat)
	}
	version, err := d.uint32()
	if err != nil {
		return nil, err
	}
	if version&0xff != 2 {
		return nil, fmt.Errorf("%w: file version %d", ErrUnsupported, version&0xff)
	}
	if version&(flagTiled|flagDeep|flagMultipart) != 0 {
		return nil, fmt.Errorf("%w: only single-part scanline images are supported", ErrUnsupported)
	}

	img := &Image{PixelAspectRatio: 1, ScreenWindowWidth: 1}
	var (
		haveChannels bool
		haveWindow   bool
	)
	for {
		name, err := d.cstring()
		if err != nil {
			return nil, err
		}
		if name == "" {
			break
		}
		typ, err := d.cstring()
		if err != nil {
			return nil, err
		}
		size, err := d.int32()
		if err != nil {
			return nil, err
		}
		value, err := d.bytes(int(size))
		if err != nil {
			return nil, err
		}

		switch name {
		case "channels":
			chans, err := parseChannelList(value)
			if err != nil {
				return nil, err
			}
			img.Channels = chans
			haveChannels = true
		case "compression":
			if len(value) != 1 {
				return nil, fmt.Errorf("%w: compression attribute size %d", ErrFormat, len(value))
			}
			img.Compression = Compression(value[0])
		case "dataWindow":
			box, err := parseBox(value)
			if err != nil {
				return nil, err
			}
			img.DataWindow = box
			haveWindow = true
		case "displayWindow":
			box, err := parseBox(value)
			if err != nil {
				return nil, err
			}
			img.DisplayWindow = box
		case "lineOrder":
			// Chunks are located through the offset table, so the stored
			// order does not matter on read.
		case "pixelAspectRatio":
			if len(value) == 4 {
				img.PixelAspectRatio = math.Float32frombits(binary.LittleEndian.Uint32(value))
			}
		case "screenWindowCenter":
			if len(value) == 8 {
				img.ScreenWindowCenter[0] = math.Float32frombits(binary.LittleEndian.Uint32(value))
				img.ScreenWindowCenter[1] = math.Float32frombits(binary.LittleEndian.Uint32(value[4:]))
			}
		case "screenWindowWidth":
			if len(value) == 4 {
				img.ScreenWindowWidth = math.Float32frombits(binary.LittleEndian.Uint32(value))
			}
		case "type":
			if s := string(bytes.TrimRight(value, "\x00")); s != "scanlineimage" {
				return nil, fmt.Errorf("%w: part type %q", ErrUnsupported, s)
			}
			img.Extra = append(img.Extra, Attribute{Name: name, Type: typ, Value: value})
		default:
			img.Extra = append(img.Extra, Attribute{Name: name, Type: typ, Value: value})
		}
	}

	if !haveChannels || !haveWindow {
		return nil, fmt.Errorf("%w: missing channels or dataWindow attribute", ErrFormat)
	}
	if !img.Compression.supported() {
		return nil, fmt.Errorf("%w: %s compression", ErrUnsupported, img.Compression)
	}
	width, height := img.Width(), img.Height()
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: empty data window", ErrFormat)
	}

	if err := d.readPixels(img, width, height); err != nil {
		return nil, err
	}
	return img, nil
}

func (d *decoder) readPixels(img *Image, width, height int) error {
	if err := d.checkWindow(img, width, height); err != nil {
		return err
	}

	// On disk the channels are interleaved per scanline in name order.
	fileOrder := make([]*Channel, len(img.Channels))
	for i := range img.Channels {
		ch := &img.Channels[i]
		ch.Data = make([]byte, width*height*ch.Type.Size())
		fileOrder[i] = ch
	}
	sort.SliceStable(fileOrder, func(i, j int) bool { return fileOrder[i].Name < fileOrder[j].Name })

	lineBytes := 0
	for _, ch := range fileOrder {
		lineBytes += width * ch.Type.Size()
	}

	lpb := img.Compression.linesPerBlock()
	chunks := (height + lpb - 1) / lpb
	offsets := make([]uint64, chunks)
	for i := range offsets {
		off, err := d.uint64()
		if err != nil {
			return err
		}
		offsets[i] = off
	}

	yMin := int(img.DataWindow.YMin)
	for _, off := range offsets {
		if off > uint64(len(d.buf)) {
			return fmt.Errorf("%w: chunk offset out of range", ErrFormat)
		}
		d.pos = int(off)
		y, err := d.int32()
		if err != nil {
			return err
		}
		size, err := d.int32()
		if err != nil {
			return err
		}
		packed, err := d.bytes(int(size))
		if err != nil {
			return err
		}

		first := int(y) - yMin
		if first < 0 || first >= height {
			return fmt.Errorf("%w: chunk scanline %d outside data window", ErrFormat, y)
		}
		lines := lpb
		if first+lines > height {
			lines = height - first
		}
		want := lines * lineBytes

		raw := packed
		if len(packed) != want {
			if img.Compression == NoCompression {
				return fmt.Errorf("%w: chunk size %d, want %d", ErrFormat, len(packed), want)
			}
			raw, err = zipUnpack(packed, want)
			if err != nil {
				return err
			}
		}

		src := 0
		for l := 0; l < lines; l++ {
			row := first + l
			for _, ch := range fileOrder {
				n := width * ch.Type.Size()
				copy(ch.Data[row*n:(row+1)*n], raw[src:src+n])
				src += n
			}
		}
	}
	return nil
}

// checkWindow rejects data windows that the rest of the file cannot hold,
// before any buffer is sized from them.
func (d *decoder) checkWindow(img *Image, width, height int) error {
	remaining := uint64(len(d.buf) - d.pos)
	lpb := uint64(img.Compression.linesPerBlock())
	chunks := (uint64(height) + lpb - 1) / lpb
	// Every chunk needs an offset table entry plus its y and size fields.
	if chunks > remaining/16 {
		return fmt.Errorf("%w: data window %dx%d exceeds file size", ErrFormat, width, height)
	}

	var pixelBytes uint64
	for _, ch := range img.Channels {
		pixelBytes += uint64(ch.Type.Size())
	}
	if pixelBytes == 0 {
		return nil
	}
	limit := remaining
	if img.Compression != NoCompression {
		limit = remaining * maxInflateRatio
	}
	rowBytes := uint64(width) * pixelBytes
	if uint64(width) > limit/pixelBytes || uint64(height) > limit/rowBytes {
		return fmt.Errorf("%w: data window %dx%d exceeds file size", ErrFormat, width, height)
	}
	return nil
}

func parseChannelList(value []byte) ([]Channel, error) {
	d := &decoder{buf: value}
	var chans []Channel
	for {
		name, err := d.cstring()
		if err != nil {
			return nil, err
		}
		if name == "" {
			break
		}
		pt, err := d.int32()
		if err != nil {
			return nil, err
		}
		flags, err := d.bytes(4)
		if err != nil {
			return nil, err
		}
		xs, err := d.int32()
		if err != nil {
			return nil, err
		}
		ys, err := d.int32()
		if err != nil {
			return nil, err
		}
		t := PixelType(pt)
		if t.Size() == 0 {
			return nil, fmt.Errorf("%w: channel %q pixel type %d", ErrFormat, name, pt)
		}
		if xs != 1 || ys != 1 {
			return nil, fmt.Errorf("%w: channel %q is subsampled", ErrUnsupported, name)
		}
		chans = append(chans, Channel{Name: name, Type: t, Linear: flags[0] != 0})
	}
	return chans, nil
}

func parseBox(value []byte) (Box, error) {
	if len(value) != 16 {
		return Box{}, fmt.Errorf("%w: box2i size %d", ErrFormat, len(value))
	}
	return Box{
		XMin: int32(binary.LittleEndian.Uint32(value[0:])),
		YMin: int32(binary.LittleEndian.Uint32(value[4:])),
		XMax: int32(binary.LittleEndian.Uint32(value[8:])),
		YMax: int32(binary.LittleEndian.Uint32(value[12:])),
	}, nil
}

func (d *decoder) bytes(n int) ([]byte, error) {
	if n < 0 || d.pos+n > len(d.buf) {
		return nil, fmt.Errorf("%w: unexpected end of data", ErrFormat)
	}
	b := d.buf[d.pos : d.pos+n]
	d.pos += n
	return b, nil
}

func (d *decoder) uint32() (uint32, error) {
	b, err := d.bytes(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (d *decoder) int32() (int32, error) {
	v, err := d.uint32()
	return int32(v), err
}

func (d *decoder) uint64() (uint64, error) {
	b, err := d.bytes(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

func (d *decoder) cstring() (string, error) {
	end := bytes.IndexByte(d.buf[d.pos:], 0)
	if end < 0 || end > 255 {
		return "", fmt.Errorf("%w: unterminated name", ErrFormat)
	}
	s := string(d.buf[d.pos : d.pos+end])
	d.pos += end + 1
	return s, nil
}
