package exr

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/x448/float16"
)

// PixelType is the on-disk sample format of a channel.
type PixelType int32

const (
	Uint  PixelType = 0
	Half  PixelType = 1
	Float PixelType = 2
)

// Size returns the number of bytes one sample of t occupies.
func (t PixelType) Size() int {
	switch t {
	case Half:
		return 2
	case Uint, Float:
		return 4
	default:
		return 0
	}
}

func (t PixelType) String() string {
	switch t {
	case Uint:
		return "uint"
	case Half:
		return "half"
	case Float:
		return "float"
	default:
		return fmt.Sprintf("pixeltype(%d)", int32(t))
	}
}

// Compression identifies the scanline compression of a file.
type Compression uint8

const (
	NoCompression   Compression = 0
	RLECompression  Compression = 1
	ZIPSCompression Compression = 2
	ZIPCompression  Compression = 3
	PIZCompression  Compression = 4
)

func (c Compression) String() string {
	switch c {
	case NoCompression:
		return "none"
	case RLECompression:
		return "rle"
	case ZIPSCompression:
		return "zips"
	case ZIPCompression:
		return "zip"
	case PIZCompression:
		return "piz"
	default:
		return fmt.Sprintf("compression(%d)", uint8(c))
	}
}

// linesPerBlock is the number of scanlines stored in one chunk.
func (c Compression) linesPerBlock() int {
	switch c {
	case ZIPCompression:
		return 16
	default:
		return 1
	}
}

func (c Compression) supported() bool {
	return c == NoCompression || c == ZIPSCompression || c == ZIPCompression
}

var (
	// ErrUnsupported marks files the codec recognises but cannot handle
	// (tiled, deep, multipart, subsampled, or an unsupported compression).
	ErrUnsupported = errors.New("exr: unsupported file")
	// ErrFormat marks malformed or truncated input.
	ErrFormat = errors.New("exr: malformed file")
)

// Box is an inclusive integer rectangle (box2i).
type Box struct {
	XMin, YMin, XMax, YMax int32
}

// Width of the box in pixels.
func (b Box) Width() int { return int(b.XMax) - int(b.XMin) + 1 }

// Height of the box in pixels.
func (b Box) Height() int { return int(b.YMax) - int(b.YMin) + 1 }

// Attribute is a header attribute the codec does not interpret. It is
// carried through decode/encode untouched.
type Attribute struct {
	Name  string
	Type  string
	Value []byte
}

// Channel holds one full channel of an image. Data is the raw little-endian
// sample buffer in row-major order, Width*Height*Type.Size() bytes long.
type Channel struct {
	Name   string
	Type   PixelType
	Linear bool
	Data   []byte
}

// Len is the number of samples in the channel.
func (c *Channel) Len() int {
	size := c.Type.Size()
	if size == 0 {
		return 0
	}
	return len(c.Data) / size
}

// At returns sample i as a float64.
func (c *Channel) At(i int) float64 {
	switch c.Type {
	case Half:
		return float64(float16.Frombits(binary.LittleEndian.Uint16(c.Data[i*2:])).Float32())
	case Float:
		return float64(math.Float32frombits(binary.LittleEndian.Uint32(c.Data[i*4:])))
	case Uint:
		return float64(binary.LittleEndian.Uint32(c.Data[i*4:]))
	default:
		return 0
	}
}

// Max returns the largest sample of the channel, or 0 for an empty channel.
// NaN samples are ignored; see HasNaN.
func (c *Channel) Max() float64 {
	n := c.Len()
	if n == 0 {
		return 0
	}
	best := math.Inf(-1)
	for i := 0; i < n; i++ {
		v := c.At(i)
		if math.IsNaN(v) {
			continue
		}
		if v > best {
			best = v
		}
	}
	if math.IsInf(best, -1) {
		return 0
	}
	return best
}

// HasNaN reports whether any sample is NaN. Only HALF and FLOAT can hold one.
func (c *Channel) HasNaN() bool {
	if c.Type == Uint {
		return false
	}
	for i, n := 0, c.Len(); i < n; i++ {
		if math.IsNaN(c.At(i)) {
			return true
		}
	}
	return false
}

// Image is a decoded single-part scanline OpenEXR image.
type Image struct {
	DataWindow         Box
	DisplayWindow      Box
	Compression        Compression
	PixelAspectRatio   float32
	ScreenWindowCenter [2]float32
	ScreenWindowWidth  float32
	// Channels keeps caller order; the encoder sorts them by name on disk.
	Channels []Channel
	// Extra holds uninterpreted header attributes.
	Extra []Attribute
}

// Width of the data window.
func (img *Image) Width() int { return img.DataWindow.Width() }

// Height of the data window.
func (img *Image) Height() int { return img.DataWindow.Height() }

// ChannelNames returns the channel names in Channels order.
func (img *Image) ChannelNames() []string {
	names := make([]string, len(img.Channels))
	for i := range img.Channels {
		names[i] = img.Channels[i].Name
	}
	return names
}

// Channel returns the named channel, or nil.
func (img *Image) Channel(name string) *Channel {
	for i := range img.Channels {
		if img.Channels[i].Name == name {
			return &img.Channels[i]
		}
	}
	return nil
}

// CloneHeader returns an image with img's header and no channels.
func (img *Image) CloneHeader() *Image {
	out := &Image{
		DataWindow:         img.DataWindow,
		DisplayWindow:      img.DisplayWindow,
		Compression:        img.Compression,
		PixelAspectRatio:   img.PixelAspectRatio,
		ScreenWindowCenter: img.ScreenWindowCenter,
		ScreenWindowWidth:  img.ScreenWindowWidth,
	}
	if len(img.Extra) > 0 {
		out.Extra = make([]Attribute, len(img.Extra))
		for i, a := range img.Extra {
			out.Extra[i] = Attribute{Name: a.Name, Type: a.Type, Value: append([]byte(nil), a.Value...)}
		}
	}
	return out
}

// New returns an image of the given size with default header values.
func New(width, height int) *Image {
	return &Image{
		DataWindow:        Box{XMax: int32(width - 1), YMax: int32(height - 1)},
		DisplayWindow:     Box{XMax: int32(width - 1), YMax: int32(height - 1)},
		Compression:       ZIPCompression,
		PixelAspectRatio:  1,
		ScreenWindowWidth: 1,
	}
}

// NewChannel builds a channel of type t from float samples. Samples are
// rounded to the nearest representable value of t.
func NewChannel(name string, t PixelType, values []float32) Channel {
	size := t.Size()
	data := make([]byte, len(values)*size)
	for i, v := range values {
		switch t {
		case Half:
			binary.LittleEndian.PutUint16(data[i*2:], float16.Fromfloat32(v).Bits())
		case Float:
			binary.LittleEndian.PutUint32(data[i*4:], math.Float32bits(v))
		case Uint:
			binary.LittleEndian.PutUint32(data[i*4:], uint32(v))
		}
	}
	return Channel{Name: name, Type: t, Data: data}
}
