package exr

import (
	"bytes"
	"compress/zlib"
	"fmt"
	"io"
)

// zipPack applies the OpenEXR ZIP pre-filter (byte split + delta predictor)
// and deflates the result.
func zipPack(raw []byte) ([]byte, error) {
	n := len(raw)
	tmp := make([]byte, n)
	t1, t2 := 0, (n+1)/2
	for i := 0; i < n; i++ {
		if i%2 == 0 {
			tmp[t1] = raw[i]
			t1++
		} else {
			tmp[t2] = raw[i]
			t2++
		}
	}
	if n > 0 {
		p := int(tmp[0])
		for i := 1; i < n; i++ {
			d := int(tmp[i]) - p + (128 + 256)
			p = int(tmp[i])
			tmp[i] = byte(d)
		}
	}

	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	if _, err := zw.Write(tmp); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// zipUnpack reverses zipPack; want is the exact uncompressed size.
func zipUnpack(packed []byte, want int) ([]byte, error) {
	zr, err := zlib.NewReader(bytes.NewReader(packed))
	if err != nil {
		return nil, fmt.Errorf("%w: inflate: %v", ErrFormat, err)
	}
	defer zr.Close()

	tmp := make([]byte, want)
	if _, err := io.ReadFull(zr, tmp); err != nil {
		return nil, fmt.Errorf("%w: inflate: %v", ErrFormat, err)
	}

	for i := 1; i < want; i++ {
		tmp[i] = byte(int(tmp[i-1]) + int(tmp[i]) - 128)
	}

	out := make([]byte, want)
	t1, t2 := 0, (want+1)/2
	for i := 0; i < want; i++ {
		if i%2 == 0 {
			out[i] = tmp[t1]
			t1++
		} else {
			out[i] = tmp[t2]
			t2++
		}
	}
	return out, nil
}
