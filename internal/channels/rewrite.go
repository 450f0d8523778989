package channels

import (
	"context"
	"fmt"
	"path/filepath"

	"layerreduce/internal/exr"
	"layerreduce/internal/fileutil"
	"layerreduce/internal/services"
)

const (
	matteCarrier    = "A"
	overrideCarrier = "R"
)

// Rewrite builds the reduced image for one frame. Empty groups are dropped.
// Matte groups keep only their A channel and color-override groups only
// their R channel, renamed to <base>.mask. Everything else passes through.
//
// The result lists pass-through channels in source order followed by the
// masks in the order their groups first appear. Header values are copied
// from img. The result may have no channels at all.
func Rewrite(img *exr.Image, cls Classification) *exr.Image {
	out := img.CloneHeader()

	var order []string
	masks := map[string]exr.Channel{}
	for _, ch := range img.Channels {
		base, component := SplitName(ch.Name)
		var carrier string
		switch {
		case cls.Empty.Has(base):
			continue
		case cls.Matte.Has(base):
			carrier = matteCarrier
		case cls.ColorOverride.Has(base):
			carrier = overrideCarrier
		default:
			out.Channels = append(out.Channels, ch)
			continue
		}
		if _, ok := masks[base]; ok || component != carrier {
			continue
		}
		order = append(order, base)
		ch.Name = MaskName(base)
		masks[base] = ch
	}
	for _, base := range order {
		out.Channels = append(out.Channels, masks[base])
	}
	return out
}

// RewriteFrame writes the reduced version of the frame at src to dst. When
// the classification changes nothing the file is copied byte for byte.
func RewriteFrame(src, dst string, cls Classification, codec Codec) error {
	if !cls.Reduces() {
		if err := fileutil.CopyFileVerified(src, dst); err != nil {
			return fmt.Errorf("copy %s: %w", src, err)
		}
		return nil
	}
	if codec == nil {
		codec = EXRCodec{}
	}
	img, err := codec.ReadFile(src)
	if err != nil {
		return services.Wrap(services.ErrDecode, "rewriting", "decode", src, err)
	}
	if err := codec.WriteFile(dst, Rewrite(img, cls)); err != nil {
		return fmt.Errorf("write %s: %w", dst, err)
	}
	return nil
}

// RewriteSequence writes every frame listed in cls from srcDir into dstDir,
// renamed for label. Folders without OpenEXR frames are copied verbatim.
// It stops at the first failure and returns the names written so far.
func RewriteSequence(ctx context.Context, srcDir, dstDir, label string, cls Classification, codec Codec) ([]string, error) {
	written := make([]string, 0, len(cls.Frames))
	for _, name := range cls.Frames {
		if err := ctx.Err(); err != nil {
			return written, err
		}
		src := filepath.Join(srcDir, name)
		if !cls.Raster {
			if err := fileutil.CopyFile(src, filepath.Join(dstDir, name)); err != nil {
				return written, fmt.Errorf("copy %s: %w", src, err)
			}
			written = append(written, name)
			continue
		}
		target := VersionedName(name, label)
		if err := RewriteFrame(src, filepath.Join(dstDir, target), cls, codec); err != nil {
			return written, err
		}
		written = append(written, target)
	}
	return written, nil
}
