package channels

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/text/cases"

	"layerreduce/internal/logging"
)

// Stats accumulates one channel's observations across a sequence.
type Stats struct {
	Max    float64
	Frames int
}

// Classification is the result of analysing one layer version folder.
// Empty, Matte and ColorOverride are pairwise disjoint.
type Classification struct {
	Empty         Set
	Matte         Set
	ColorOverride Set

	// Frames lists the files of the folder to carry over: the OpenEXR frames
	// when there are any, otherwise every file (copied verbatim).
	Frames []string
	// Raster is false when the folder holds no OpenEXR frames.
	Raster bool
	// Skipped lists frames that could not be decoded during analysis.
	Skipped []string
	// Stats is keyed by full channel name.
	Stats map[string]Stats
}

// Reduces reports whether rewriting would change any frame.
func (c Classification) Reduces() bool {
	return len(c.Empty) > 0 || len(c.Matte) > 0 || len(c.ColorOverride) > 0
}

// StatNames returns the analysed channel names in lexical order.
func (c Classification) StatNames() []string {
	names := make([]string, 0, len(c.Stats))
	for n := range c.Stats {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Classify analyses every frame in dir and sorts channel groups into the
// empty, matte and color-override sets.
//
// A group is empty while every channel of it seen so far has a maximum of
// exactly zero; once any of its channels is non-zero (NaN included) in any
// frame it leaves the candidate set for good. Groups whose base name mentions "tonal" but not
// "matte" are empty regardless of their values. Matte and color-override
// membership comes from the channel names alone, minus the empty groups, and
// a group that is both matte and color-override counts as matte.
//
// Frames that cannot be decoded are logged and skipped.
func Classify(ctx context.Context, dir string, codec Codec, logger *slog.Logger) (Classification, error) {
	if codec == nil {
		codec = EXRCodec{}
	}
	logger = logging.WithContext(ctx, logging.NewComponentLogger(logger, "classifier"))

	entries, err := os.ReadDir(dir)
	if err != nil {
		return Classification{}, err
	}
	var all, frames []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		all = append(all, entry.Name())
		if IsFrameFile(entry.Name()) {
			frames = append(frames, entry.Name())
		}
	}

	cls := Classification{
		Empty:         Set{},
		Matte:         Set{},
		ColorOverride: Set{},
		Stats:         map[string]Stats{},
	}
	if len(frames) == 0 {
		cls.Frames = all
		logger.Debug("no frames to analyse; folder will be copied verbatim", logging.Int("files", len(all)))
		return cls, nil
	}
	cls.Frames = frames
	cls.Raster = true

	fold := cases.Fold()
	seen := Set{}
	candidates := Set{}
	matteCandidates := Set{}
	overrideCandidates := Set{}

	for _, name := range frames {
		if err := ctx.Err(); err != nil {
			return Classification{}, err
		}
		path := filepath.Join(dir, name)
		img, err := codec.ReadFile(path)
		if err != nil {
			cls.Skipped = append(cls.Skipped, name)
			logging.WarnWithContext(logger, "frame skipped during analysis", "frame_unreadable",
				logging.String("frame", name),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check the frame decodes in another viewer"),
				logging.String(logging.FieldImpact, "classification uses the remaining frames"),
			)
			continue
		}

		for i := range img.Channels {
			ch := &img.Channels[i]
			frameMax := ch.Max()

			st, ok := cls.Stats[ch.Name]
			if !ok || frameMax > st.Max {
				st.Max = frameMax
			}
			st.Frames++
			cls.Stats[ch.Name] = st

			base, _ := SplitName(ch.Name)
			if !seen.Has(base) {
				seen.Add(base)
				candidates.Add(base)
			}
			if frameMax != 0 || ch.HasNaN() {
				delete(candidates, base)
			}

			folded := fold.String(ch.Name)
			if strings.Contains(folded, "matte") {
				matteCandidates.Add(base)
			}
			if strings.Contains(folded, "coloroverride") || strings.Contains(folded, "colour-override") {
				overrideCandidates.Add(base)
			}
		}
	}

	for base := range seen {
		folded := fold.String(base)
		if strings.Contains(folded, "tonal") && !strings.Contains(folded, "matte") {
			cls.Empty.Add(base)
		}
	}
	for base := range candidates {
		cls.Empty.Add(base)
	}
	cls.Matte = matteCandidates.minus(cls.Empty)
	cls.ColorOverride = overrideCandidates.minus(cls.Empty, cls.Matte)

	logger.Info("layer classified",
		logging.Int("frames", len(frames)),
		logging.Int("skipped", len(cls.Skipped)),
		logging.Strings("empty", cls.Empty.Sorted()),
		logging.Strings("matte", cls.Matte.Sorted()),
		logging.Strings("color_override", cls.ColorOverride.Sorted()),
	)
	return cls, nil
}
