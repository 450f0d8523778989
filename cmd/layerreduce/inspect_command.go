package main

import (
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"layerreduce/internal/channels"
	"layerreduce/internal/logging"
)

func newInspectCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect DIR",
		Short: "Classify the channels of one layer version folder without writing anything",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := ctx.logger(cmd)
			if err != nil {
				return err
			}
			dir := filepath.Clean(args[0])
			cls, err := channels.Classify(cmd.Context(), dir, channels.EXRCodec{}, logging.NewComponentLogger(logger, "inspect"))
			if err != nil {
				return fmt.Errorf("inspect %s: %w", dir, err)
			}
			if ctx.JSONMode() {
				return writeJSON(cmd, newInspectOutput(dir, cls))
			}
			printInspect(cmd, dir, cls)
			return nil
		},
	}
}

type channelOutput struct {
	Name   string  `json:"name"`
	Max    float64 `json:"max"`
	Frames int     `json:"frames"`
	Class  string  `json:"class"`
}

type inspectOutput struct {
	Dir           string          `json:"dir"`
	Raster        bool            `json:"raster"`
	Frames        int             `json:"frames"`
	Skipped       []string        `json:"skipped,omitempty"`
	Channels      []channelOutput `json:"channels"`
	Empty         []string        `json:"empty"`
	Matte         []string        `json:"matte"`
	ColorOverride []string        `json:"color_override"`
}

func newInspectOutput(dir string, cls channels.Classification) inspectOutput {
	out := inspectOutput{
		Dir:           dir,
		Raster:        cls.Raster,
		Frames:        len(cls.Frames),
		Skipped:       cls.Skipped,
		Channels:      make([]channelOutput, 0, len(cls.Stats)),
		Empty:         cls.Empty.Sorted(),
		Matte:         cls.Matte.Sorted(),
		ColorOverride: cls.ColorOverride.Sorted(),
	}
	for _, name := range cls.StatNames() {
		st := cls.Stats[name]
		out.Channels = append(out.Channels, channelOutput{
			Name:   name,
			Max:    st.Max,
			Frames: st.Frames,
			Class:  channelClass(name, cls),
		})
	}
	return out
}

// channelClass names what the rewriter will do with a channel.
func channelClass(name string, cls channels.Classification) string {
	base, component := channels.SplitName(name)
	switch {
	case cls.Empty.Has(base):
		return "drop"
	case cls.Matte.Has(base):
		if component == "A" {
			return "mask"
		}
		return "drop"
	case cls.ColorOverride.Has(base):
		if component == "R" {
			return "mask"
		}
		return "drop"
	default:
		return "keep"
	}
}

func printInspect(cmd *cobra.Command, dir string, cls channels.Classification) {
	out := cmd.OutOrStdout()
	sw := newStatusWriter(out)

	sw.section(dir)
	if !cls.Raster {
		sw.line("Frames", statusInfo,
			fmt.Sprintf("no OpenEXR frames; %d files would be copied verbatim", len(cls.Frames)))
		return
	}
	sw.line("Frames", statusInfo, strconv.Itoa(len(cls.Frames)))
	for _, name := range cls.Skipped {
		sw.line("Skipped", statusWarn, name)
	}

	rows := make([][]string, 0, len(cls.Stats))
	for _, name := range cls.StatNames() {
		st := cls.Stats[name]
		rows = append(rows, []string{
			name,
			strconv.FormatFloat(st.Max, 'g', 6, 64),
			strconv.Itoa(st.Frames),
			channelClass(name, cls),
		})
	}
	fmt.Fprintln(out, renderTable(tableLayout{
		Headers: []string{"Channel", "Max", "Frames", "Action"},
		Rows:    rows,
		Right:   []int{1, 2},
	}))
	sw.line("Empty", statusInfo, joinOrDash(cls.Empty.Sorted()))
	sw.line("Matte", statusInfo, joinOrDash(cls.Matte.Sorted()))
	sw.line("Color override", statusInfo, joinOrDash(cls.ColorOverride.Sorted()))
}
