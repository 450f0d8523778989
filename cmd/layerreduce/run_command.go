package main

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"layerreduce/internal/catalog"
	"layerreduce/internal/logging"
	"layerreduce/internal/pipeline"
	"layerreduce/internal/services"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var skipPublish bool

	cmd := &cobra.Command{
		Use:   "run SHOT",
		Short: "Reduce every layer of a shot's latest export and publish the result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.logger(cmd)
			if err != nil {
				return err
			}
			runCfg := *cfg
			if skipPublish {
				runCfg.Pipeline.Publish = false
			}

			return ctx.withCatalog(func(store *catalog.Store) error {
				report, err := pipeline.ReduceShot(cmd.Context(), &runCfg, args[0], pipeline.ShotOptions{
					Catalog:   store,
					Publisher: store,
					Logger:    logging.NewComponentLogger(logger, "run"),
				})
				if err != nil {
					if errors.Is(err, services.ErrNotFound) || services.Fatal(err) {
						logging.WarnWithContext(logger, "run aborted before layer processing", "run_aborted",
							logging.Error(err),
							logging.String("shot", args[0]),
							logging.String(logging.FieldErrorHint, "check the shot, its export task and the workspace"),
							logging.String(logging.FieldImpact, "no layers were reduced"),
						)
					}
					return err
				}
				if ctx.JSONMode() {
					return writeJSON(cmd, newRunOutput(report))
				}
				printRunSummary(cmd, report)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&skipPublish, "no-publish", false, "Leave the finished project unpublished")
	return cmd
}

type layerOutput struct {
	Layer         string   `json:"layer"`
	State         string   `json:"state"`
	SourceVersion string   `json:"source_version,omitempty"`
	Label         string   `json:"label,omitempty"`
	Output        string   `json:"output,omitempty"`
	Sequence      string   `json:"sequence,omitempty"`
	Frames        int      `json:"frames"`
	Empty         []string `json:"empty"`
	Matte         []string `json:"matte"`
	ColorOverride []string `json:"color_override"`
	Skipped       []string `json:"skipped,omitempty"`
	Cause         string   `json:"cause,omitempty"`
	Detail        string   `json:"detail,omitempty"`
	DurationMS    int64    `json:"duration_ms"`
}

type runOutput struct {
	RunID     string        `json:"run_id"`
	Shot      string        `json:"shot"`
	Version   string        `json:"version"`
	Project   string        `json:"project"`
	Done      int           `json:"done"`
	Failed    int           `json:"failed"`
	Layers    []layerOutput `json:"layers"`
	Published string        `json:"published,omitempty"`
}

func newRunOutput(report pipeline.ShotReport) runOutput {
	out := runOutput{
		RunID:   report.RunID,
		Shot:    report.Shot,
		Version: report.Version.Code,
		Project: report.Stage.ProjectDir,
		Done:    len(report.Layers.Done()),
		Failed:  len(report.Layers.Failed()),
		Layers:  make([]layerOutput, 0, len(report.Layers.Layers)),
	}
	if report.Published != nil {
		out.Published = report.Published.Code
	}
	for _, l := range report.Layers.Layers {
		lo := layerOutput{
			Layer:         l.Layer,
			State:         string(l.State),
			SourceVersion: l.SourceVersion,
			Label:         l.Label,
			Output:        l.Output,
			Sequence:      l.Sequence,
			Frames:        len(l.Files),
			Empty:         orEmpty(l.Empty),
			Matte:         orEmpty(l.Matte),
			ColorOverride: orEmpty(l.ColorOverride),
			Skipped:       l.Skipped,
			DurationMS:    l.Duration.Milliseconds(),
		}
		if l.Err != nil {
			lo.Cause, lo.Detail = l.Cause()
		}
		out.Layers = append(out.Layers, lo)
	}
	return out
}

func printRunSummary(cmd *cobra.Command, report pipeline.ShotReport) {
	out := cmd.OutOrStdout()
	sw := newStatusWriter(out)

	sw.section(fmt.Sprintf("%s %s", report.Shot, report.Version.Code))
	sw.line("Project", statusInfo, report.Stage.ProjectDir)
	for _, permErr := range report.Stage.PermissionErrors {
		sw.line("Permissions", statusWarn, permErr.Error())
	}

	rows := make([][]string, 0, len(report.Layers.Layers))
	for _, l := range report.Layers.Layers {
		note := l.Sequence
		if l.Err != nil {
			kind, msg := l.Cause()
			note = kind + ": " + msg
		}
		rows = append(rows, []string{
			l.Layer,
			string(l.State),
			l.SourceVersion,
			strconv.Itoa(len(l.Files)),
			joinOrDash(l.Empty),
			joinOrDash(l.Matte),
			joinOrDash(l.ColorOverride),
			note,
		})
	}
	if len(rows) > 0 {
		fmt.Fprintln(out, renderTable(tableLayout{
			Headers: []string{"Layer", "State", "Version", "Frames", "Empty", "Matte", "Color override", "Result"},
			Rows:    rows,
			Right:   []int{3},
		}))
	}

	done, failed := len(report.Layers.Done()), len(report.Layers.Failed())
	kind := statusOK
	if failed > 0 {
		kind = statusWarn
	}
	sw.line("Layers", kind, fmt.Sprintf("%d done, %d failed", done, failed))
	for _, l := range report.Layers.Failed() {
		k, msg := l.Cause()
		sw.line(l.Layer, layerStatus(l.State), k+": "+msg)
	}
	if report.Published != nil {
		sw.line("Published", statusOK, report.Published.Code)
	} else {
		sw.line("Published", statusInfo, "skipped")
	}
	sw.line("Duration", statusInfo,
		formatDuration(report.Layers.FinishedAt.Sub(report.Layers.StartedAt)))
}
