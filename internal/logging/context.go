package logging

import (
	"context"
	"log/slog"

	"layerreduce/internal/services"
)

// Structured field keys shared by every component.
const (
	FieldComponent = "component"
	FieldLayer     = "layer"
	FieldStage     = "stage"
	FieldRunID     = "run_id"
	// FieldEventType classifies a line for filtering, e.g. layer_failed.
	FieldEventType = "event_type"
	// FieldErrorHint tells the operator what to check next.
	FieldErrorHint = "error_hint"
	// FieldImpact is the consequence of a warning for the run.
	FieldImpact = "impact"
)

// ContextFields returns the layer, stage and run ID carried by ctx.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	var fields []slog.Attr
	if layer, ok := services.LayerFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldLayer, layer))
	}
	if stage, ok := services.StageFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldStage, stage))
	}
	if rid, ok := services.RunIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldRunID, rid))
	}
	return fields
}

// WithContext returns logger with the ContextFields of ctx attached.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	if fields := ContextFields(ctx); len(fields) > 0 {
		return logger.With(toArgs(fields)...)
	}
	return logger
}
