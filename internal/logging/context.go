package logging

import (
	"context"
	"log/slog"

	"reidpipe/internal/services"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldRunID is the standardized structured logging key for pipeline run identifiers.
	FieldRunID = "run_id"
	// FieldStage is the standardized structured logging key for pipeline stage names.
	FieldStage = "stage"
	// FieldVariant is the standardized structured logging key for experiment variant strings.
	FieldVariant = "variant"
	// FieldCollaborator is the standardized structured logging key for collaborator program names.
	FieldCollaborator = "collaborator"
	// FieldEventType is the standardized structured logging key for machine-readable event categories.
	FieldEventType = "event_type"
	// FieldErrorHint is the standardized structured logging key for operator next steps.
	FieldErrorHint = "error_hint"
)

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 3)
	if id, ok := services.RunIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldRunID, id))
	}
	if stage, ok := services.StageFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldStage, stage))
	}
	if name, ok := services.CollaboratorFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldCollaborator, name))
	}
	return fields
}

// WithContext returns a logger augmented with structured fields derived from the supplied context.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(attrsToArgs(fields)...)
}
