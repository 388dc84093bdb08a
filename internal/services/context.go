package services

import "context"

type contextKey string

const (
	runIDKey        contextKey = "run_id"
	stageKey        contextKey = "stage"
	collaboratorKey contextKey = "collaborator"
)

// WithRunID annotates context with the pipeline run identifier.
func WithRunID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, runIDKey, id)
}

// RunIDFromContext extracts the pipeline run identifier if present.
func RunIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(runIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithStage annotates context with the pipeline stage name.
func WithStage(ctx context.Context, stage string) context.Context {
	if stage == "" {
		return ctx
	}
	return context.WithValue(ctx, stageKey, stage)
}

// StageFromContext returns the stage name if present.
func StageFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(stageKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithCollaborator annotates context with the collaborator program name
// (trainer or extractor).
func WithCollaborator(ctx context.Context, name string) context.Context {
	if name == "" {
		return ctx
	}
	return context.WithValue(ctx, collaboratorKey, name)
}

// CollaboratorFromContext returns the collaborator program name if present.
func CollaboratorFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(collaboratorKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}
