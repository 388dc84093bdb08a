package runstore

import (
	"context"
	"log/slog"

	"reidpipe/internal/logging"
	"reidpipe/internal/pipeline"
)

// Observer persists stage lifecycle events for a single run. Persistence
// failures are logged and swallowed; run history must never fail a run.
type Observer struct {
	store  *Store
	runID  string
	logger *slog.Logger
}

// NewObserver returns an observer that records stage transitions of the given
// run into the store.
func NewObserver(store *Store, runID string, logger *slog.Logger) *Observer {
	return &Observer{
		store:  store,
		runID:  runID,
		logger: logging.NewComponentLogger(logger, "runstore"),
	}
}

func (o *Observer) StageStarted(ctx context.Context, stage pipeline.Stage) {
	if err := o.store.MarkStageStarted(o.persistContext(ctx), o.runID, stage); err != nil {
		o.warnPersistFailed(stage, err)
	}
}

func (o *Observer) StageCompleted(ctx context.Context, stage pipeline.Stage, artifact pipeline.Artifact) {
	if err := o.store.MarkStageCompleted(o.persistContext(ctx), o.runID, stage, artifact); err != nil {
		o.warnPersistFailed(stage, err)
	}
}

func (o *Observer) StageFailed(ctx context.Context, stage pipeline.Stage, stageErr error) {
	if err := o.store.MarkStageFailed(o.persistContext(ctx), o.runID, stage, stageErr); err != nil {
		o.warnPersistFailed(stage, err)
	}
}

func (o *Observer) StageSkipped(ctx context.Context, stage pipeline.Stage, reason error) {
	if err := o.store.MarkStageSkipped(o.persistContext(ctx), o.runID, stage, reason); err != nil {
		o.warnPersistFailed(stage, err)
	}
}

// persistContext detaches cancellation so stage outcomes are still recorded
// when the run context was canceled mid-flight.
func (o *Observer) persistContext(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return context.WithoutCancel(ctx)
}

func (o *Observer) warnPersistFailed(stage pipeline.Stage, err error) {
	logging.WarnWithContext(o.logger, "stage record not persisted", "run_store_write_failed",
		logging.String(logging.FieldRunID, o.runID),
		logging.String(logging.FieldStage, stage.Name),
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "check the state directory and database file permissions"),
		logging.String(logging.FieldImpact, "pipeline continues without persisted history for this stage"))
}

var _ pipeline.Observer = (*Observer)(nil)
