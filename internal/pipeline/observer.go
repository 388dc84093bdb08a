package pipeline

import "context"

// Observer receives stage lifecycle events while the runner executes a
// pipeline. Implementations must be safe for concurrent use: extraction
// stages report from separate goroutines.
type Observer interface {
	StageStarted(ctx context.Context, stage Stage)
	StageCompleted(ctx context.Context, stage Stage, artifact Artifact)
	StageFailed(ctx context.Context, stage Stage, err error)
	StageSkipped(ctx context.Context, stage Stage, err error)
}

// NopObserver discards every event.
type NopObserver struct{}

func (NopObserver) StageStarted(context.Context, Stage) {}

func (NopObserver) StageCompleted(context.Context, Stage, Artifact) {}

func (NopObserver) StageFailed(context.Context, Stage, error) {}

func (NopObserver) StageSkipped(context.Context, Stage, error) {}

var _ Observer = NopObserver{}
