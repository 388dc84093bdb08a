package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"sync"
	"time"

	"reidpipe/internal/experiment"
	"reidpipe/internal/logging"
	"reidpipe/internal/services"
)

// Trainer launches the training collaborator described by an invocation and
// returns the path of the checkpoint it produced.
type Trainer interface {
	Train(ctx context.Context, inv Invocation) (string, error)
}

// Extractor launches the feature-extraction collaborator described by an
// invocation. The collaborator persists extracted features externally, so
// there is no output path to return.
type Extractor interface {
	Extract(ctx context.Context, inv Invocation) error
}

// Runner executes a stage graph for one experiment: the train stage first,
// then the extraction stages concurrently up to MaxParallel. The runner keeps
// no state beyond the artifact map it returns; run history is the observer's
// concern.
type Runner struct {
	graph       *Graph
	exp         experiment.Config
	env         Environment
	trainer     Trainer
	extractor   Extractor
	logger      *slog.Logger
	observer    Observer
	maxParallel int
	selected    map[string]bool
}

// RunnerOption adjusts runner behaviour.
type RunnerOption func(*Runner)

// WithLogger attaches a logger to the runner.
func WithLogger(logger *slog.Logger) RunnerOption {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithObserver attaches a stage lifecycle observer.
func WithObserver(observer Observer) RunnerOption {
	return func(r *Runner) {
		if observer != nil {
			r.observer = observer
		}
	}
}

// WithMaxParallel bounds how many extraction stages run at once. Values below
// one fall back to serial execution.
func WithMaxParallel(n int) RunnerOption {
	return func(r *Runner) {
		r.maxParallel = n
	}
}

// WithStages restricts the run to the named stages. Deselecting the train
// stage switches its dependents to the newest checkpoint already on disk.
func WithStages(names ...string) RunnerOption {
	return func(r *Runner) {
		if len(names) == 0 {
			return
		}
		r.selected = make(map[string]bool, len(names))
		for _, name := range names {
			r.selected[name] = true
		}
	}
}

// NewRunner wires a graph to its collaborators.
func NewRunner(graph *Graph, exp experiment.Config, env Environment, trainer Trainer, extractor Extractor, opts ...RunnerOption) *Runner {
	r := &Runner{
		graph:       graph,
		exp:         exp,
		env:         env,
		trainer:     trainer,
		extractor:   extractor,
		logger:      logging.NewNop(),
		observer:    NopObserver{},
		maxParallel: 1,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes the graph in dependency order and returns the artifacts of
// every stage that completed. Failure semantics:
//
//   - a train failure skips all dependent extractions and the run fails with
//     *UpstreamStageFailedError;
//   - an extraction failure never blocks sibling extractions; the failures
//     aggregate into *ExtractionError;
//   - nothing launches when validation fails.
//
// No stage is ever retried automatically.
func (r *Runner) Run(ctx context.Context) (map[string]Artifact, error) {
	if err := r.graph.Validate(); err != nil {
		return nil, err
	}
	if err := r.validateSelection(); err != nil {
		return nil, err
	}

	train := r.graph.TrainStage()
	artifacts := make(map[string]Artifact)

	if r.stageSelected(train.Name) {
		artifact, err := r.runTrain(ctx, train)
		if err != nil {
			r.recordSkips(ctx, train, err)
			return artifacts, &UpstreamStageFailedError{Upstream: train.Name, Err: err}
		}
		artifacts[train.Name] = artifact
	} else if artifact, ok := r.existingCheckpoint(train); ok {
		artifacts[train.Name] = artifact
		r.logger.Info("reusing existing checkpoint",
			logging.String(logging.FieldStage, train.Name),
			logging.String("checkpoint", artifact.Path))
	}

	if err := r.runExtractions(ctx, artifacts); err != nil {
		return artifacts, err
	}
	return artifacts, nil
}

func (r *Runner) validateSelection() error {
	for name := range r.selected {
		if _, ok := r.graph.Stage(name); !ok {
			return services.Wrap(services.ErrConfiguration, "pipeline", "stages", fmt.Sprintf("unknown stage %q", name), nil)
		}
	}
	return nil
}

func (r *Runner) stageSelected(name string) bool {
	if r.selected == nil {
		return true
	}
	return r.selected[name]
}

func (r *Runner) runTrain(ctx context.Context, stage Stage) (Artifact, error) {
	inv, err := r.graph.Resolve(stage.Name, r.exp, r.env, nil)
	if err != nil {
		return Artifact{}, err
	}
	stageCtx := services.WithCollaborator(services.WithStage(ctx, stage.Name), inv.Collaborator)
	log := logging.WithContext(stageCtx, r.logger)

	r.observer.StageStarted(stageCtx, stage)
	log.Info("stage started", logging.String("checkpoint_dir", inv.CheckpointDir))
	started := time.Now()

	path, err := r.trainer.Train(stageCtx, inv)
	if err != nil {
		procErr := &CollaboratorProcessError{
			Stage:        stage.Name,
			Collaborator: inv.Collaborator,
			ExitCode:     services.ExitStatus(err),
			Err:          err,
		}
		r.observer.StageFailed(stageCtx, stage, procErr)
		log.Error("stage failed",
			logging.Int("exit_code", procErr.ExitCode),
			logging.Error(procErr))
		return Artifact{}, procErr
	}

	artifact := Artifact{Stage: stage.Name, Kind: KindTrain, Path: path}
	r.observer.StageCompleted(stageCtx, stage, artifact)
	log.Info("stage completed",
		logging.String("checkpoint", path),
		logging.Duration("elapsed", time.Since(started)))
	return artifact, nil
}

// recordSkips marks every selected dependent of a failed stage as skipped so
// run history shows why the extraction never launched.
func (r *Runner) recordSkips(ctx context.Context, failed Stage, cause error) {
	for _, dep := range r.graph.Dependents(failed.Name) {
		if !r.stageSelected(dep.Name) {
			continue
		}
		skip := &UpstreamStageFailedError{Stage: dep.Name, Upstream: failed.Name, Err: cause}
		stageCtx := services.WithStage(ctx, dep.Name)
		r.observer.StageSkipped(stageCtx, dep, skip)
		logging.WithContext(stageCtx, r.logger).Warn("stage skipped",
			logging.String("upstream", failed.Name))
	}
}

func (r *Runner) existingCheckpoint(train Stage) (Artifact, bool) {
	path, err := experiment.LocateCheckpoint(r.exp.CheckpointDir(r.env.LogsDir))
	if err != nil {
		return Artifact{}, false
	}
	return Artifact{Stage: train.Name, Kind: KindTrain, Path: path}, true
}

func (r *Runner) runExtractions(ctx context.Context, artifacts map[string]Artifact) error {
	stages := make([]Stage, 0, len(r.graph.stages))
	for _, stage := range r.graph.ExtractStages() {
		if r.stageSelected(stage.Name) {
			stages = append(stages, stage)
		}
	}
	if len(stages) == 0 {
		return nil
	}

	limit := r.maxParallel
	if limit < 1 {
		limit = 1
	}
	sem := make(chan struct{}, limit)
	var wg sync.WaitGroup
	var mu sync.Mutex
	completed := make(map[string]Artifact, len(stages))
	failures := make(map[string]error)

	for _, stage := range stages {
		wg.Add(1)
		go func(stage Stage) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			artifact, err := r.runExtract(ctx, stage, artifacts)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failures[stage.Name] = err
				return
			}
			completed[stage.Name] = artifact
		}(stage)
	}
	wg.Wait()

	for name, artifact := range completed {
		artifacts[name] = artifact
	}
	if len(failures) == 0 {
		return nil
	}
	names := make([]string, 0, len(failures))
	for name := range failures {
		names = append(names, name)
	}
	sort.Strings(names)
	errs := make([]error, 0, len(names))
	for _, name := range names {
		errs = append(errs, failures[name])
	}
	return &ExtractionError{Stages: names, Err: errors.Join(errs...)}
}

func (r *Runner) runExtract(ctx context.Context, stage Stage, artifacts map[string]Artifact) (Artifact, error) {
	inv, err := r.graph.Resolve(stage.Name, r.exp, r.env, artifacts)
	if err != nil {
		r.observer.StageFailed(ctx, stage, err)
		return Artifact{}, err
	}
	stageCtx := services.WithCollaborator(services.WithStage(ctx, stage.Name), inv.Collaborator)
	log := logging.WithContext(stageCtx, r.logger)

	// The checkpoint must be on durable storage before the extractor starts;
	// a dangling reference fails the stage without launching anything.
	if !checkpointReady(inv.Checkpoint) {
		missing := &MissingCheckpointError{Stage: stage.Name, Checkpoint: inv.Checkpoint}
		r.observer.StageFailed(stageCtx, stage, missing)
		log.Error("checkpoint missing before launch", logging.Error(missing))
		return Artifact{}, missing
	}

	r.observer.StageStarted(stageCtx, stage)
	log.Info("stage started",
		logging.String("subset", string(stage.Subset)),
		logging.String("checkpoint", inv.Checkpoint))
	started := time.Now()

	if err := r.extractor.Extract(stageCtx, inv); err != nil {
		procErr := &CollaboratorProcessError{
			Stage:        stage.Name,
			Collaborator: inv.Collaborator,
			ExitCode:     services.ExitStatus(err),
			Err:          err,
		}
		r.observer.StageFailed(stageCtx, stage, procErr)
		log.Error("stage failed",
			logging.Int("exit_code", procErr.ExitCode),
			logging.Error(procErr))
		return Artifact{}, procErr
	}

	artifact := Artifact{
		Stage: stage.Name,
		Kind:  KindExtract,
		Label: fmt.Sprintf("%s %s features", r.exp.Dataset, stage.Subset),
	}
	r.observer.StageCompleted(stageCtx, stage, artifact)
	log.Info("stage completed", logging.Duration("elapsed", time.Since(started)))
	return artifact, nil
}

func checkpointReady(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
