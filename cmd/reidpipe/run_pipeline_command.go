package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/signal"
	"strings"
	"syscall"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"reidpipe/internal/config"
	"reidpipe/internal/logging"
	"reidpipe/internal/pipeline"
	"reidpipe/internal/preflight"
	"reidpipe/internal/runstore"
	"reidpipe/internal/services"
	"reidpipe/internal/services/extractor"
	"reidpipe/internal/services/trainer"
)

func newRunPipelineCommand(ctx *commandContext) *cobra.Command {
	var expFlags experimentFlags
	var stageNames []string
	var maxParallel int

	cmd := &cobra.Command{
		Use:   "run-pipeline",
		Short: "Train a variant and extract features from its checkpoint",
		Long: `Run the experiment pipeline: one training stage followed by the configured
feature-extraction stages, all driven from the same experiment configuration.
Use --stages to rerun a subset against an existing checkpoint.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			return runPipeline(cmd, cfg, &expFlags, stageNames, maxParallel)
		},
	}

	expFlags.register(cmd)
	cmd.Flags().StringSliceVar(&stageNames, "stages", nil, "Restrict the run to the named stages")
	cmd.Flags().IntVar(&maxParallel, "max-parallel", 0, "Concurrent extraction bound (config default when zero)")
	return cmd
}

func runPipeline(cmd *cobra.Command, cfg *config.Config, expFlags *experimentFlags, stageNames []string, maxParallel int) error {
	runCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	exp, err := expFlags.build(cmd, cfg)
	if err != nil {
		return err
	}
	env, err := expFlags.environment(cfg)
	if err != nil {
		return err
	}
	specs, err := extractionSpecs(cfg)
	if err != nil {
		return err
	}
	graph, err := pipeline.DefaultGraph(exp, specs)
	if err != nil {
		return err
	}
	if err := graph.Validate(); err != nil {
		return err
	}
	selected, err := selectedStages(graph, stageNames)
	if err != nil {
		return err
	}

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("initialize logging: %w", err)
	}

	lock := flock.New(cfg.LockPath())
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire run lock: %w", err)
	}
	if !locked {
		return errors.New("another reidpipe run is already in progress")
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			logging.WarnWithContext(logger, "run lock not released", "lock_release_failed",
				logging.Error(err))
		}
	}()

	if err := runPreflight(runCtx, cmd, cfg); err != nil {
		return err
	}

	store, err := runstore.Open(cfg)
	if err != nil {
		return fmt.Errorf("open run store: %w", err)
	}
	defer store.Close()

	runID := uuid.NewString()
	runCtx = services.WithRunID(runCtx, runID)
	runLogger := logger.With(
		logging.String(logging.FieldRunID, runID),
		logging.String(logging.FieldVariant, exp.Variant()))

	trainerClient, err := trainer.New(cfg.TrainerBinary(), cfg.Trainer.TimeoutSeconds,
		trainer.WithProgress(progressLogger(runLogger)))
	if err != nil {
		return err
	}
	extractorClient, err := extractor.New(cfg.ExtractorBinary(), cfg.Extractor.TimeoutSeconds)
	if err != nil {
		return err
	}

	planned := plannedStages(graph, selected)
	if _, err := store.CreateRun(runCtx, runID, exp, planned); err != nil {
		return fmt.Errorf("record run: %w", err)
	}

	parallel := maxParallel
	if parallel <= 0 {
		parallel = cfg.Pipeline.MaxParallel
	}
	opts := []pipeline.RunnerOption{
		pipeline.WithLogger(runLogger),
		pipeline.WithObserver(runstore.NewObserver(store, runID, runLogger)),
		pipeline.WithMaxParallel(parallel),
	}
	if len(selected) > 0 {
		opts = append(opts, pipeline.WithStages(selected...))
	}
	runner := pipeline.NewRunner(graph, exp, env, trainerClient, extractorClient, opts...)

	runLogger.Info("pipeline run starting",
		logging.Int("stages", len(planned)),
		logging.Int("max_parallel", parallel),
		logging.String("logs_dir", env.LogsDir))

	artifacts, runErr := runner.Run(runCtx)

	if err := store.FinishRun(context.WithoutCancel(runCtx), runID, runErr); err != nil {
		logging.WarnWithContext(runLogger, "run outcome not persisted", "run_store_write_failed",
			logging.Error(err))
	}

	out := cmd.OutOrStdout()
	if runErr != nil {
		logging.ErrorWithContext(runLogger, "pipeline run failed", "pipeline_run_failed",
			logging.Error(runErr))
		fmt.Fprintf(out, "Run %s failed: %v\n", shortID(runID), runErr)
		return runErr
	}

	runLogger.Info("pipeline run completed", logging.Int("stages", len(artifacts)))
	fmt.Fprintf(out, "Run %s completed %d stage(s) for variant %s\n", shortID(runID), len(artifacts), exp.Variant())
	if artifact, ok := artifacts[pipeline.StageTrain]; ok && artifact.Path != "" {
		fmt.Fprintf(out, "Checkpoint: %s\n", artifact.Path)
	}
	return nil
}

// runPreflight gates the run on the environment checks, mirroring the
// standalone preflight command but reporting failures as configuration
// errors so nothing launches.
func runPreflight(ctx context.Context, cmd *cobra.Command, cfg *config.Config) error {
	failures := preflight.Failures(preflight.RunAll(ctx, cfg))
	if len(failures) == 0 {
		return nil
	}
	errOut := cmd.ErrOrStderr()
	for _, failure := range failures {
		fmt.Fprintf(errOut, "preflight: %s: %s\n", failure.Name, failure.Detail)
	}
	return services.Wrap(services.ErrConfiguration, "preflight", "",
		fmt.Sprintf("%d check(s) failed", len(failures)), nil)
}

// selectedStages validates a --stages selection against the graph before the
// run is recorded. Empty input selects every stage.
func selectedStages(graph *pipeline.Graph, raw []string) ([]string, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	names := make([]string, 0, len(raw))
	for _, value := range raw {
		name := strings.TrimSpace(value)
		if name == "" {
			continue
		}
		if _, ok := graph.Stage(name); !ok {
			return nil, services.Wrap(services.ErrConfiguration, "pipeline", "stages",
				fmt.Sprintf("unknown stage %q", name), nil)
		}
		names = append(names, name)
	}
	if len(names) == 0 {
		return nil, nil
	}
	return names, nil
}

// plannedStages returns the graph stages a run will record, honoring the
// stage selection.
func plannedStages(graph *pipeline.Graph, selected []string) []pipeline.Stage {
	stages := graph.Stages()
	if len(selected) == 0 {
		return stages
	}
	want := make(map[string]bool, len(selected))
	for _, name := range selected {
		want[name] = true
	}
	planned := make([]pipeline.Stage, 0, len(selected))
	for _, stage := range stages {
		if want[stage.Name] {
			planned = append(planned, stage)
		}
	}
	return planned
}

// progressLogger forwards trainer progress lines into the run log. Epoch
// summaries land at info, per-batch updates at debug.
func progressLogger(logger *slog.Logger) func(trainer.ProgressUpdate) {
	progress := logging.NewComponentLogger(logger, "trainer")
	return func(update trainer.ProgressUpdate) {
		attrs := []any{logging.Int("epoch", update.Epoch)}
		if update.Message != "" {
			attrs = append(attrs, logging.String("detail", update.Message))
		}
		if update.Batches > 0 {
			attrs = append(attrs,
				logging.Int("batch", update.Batch),
				logging.Int("batches", update.Batches))
			progress.Debug("training progress", attrs...)
			return
		}
		progress.Info("training progress", attrs...)
	}
}
