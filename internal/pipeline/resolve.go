package pipeline

import (
	"fmt"
	"strconv"

	"reidpipe/internal/experiment"
	"reidpipe/internal/services"
)

// Resolve produces the complete launch plan for one stage. Resolution is
// deterministic: the same graph, experiment, environment, and artifact map
// yield a byte-identical argument vector on every call, so a plan rendered
// for inspection matches what the runner later executes.
//
// Extraction stages take their checkpoint from the upstream artifact recorded
// in artifacts. When no artifact is recorded yet (dry-run planning, reuse of
// a checkpoint the runner has not located), the conventional checkpoint
// pattern for the experiment stands in.
func (g *Graph) Resolve(stageName string, exp experiment.Config, env Environment, artifacts map[string]Artifact) (Invocation, error) {
	stage, ok := g.Stage(stageName)
	if !ok {
		return Invocation{}, services.Wrap(services.ErrValidation, stageName, "resolve", "unknown stage", nil)
	}
	switch stage.Kind {
	case KindTrain:
		return g.resolveTrain(stage, exp, env), nil
	case KindExtract:
		return g.resolveExtract(stage, exp, env, artifacts)
	default:
		return Invocation{}, services.Wrap(services.ErrValidation, stageName, "resolve", fmt.Sprintf("unknown stage kind %q", stage.Kind), nil)
	}
}

func (g *Graph) resolveTrain(stage Stage, exp experiment.Config, env Environment) Invocation {
	dir := exp.CheckpointDir(env.LogsDir)
	args := []string{
		"--dataset", exp.Dataset,
		"--split", strconv.Itoa(exp.Split),
		"--height", strconv.Itoa(exp.Height),
		"--features", strconv.Itoa(stage.Features),
		"--output-layer", stage.OutputLayer,
		"--logs-dir", dir,
	}
	if exp.Regularization != nil {
		args = append(args, "--regularization", exp.RegularizationArg())
	}
	args = append(args, "--sampling-rate", strconv.Itoa(exp.SamplingRate))
	if exp.FreezeBN {
		args = append(args, "--freeze-bn")
	}
	return Invocation{
		Stage:         stage.Name,
		Collaborator:  CollaboratorTrainer,
		Args:          args,
		Env:           env.deviceEnv(),
		CheckpointDir: dir,
		Checkpoint:    exp.CheckpointPattern(env.LogsDir),
	}
}

func (g *Graph) resolveExtract(stage Stage, exp experiment.Config, env Environment, artifacts map[string]Artifact) (Invocation, error) {
	upstream, ok := g.Stage(stage.Needs)
	if !ok {
		return Invocation{}, services.Wrap(services.ErrValidation, stage.Name, "resolve", fmt.Sprintf("unknown upstream stage %q", stage.Needs), nil)
	}
	if err := checkEdge(stage, upstream); err != nil {
		return Invocation{}, err
	}
	checkpoint := exp.CheckpointPattern(env.LogsDir)
	if art, ok := artifacts[stage.Needs]; ok && art.Path != "" {
		checkpoint = art.Path
	}
	args := []string{
		"--arch", exp.Arch,
		"--batch-size", strconv.Itoa(env.BatchSize),
		"--checkpoint", checkpoint,
		"--features", strconv.Itoa(stage.Features),
		"--output-layer", stage.OutputLayer,
		"--dataset", exp.Dataset,
		"--subset", string(stage.Subset),
	}
	if stage.Window != "" {
		args = append(args, "--window", stage.Window)
	}
	return Invocation{
		Stage:        stage.Name,
		Collaborator: CollaboratorExtractor,
		Args:         args,
		Env:          env.deviceEnv(),
		Checkpoint:   checkpoint,
	}, nil
}
