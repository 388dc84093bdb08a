package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"reidpipe/internal/config"
	"reidpipe/internal/experiment"
	"reidpipe/internal/pipeline"
	"reidpipe/internal/services"
)

// experimentFlags is the variant flag surface shared by run-pipeline and
// plan. Flags left unset fall back to the configuration file's experiment
// defaults before validation.
type experimentFlags struct {
	dataset        string
	split          int
	height         int
	features       int
	outputLayer    string
	arch           string
	label          string
	regularization float64
	samplingRate   int
	freezeBN       bool
	logsDir        string
}

func (f *experimentFlags) register(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringVar(&f.dataset, "dataset", "", "Dataset identifier (for example duke_my_gt)")
	flags.IntVar(&f.split, "split", 0, "Cross-validation split index")
	flags.IntVar(&f.height, "height", 384, "Input image height in pixels")
	flags.IntVar(&f.features, "features", 64, "Embedding dimensionality")
	flags.StringVar(&f.outputLayer, "output-layer", "fc", "Network layer embeddings are read from")
	flags.StringVar(&f.arch, "arch", "", "Backbone architecture tag (config default when empty)")
	flags.StringVar(&f.label, "label", "", "Variant label (config default when empty)")
	flags.Float64Var(&f.regularization, "regularization", 0, "Regularization weight (omitted when unset)")
	flags.IntVar(&f.samplingRate, "sampling-rate", 1, "Frame sampling rate in fps")
	flags.BoolVar(&f.freezeBN, "freeze-bn", false, "Freeze batch-normalization statistics during training")
	flags.StringVar(&f.logsDir, "logs-dir", "", "Checkpoint tree root (config default when empty)")
}

// build assembles and validates the experiment configuration from flags and
// config-file defaults. Validation failures carry the configuration marker so
// they exit before any collaborator launch.
func (f *experimentFlags) build(cmd *cobra.Command, cfg *config.Config) (experiment.Config, error) {
	exp := experiment.Config{
		Dataset:      strings.TrimSpace(f.dataset),
		Split:        f.split,
		Height:       f.height,
		Features:     f.features,
		OutputLayer:  strings.TrimSpace(f.outputLayer),
		Arch:         strings.TrimSpace(f.arch),
		Label:        strings.TrimSpace(f.label),
		SamplingRate: f.samplingRate,
		FreezeBN:     f.freezeBN,
	}
	if exp.Arch == "" {
		exp.Arch = cfg.Experiment.Arch
	}
	if exp.Label == "" {
		exp.Label = cfg.Experiment.Label
	}
	if cmd.Flags().Changed("regularization") {
		reg := f.regularization
		exp.Regularization = &reg
	}
	if err := exp.Validate(); err != nil {
		return experiment.Config{}, services.Wrap(services.ErrValidation, "experiment", "flags", "invalid experiment", err)
	}
	return exp, nil
}

// environment resolves the per-run process environment from the config file,
// honoring the --logs-dir override.
func (f *experimentFlags) environment(cfg *config.Config) (pipeline.Environment, error) {
	logsDir := cfg.Paths.LogsDir
	if dir := strings.TrimSpace(f.logsDir); dir != "" {
		expanded, err := config.ExpandPath(dir)
		if err != nil {
			return pipeline.Environment{}, fmt.Errorf("resolve logs dir: %w", err)
		}
		logsDir = expanded
	}
	return pipeline.Environment{
		LogsDir:   logsDir,
		BatchSize: cfg.Extractor.BatchSize,
		DeviceVar: cfg.Devices.Env,
		Devices:   cfg.Devices.Visible,
	}, nil
}

// extractionSpecs converts the configured extraction plan into graph specs.
func extractionSpecs(cfg *config.Config) ([]pipeline.ExtractionSpec, error) {
	specs := make([]pipeline.ExtractionSpec, 0, len(cfg.Pipeline.Extractions))
	for _, extraction := range cfg.Pipeline.Extractions {
		subset, err := pipeline.ParseSubset(extraction.Subset)
		if err != nil {
			return nil, services.Wrap(services.ErrConfiguration, "pipeline", "extractions", "invalid extraction plan", err)
		}
		specs = append(specs, pipeline.ExtractionSpec{Subset: subset, Window: extraction.Window})
	}
	return specs, nil
}
