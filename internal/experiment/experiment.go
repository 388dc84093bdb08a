package experiment

import (
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
)

// checkpointGlob matches the best-model checkpoint the trainer writes into a
// variant directory. The trainer owns the extension, so the driver never
// assumes one.
const checkpointGlob = "model_best.*"

// Config captures a single experiment variant. The driver builds one Config
// per invocation from flags and file defaults and never mutates it afterwards;
// every stage resolution reads from the same value.
type Config struct {
	// Dataset identifies the dataset the collaborators operate on, for
	// example duke_my_gt.
	Dataset string
	// Split selects the cross-validation split index.
	Split int
	// Height is the input image height in pixels.
	Height int
	// Features is the embedding dimensionality produced by training and
	// consumed by extraction.
	Features int
	// OutputLayer names the network layer features are read from (fc, avg).
	OutputLayer string
	// Arch tags the backbone architecture; it leads the variant path and is
	// forwarded to the extractor.
	Arch string
	// Label distinguishes sibling variants that share all other parameters.
	Label string
	// Regularization is the optional regularization strength. Nil means the
	// trainer's own default applies and no flag is forwarded.
	Regularization *float64
	// SamplingRate is the frame sampling rate in frames per second.
	SamplingRate int
	// FreezeBN freezes batch-normalization statistics during training.
	FreezeBN bool
}

// Validate reports the first invalid field. Errors name the flag that carries
// the field so CLI users can act on them directly.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Dataset) == "" {
		return errors.New("dataset is required")
	}
	if c.Split < 0 {
		return errors.New("split must be zero or greater")
	}
	if c.Height <= 0 {
		return errors.New("height must be greater than zero")
	}
	if c.Features <= 0 {
		return errors.New("features must be greater than zero")
	}
	if strings.TrimSpace(c.OutputLayer) == "" {
		return errors.New("output-layer is required")
	}
	if strings.TrimSpace(c.Arch) == "" {
		return errors.New("arch is required")
	}
	if strings.TrimSpace(c.Label) == "" {
		return errors.New("label is required")
	}
	if c.SamplingRate < 1 {
		return errors.New("sampling-rate must be at least 1")
	}
	if c.Regularization != nil && *c.Regularization < 0 {
		return errors.New("regularization must be zero or greater")
	}
	return nil
}

// Variant returns the relative directory that identifies this configuration
// inside the logs tree: <arch>/<features>/<dataset>/train/<fps>_fps/<label>.
// The trainer and every extraction stage agree on checkpoint placement
// through this single derivation.
func (c Config) Variant() string {
	return filepath.Join(
		c.Arch,
		strconv.Itoa(c.Features),
		c.Dataset,
		"train",
		fmt.Sprintf("%d_fps", c.SamplingRate),
		c.Label,
	)
}

// CheckpointDir returns the directory the trainer writes checkpoints into.
func (c Config) CheckpointDir(logsDir string) string {
	return filepath.Join(logsDir, c.Variant())
}

// CheckpointPattern returns the glob that locates the best-model checkpoint
// for this variant under logsDir.
func (c Config) CheckpointPattern(logsDir string) string {
	return filepath.Join(c.CheckpointDir(logsDir), checkpointGlob)
}

// RegularizationArg renders the regularization strength for a collaborator
// command line. It must only be called when Regularization is set.
func (c Config) RegularizationArg() string {
	return strconv.FormatFloat(*c.Regularization, 'g', -1, 64)
}
