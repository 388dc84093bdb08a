package pipeline

import (
	"fmt"
	"strings"
)

// Kind distinguishes the two stage families the pipeline knows about.
type Kind string

const (
	KindTrain   Kind = "train"
	KindExtract Kind = "extract"
)

// Subset selects which portion of the dataset an extraction stage reads.
type Subset string

const (
	SubsetGTTest     Subset = "gt_test"
	SubsetDetections Subset = "detections"
	SubsetGTAll      Subset = "gt_all"
)

// ParseSubset validates a raw subset token from flags or configuration.
func ParseSubset(raw string) (Subset, error) {
	switch s := Subset(strings.TrimSpace(raw)); s {
	case SubsetGTTest, SubsetDetections, SubsetGTAll:
		return s, nil
	default:
		return "", fmt.Errorf("unknown subset %q (expected gt_test, detections, or gt_all)", raw)
	}
}

// Collaborator program names carried on invocations and error reports.
const (
	CollaboratorTrainer   = "trainer"
	CollaboratorExtractor = "extractor"
)

// StageTrain is the name of the single train stage in the default graph.
const StageTrain = "train"

// ExtractStageName derives the default graph's stage name for a subset.
func ExtractStageName(subset Subset) string {
	return "extract_" + string(subset)
}

// Stage declares one node of the stage graph. Each stage carries its own
// feature geometry so the cross-stage invariant can be checked explicitly
// rather than assumed.
type Stage struct {
	// Name uniquely identifies the stage within its graph.
	Name string
	// Kind is train or extract.
	Kind Kind
	// Needs names the train stage whose checkpoint this stage consumes.
	// Empty for train stages.
	Needs string
	// Subset is the dataset portion an extraction stage reads.
	Subset Subset
	// Window optionally restricts an extraction to a dataset time window,
	// for example trainval.
	Window string
	// Features is the embedding dimensionality this stage declares.
	Features int
	// OutputLayer is the network layer this stage declares.
	OutputLayer string
}

// Artifact records what a completed stage produced. Train stages yield the
// checkpoint path on disk; extraction stages persist their output externally
// and yield only a label.
type Artifact struct {
	Stage string
	Kind  Kind
	Path  string
	Label string
}

// Environment carries the process-level settings shared by every invocation
// of a run: the logs tree root, the extractor batch size, and the
// accelerator-visibility variable handed through to collaborators.
type Environment struct {
	// LogsDir is the root of the checkpoint tree.
	LogsDir string
	// BatchSize is forwarded to the extractor.
	BatchSize int
	// DeviceVar names the accelerator-visibility environment variable,
	// typically CUDA_VISIBLE_DEVICES.
	DeviceVar string
	// Devices is the value assigned to DeviceVar. Empty means collaborators
	// inherit the parent environment untouched.
	Devices string
}

// deviceEnv renders the accelerator-visibility assignment for a child
// process. An empty device list leaves the inherited environment alone.
func (e Environment) deviceEnv() []string {
	if e.DeviceVar == "" || e.Devices == "" {
		return nil
	}
	return []string{e.DeviceVar + "=" + e.Devices}
}

// Invocation is the fully resolved launch plan for one stage: the
// collaborator to run, its complete argument vector in a fixed order, and the
// environment additions it receives. Resolution is deterministic, so equal
// inputs always produce an identical Invocation.
type Invocation struct {
	Stage        string
	Collaborator string
	// Args is the collaborator's argument vector, excluding the binary name.
	Args []string
	// Env holds KEY=VALUE pairs appended to the inherited environment.
	Env []string
	// CheckpointDir is where the trainer writes its checkpoint. Empty for
	// extraction stages.
	CheckpointDir string
	// Checkpoint is the checkpoint path an extraction reads, or the
	// conventional output pattern for a train stage.
	Checkpoint string
}
