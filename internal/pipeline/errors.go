package pipeline

import (
	"fmt"
	"strings"

	"reidpipe/internal/services"
)

// ConfigMismatchError reports an extraction stage whose declared feature
// geometry disagrees with the train stage it consumes. It is raised during
// validation or resolution, always before a collaborator process is launched.
type ConfigMismatchError struct {
	Stage    string
	Upstream string
	Field    string
	Want     string
	Got      string
}

func (e *ConfigMismatchError) Error() string {
	return fmt.Sprintf("config mismatch: stage %s declares %s %s but upstream %s declares %s",
		e.Stage, e.Field, e.Got, e.Upstream, e.Want)
}

func (e *ConfigMismatchError) Is(target error) bool {
	return target == services.ErrConfiguration
}

// UpstreamStageFailedError marks work abandoned because a stage it depends on
// failed. Stage is empty when the error describes the run as a whole.
type UpstreamStageFailedError struct {
	Stage    string
	Upstream string
	Err      error
}

func (e *UpstreamStageFailedError) Error() string {
	if e.Stage == "" {
		return fmt.Sprintf("upstream stage %s failed: %v", e.Upstream, e.Err)
	}
	return fmt.Sprintf("stage %s skipped: upstream stage %s failed: %v", e.Stage, e.Upstream, e.Err)
}

func (e *UpstreamStageFailedError) Unwrap() error { return e.Err }

// CollaboratorProcessError surfaces a collaborator failure verbatim together
// with the stage that launched it. The pipeline never interprets or retries
// these; ExitCode is -1 when the process reported no status (launch failure,
// cancellation).
type CollaboratorProcessError struct {
	Stage        string
	Collaborator string
	ExitCode     int
	Err          error
}

func (e *CollaboratorProcessError) Error() string {
	if e.ExitCode >= 0 {
		return fmt.Sprintf("stage %s: %s exited with status %d: %v", e.Stage, e.Collaborator, e.ExitCode, e.Err)
	}
	return fmt.Sprintf("stage %s: %s failed: %v", e.Stage, e.Collaborator, e.Err)
}

func (e *CollaboratorProcessError) Unwrap() error { return e.Err }

// MissingCheckpointError reports an extraction stage whose checkpoint was not
// on durable storage when the stage was about to launch.
type MissingCheckpointError struct {
	Stage      string
	Checkpoint string
}

func (e *MissingCheckpointError) Error() string {
	return fmt.Sprintf("stage %s: checkpoint %s does not exist", e.Stage, e.Checkpoint)
}

func (e *MissingCheckpointError) Is(target error) bool {
	return target == services.ErrNotFound
}

// ExtractionError aggregates the extraction stage failures of one run.
// Training succeeded (or its checkpoint was reused); only the named stages
// failed, and sibling stages ran to completion regardless.
type ExtractionError struct {
	Stages []string
	Err    error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("%d extraction stage(s) failed (%s): %v",
		len(e.Stages), strings.Join(e.Stages, ", "), e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }
