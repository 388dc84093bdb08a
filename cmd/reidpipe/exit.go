package main

import (
	"errors"

	"reidpipe/internal/pipeline"
	"reidpipe/internal/services"
)

// Process exit codes reported to callers and CI harnesses.
const (
	exitSuccess           = 0
	exitTrainFailed       = 1
	exitExtractionsFailed = 2
	exitConfigError       = 3
)

// exitCode maps a command error onto the process exit code contract.
// Configuration and validation problems detected before any collaborator
// launch report 3, a train stage failure reports 1, and extraction stage
// failures (including missing checkpoints) report 2. Everything else,
// including interrupted runs, reports 1.
func exitCode(err error) int {
	if err == nil {
		return exitSuccess
	}

	if errors.Is(err, services.ErrConfiguration) || errors.Is(err, services.ErrValidation) {
		return exitConfigError
	}

	var extraction *pipeline.ExtractionError
	var missing *pipeline.MissingCheckpointError
	if errors.As(err, &extraction) || errors.As(err, &missing) {
		return exitExtractionsFailed
	}

	return exitTrainFailed
}
