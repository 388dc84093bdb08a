package preflight

import (
	"context"

	"reidpipe/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// Failures filters results down to the checks that did not pass.
func Failures(results []Result) []Result {
	var failed []Result
	for _, result := range results {
		if !result.Passed {
			failed = append(failed, result)
		}
	}
	return failed
}

// RunAll executes all preflight checks for the given config. Directory checks
// cover every path the run will write into; binary checks cover both
// collaborators.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result

	results = append(results, CheckDirectoryAccess("State directory", cfg.Paths.StateDir))
	results = append(results, CheckDirectoryAccess("Run log directory", cfg.RunLogDir()))
	results = append(results, CheckDirectoryAccess("Checkpoint tree", cfg.Paths.LogsDir))
	results = append(results, CheckSystemDeps(ctx, cfg)...)

	return results
}
