// Package services defines shared utilities consumed by the pipeline runner
// and the collaborator process clients.
//
// Key responsibilities:
//   - Context helpers that stamp run IDs, stage names, and collaborator names
//     for logging and tracing.
//   - Structured error markers plus the Wrap helper that keep failure
//     classification consistent across the pipeline, and ExitStatus for
//     surfacing a collaborator's raw exit code.
//
// Use these helpers when wiring new stage logic so operational behaviour
// (error handling, observability) stays uniform across the pipeline.
package services
