// Package extractor launches the external feature-extraction collaborator.
//
// Unlike the trainer there is no artifact to collect afterwards: the
// collaborator writes feature files itself, so the client only reports
// whether the process exited cleanly.
package extractor
