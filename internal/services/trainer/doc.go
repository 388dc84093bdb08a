// Package trainer launches the external training collaborator.
//
// The client receives a fully resolved invocation from the pipeline, runs the
// binary with streamed output, and reports the checkpoint the run left behind.
// It never inspects or rewrites the argument vector it is handed.
package trainer
