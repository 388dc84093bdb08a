// Package experiment defines the immutable configuration record shared by
// every stage of a pipeline run and the checkpoint path conventions derived
// from it.
package experiment
