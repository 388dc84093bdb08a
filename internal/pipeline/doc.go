// Package pipeline declares the experiment stage graph and executes it
// against the external collaborators.
//
// A Graph is the explicit description of one pipeline run: a single train
// stage at the root and any number of extraction stages consuming its
// checkpoint. Every stage declares its own feature dimensionality and output
// layer so the agreement between an extraction and its upstream train stage
// is checked as data, before any process launches, instead of discovered as a
// shape error deep inside a collaborator.
//
// Resolve turns a stage plus the experiment configuration into a complete,
// deterministic launch plan (collaborator, argument vector, environment
// additions, checkpoint paths). The Runner drives the graph in dependency
// order: train first, then extractions concurrently up to a bound, with
// failures isolated per stage and never retried. Artifacts flow between
// stages only through the returned map; run history persistence is delegated
// to an Observer.
//
// Add new stage kinds by extending Kind, teaching NewGraph the structural
// rules, and giving Resolve an argument builder; this package is the
// authoritative home for stage sequencing and configuration propagation.
package pipeline
