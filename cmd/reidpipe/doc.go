// Package main hosts the reidpipe CLI entrypoint and command graph.
//
// The Cobra-based command tree translates terminal invocations into pipeline
// runs, dry-run plans, run-history queries, environment preflight checks, and
// configuration scaffolding. It centralizes configuration resolution and
// structured logging setup so subcommands can focus on user experience
// instead of wiring.
//
// Keep this package lean: add new functionality by extending the internal
// packages first, then surface it through dedicated commands or flags here.
// That separation keeps the CLI declarative while the heavy lifting lives in
// the pipeline and experiment packages.
package main
