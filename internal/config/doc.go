// Package config loads, normalizes, and validates reidpipe configuration
// data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and derives dependent defaults such as the
// extraction parallelism bound. The Config type centralizes every knob the
// pipeline driver needs: the checkpoint tree root, collaborator binaries and
// timeouts, accelerator visibility, and the extraction stage plan.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
