// Package runstore persists pipeline run history in SQLite.
//
// The Store manages database connections, schema initialization, and the run
// and stage records the CLI's runs commands read. The Observer bridges the
// pipeline's stage lifecycle events into stage records; persistence failures
// there are logged and swallowed because run history must never fail a run.
//
// The database is an operator convenience rather than a source of truth: the
// checkpoint tree on disk remains authoritative. Schema changes bump the
// version in schema.go; users clear the database to adopt the new schema.
package runstore
