package runstore

import "time"

// Status represents the lifecycle of a run or one of its stages.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusSkipped   Status = "skipped"
)

// Run represents one pipeline launch persisted in SQLite.
type Run struct {
	ID           string
	Variant      string
	Dataset      string
	ConfigJSON   string
	Status       Status
	ErrorMessage string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	FinishedAt   *time.Time
}

// StageRecord represents one stage execution within a run. ExitCode is nil
// until a collaborator reports a status; -1 marks launch failures and
// cancellation.
type StageRecord struct {
	RunID        string
	Stage        string
	Kind         string
	Subset       string
	Status       Status
	Artifact     string
	ExitCode     *int
	ErrorMessage string
	StartedAt    *time.Time
	FinishedAt   *time.Time
}
