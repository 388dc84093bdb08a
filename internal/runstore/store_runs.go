package runstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"reidpipe/internal/experiment"
	"reidpipe/internal/pipeline"
)

const runColumns = "id, variant, dataset, config_json, status, error_message, created_at, updated_at, finished_at"

const stageColumns = "run_id, stage, kind, subset, status, artifact, exit_code, error_message, started_at, finished_at"

// CreateRun inserts a run record in the running state plus a pending stage row
// for every stage the run will attempt.
func (s *Store) CreateRun(ctx context.Context, id string, exp experiment.Config, stages []pipeline.Stage) (*Run, error) {
	if strings.TrimSpace(id) == "" {
		return nil, errors.New("run id required")
	}
	configJSON, err := json.Marshal(exp)
	if err != nil {
		return nil, fmt.Errorf("marshal experiment config: %w", err)
	}
	timestamp := time.Now().UTC().Format(time.RFC3339Nano)

	if _, err := s.execWithRetry(ctx,
		`INSERT INTO runs (id, variant, dataset, config_json, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, exp.Variant(), exp.Dataset, string(configJSON), StatusRunning, timestamp, timestamp,
	); err != nil {
		return nil, fmt.Errorf("insert run: %w", err)
	}

	for _, stage := range stages {
		if _, err := s.execWithRetry(ctx,
			`INSERT INTO run_stages (run_id, stage, kind, subset, status)
			 VALUES (?, ?, ?, ?, ?)`,
			id, stage.Name, string(stage.Kind), nullableString(string(stage.Subset)), StatusPending,
		); err != nil {
			return nil, fmt.Errorf("insert stage %s: %w", stage.Name, err)
		}
	}

	return s.RunByID(ctx, id)
}

// FinishRun records the run outcome. A nil error marks the run completed.
func (s *Store) FinishRun(ctx context.Context, id string, runErr error) error {
	status := StatusCompleted
	var message any
	if runErr != nil {
		status = StatusFailed
		message = runErr.Error()
	}
	timestamp := time.Now().UTC().Format(time.RFC3339Nano)
	if _, err := s.execWithRetry(ctx,
		`UPDATE runs SET status = ?, error_message = ?, updated_at = ?, finished_at = ? WHERE id = ?`,
		status, message, timestamp, timestamp, id,
	); err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	return nil
}

// RunByID fetches a run by identifier or unique identifier prefix. It returns
// nil when no run matches and an error when a prefix is ambiguous.
func (s *Store) RunByID(ctx context.Context, idOrPrefix string) (*Run, error) {
	idOrPrefix = strings.TrimSpace(idOrPrefix)
	if idOrPrefix == "" {
		return nil, errors.New("run id required")
	}
	ctx = ensureContext(ctx)

	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, idOrPrefix)
	run, err := scanRun(row)
	if err == nil {
		return run, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get run: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs WHERE id LIKE ? ORDER BY created_at DESC LIMIT 2`,
		idOrPrefix+"%")
	if err != nil {
		return nil, fmt.Errorf("match run prefix: %w", err)
	}
	defer rows.Close()

	var matches []*Run
	for rows.Next() {
		match, scanErr := scanRun(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scan run: %w", scanErr)
		}
		matches = append(matches, match)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	switch len(matches) {
	case 0:
		return nil, nil
	case 1:
		return matches[0], nil
	default:
		return nil, fmt.Errorf("run id prefix %q is ambiguous", idOrPrefix)
	}
}

// ListRuns returns the most recent runs, newest first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ensureContext(ctx),
		`SELECT `+runColumns+` FROM runs ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, scanErr := scanRun(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scan run: %w", scanErr)
		}
		runs = append(runs, *run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// ClearRuns deletes all run history and reports how many runs were removed.
// Stage records cascade with their runs.
func (s *Store) ClearRuns(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM runs`)
	if err != nil {
		return 0, fmt.Errorf("clear runs: %w", err)
	}
	removed, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("count cleared runs: %w", err)
	}
	return removed, nil
}

// StagesForRun returns the stage records of one run, train stage first.
func (s *Store) StagesForRun(ctx context.Context, runID string) ([]StageRecord, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx),
		`SELECT `+stageColumns+` FROM run_stages WHERE run_id = ?
		 ORDER BY CASE kind WHEN 'train' THEN 0 ELSE 1 END, stage`, runID)
	if err != nil {
		return nil, fmt.Errorf("list stages: %w", err)
	}
	defer rows.Close()

	var records []StageRecord
	for rows.Next() {
		record, scanErr := scanStage(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scan stage: %w", scanErr)
		}
		records = append(records, *record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate stages: %w", err)
	}
	return records, nil
}

// MarkStageStarted transitions a stage to running.
func (s *Store) MarkStageStarted(ctx context.Context, runID string, stage pipeline.Stage) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	if _, err := s.execWithRetry(ctx,
		`INSERT INTO run_stages (run_id, stage, kind, subset, status, started_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(run_id, stage) DO UPDATE SET
		     status = excluded.status, started_at = excluded.started_at`,
		runID, stage.Name, string(stage.Kind), nullableString(string(stage.Subset)), StatusRunning, now,
	); err != nil {
		return fmt.Errorf("mark stage started: %w", err)
	}
	return nil
}

// MarkStageCompleted records a clean stage exit and its artifact, if any.
func (s *Store) MarkStageCompleted(ctx context.Context, runID string, stage pipeline.Stage, artifact pipeline.Artifact) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	if _, err := s.execWithRetry(ctx,
		`INSERT INTO run_stages (run_id, stage, kind, subset, status, artifact, finished_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(run_id, stage) DO UPDATE SET
		     status = excluded.status, artifact = excluded.artifact, finished_at = excluded.finished_at`,
		runID, stage.Name, string(stage.Kind), nullableString(string(stage.Subset)),
		StatusCompleted, nullableString(artifactText(artifact)), now,
	); err != nil {
		return fmt.Errorf("mark stage completed: %w", err)
	}
	return nil
}

// MarkStageFailed records a stage failure together with the collaborator's
// raw exit status when the error chain carries one.
func (s *Store) MarkStageFailed(ctx context.Context, runID string, stage pipeline.Stage, stageErr error) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	var exitCode any
	var procErr *pipeline.CollaboratorProcessError
	if errors.As(stageErr, &procErr) {
		exitCode = procErr.ExitCode
	}
	var message any
	if stageErr != nil {
		message = stageErr.Error()
	}
	if _, err := s.execWithRetry(ctx,
		`INSERT INTO run_stages (run_id, stage, kind, subset, status, exit_code, error_message, finished_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(run_id, stage) DO UPDATE SET
		     status = excluded.status, exit_code = excluded.exit_code,
		     error_message = excluded.error_message, finished_at = excluded.finished_at`,
		runID, stage.Name, string(stage.Kind), nullableString(string(stage.Subset)),
		StatusFailed, exitCode, message, now,
	); err != nil {
		return fmt.Errorf("mark stage failed: %w", err)
	}
	return nil
}

// MarkStageSkipped records a stage abandoned because its upstream failed.
func (s *Store) MarkStageSkipped(ctx context.Context, runID string, stage pipeline.Stage, reason error) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	var message any
	if reason != nil {
		message = reason.Error()
	}
	if _, err := s.execWithRetry(ctx,
		`INSERT INTO run_stages (run_id, stage, kind, subset, status, error_message, finished_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(run_id, stage) DO UPDATE SET
		     status = excluded.status, error_message = excluded.error_message, finished_at = excluded.finished_at`,
		runID, stage.Name, string(stage.Kind), nullableString(string(stage.Subset)),
		StatusSkipped, message, now,
	); err != nil {
		return fmt.Errorf("mark stage skipped: %w", err)
	}
	return nil
}

func artifactText(artifact pipeline.Artifact) string {
	if artifact.Path != "" {
		return artifact.Path
	}
	return artifact.Label
}

func scanRun(scanner interface{ Scan(dest ...any) error }) (*Run, error) {
	var (
		id          string
		variant     string
		dataset     string
		configJSON  sql.NullString
		statusStr   string
		errMessage  sql.NullString
		createdRaw  sql.NullString
		updatedRaw  sql.NullString
		finishedRaw sql.NullString
	)
	if err := scanner.Scan(&id, &variant, &dataset, &configJSON, &statusStr, &errMessage, &createdRaw, &updatedRaw, &finishedRaw); err != nil {
		return nil, err
	}

	run := &Run{
		ID:           id,
		Variant:      variant,
		Dataset:      dataset,
		ConfigJSON:   configJSON.String,
		Status:       Status(statusStr),
		ErrorMessage: errMessage.String,
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		run.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		run.UpdatedAt = updated
	}
	if finishedRaw.Valid {
		if finished, err := parseTimeString(finishedRaw.String); err == nil {
			run.FinishedAt = &finished
		}
	}
	return run, nil
}

func scanStage(scanner interface{ Scan(dest ...any) error }) (*StageRecord, error) {
	var (
		runID       string
		stage       string
		kind        string
		subset      sql.NullString
		statusStr   string
		artifact    sql.NullString
		exitCode    sql.NullInt64
		errMessage  sql.NullString
		startedRaw  sql.NullString
		finishedRaw sql.NullString
	)
	if err := scanner.Scan(&runID, &stage, &kind, &subset, &statusStr, &artifact, &exitCode, &errMessage, &startedRaw, &finishedRaw); err != nil {
		return nil, err
	}

	record := &StageRecord{
		RunID:        runID,
		Stage:        stage,
		Kind:         kind,
		Subset:       subset.String,
		Status:       Status(statusStr),
		Artifact:     artifact.String,
		ErrorMessage: errMessage.String,
	}
	if exitCode.Valid {
		code := int(exitCode.Int64)
		record.ExitCode = &code
	}
	if startedRaw.Valid {
		if started, err := parseTimeString(startedRaw.String); err == nil {
			record.StartedAt = &started
		}
	}
	if finishedRaw.Valid {
		if finished, err := parseTimeString(finishedRaw.String); err == nil {
			record.FinishedAt = &finished
		}
	}
	return record, nil
}
