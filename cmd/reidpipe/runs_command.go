package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"reidpipe/internal/config"
	"reidpipe/internal/runstore"
)

var statusTitle = cases.Title(language.Und)

// runListEntry is the JSON shape of one run in `runs --json`.
type runListEntry struct {
	ID         string `json:"id"`
	Variant    string `json:"variant"`
	Dataset    string `json:"dataset"`
	Status     string `json:"status"`
	Error      string `json:"error,omitempty"`
	CreatedAt  string `json:"created_at"`
	FinishedAt string `json:"finished_at,omitempty"`
}

// runDetail is the JSON shape of `runs show --json`.
type runDetail struct {
	runListEntry
	Stages []stageDetail `json:"stages"`
}

type stageDetail struct {
	Stage      string `json:"stage"`
	Kind       string `json:"kind"`
	Subset     string `json:"subset,omitempty"`
	Status     string `json:"status"`
	ExitCode   *int   `json:"exit_code,omitempty"`
	Artifact   string `json:"artifact,omitempty"`
	Error      string `json:"error,omitempty"`
	StartedAt  string `json:"started_at,omitempty"`
	FinishedAt string `json:"finished_at,omitempty"`
}

func newRunsCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var asJSON bool

	runsCmd := &cobra.Command{
		Use:   "runs",
		Short: "Inspect pipeline run history",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *runstore.Store) error {
				return listRuns(cmd, store, limit, asJSON)
			})
		},
	}
	runsCmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of runs to list")
	runsCmd.Flags().BoolVar(&asJSON, "json", false, "Emit run history as JSON")

	runsCmd.AddCommand(newRunsShowCommand(ctx))
	runsCmd.AddCommand(newRunsClearCommand(ctx))
	return runsCmd
}

func listRuns(cmd *cobra.Command, store *runstore.Store, limit int, asJSON bool) error {
	runs, err := store.ListRuns(cmd.Context(), limit)
	if err != nil {
		return fmt.Errorf("list runs: %w", err)
	}

	if asJSON {
		entries := make([]runListEntry, 0, len(runs))
		for _, run := range runs {
			entries = append(entries, runEntry(run))
		}
		return writeJSON(cmd, entries)
	}

	out := cmd.OutOrStdout()
	if len(runs) == 0 {
		fmt.Fprintln(out, "No runs recorded")
		return nil
	}

	rows := make([][]string, 0, len(runs))
	for _, run := range runs {
		finished := "-"
		if run.FinishedAt != nil {
			finished = run.FinishedAt.Local().Format(time.RFC3339)
		}
		rows = append(rows, []string{
			shortID(run.ID),
			run.Variant,
			run.Dataset,
			statusTitle.String(string(run.Status)),
			run.CreatedAt.Local().Format(time.RFC3339),
			finished,
		})
	}
	fmt.Fprintln(out, renderTable(
		[]string{"Run", "Variant", "Dataset", "Status", "Started", "Finished"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignLeft},
	))
	return nil
}

func newRunsShowCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show one run with its stage outcomes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *runstore.Store) error {
				return showRun(cmd, store, args[0], asJSON)
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit the run as JSON")
	return cmd
}

func showRun(cmd *cobra.Command, store *runstore.Store, idOrPrefix string, asJSON bool) error {
	run, err := store.RunByID(cmd.Context(), strings.TrimSpace(idOrPrefix))
	if err != nil {
		return err
	}
	if run == nil {
		return fmt.Errorf("no run matches %q", idOrPrefix)
	}
	stages, err := store.StagesForRun(cmd.Context(), run.ID)
	if err != nil {
		return fmt.Errorf("load stages: %w", err)
	}

	if asJSON {
		detail := runDetail{runListEntry: runEntry(*run)}
		detail.Stages = make([]stageDetail, 0, len(stages))
		for _, stage := range stages {
			detail.Stages = append(detail.Stages, stageEntry(stage))
		}
		return writeJSON(cmd, detail)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Run: %s\n", run.ID)
	fmt.Fprintf(out, "Variant: %s\n", run.Variant)
	fmt.Fprintf(out, "Dataset: %s\n", run.Dataset)
	fmt.Fprintf(out, "Status: %s\n", statusTitle.String(string(run.Status)))
	fmt.Fprintf(out, "Started: %s\n", run.CreatedAt.Local().Format(time.RFC3339))
	if run.FinishedAt != nil {
		fmt.Fprintf(out, "Finished: %s\n", run.FinishedAt.Local().Format(time.RFC3339))
	}
	if run.ErrorMessage != "" {
		fmt.Fprintf(out, "Error: %s\n", run.ErrorMessage)
	}

	if len(stages) == 0 {
		fmt.Fprintln(out, "No stages recorded")
		return nil
	}

	rows := make([][]string, 0, len(stages))
	for _, stage := range stages {
		exit := "-"
		if stage.ExitCode != nil {
			exit = strconv.Itoa(*stage.ExitCode)
		}
		detail := stage.Artifact
		if stage.ErrorMessage != "" {
			detail = stage.ErrorMessage
		}
		rows = append(rows, []string{
			stage.Stage,
			stage.Kind,
			statusTitle.String(string(stage.Status)),
			exit,
			detail,
		})
	}
	fmt.Fprintln(out, renderTable(
		[]string{"Stage", "Kind", "Status", "Exit", "Artifact / Error"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
	))
	return nil
}

func newRunsClearCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete all recorded runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *runstore.Store) error {
				removed, err := store.ClearRuns(cmd.Context())
				if err != nil {
					return fmt.Errorf("clear runs: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d runs\n", removed)
				return nil
			})
		},
	}
}

func runEntry(run runstore.Run) runListEntry {
	entry := runListEntry{
		ID:        run.ID,
		Variant:   run.Variant,
		Dataset:   run.Dataset,
		Status:    string(run.Status),
		Error:     run.ErrorMessage,
		CreatedAt: run.CreatedAt.UTC().Format(time.RFC3339),
	}
	if run.FinishedAt != nil {
		entry.FinishedAt = run.FinishedAt.UTC().Format(time.RFC3339)
	}
	return entry
}

func stageEntry(stage runstore.StageRecord) stageDetail {
	detail := stageDetail{
		Stage:    stage.Stage,
		Kind:     stage.Kind,
		Subset:   stage.Subset,
		Status:   string(stage.Status),
		ExitCode: stage.ExitCode,
		Artifact: stage.Artifact,
		Error:    stage.ErrorMessage,
	}
	if stage.StartedAt != nil {
		detail.StartedAt = stage.StartedAt.UTC().Format(time.RFC3339)
	}
	if stage.FinishedAt != nil {
		detail.FinishedAt = stage.FinishedAt.UTC().Format(time.RFC3339)
	}
	return detail
}

// shortID abbreviates a run id for terminal output. Prefix lookups accept
// the abbreviated form.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
