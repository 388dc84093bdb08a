package main

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"reidpipe/internal/pipeline"
	"reidpipe/internal/runstore"
	"reidpipe/internal/testsupport"
)

func seedRun(t *testing.T, env *cliTestEnv, id string) *runstore.Store {
	t.Helper()
	store := testsupport.MustOpenStore(t, env.cfg)
	exp := testsupport.Experiment()
	graph, err := pipeline.DefaultGraph(exp, []pipeline.ExtractionSpec{{Subset: pipeline.SubsetGTTest}})
	if err != nil {
		t.Fatalf("DefaultGraph: %v", err)
	}
	if _, err := store.CreateRun(context.Background(), id, exp, graph.Stages()); err != nil {
		t.Fatalf("CreateRun: %v", err)
	}
	return store
}

func TestCLIRunsListAndShow(t *testing.T) {
	env := setupCLITestEnv(t)
	store := seedRun(t, env, "aaaa-1111-2222")
	ctx := context.Background()

	trainStage := pipeline.Stage{Name: pipeline.StageTrain, Kind: pipeline.KindTrain}
	artifact := pipeline.Artifact{Stage: pipeline.StageTrain, Kind: pipeline.KindTrain, Path: "/logs/model_best.pth.tar"}
	if err := store.MarkStageCompleted(ctx, "aaaa-1111-2222", trainStage, artifact); err != nil {
		t.Fatalf("MarkStageCompleted: %v", err)
	}
	if err := store.FinishRun(ctx, "aaaa-1111-2222", nil); err != nil {
		t.Fatalf("FinishRun: %v", err)
	}

	out, _, err := runCLI(t, []string{"runs"}, env.configPath)
	if err != nil {
		t.Fatalf("runs: %v", err)
	}
	requireContains(t, out, "aaaa-111")
	requireContains(t, out, "Completed")
	requireContains(t, out, "duke_my_gt")

	out, _, err = runCLI(t, []string{"runs", "show", "aaaa"}, env.configPath)
	if err != nil {
		t.Fatalf("runs show: %v", err)
	}
	requireContains(t, out, "Run: aaaa-1111-2222")
	requireContains(t, out, "train")
	requireContains(t, out, "extract_gt_test")
	requireContains(t, out, "/logs/model_best.pth.tar")
}

func TestCLIRunsShowUnknownRun(t *testing.T) {
	env := setupCLITestEnv(t)
	seedRun(t, env, "aaaa-1111-2222")

	_, _, err := runCLI(t, []string{"runs", "show", "zzzz"}, env.configPath)
	if err == nil {
		t.Fatal("expected runs show to fail for unknown id")
	}
	requireContains(t, err.Error(), "no run matches")
}

func TestCLIRunsShowAmbiguousPrefix(t *testing.T) {
	env := setupCLITestEnv(t)
	store := seedRun(t, env, "aaaa-1111-2222")
	exp := testsupport.Experiment()
	if _, err := store.CreateRun(context.Background(), "aabb-3333-4444", exp, nil); err != nil {
		t.Fatalf("CreateRun second: %v", err)
	}

	_, _, err := runCLI(t, []string{"runs", "show", "aa"}, env.configPath)
	if err == nil {
		t.Fatal("expected runs show to fail for ambiguous prefix")
	}
	requireContains(t, err.Error(), "ambiguous")
}

func TestCLIRunsJSON(t *testing.T) {
	env := setupCLITestEnv(t)
	store := seedRun(t, env, "aaaa-1111-2222")
	if err := store.FinishRun(context.Background(), "aaaa-1111-2222", errors.New("boom")); err != nil {
		t.Fatalf("FinishRun: %v", err)
	}

	out, _, err := runCLI(t, []string{"runs", "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("runs --json: %v", err)
	}
	var entries []runListEntry
	if err := json.Unmarshal([]byte(out), &entries); err != nil {
		t.Fatalf("parse runs JSON: %v\noutput: %s", err, out)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 run, got %d", len(entries))
	}
	if entries[0].ID != "aaaa-1111-2222" || entries[0].Status != string(runstore.StatusFailed) {
		t.Fatalf("unexpected entry: %+v", entries[0])
	}
	if entries[0].Error != "boom" {
		t.Fatalf("expected error message in JSON, got %q", entries[0].Error)
	}
}

func TestCLIRunsClear(t *testing.T) {
	env := setupCLITestEnv(t)
	seedRun(t, env, "aaaa-1111-2222")

	out, _, err := runCLI(t, []string{"runs", "clear"}, env.configPath)
	if err != nil {
		t.Fatalf("runs clear: %v", err)
	}
	requireContains(t, out, "Cleared 1 runs")

	out, _, err = runCLI(t, []string{"runs"}, env.configPath)
	if err != nil {
		t.Fatalf("runs after clear: %v", err)
	}
	requireContains(t, out, "No runs recorded")
}
