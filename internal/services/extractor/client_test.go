package extractor_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"reidpipe/internal/pipeline"
	"reidpipe/internal/services"
	"reidpipe/internal/services/extractor"
)

func TestNewRequiresBinary(t *testing.T) {
	if _, err := extractor.New("", 0); err == nil {
		t.Fatal("expected error for empty binary")
	}
}

func TestExtractRequiresCheckpoint(t *testing.T) {
	client, err := extractor.New("reid-extract", 0)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	err = client.Extract(context.Background(), pipeline.Invocation{Stage: "extract_gt_test"})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestExtractPassesInvocationVerbatim(t *testing.T) {
	var gotBinary string
	var gotArgs []string
	var gotEnv []string
	client, err := extractor.New("reid-extract", 0, extractor.WithCommandRunner(
		func(ctx context.Context, binary string, args []string, env []string) error {
			gotBinary = binary
			gotArgs = append([]string(nil), args...)
			gotEnv = append([]string(nil), env...)
			return nil
		}))
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	inv := pipeline.Invocation{
		Stage:        "extract_gt_test",
		Collaborator: pipeline.CollaboratorExtractor,
		Args:         []string{"--arch", "pcb_new", "--subset", "gt_test"},
		Env:          []string{"CUDA_VISIBLE_DEVICES=1"},
		Checkpoint:   "/logs/model_best.pth.tar",
	}
	if err := client.Extract(context.Background(), inv); err != nil {
		t.Fatalf("Extract returned error: %v", err)
	}
	if gotBinary != "reid-extract" {
		t.Fatalf("unexpected binary: %q", gotBinary)
	}
	if strings.Join(gotArgs, " ") != strings.Join(inv.Args, " ") {
		t.Fatalf("args not passed through verbatim: got %v want %v", gotArgs, inv.Args)
	}
	if strings.Join(gotEnv, " ") != strings.Join(inv.Env, " ") {
		t.Fatalf("env not passed through verbatim: got %v want %v", gotEnv, inv.Env)
	}
}

func TestExtractPropagatesRunnerError(t *testing.T) {
	client, err := extractor.New("reid-extract", 0, extractor.WithCommandRunner(
		func(ctx context.Context, binary string, args []string, env []string) error {
			return errors.New("boom")
		}))
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	err = client.Extract(context.Background(), pipeline.Invocation{
		Stage:      "extract_gt_test",
		Checkpoint: "/logs/model_best.pth.tar",
	})
	if err == nil || err.Error() != "boom" {
		t.Fatalf("expected runner error verbatim, got %v", err)
	}
}

func TestExtractSurfacesRawExitStatus(t *testing.T) {
	client, err := extractor.New("sh", 0)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	err = client.Extract(context.Background(), pipeline.Invocation{
		Stage:      "extract_gt_test",
		Args:       []string{"-c", "echo failing >&2; exit 7"},
		Checkpoint: "/logs/model_best.pth.tar",
	})
	if err == nil {
		t.Fatal("expected error from failing process")
	}
	if got := services.ExitStatus(err); got != 7 {
		t.Fatalf("expected exit status 7, got %d (%v)", got, err)
	}
	if !strings.Contains(err.Error(), "failing") {
		t.Fatalf("expected combined output tail in error, got %v", err)
	}
}
