package preflight

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"reidpipe/internal/config"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestRunAll_NilConfig(t *testing.T) {
	results := RunAll(context.Background(), nil)
	if results != nil {
		t.Fatal("expected nil results for nil config")
	}
}

func TestRunAll_StubbedEnvironment(t *testing.T) {
	binDir := t.TempDir()
	script := []byte("#!/bin/sh\nexit 0\n")
	trainer := filepath.Join(binDir, "reid-train")
	extractor := filepath.Join(binDir, "reid-extract")
	if err := os.WriteFile(trainer, script, 0o755); err != nil {
		t.Fatalf("write trainer stub: %v", err)
	}
	if err := os.WriteFile(extractor, script, 0o755); err != nil {
		t.Fatalf("write extractor stub: %v", err)
	}

	cfg := config.Default()
	cfg.Paths.LogsDir = t.TempDir()
	cfg.Paths.StateDir = t.TempDir()
	cfg.Trainer.Binary = trainer
	cfg.Extractor.Binary = extractor
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}

	results := RunAll(context.Background(), &cfg)
	if len(results) != 5 {
		t.Fatalf("expected 5 results, got %d: %#v", len(results), results)
	}
	for _, r := range results {
		if !r.Passed {
			t.Errorf("check %q failed: %s", r.Name, r.Detail)
		}
	}
	if failed := Failures(results); len(failed) != 0 {
		t.Fatalf("expected no failures, got %#v", failed)
	}
}

func TestRunAll_ReportsMissingCollaborator(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.LogsDir = t.TempDir()
	cfg.Paths.StateDir = t.TempDir()
	cfg.Trainer.Binary = "clearly-not-present-trainer"
	cfg.Extractor.Binary = "clearly-not-present-extractor"
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}

	results := RunAll(context.Background(), &cfg)
	failed := Failures(results)
	if len(failed) != 2 {
		t.Fatalf("expected 2 failures, got %#v", failed)
	}
	for _, r := range failed {
		if r.Detail == "" {
			t.Errorf("check %q missing detail", r.Name)
		}
	}
}

func TestCheckSystemDepsOptionalNeverFails(t *testing.T) {
	binDir := t.TempDir()
	script := []byte("#!/bin/sh\nexit 0\n")
	trainer := filepath.Join(binDir, "reid-train")
	extractor := filepath.Join(binDir, "reid-extract")
	if err := os.WriteFile(trainer, script, 0o755); err != nil {
		t.Fatalf("write trainer stub: %v", err)
	}
	if err := os.WriteFile(extractor, script, 0o755); err != nil {
		t.Fatalf("write extractor stub: %v", err)
	}

	cfg := config.Default()
	cfg.Trainer.Binary = trainer
	cfg.Extractor.Binary = extractor
	cfg.Devices.Visible = "0"
	t.Setenv("PATH", binDir)

	results := CheckSystemDeps(context.Background(), &cfg)
	if len(results) != 3 {
		t.Fatalf("expected 3 results with devices configured, got %d", len(results))
	}
	for _, r := range results {
		if !r.Passed {
			t.Errorf("check %q should not fail: %s", r.Name, r.Detail)
		}
	}
}

func TestDeviceDetail(t *testing.T) {
	if got := (DeviceProbe{}).DeviceDetail(); got != "No accelerators detected" {
		t.Fatalf("unexpected empty-probe detail: %q", got)
	}
	probe := DeviceProbe{Detected: true, Count: 2, Names: []string{"A100", "A100"}}
	if got := probe.DeviceDetail(); got != "2 accelerators (A100, A100)" {
		t.Fatalf("unexpected detail: %q", got)
	}
}
