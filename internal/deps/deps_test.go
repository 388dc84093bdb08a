package deps

import (
	"os"
	"path/filepath"
	"testing"

	"reidpipe/internal/config"
)

func TestCheckBinaries(t *testing.T) {
	binDir := t.TempDir()
	present := filepath.Join(binDir, "present")
	script := []byte("#!/bin/sh\nexit 0\n")
	if err := os.WriteFile(present, script, 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	reqs := []Requirement{
		{Name: "Present", Command: present},
		{Name: "Missing", Command: "clearly-not-present-binary"},
	}

	results := CheckBinaries(reqs)
	if len(results) != len(reqs) {
		t.Fatalf("expected %d results, got %d", len(reqs), len(results))
	}

	if !results[0].Available {
		t.Fatalf("expected first requirement to be available, got %#v", results[0])
	}

	if results[1].Available {
		t.Fatalf("expected missing binary to be unavailable")
	}
	if results[1].Detail == "" {
		t.Fatalf("expected detail message for missing binary")
	}

	if results[1].Command != "clearly-not-present-binary" {
		t.Fatalf("unexpected command recorded: %s", results[1].Command)
	}

	if results[0].Detail != "" {
		t.Fatalf("unexpected detail for available dependency: %s", results[0].Detail)
	}
}

func TestCheckBinariesUnconfiguredCommand(t *testing.T) {
	results := CheckBinaries([]Requirement{{Name: "Empty", Command: "  "}})
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].Available {
		t.Fatal("expected unconfigured command to be unavailable")
	}
	if results[0].Detail != "command not configured" {
		t.Fatalf("unexpected detail: %s", results[0].Detail)
	}
}

func TestCollaboratorRequirements(t *testing.T) {
	cfg := config.Default()
	cfg.Trainer.Binary = "reid-train"
	cfg.Extractor.Binary = "reid-extract"

	reqs := CollaboratorRequirements(&cfg)
	if len(reqs) != 2 {
		t.Fatalf("expected 2 requirements without devices, got %d", len(reqs))
	}
	if reqs[0].Command != "reid-train" || reqs[1].Command != "reid-extract" {
		t.Fatalf("unexpected commands: %#v", reqs)
	}

	cfg.Devices.Visible = "0,1"
	reqs = CollaboratorRequirements(&cfg)
	if len(reqs) != 3 {
		t.Fatalf("expected nvidia-smi requirement with devices, got %d", len(reqs))
	}
	if !reqs[2].Optional {
		t.Fatal("expected nvidia-smi to be optional")
	}
}
