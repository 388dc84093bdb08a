package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"reidpipe/internal/experiment"
)

// Experiment returns a valid experiment configuration for tests.
func Experiment() experiment.Config {
	return experiment.Config{
		Dataset:      "duke_my_gt",
		Split:        0,
		Height:       384,
		Features:     64,
		OutputLayer:  "fc",
		Arch:         "pcb_new",
		Label:        "basis",
		SamplingRate: 1,
	}
}

// WriteCheckpoint places a best-model checkpoint file in dir and returns its
// path. The directory is created when missing.
func WriteCheckpoint(t testing.TB, dir string) string {
	t.Helper()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir checkpoint dir: %v", err)
	}
	path := filepath.Join(dir, "model_best.pth.tar")
	if err := os.WriteFile(path, []byte("checkpoint"), 0o644); err != nil {
		t.Fatalf("write checkpoint %s: %v", path, err)
	}
	return path
}
