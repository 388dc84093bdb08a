package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"reidpipe/internal/config"
)

func TestLoadDefaultsAndExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantState := filepath.Join(tempHome, ".local", "share", "reidpipe")
	if cfg.Paths.StateDir != wantState {
		t.Fatalf("unexpected state dir: got %q want %q", cfg.Paths.StateDir, wantState)
	}
	if !filepath.IsAbs(cfg.Paths.LogsDir) {
		t.Fatalf("expected logs dir expanded to absolute, got %q", cfg.Paths.LogsDir)
	}
	if cfg.Trainer.Binary != "reid-train" {
		t.Fatalf("unexpected trainer binary: %q", cfg.Trainer.Binary)
	}
	if cfg.Extractor.Binary != "reid-extract" {
		t.Fatalf("unexpected extractor binary: %q", cfg.Extractor.Binary)
	}
	if cfg.Extractor.BatchSize != 64 {
		t.Fatalf("unexpected batch size: %d", cfg.Extractor.BatchSize)
	}
	if cfg.Devices.Env != "CUDA_VISIBLE_DEVICES" {
		t.Fatalf("unexpected device env var: %q", cfg.Devices.Env)
	}
	if cfg.Logging.Format != "auto" {
		t.Fatalf("unexpected log format: %q", cfg.Logging.Format)
	}
	if len(cfg.Pipeline.Extractions) != 3 {
		t.Fatalf("expected 3 default extractions, got %d", len(cfg.Pipeline.Extractions))
	}
	if cfg.Pipeline.MaxParallel != 1 {
		t.Fatalf("expected max_parallel 1 without visible devices, got %d", cfg.Pipeline.MaxParallel)
	}
}

func TestLoadParsesFileAndDerivesParallelism(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[paths]
logs_dir = "` + filepath.Join(dir, "logs") + `"
state_dir = "` + filepath.Join(dir, "state") + `"

[trainer]
binary = "train.py"
timeout_seconds = 7200

[extractor]
batch_size = 128

[devices]
visible = "0, 1,2"

[pipeline]
[[pipeline.extractions]]
subset = "GT_Test"
[[pipeline.extractions]]
subset = "gt_all"
window = "trainval"

[logging]
format = "json"
level = "debug"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != path {
		t.Fatalf("unexpected resolution: exists=%v path=%q", exists, resolved)
	}
	if cfg.Trainer.Binary != "train.py" {
		t.Fatalf("unexpected trainer binary: %q", cfg.Trainer.Binary)
	}
	if cfg.Trainer.TimeoutSeconds != 7200 {
		t.Fatalf("unexpected trainer timeout: %d", cfg.Trainer.TimeoutSeconds)
	}
	if cfg.Extractor.BatchSize != 128 {
		t.Fatalf("unexpected batch size: %d", cfg.Extractor.BatchSize)
	}
	if got := cfg.DeviceCount(); got != 3 {
		t.Fatalf("expected 3 visible devices, got %d", got)
	}
	if cfg.Pipeline.MaxParallel != 3 {
		t.Fatalf("expected max_parallel derived from devices, got %d", cfg.Pipeline.MaxParallel)
	}
	if cfg.Pipeline.Extractions[0].Subset != "gt_test" {
		t.Fatalf("expected subset lowered, got %q", cfg.Pipeline.Extractions[0].Subset)
	}
	if cfg.Pipeline.Extractions[1].Window != "trainval" {
		t.Fatalf("expected window preserved, got %q", cfg.Pipeline.Extractions[1].Window)
	}
	if cfg.Logging.Format != "json" || cfg.Logging.Level != "debug" {
		t.Fatalf("unexpected logging config: %+v", cfg.Logging)
	}
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	cases := []struct {
		name    string
		content string
		wantMsg string
	}{
		{
			name: "unknown subset",
			content: `
[[pipeline.extractions]]
subset = "query"
`,
			wantMsg: "unknown subset",
		},
		{
			name: "duplicate subset",
			content: `
[[pipeline.extractions]]
subset = "gt_test"
[[pipeline.extractions]]
subset = "gt_test"
`,
			wantMsg: "duplicate subset",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.toml")
			if err := os.WriteFile(path, []byte(tc.content), 0o644); err != nil {
				t.Fatalf("write config: %v", err)
			}
			_, _, _, err := config.Load(path)
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.wantMsg) {
				t.Fatalf("expected error containing %q, got %q", tc.wantMsg, err.Error())
			}
		})
	}
}

func TestEnsureDirectoriesCreatesStateTree(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Paths.LogsDir = filepath.Join(dir, "logs")
	cfg.Paths.StateDir = filepath.Join(dir, "state")

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	for _, path := range []string{cfg.Paths.StateDir, cfg.RunLogDir(), cfg.Paths.LogsDir} {
		info, err := os.Stat(path)
		if err != nil || !info.IsDir() {
			t.Fatalf("expected directory at %s: %v", path, err)
		}
	}
}

func TestCreateSampleRoundTrips(t *testing.T) {
	target := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(target); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	data, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	if !strings.Contains(string(data), "[trainer]") {
		t.Fatalf("sample missing trainer section:\n%s", data)
	}
	// The sample must itself load cleanly.
	if _, _, _, err := config.Load(target); err != nil {
		t.Fatalf("sample config does not load: %v", err)
	}
}

func TestExpandPathResolvesTilde(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	got, err := config.ExpandPath("~/experiments/logs")
	if err != nil {
		t.Fatalf("ExpandPath: %v", err)
	}
	want := filepath.Join(tempHome, "experiments", "logs")
	if got != want {
		t.Fatalf("unexpected expansion: got %q want %q", got, want)
	}
}
