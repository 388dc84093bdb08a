package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"reidpipe/internal/config"
	"reidpipe/internal/testsupport"
)

type cliTestEnv struct {
	cfg        *config.Config
	configPath string
	baseDir    string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	base := t.TempDir()
	homeDir := filepath.Join(base, "home")
	if err := os.MkdirAll(homeDir, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", homeDir)

	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries())

	configPath := filepath.Join(homeDir, ".config", "reidpipe", "config.toml")
	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		t.Fatalf("mkdir config dir: %v", err)
	}
	writeTestConfig(t, configPath, cfg)

	return &cliTestEnv{
		cfg:        cfg,
		configPath: configPath,
		baseDir:    base,
	}
}

// stubBinary replaces one of the stubbed collaborator scripts with a custom
// shell body.
func (e *cliTestEnv) stubBinary(t *testing.T, name, script string) {
	t.Helper()
	path := filepath.Join(testsupport.BaseDir(e.cfg), "bin", name)
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatalf("write stub %s: %v", name, err)
	}
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	if configPath != "" {
		args = append([]string{"--config", configPath}, args...)
	}
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	content := fmt.Sprintf(
		"[paths]\nlogs_dir = %q\nstate_dir = %q\n\n[trainer]\nbinary = %q\n\n[extractor]\nbinary = %q\nbatch_size = %d\n\n[pipeline]\nmax_parallel = %d\n\n[logging]\nformat = \"json\"\nlevel = \"error\"\n",
		cfg.Paths.LogsDir,
		cfg.Paths.StateDir,
		cfg.Trainer.Binary,
		cfg.Extractor.Binary,
		cfg.Extractor.BatchSize,
		cfg.Pipeline.MaxParallel,
	)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
