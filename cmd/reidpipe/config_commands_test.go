package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestConfigInitAndValidate(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"config", "validate"}, env.configPath)
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "Configuration valid")
	requireContains(t, out, "reid-train")

	tmp := t.TempDir()
	target := filepath.Join(tmp, "config.toml")
	out, _, err = runCLI(t, []string{"config", "init", "--path", target}, env.configPath)
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")

	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file at %s: %v", target, err)
	}

	_, _, err = runCLI(t, []string{"config", "init", "--path", target}, env.configPath)
	if err == nil {
		t.Fatal("expected config init to refuse overwriting")
	}
	requireContains(t, err.Error(), "already exists")

	out, _, err = runCLI(t, []string{"config", "init", "--path", target, "--overwrite"}, env.configPath)
	if err != nil {
		t.Fatalf("config init --overwrite: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")
}

func TestConfigPath(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"config", "path"}, env.configPath)
	if err != nil {
		t.Fatalf("config path: %v", err)
	}
	if !strings.Contains(out, env.configPath) {
		t.Fatalf("expected resolved path %s in output %q", env.configPath, out)
	}
}

func TestConfigValidateDefaultsWhenFileMissing(t *testing.T) {
	setupCLITestEnv(t)
	t.Chdir(t.TempDir())

	missing := filepath.Join(t.TempDir(), "nope.toml")
	out, _, err := runCLI(t, []string{"config", "validate"}, missing)
	if err != nil {
		t.Fatalf("config validate with missing file: %v", err)
	}
	requireContains(t, out, "defaults were used")
}
