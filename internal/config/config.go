package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	// LogsDir is the root of the checkpoint tree collaborators write into.
	LogsDir string `toml:"logs_dir"`
	// StateDir holds driver-owned state: the run lock, the run history
	// database, and driver log files.
	StateDir string `toml:"state_dir"`
}

// Trainer contains configuration for the training collaborator.
type Trainer struct {
	Binary         string `toml:"binary"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Extractor contains configuration for the feature-extraction collaborator.
type Extractor struct {
	Binary         string `toml:"binary"`
	BatchSize      int    `toml:"batch_size"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Devices contains accelerator visibility configuration. The variable named
// by Env is appended to collaborator environments when Visible is set;
// otherwise children inherit the parent environment untouched.
type Devices struct {
	Env     string `toml:"env"`
	Visible string `toml:"visible"`
}

// Extraction declares one extraction stage of the default pipeline.
type Extraction struct {
	Subset string `toml:"subset"`
	Window string `toml:"window"`
}

// Pipeline contains the stage plan and execution bounds.
type Pipeline struct {
	// MaxParallel bounds concurrent extraction stages. Zero derives the
	// bound from the number of visible devices, falling back to 1.
	MaxParallel int          `toml:"max_parallel"`
	Extractions []Extraction `toml:"extractions"`
}

// Experiment contains variant defaults the CLI flags may override.
type Experiment struct {
	Arch  string `toml:"arch"`
	Label string `toml:"label"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for reidpipe.
//
// Configuration sections by subsystem:
//   - Paths: checkpoint tree root and driver state directory
//   - Experiment: variant defaults (architecture tag, variant label)
//   - Trainer: training collaborator binary and timeout
//   - Extractor: feature-extraction collaborator binary, batch size, timeout
//   - Devices: accelerator-visibility variable handed to collaborators
//   - Pipeline: extraction stage plan and parallelism bound
//   - Logging: log format and level
type Config struct {
	Paths      Paths      `toml:"paths"`
	Experiment Experiment `toml:"experiment"`
	Trainer    Trainer    `toml:"trainer"`
	Extractor  Extractor  `toml:"extractor"`
	Devices    Devices    `toml:"devices"`
	Pipeline   Pipeline   `toml:"pipeline"`
	Logging    Logging    `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/reidpipe/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("reidpipe.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the directories the driver owns. The logs
// directory is created on a best-effort basis so planning commands work when
// the checkpoint volume is temporarily unavailable.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.StateDir, c.RunLogDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	if strings.TrimSpace(c.Paths.LogsDir) != "" {
		_ = os.MkdirAll(c.Paths.LogsDir, 0o755)
	}
	return nil
}

// RunLogDir returns the directory driver log files are written into.
func (c *Config) RunLogDir() string {
	return filepath.Join(c.Paths.StateDir, "logs")
}

// RunDBPath returns the run history database location.
func (c *Config) RunDBPath() string {
	return filepath.Join(c.Paths.StateDir, "runs.db")
}

// LockPath returns the single-run lock file location.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.StateDir, "reidpipe.lock")
}

// TrainerBinary returns the training collaborator executable name.
func (c *Config) TrainerBinary() string {
	return strings.TrimSpace(c.Trainer.Binary)
}

// ExtractorBinary returns the feature-extraction collaborator executable name.
func (c *Config) ExtractorBinary() string {
	return strings.TrimSpace(c.Extractor.Binary)
}

// DeviceCount reports how many accelerator indices the visible list names.
func (c *Config) DeviceCount() int {
	visible := strings.TrimSpace(c.Devices.Visible)
	if visible == "" {
		return 0
	}
	count := 0
	for _, part := range strings.Split(visible, ",") {
		if strings.TrimSpace(part) != "" {
			count++
		}
	}
	return count
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
