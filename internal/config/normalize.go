package config

import (
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeExperiment()
	c.normalizeCollaborators()
	c.normalizeDevices()
	c.normalizePipeline()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.LogsDir) == "" {
		c.Paths.LogsDir = defaultLogsDir
	}
	if c.Paths.LogsDir, err = expandPath(c.Paths.LogsDir); err != nil {
		return fmt.Errorf("paths.logs_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeExperiment() {
	c.Experiment.Arch = strings.TrimSpace(c.Experiment.Arch)
	if c.Experiment.Arch == "" {
		c.Experiment.Arch = defaultArch
	}
	c.Experiment.Label = strings.TrimSpace(c.Experiment.Label)
	if c.Experiment.Label == "" {
		c.Experiment.Label = defaultLabel
	}
}

func (c *Config) normalizeCollaborators() {
	c.Trainer.Binary = strings.TrimSpace(c.Trainer.Binary)
	if c.Trainer.Binary == "" {
		c.Trainer.Binary = defaultTrainerBinary
	}
	if c.Trainer.TimeoutSeconds < 0 {
		c.Trainer.TimeoutSeconds = 0
	}
	c.Extractor.Binary = strings.TrimSpace(c.Extractor.Binary)
	if c.Extractor.Binary == "" {
		c.Extractor.Binary = defaultExtractorBinary
	}
	if c.Extractor.BatchSize <= 0 {
		c.Extractor.BatchSize = defaultExtractorBatchSize
	}
	if c.Extractor.TimeoutSeconds < 0 {
		c.Extractor.TimeoutSeconds = 0
	}
}

func (c *Config) normalizeDevices() {
	c.Devices.Env = strings.TrimSpace(c.Devices.Env)
	if c.Devices.Env == "" {
		c.Devices.Env = defaultDeviceEnv
	}
	c.Devices.Visible = strings.TrimSpace(c.Devices.Visible)
}

func (c *Config) normalizePipeline() {
	if len(c.Pipeline.Extractions) == 0 {
		c.Pipeline.Extractions = defaultExtractions()
	}
	for i := range c.Pipeline.Extractions {
		c.Pipeline.Extractions[i].Subset = strings.ToLower(strings.TrimSpace(c.Pipeline.Extractions[i].Subset))
		c.Pipeline.Extractions[i].Window = strings.TrimSpace(c.Pipeline.Extractions[i].Window)
	}
	if c.Pipeline.MaxParallel <= 0 {
		if count := c.DeviceCount(); count > 0 {
			c.Pipeline.MaxParallel = count
		} else {
			c.Pipeline.MaxParallel = 1
		}
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "console", "json", "auto":
	default:
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
