package config

import (
	"errors"
	"fmt"
)

var validSubsets = map[string]struct{}{
	"gt_test":    {},
	"detections": {},
	"gt_all":     {},
}

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateCollaborators(); err != nil {
		return err
	}
	if err := c.validateDevices(); err != nil {
		return err
	}
	if err := c.validatePipeline(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if c.Paths.LogsDir == "" {
		return errors.New("paths.logs_dir must be set")
	}
	if c.Paths.StateDir == "" {
		return errors.New("paths.state_dir must be set")
	}
	return nil
}

func (c *Config) validateCollaborators() error {
	if c.Trainer.Binary == "" {
		return errors.New("trainer.binary must be set")
	}
	if c.Extractor.Binary == "" {
		return errors.New("extractor.binary must be set")
	}
	if c.Extractor.BatchSize <= 0 {
		return errors.New("extractor.batch_size must be positive")
	}
	return nil
}

func (c *Config) validateDevices() error {
	if c.Devices.Env == "" {
		return errors.New("devices.env must name the accelerator-visibility variable")
	}
	return nil
}

func (c *Config) validatePipeline() error {
	if c.Pipeline.MaxParallel <= 0 {
		return errors.New("pipeline.max_parallel must be positive")
	}
	if len(c.Pipeline.Extractions) == 0 {
		return errors.New("pipeline.extractions must declare at least one stage")
	}
	seen := make(map[string]struct{}, len(c.Pipeline.Extractions))
	for _, extraction := range c.Pipeline.Extractions {
		if _, ok := validSubsets[extraction.Subset]; !ok {
			return fmt.Errorf("pipeline.extractions: unknown subset %q (expected gt_test, detections, or gt_all)", extraction.Subset)
		}
		if _, dup := seen[extraction.Subset]; dup {
			return fmt.Errorf("pipeline.extractions: duplicate subset %q", extraction.Subset)
		}
		seen[extraction.Subset] = struct{}{}
	}
	return nil
}
