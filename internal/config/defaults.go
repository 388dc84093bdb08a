package config

const (
	defaultLogsDir                 = "logs"
	defaultStateDir                = "~/.local/share/reidpipe"
	defaultArch                    = "pcb_new"
	defaultLabel                   = "basis"
	defaultTrainerBinary           = "reid-train"
	defaultExtractorBinary         = "reid-extract"
	defaultExtractorBatchSize      = 64
	defaultDeviceEnv               = "CUDA_VISIBLE_DEVICES"
	defaultLogFormat               = "auto"
	defaultLogLevel                = "info"
	defaultTrainerTimeoutSeconds   = 0
	defaultExtractorTimeoutSeconds = 0
)

// defaultExtractions is the standard stage plan: one extraction per dataset
// subset, no time-window restriction.
func defaultExtractions() []Extraction {
	return []Extraction{
		{Subset: "gt_test"},
		{Subset: "detections"},
		{Subset: "gt_all"},
	}
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			LogsDir:  defaultLogsDir,
			StateDir: defaultStateDir,
		},
		Experiment: Experiment{
			Arch:  defaultArch,
			Label: defaultLabel,
		},
		Trainer: Trainer{
			Binary:         defaultTrainerBinary,
			TimeoutSeconds: defaultTrainerTimeoutSeconds,
		},
		Extractor: Extractor{
			Binary:         defaultExtractorBinary,
			BatchSize:      defaultExtractorBatchSize,
			TimeoutSeconds: defaultExtractorTimeoutSeconds,
		},
		Devices: Devices{
			Env: defaultDeviceEnv,
		},
		Pipeline: Pipeline{
			Extractions: defaultExtractions(),
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
