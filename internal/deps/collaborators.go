package deps

import "reidpipe/internal/config"

// CollaboratorRequirements lists the external programs a pipeline run will
// execute for the given config. nvidia-smi is only listed when device
// visibility is configured, and never blocks a run on its own.
func CollaboratorRequirements(cfg *config.Config) []Requirement {
	if cfg == nil {
		return nil
	}
	requirements := []Requirement{
		{
			Name:        "Trainer",
			Command:     cfg.TrainerBinary(),
			Description: "Runs the training stage",
		},
		{
			Name:        "Extractor",
			Command:     cfg.ExtractorBinary(),
			Description: "Runs feature extraction stages",
		},
	}
	if cfg.Devices.Visible != "" {
		requirements = append(requirements, Requirement{
			Name:        "nvidia-smi",
			Command:     "nvidia-smi",
			Description: "Reports accelerator availability",
			Optional:    true,
		})
	}
	return requirements
}

// CheckCollaborators evaluates collaborator availability for the given config.
func CheckCollaborators(cfg *config.Config) []Status {
	return CheckBinaries(CollaboratorRequirements(cfg))
}
