package config

// DefaultConfig returns the built-in defaults. Stages are always supplied by
// the user's config files.
func DefaultConfig() *PipelineConfig {
	return &PipelineConfig{
		Name:  "pipeline",
		Slots: 4,
		Grid: GridConfig{
			Command: []string{"qsub", "-sync", "y", "-S", "/bin/bash"},
		},
	}
}
