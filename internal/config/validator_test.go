package config

import "testing"

func minimalValidConfig() *Config {
	cfg := &Config{
		Pipeline: PipelineConfig{
			Upstream:       "http://localhost:9000",
			SignaturesFile: "signatures.yml",
			JournalPath:    "journal.log",
			Thresholds:     ThresholdsConfig{VeryHigh: 0.9, High: 0.75, Medium: 0.5, Low: 0.25},
		},
		ControlPlane: ControlPlaneConfig{DBPath: "vigil.db"},
		Analysis:     AnalysisConfig{Provider: "mock"},
	}
	cfg.SetDefaults()
	return cfg
}

func TestValidateValidConfig(t *testing.T) {
	t.Parallel()
	if err := minimalValidConfig().Validate(); err != nil {
		t.Errorf("Validate() unexpected error: %v", err)
	}
}

func TestValidateRejectsMissingUpstream(t *testing.T) {
	t.Parallel()
	cfg := minimalValidConfig()
	cfg.Pipeline.Upstream = ""
	if err := cfg.Validate(); err == nil {
		t.Error("Validate() = nil, want error for missing upstream")
	}
}

func TestValidateRejectsBadAnalysisProvider(t *testing.T) {
	t.Parallel()
	cfg := minimalValidConfig()
	cfg.Analysis.Provider = "carrier-pigeon"
	if err := cfg.Validate(); err == nil {
		t.Error("Validate() = nil, want error for unknown analysis provider")
	}
}

func TestValidateRejectsOutOfOrderThresholds(t *testing.T) {
	t.Parallel()
	cfg := minimalValidConfig()
	cfg.Pipeline.Thresholds = ThresholdsConfig{VeryHigh: 0.5, High: 0.75, Medium: 0.5, Low: 0.25}
	if err := cfg.Validate(); err == nil {
		t.Error("Validate() = nil, want error for very_high < high")
	}
}

func TestValidateRejectsThresholdOutOfRange(t *testing.T) {
	t.Parallel()
	cfg := minimalValidConfig()
	cfg.Pipeline.Thresholds.Low = -0.1
	if err := cfg.Validate(); err == nil {
		t.Error("Validate() = nil, want error for threshold below 0")
	}
}
