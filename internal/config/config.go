// Package config provides configuration types for Vigil.
//
// Vigil separates configuration into three concerns: the Detection Pipeline
// (the reverse proxy that inspects and forwards traffic), the Control Plane
// (the event store, admin API, and threat-intel/analysis integrations), and
// the ambient server/logging settings shared by both.
package config

// Config is the top-level configuration for a Vigil deployment.
type Config struct {
	Server      ServerConfig      `yaml:"server" mapstructure:"server"`
	Pipeline    PipelineConfig    `yaml:"pipeline" mapstructure:"pipeline"`
	ControlPlane ControlPlaneConfig `yaml:"control_plane" mapstructure:"control_plane"`
	ThreatIntel ThreatIntelConfig `yaml:"threat_intel" mapstructure:"threat_intel"`
	Analysis    AnalysisConfig    `yaml:"analysis" mapstructure:"analysis"`
	RateLimit   RateLimitConfig   `yaml:"rate_limit" mapstructure:"rate_limit"`
	DevMode     bool              `yaml:"dev_mode" mapstructure:"dev_mode"`
}

// ServerConfig configures the HTTP listeners and logging.
type ServerConfig struct {
	// ProxyAddr is where the Detection Pipeline listens for inbound traffic.
	ProxyAddr string `yaml:"proxy_addr" mapstructure:"proxy_addr" validate:"omitempty,hostname_port"`
	// AdminAddr is where the Control Plane admin API listens.
	AdminAddr string `yaml:"admin_addr" mapstructure:"admin_addr" validate:"omitempty,hostname_port"`
	// MetricsAddr serves /healthz and /metrics.
	MetricsAddr string `yaml:"metrics_addr" mapstructure:"metrics_addr" validate:"omitempty,hostname_port"`
	LogLevel    string `yaml:"log_level" mapstructure:"log_level" validate:"omitempty,oneof=debug info warn warning error"`
	// TracingEnabled turns on stdout OpenTelemetry span export for the
	// Detection Pipeline's entry point. Off by default since most deployments
	// have no collector reading the output.
	TracingEnabled bool `yaml:"tracing_enabled" mapstructure:"tracing_enabled"`
}

// PipelineConfig configures the Detection Pipeline reverse proxy.
type PipelineConfig struct {
	// Upstream is the single protected origin requests are forwarded to.
	Upstream string `yaml:"upstream" mapstructure:"upstream" validate:"required,url"`
	// UpstreamTimeout bounds how long the pipeline waits on the upstream (e.g. "30s").
	UpstreamTimeout string `yaml:"upstream_timeout" mapstructure:"upstream_timeout" validate:"omitempty"`
	// MLServiceURL is the scoring service consulted when no signature matches.
	MLServiceURL string `yaml:"ml_service_url" mapstructure:"ml_service_url" validate:"omitempty,url"`
	// MLServiceTimeout bounds the scoring call; on timeout the request fails open with score 0.
	MLServiceTimeout string `yaml:"ml_service_timeout" mapstructure:"ml_service_timeout" validate:"omitempty"`
	// ScoreCacheCapacity bounds the fingerprint->score cache; the whole cache is
	// flushed on overflow rather than evicting individual entries.
	ScoreCacheCapacity int `yaml:"score_cache_capacity" mapstructure:"score_cache_capacity" validate:"omitempty,min=1"`
	// SignaturesFile points at the static YAML signature document.
	SignaturesFile string `yaml:"signatures_file" mapstructure:"signatures_file" validate:"required"`
	// JournalPath is where the pipeline appends Request Records.
	JournalPath string `yaml:"journal_path" mapstructure:"journal_path" validate:"required"`
	// Thresholds is the four-band verdict ladder.
	Thresholds ThresholdsConfig `yaml:"thresholds" mapstructure:"thresholds"`
	// IngestURL, if set, is the Control Plane's ingest endpoint the pipeline
	// forwards every non-safe Request Record to.
	IngestURL   string `yaml:"ingest_url" mapstructure:"ingest_url" validate:"omitempty,url"`
	IngestToken string `yaml:"ingest_token" mapstructure:"ingest_token"`
}

// ThresholdsConfig is the verdict classification ladder: score >= VeryHigh or
// >= High blocks, >= Medium alerts, >= Low logs, else safe. Validated as a
// non-strict descending chain in [0,1] by validateOrdering.
type ThresholdsConfig struct {
	VeryHigh float64 `yaml:"very_high" mapstructure:"very_high" validate:"min=0,max=1"`
	High     float64 `yaml:"high" mapstructure:"high" validate:"min=0,max=1"`
	Medium   float64 `yaml:"medium" mapstructure:"medium" validate:"min=0,max=1"`
	Low      float64 `yaml:"low" mapstructure:"low" validate:"min=0,max=1"`
}

// ControlPlaneConfig configures the event store and admin API.
type ControlPlaneConfig struct {
	// DBPath is the SQLite file backing the Control-Plane Event Store.
	DBPath string `yaml:"db_path" mapstructure:"db_path" validate:"required"`
	// SessionTimeout bounds admin session token lifetime (e.g. "30m").
	SessionTimeout string `yaml:"session_timeout" mapstructure:"session_timeout" validate:"omitempty"`
	// BootstrapAdmin, if set, is created at startup when no user with that
	// username exists. The password is the plaintext; it is hashed on creation.
	BootstrapAdminUsername string `yaml:"bootstrap_admin_username" mapstructure:"bootstrap_admin_username"`
	BootstrapAdminPassword string `yaml:"bootstrap_admin_password" mapstructure:"bootstrap_admin_password"`
}

// ThreatIntelConfig configures the three external TI providers.
type ThreatIntelConfig struct {
	VirusTotalAPIKey string `yaml:"virustotal_api_key" mapstructure:"virustotal_api_key"`
	OTXAPIKey        string `yaml:"otx_api_key" mapstructure:"otx_api_key"`
	AbuseIPDBAPIKey  string `yaml:"abuseipdb_api_key" mapstructure:"abuseipdb_api_key"`
}

// AnalysisConfig configures the LLM-backed virtual-patch Analysis Service.
type AnalysisConfig struct {
	// Provider selects which LLM backend to use: "remote" (OpenAI-compatible),
	// "local" (Ollama), or "mock" (deterministic canned response, for
	// environments with no LLM endpoint configured). Selected once at startup.
	Provider string `yaml:"provider" mapstructure:"provider" validate:"required,oneof=remote local mock"`
	Endpoint string `yaml:"endpoint" mapstructure:"endpoint" validate:"omitempty,url"`
	Model    string `yaml:"model" mapstructure:"model"`
	APIKey   string `yaml:"api_key" mapstructure:"api_key"`
	Timeout  string `yaml:"timeout" mapstructure:"timeout" validate:"omitempty"`
}

// RateLimitConfig configures the three independent sliding-window limits.
type RateLimitConfig struct {
	// TILookupPerMinute bounds VirusTotal indicator lookups (default 4/60s).
	TILookupPerMinute int `yaml:"ti_lookup_per_minute" mapstructure:"ti_lookup_per_minute" validate:"omitempty,min=1"`
	// TIFeedPerDay bounds AbuseIPDB indicator lookups (default 1000/day).
	TIFeedPerDay int `yaml:"ti_feed_per_day" mapstructure:"ti_feed_per_day" validate:"omitempty,min=1"`
	// AnalysisPerMinute bounds Analysis Service calls (default 10/60s).
	AnalysisPerMinute int `yaml:"analysis_per_minute" mapstructure:"analysis_per_minute" validate:"omitempty,min=1"`
}

// SetDefaults applies sensible default values to the configuration.
func (c *Config) SetDefaults() {
	if c.Server.ProxyAddr == "" {
		c.Server.ProxyAddr = "127.0.0.1:8080"
	}
	if c.Server.AdminAddr == "" {
		c.Server.AdminAddr = "127.0.0.1:8081"
	}
	if c.Server.MetricsAddr == "" {
		c.Server.MetricsAddr = "127.0.0.1:9090"
	}
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = "info"
	}

	if c.Pipeline.UpstreamTimeout == "" {
		c.Pipeline.UpstreamTimeout = "30s"
	}
	if c.Pipeline.MLServiceTimeout == "" {
		c.Pipeline.MLServiceTimeout = "2s"
	}
	if c.Pipeline.ScoreCacheCapacity == 0 {
		c.Pipeline.ScoreCacheCapacity = 1000
	}
	if c.Pipeline.SignaturesFile == "" {
		c.Pipeline.SignaturesFile = "signatures.yml"
	}
	if c.Pipeline.JournalPath == "" {
		c.Pipeline.JournalPath = "vigil-journal.log"
	}
	if c.Pipeline.Thresholds == (ThresholdsConfig{}) {
		c.Pipeline.Thresholds = ThresholdsConfig{VeryHigh: 0.9, High: 0.75, Medium: 0.5, Low: 0.25}
	}

	if c.ControlPlane.DBPath == "" {
		c.ControlPlane.DBPath = "vigil.db"
	}
	if c.ControlPlane.SessionTimeout == "" {
		c.ControlPlane.SessionTimeout = "30m"
	}

	if c.Analysis.Provider == "" {
		c.Analysis.Provider = "mock"
	}
	if c.Analysis.Timeout == "" {
		c.Analysis.Timeout = "15s"
	}

	if c.RateLimit.TILookupPerMinute == 0 {
		c.RateLimit.TILookupPerMinute = 4
	}
	if c.RateLimit.TIFeedPerDay == 0 {
		c.RateLimit.TIFeedPerDay = 1000
	}
	if c.RateLimit.AnalysisPerMinute == 0 {
		c.RateLimit.AnalysisPerMinute = 10
	}
}
