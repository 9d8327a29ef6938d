// Package config provides configuration loading for Vigil.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// InitViper initializes Viper with the configuration file and environment
// variables. If configFile is empty, it searches standard locations for
// vigil.yaml/.yml, requiring an explicit extension so Viper never matches
// the "vigil" binary itself in the current directory.
func InitViper(configFile string) {
	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else if found := findConfigFile(); found != "" {
		viper.SetConfigFile(found)
	} else {
		viper.SetConfigName("vigil")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("VIGIL")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	bindNestedEnvKeys()
}

func findConfigFile() string {
	home, _ := os.UserHomeDir()
	paths := []string{".", filepath.Join(home, ".vigil"), "/etc/vigil"}
	for _, dir := range paths {
		for _, ext := range []string{".yaml", ".yml"} {
			path := filepath.Join(dir, "vigil"+ext)
			if _, err := os.Stat(path); err == nil {
				return path
			}
		}
	}
	return ""
}

// bindNestedEnvKeys binds the secret-bearing and frequently-overridden keys
// for environment variable support (e.g. VIGIL_THREAT_INTEL_VIRUSTOTAL_API_KEY).
func bindNestedEnvKeys() {
	_ = viper.BindEnv("server.proxy_addr")
	_ = viper.BindEnv("server.admin_addr")
	_ = viper.BindEnv("server.log_level")

	_ = viper.BindEnv("pipeline.upstream")
	_ = viper.BindEnv("pipeline.ml_service_url")
	_ = viper.BindEnv("pipeline.ingest_token")

	_ = viper.BindEnv("control_plane.db_path")
	_ = viper.BindEnv("control_plane.bootstrap_admin_username")
	_ = viper.BindEnv("control_plane.bootstrap_admin_password")

	_ = viper.BindEnv("threat_intel.virustotal_api_key")
	_ = viper.BindEnv("threat_intel.otx_api_key")
	_ = viper.BindEnv("threat_intel.abuseipdb_api_key")

	_ = viper.BindEnv("analysis.provider")
	_ = viper.BindEnv("analysis.endpoint")
	_ = viper.BindEnv("analysis.api_key")

	_ = viper.BindEnv("dev_mode")
}

// LoadConfig reads the configuration file, applies environment overrides,
// sets defaults, and validates. Callers that need to apply CLI flag
// overrides before validation should use LoadConfigRaw instead.
func LoadConfig() (*Config, error) {
	cfg, err := LoadConfigRaw()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// LoadConfigRaw reads the configuration file and applies defaults, but does
// not validate — used when CLI flags may still override fields first.
func LoadConfigRaw() (*Config, error) {
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.SetDefaults()
	return &cfg, nil
}

// ConfigFileUsed returns the path of the loaded config file, or empty if
// running on environment variables and defaults alone.
func ConfigFileUsed() string {
	return viper.ConfigFileUsed()
}
