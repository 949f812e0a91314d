// Package kernel assembles the pieces behind the ntbl command: logging,
// the sidecar client, the datasource registry, and the local database.
package kernel

import (
	"fmt"
	"net/url"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the complete kernel-side configuration.
type Config struct {
	Sidecar    SidecarConfig `yaml:"sidecar"`
	ProjectDir string        `yaml:"project_dir"`
	SecretsDir string        `yaml:"secrets_dir"`
	LocalDB    string        `yaml:"local_db_path"`
	Logging    LoggingConfig `yaml:"logging"`
}

// SidecarConfig configures the planar-ally file-system sidecar.
type SidecarConfig struct {
	URL            string `yaml:"url"`
	Version        string `yaml:"version"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// Timeout returns the request timeout as a duration.
func (s SidecarConfig) Timeout() time.Duration {
	return time.Duration(s.TimeoutSeconds) * time.Second
}

// LoggingConfig configures the kernel log output.
type LoggingConfig struct {
	AppLevel string `yaml:"app_level"`
	ExtLevel string `yaml:"ext_level"`
	File     string `yaml:"file"`
	JSON     *bool  `yaml:"json"`
}

// LoadConfig loads configuration from a file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	data = []byte(expandEnvVars(string(data)))

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	applyDefaults(&cfg)

	return &cfg, nil
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// expandEnvVars expands ${VAR} patterns in the string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)
	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := match[2 : len(match)-1]
		return os.Getenv(varName)
	})
}

// applyDefaults applies default values to the config.
func applyDefaults(cfg *Config) {
	if cfg.Sidecar.URL == "" {
		cfg.Sidecar.URL = "http://localhost:7000/api"
	}
	if cfg.Sidecar.Version == "" {
		cfg.Sidecar.Version = "v0"
	}
	if cfg.Sidecar.TimeoutSeconds == 0 {
		cfg.Sidecar.TimeoutSeconds = 60
	}
	if cfg.ProjectDir == "" {
		cfg.ProjectDir = "/etc/noteable/project"
	}
	if cfg.SecretsDir == "" {
		cfg.SecretsDir = "/vault/secrets"
	}
	if cfg.LocalDB == "" {
		cfg.LocalDB = "/tmp/ntbl.duckdb"
	}
	if cfg.Logging.AppLevel == "" {
		cfg.Logging.AppLevel = "DEBUG"
	}
	if cfg.Logging.ExtLevel == "" {
		cfg.Logging.ExtLevel = "INFO"
	}
	if cfg.Logging.File == "" {
		cfg.Logging.File = "/var/log/noteable_magics.log"
	}
	if cfg.Logging.JSON == nil {
		enabled := true
		cfg.Logging.JSON = &enabled
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	var errs []string

	if _, err := url.Parse(c.Sidecar.URL); err != nil {
		errs = append(errs, fmt.Sprintf("sidecar.url is not a valid URL: %v", err))
	}
	if c.Sidecar.TimeoutSeconds < 0 {
		errs = append(errs, "sidecar.timeout_seconds must not be negative")
	}
	if _, err := ParseLevel(c.Logging.AppLevel); err != nil {
		errs = append(errs, fmt.Sprintf("logging.app_level: %v", err))
	}
	if _, err := ParseLevel(c.Logging.ExtLevel); err != nil {
		errs = append(errs, fmt.Sprintf("logging.ext_level: %v", err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
