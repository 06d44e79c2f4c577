package federation

import (
	"net/url"
	"os"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/YuminosukeSato/neurogo/pkg/errors"
)

// Default identity and timing values for a neuron started without a config
// file. Intervals are in seconds to match the wire protocol.
const (
	DefaultFederationURL      = "http://localhost:5000"
	DefaultNeuronName         = "Go Data Processor"
	DefaultNeuronType         = "go-data-processor"
	DefaultVersion            = "1.0.0"
	DefaultHeartbeatSeconds   = 60
	DefaultCommandSeconds     = 30
	DefaultAnalyticsSeconds   = 300
	DefaultMaxRestartAttempts = 3
)

// DefaultCapabilities are advertised at registration when the config does
// not list its own.
func DefaultCapabilities() []string {
	return []string{
		"data_processing",
		"file_analysis",
		"report_generation",
		"batch_processing",
		"real_time_monitoring",
	}
}

// Config controls how a neuron registers with the federation and how often
// it reports back.
type Config struct {
	// FederationURL is the base URL of the federation core.
	FederationURL string `yaml:"federation_url"`

	// NeuronID uniquely identifies this neuron. Generated when empty.
	NeuronID string `yaml:"neuron_id"`
	Name     string `yaml:"name"`
	Type     string `yaml:"type"`
	Version  string `yaml:"version"`

	// Capabilities advertised at registration.
	Capabilities []string `yaml:"capabilities"`

	HealthcheckEndpoint string   `yaml:"healthcheck_endpoint"`
	APIEndpoints        []string `yaml:"api_endpoints"`

	// Reporting intervals in seconds.
	HeartbeatInterval int `yaml:"heartbeat_interval"`
	CommandInterval   int `yaml:"command_check_interval"`
	AnalyticsInterval int `yaml:"analytics_report_interval"`

	MaxRestartAttempts int `yaml:"max_restart_attempts"`

	LogLevel string `yaml:"log_level"`
	LogFile  string `yaml:"log_file"`
}

// DefaultConfig returns a config with a generated neuron id and the standard
// intervals.
func DefaultConfig() Config {
	return Config{
		FederationURL:       DefaultFederationURL,
		NeuronID:            generateNeuronID(),
		Name:                DefaultNeuronName,
		Type:                DefaultNeuronType,
		Version:             DefaultVersion,
		Capabilities:        DefaultCapabilities(),
		HealthcheckEndpoint: "/health",
		APIEndpoints:        []string{"/health", "/process", "/status", "/metrics"},
		HeartbeatInterval:   DefaultHeartbeatSeconds,
		CommandInterval:     DefaultCommandSeconds,
		AnalyticsInterval:   DefaultAnalyticsSeconds,
		MaxRestartAttempts:  DefaultMaxRestartAttempts,
		LogLevel:            "info",
		LogFile:             "neuron.log",
	}
}

// LoadConfig builds a Config from defaults, an optional YAML file, and
// environment overrides, in that order of precedence. An empty path skips
// the file.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.NewPersistenceError("read config", path, err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return nil, errors.NewPersistenceError("parse config", path, err)
		}
	}
	cfg.applyEnv()
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyEnv lets the environment override both defaults and file values.
func (c *Config) applyEnv() {
	if v := os.Getenv("FEDERATION_URL"); v != "" {
		c.FederationURL = v
	}
	if v := os.Getenv("NEURON_ID"); v != "" {
		c.NeuronID = v
	}
	if v := os.Getenv("NEURON_NAME"); v != "" {
		c.Name = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
}

// normalize fills fields a config file may have blanked.
func (c *Config) normalize() {
	if c.NeuronID == "" {
		c.NeuronID = generateNeuronID()
	}
	if c.Capabilities == nil {
		c.Capabilities = DefaultCapabilities()
	}
}

// Validate rejects configs the daemon cannot run with.
func (c *Config) Validate() error {
	u, err := url.Parse(c.FederationURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return errors.NewValidationError("federation_url", "must be an absolute http(s) URL", c.FederationURL)
	}
	if c.HeartbeatInterval <= 0 {
		return errors.NewValidationError("heartbeat_interval", "must be a positive number of seconds", c.HeartbeatInterval)
	}
	if c.CommandInterval <= 0 {
		return errors.NewValidationError("command_check_interval", "must be a positive number of seconds", c.CommandInterval)
	}
	if c.AnalyticsInterval <= 0 {
		return errors.NewValidationError("analytics_report_interval", "must be a positive number of seconds", c.AnalyticsInterval)
	}
	return nil
}

// HeartbeatPeriod returns the heartbeat interval as a duration.
func (c *Config) HeartbeatPeriod() time.Duration {
	return time.Duration(c.HeartbeatInterval) * time.Second
}

// CommandPeriod returns the command poll interval as a duration.
func (c *Config) CommandPeriod() time.Duration {
	return time.Duration(c.CommandInterval) * time.Second
}

// AnalyticsPeriod returns the analytics report interval as a duration.
func (c *Config) AnalyticsPeriod() time.Duration {
	return time.Duration(c.AnalyticsInterval) * time.Second
}

func generateNeuronID() string {
	return "go-neuron-" + uuid.NewString()[:8]
}
