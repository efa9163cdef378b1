// Package config implements the sidecar's global configuration structure,
// bound from flags, environment variables, and an optional YAML file via
// viper, mirroring how the teacher's oasis-node command tree layers its
// own common.Config.
package config

import "github.com/CortexLM/challenge/common/errors"

const moduleName = "config"

// ErrDbVersion is returned by Validate when DbVersion is outside [1, 16].
var ErrDbVersion = errors.New(moduleName, 1, "config: db_version must be in [1, 16]")

// LogConfig mirrors the teacher's common logging configuration shape.
type LogConfig struct {
	File   string            `yaml:"file,omitempty"`
	Format string            `yaml:"format,omitempty"`
	Level  map[string]string `yaml:"level,omitempty"`
}

// Config is the sidecar's full runtime configuration, covering every
// recognized option.
type Config struct {
	// ConsumerBaseURL is the base URL of the Consumer's HTTP surface,
	// used for results submission and values lookups.
	ConsumerBaseURL string `yaml:"consumer_base_url,omitempty"`
	// SessionToken identifies this process's evaluation session to the
	// Consumer.
	SessionToken string `yaml:"session_token,omitempty"`
	JobID        string `yaml:"job_id,omitempty"`
	ChallengeID  string `yaml:"challenge_id,omitempty"`

	// ValidatorHotkey identifies the validator operating this process.
	ValidatorHotkey string `yaml:"validator_hotkey,omitempty"`

	// RunServer starts the HTTP façade (/sdk/health, /sdk/weights,
	// /sdk/public/*, /sdk/admin/*) when true.
	RunServer bool `yaml:"run_server,omitempty"`

	// DbDSN is set by credentials.seal, never by the operator directly.
	DbDSN string `yaml:"-"`
	// EphemeralSK is set by the bootstrap handshake, never by the
	// operator directly.
	EphemeralSK []byte `yaml:"-"`

	// AdminMode is read from configuration but not consulted: the
	// admin-only handler table and the /sdk/admin/* HTTP surface are
	// available whether or not it is set.
	AdminMode bool `yaml:"admin_mode,omitempty"`
	// DevMode enables the lifecycle's dev-mode Serving guard (see
	// AllowInsecureAdmin). It does not disable AEAD framing, and the
	// runtime uses the stub quote provider whether or not it is set.
	DevMode bool `yaml:"dev_mode,omitempty"`
	// AllowInsecureAdmin permits entering Serving in DevMode with an
	// Admin peer connected.
	AllowInsecureAdmin bool `yaml:"allow_insecure_admin,omitempty"`

	Port int    `yaml:"port,omitempty"`
	Host string `yaml:"host,omitempty"`

	// DbVersion selects the migration directory (v{N}/) Admin applies;
	// must be in [1, 16].
	DbVersion int `yaml:"db_version,omitempty"`

	// Concurrency is the number of jobs (J) executed in parallel.
	Concurrency int `yaml:"concurrency,omitempty"`

	Log LogConfig `yaml:"log,omitempty"`
}

// Validate checks the subset of configuration the core itself enforces.
func (c *Config) Validate() error {
	if c.DbVersion < 1 || c.DbVersion > 16 {
		return ErrDbVersion
	}
	return nil
}

// DefaultConfig returns the default configuration settings.
func DefaultConfig() Config {
	return Config{
		Host:        "0.0.0.0",
		Port:        8080,
		DbVersion:   1,
		Concurrency: 1,
		Log: LogConfig{
			Format: "logfmt",
			Level:  map[string]string{},
		},
	}
}
