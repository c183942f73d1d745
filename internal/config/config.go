// Package config loads fppctl settings from a TOML or YAML file and the
// environment.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-playground/validator/v10"
	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/lexfrei/go-fpp"
	"github.com/lexfrei/go-fpp/fpperr"
)

// Environment variables that override the file.
const (
	EnvHost     = "FPP_HOST"
	EnvPort     = "FPP_PORT"
	EnvUsername = "FPP_USERNAME"
	EnvPassword = "FPP_PASSWORD"
)

const defaultPath = "~/.config/fppctl/config.toml"

// Duration is a time.Duration written as "5s" or "1m30s" in config files.
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return errors.Wrapf(err, "invalid duration %q", text)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config is the fppctl configuration.
type Config struct {
	Host     string `toml:"host" yaml:"host" validate:"required"`
	Port     int    `toml:"port" yaml:"port" validate:"omitempty,min=1,max=65535"`
	Scheme   string `toml:"scheme" yaml:"scheme" validate:"omitempty,oneof=http https"`
	Username string `toml:"username" yaml:"username"`
	Password string `toml:"password" yaml:"password" validate:"required_with=Username"`
	Insecure bool   `toml:"insecure" yaml:"insecure"`

	Timeout           Duration `toml:"timeout" yaml:"timeout" validate:"gte=0"`
	RequestsPerMinute int      `toml:"requests_per_minute" yaml:"requests_per_minute"`
	CircuitBreaker    bool     `toml:"circuit_breaker" yaml:"circuit_breaker"`

	Retry Retry `toml:"retry" yaml:"retry"`
	Cache Cache `toml:"cache" yaml:"cache"`

	LogLevel string `toml:"log_level" yaml:"log_level" validate:"omitempty,oneof=debug info warn error"`
}

// Retry is the retry budget.
type Retry struct {
	MaxAttempts        int      `toml:"max_attempts" yaml:"max_attempts" validate:"omitempty,min=1,max=10"`
	BaseDelay          Duration `toml:"base_delay" yaml:"base_delay" validate:"gte=0"`
	MaxDelay           Duration `toml:"max_delay" yaml:"max_delay" validate:"gte=0"`
	MaxElapsed         Duration `toml:"max_elapsed" yaml:"max_elapsed" validate:"gte=0"`
	RetryNonIdempotent bool     `toml:"retry_non_idempotent" yaml:"retry_non_idempotent"`
}

// Cache sizes the response cache. An unset TTL keeps the default, a zero
// TTL disables caching for that class.
type Cache struct {
	Capacity int `toml:"capacity" yaml:"capacity" validate:"gte=0"`
	TTL      TTL `toml:"ttl" yaml:"ttl"`
}

// TTL holds per-namespace cache lifetimes.
type TTL struct {
	Status   *Duration `toml:"status" yaml:"status"`
	System   *Duration `toml:"system" yaml:"system"`
	Playlist *Duration `toml:"playlist" yaml:"playlist"`
	Sequence *Duration `toml:"sequence" yaml:"sequence"`
	Schedule *Duration `toml:"schedule" yaml:"schedule"`
	Settings *Duration `toml:"settings" yaml:"settings"`
}

// Load reads path, applies environment overrides and validates the result.
// An empty path reads the default location if it exists.
func Load(path string) (*Config, error) {
	cfg, err := Read(path)
	if err != nil {
		return nil, err
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Read parses the file at path without validating it. The format follows
// the extension: .toml, .yaml or .yml.
func Read(path string) (*Config, error) {
	cfg := &Config{}

	explicit := strings.TrimSpace(path) != ""
	if !explicit {
		path = defaultPath
	}

	resolved, err := expandPath(path)
	if err != nil {
		return nil, invalid("config", err.Error())
	}

	data, err := os.ReadFile(resolved)
	if err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, errors.Wrap(invalid("config", err.Error()), "read config")
	}

	switch ext := strings.ToLower(filepath.Ext(resolved)); ext {
	case ".toml":
		err = toml.Unmarshal(data, cfg)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, cfg)
	default:
		return nil, invalid("config", "unsupported file extension "+strconv.Quote(ext))
	}
	if err != nil {
		return nil, errors.Wrapf(invalid("config", err.Error()), "parse %s", resolved)
	}

	return cfg, nil
}

// ApplyEnv overrides connection settings from the environment.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvHost); ok && v != "" {
		c.Host = v
	}
	if v, ok := lookup(EnvPort); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return invalid(EnvPort, "not a number: "+v)
		}
		c.Port = port
	}
	if v, ok := lookup(EnvUsername); ok {
		c.Username = v
	}
	if v, ok := lookup(EnvPassword); ok {
		c.Password = v
	}
	return nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the configuration. Failures are *fpperr.ValidationError.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return c.validateTarget()
	}

	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		return invalid(fe.Namespace(), "failed "+fe.Tag()+" check")
	}

	return errors.Wrap(err, "validate config")
}

func (c *Config) validateTarget() error {
	_, err := c.Target()
	return err
}

// Target builds the device address from the host, which may itself be a
// URL, and the explicit fields, which win.
func (c *Config) Target() (fpp.Target, error) {
	raw := strings.TrimSpace(c.Host)
	if c.Scheme != "" && raw != "" && !strings.Contains(raw, "://") {
		raw = c.Scheme + "://" + raw
	}

	target, err := fpp.ParseTarget(raw)
	if err != nil {
		return fpp.Target{}, err
	}

	if c.Port != 0 {
		target.Port = c.Port
	}
	if c.Username != "" {
		target.Username = c.Username
		target.Password = c.Password
	}
	target.Insecure = target.Insecure || c.Insecure

	return target, nil
}

// ClientConfig converts the configuration into client settings.
func (c *Config) ClientConfig() (*fpp.ClientConfig, error) {
	target, err := c.Target()
	if err != nil {
		return nil, err
	}

	cfg := &fpp.ClientConfig{
		Target:             target,
		Timeout:            c.Timeout.Std(),
		MaxAttempts:        c.Retry.MaxAttempts,
		BaseDelay:          c.Retry.BaseDelay.Std(),
		MaxDelay:           c.Retry.MaxDelay.Std(),
		MaxElapsed:         c.Retry.MaxElapsed.Std(),
		RetryNonIdempotent: c.Retry.RetryNonIdempotent,
		CacheCapacity:      c.Cache.Capacity,
		RequestsPerMinute:  c.RequestsPerMinute,
		CircuitBreaker:     c.CircuitBreaker,
	}

	if ttl := c.Cache.TTL; ttl != (TTL{}) {
		ttls := fpp.DefaultCacheTTLs()
		override(&ttls.Status, ttl.Status)
		override(&ttls.System, ttl.System)
		override(&ttls.Playlist, ttl.Playlist)
		override(&ttls.Sequence, ttl.Sequence)
		override(&ttls.Schedule, ttl.Schedule)
		override(&ttls.Settings, ttl.Settings)
		cfg.CacheTTLs = &ttls
	}

	return cfg, nil
}

func override(dst *time.Duration, src *Duration) {
	if src != nil {
		*dst = src.Std()
	}
}

func invalid(field, msg string) error {
	return &fpperr.ValidationError{Field: field, Msg: msg}
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if strings.HasPrefix(trimmed, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", errors.Wrap(err, "resolve home dir")
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	return filepath.Abs(trimmed)
}
