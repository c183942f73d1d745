package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lexfrei/go-fpp"
	"github.com/lexfrei/go-fpp/fpperr"
	"github.com/lexfrei/go-fpp/internal/config"
)

const tomlConfig = `
host = "192.168.1.50"
username = "admin"
password = "falcon"
timeout = "5s"
requests_per_minute = 120
circuit_breaker = true
log_level = "debug"

[retry]
max_attempts = 4
base_delay = "200ms"
max_delay = "3s"
max_elapsed = "30s"

[cache]
capacity = 64

[cache.ttl]
status = "1s"
settings = "0s"
`

const yamlConfig = `
host: https://show.example.com
insecure: true
retry:
  max_attempts: 2
cache:
  ttl:
    system: 10m
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func noEnv(string) (string, bool) { return "", false }

func TestReadTOML(t *testing.T) {
	t.Parallel()

	cfg, err := config.Read(writeFile(t, "fppctl.toml", tomlConfig))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "192.168.1.50", cfg.Host)
	assert.Equal(t, 5*time.Second, cfg.Timeout.Std())
	assert.Equal(t, 4, cfg.Retry.MaxAttempts)
	assert.Equal(t, 200*time.Millisecond, cfg.Retry.BaseDelay.Std())
	assert.Equal(t, 64, cfg.Cache.Capacity)

	client, err := cfg.ClientConfig()
	require.NoError(t, err)

	assert.Equal(t, "http://192.168.1.50:80", client.Target.Key())
	assert.Equal(t, "admin", client.Target.Username)
	assert.Equal(t, "falcon", client.Target.Password)
	assert.Equal(t, 5*time.Second, client.Timeout)
	assert.Equal(t, 4, client.MaxAttempts)
	assert.Equal(t, 3*time.Second, client.MaxDelay)
	assert.Equal(t, 30*time.Second, client.MaxElapsed)
	assert.Equal(t, 120, client.RequestsPerMinute)
	assert.True(t, client.CircuitBreaker)

	require.NotNil(t, client.CacheTTLs)
	defaults := fpp.DefaultCacheTTLs()
	assert.Equal(t, time.Second, client.CacheTTLs.Status)
	assert.Zero(t, client.CacheTTLs.Settings, "a zero TTL disables the class")
	assert.Equal(t, defaults.Playlist, client.CacheTTLs.Playlist, "unset TTLs keep the default")
}

func TestReadYAML(t *testing.T) {
	t.Parallel()

	cfg, err := config.Read(writeFile(t, "fppctl.yaml", yamlConfig))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	target, err := cfg.Target()
	require.NoError(t, err)
	assert.Equal(t, "https://show.example.com:443", target.Key())
	assert.True(t, target.Insecure)

	client, err := cfg.ClientConfig()
	require.NoError(t, err)
	assert.Equal(t, 2, client.MaxAttempts)
	require.NotNil(t, client.CacheTTLs)
	assert.Equal(t, 10*time.Minute, client.CacheTTLs.System)
}

func TestReadWithoutTTLsUsesDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := config.Read(writeFile(t, "fppctl.yml", "host: fpp.local\n"))
	require.NoError(t, err)

	client, err := cfg.ClientConfig()
	require.NoError(t, err)
	assert.Nil(t, client.CacheTTLs)
}

func TestReadErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		path string
	}{
		{name: "missing explicit file", path: filepath.Join(t.TempDir(), "absent.toml")},
		{name: "unknown extension", path: writeFile(t, "fppctl.ini", "host=fpp")},
		{name: "broken toml", path: writeFile(t, "broken.toml", "host = ")},
		{name: "broken yaml", path: writeFile(t, "broken.yaml", "host: [")},
		{name: "bad duration", path: writeFile(t, "bad.toml", `timeout = "soon"`)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := config.Read(tt.path)
			require.Error(t, err)
			assert.Equal(t, fpperr.KindValidation, fpperr.Classify(err))
		})
	}
}

func TestApplyEnv(t *testing.T) {
	t.Parallel()

	env := map[string]string{
		config.EnvHost:     "10.0.0.5",
		config.EnvPort:     "8080",
		config.EnvUsername: "admin",
		config.EnvPassword: "secret",
	}
	lookup := func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}

	cfg := &config.Config{Host: "fpp.local", Port: 80}
	require.NoError(t, cfg.ApplyEnv(lookup))
	require.NoError(t, cfg.Validate())

	target, err := cfg.Target()
	require.NoError(t, err)
	assert.Equal(t, "http://10.0.0.5:8080", target.Key())
	assert.Equal(t, "secret", target.Password)

	bad := &config.Config{Host: "fpp.local"}
	err = bad.ApplyEnv(func(key string) (string, bool) {
		if key == config.EnvPort {
			return "eighty", true
		}
		return "", false
	})
	assert.Equal(t, fpperr.KindValidation, fpperr.Classify(err))

	untouched := &config.Config{Host: "fpp.local"}
	require.NoError(t, untouched.ApplyEnv(noEnv))
	assert.Equal(t, "fpp.local", untouched.Host)
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		cfg   config.Config
		field string
	}{
		{name: "missing host", cfg: config.Config{}, field: "Config.Host"},
		{name: "port out of range", cfg: config.Config{Host: "fpp", Port: 70000}, field: "Config.Port"},
		{name: "bad scheme", cfg: config.Config{Host: "fpp", Scheme: "ftp"}, field: "Config.Scheme"},
		{name: "user without password", cfg: config.Config{Host: "fpp", Username: "admin"}, field: "Config.Password"},
		{name: "too many attempts", cfg: config.Config{Host: "fpp", Retry: config.Retry{MaxAttempts: 50}}, field: "Config.Retry.MaxAttempts"},
		{name: "bad log level", cfg: config.Config{Host: "fpp", LogLevel: "loud"}, field: "Config.LogLevel"},
		{name: "bad host url", cfg: config.Config{Host: "gopher://fpp"}, field: "scheme"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := tt.cfg.Validate()

			var validation *fpperr.ValidationError
			require.ErrorAs(t, err, &validation)
			assert.Equal(t, tt.field, validation.Field)
		})
	}
}

func TestSchemeOverride(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{Host: "fpp.local", Scheme: "https"}
	target, err := cfg.Target()
	require.NoError(t, err)
	assert.Equal(t, "https://fpp.local:443", target.Key())

	withPort := &config.Config{Host: "fpp.local:8443", Scheme: "https"}
	target, err = withPort.Target()
	require.NoError(t, err)
	assert.Equal(t, "https://fpp.local:8443", target.Key())
}
