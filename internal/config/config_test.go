package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	v, err := New("")
	require.NoError(t, err)
	cfg, err := Load(v)
	require.NoError(t, err)

	assert.Equal(t, EngineZero, cfg.Engine)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "localhost:8080", cfg.Server.Addr)
	assert.False(t, cfg.State.Enabled)
}

func TestLoad_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "cmpkit.yaml")
	require.NoError(t, os.WriteFile(file, []byte(`
engine: markup
log_level: debug
state:
  enabled: true
  key: secret
  sensitive: true
server:
  addr: ":9000"
`), 0o600))
	t.Setenv("CMPKIT_SERVER_ADDR", ":9100")

	v, err := New(file)
	require.NoError(t, err)
	cfg, err := Load(v)
	require.NoError(t, err)

	assert.Equal(t, EngineMarkup, cfg.Engine)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, StateConfig{Enabled: true, Key: "secret", Sensitive: true}, cfg.State)
	assert.Equal(t, ":9100", cfg.Server.Addr, "environment overrides the file")
}

func TestNew_MissingFile(t *testing.T) {
	_, err := New(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{Engine: EngineZero, LogLevel: "info"}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "upper case level", mutate: func(c *Config) { c.LogLevel = "WARN" }},
		{name: "unknown engine", mutate: func(c *Config) { c.Engine = "dom" }, wantErr: "unknown engine"},
		{name: "unknown level", mutate: func(c *Config) { c.LogLevel = "trace" }, wantErr: "unknown log level"},
		{
			name:    "state on zero",
			mutate:  func(c *Config) { c.State.Enabled = true; c.State.Key = "k" },
			wantErr: "need the markup engine",
		},
		{
			name: "state without key",
			mutate: func(c *Config) {
				c.Engine = EngineMarkup
				c.State.Enabled = true
			},
			wantErr: "state.key is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := Validate(&cfg)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}
