package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func env(vars map[string]string) func(string) string {
	return func(k string) string { return vars[k] }
}

func write(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func TestLoadDefaults(t *testing.T) {
	home := t.TempDir()
	cfg, err := Loader{
		Getenv:  env(nil),
		DotEnv:  filepath.Join(t.TempDir(), ".env"),
		HomeDir: func() (string, error) { return home, nil },
	}.Load()
	require.NoError(t, err)

	assert.Equal(t, home, cfg.Home)
	assert.Equal(t, filepath.Join(home, "csae.db"), cfg.Store)
	assert.Equal(t, 50, cfg.History.MaxSteps)
	assert.Equal(t, 30*time.Second, cfg.Fetch.Timeout)
	assert.EqualValues(t, 10<<20, cfg.Fetch.MaxBytes)
	assert.Equal(t, "text", cfg.Output)
	assert.False(t, cfg.Browser.Render)
	assert.Equal(t, filepath.Join(home, "config.yaml"), cfg.Path())
}

func TestLoadLayering(t *testing.T) {
	home := t.TempDir()
	write(t, filepath.Join(home, "config.yaml"), `
store: /tmp/from-yaml.db
output: json
history:
  max_steps: 10
fetch:
  user_agent: yaml-agent
  timeout: 5s
browser:
  bin: /usr/bin/chromium
  render: true
  disable_stealth: true
`)
	dotenv := filepath.Join(t.TempDir(), ".env")
	write(t, dotenv, "CSAE_HOME="+home+"\nCSAE_HISTORY_MAX_STEPS=20\nCSAE_USER_AGENT=dotenv-agent\n")

	cfg, err := Loader{
		Getenv:  env(map[string]string{EnvUserAgent: "env-agent"}),
		DotEnv:  dotenv,
		HomeDir: func() (string, error) { t.Fatal("home should come from .env"); return "", nil },
	}.Load()
	require.NoError(t, err)

	assert.Equal(t, home, cfg.Home)
	assert.Equal(t, "/tmp/from-yaml.db", cfg.Store)
	assert.Equal(t, "json", cfg.Output)
	assert.Equal(t, 20, cfg.History.MaxSteps)
	assert.Equal(t, "env-agent", cfg.Fetch.UserAgent)
	assert.Equal(t, 5*time.Second, cfg.Fetch.Timeout)
	assert.Equal(t, "/usr/bin/chromium", cfg.Browser.Bin)
	assert.True(t, cfg.Browser.Render)
	assert.True(t, cfg.Browser.DisableStealth)
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		env  map[string]string
	}{
		{name: "bad max steps env", env: map[string]string{EnvHistoryMaxSteps: "lots"}},
		{name: "negative max steps", yaml: "history:\n  max_steps: -1\n"},
		{name: "bad output", yaml: "output: xml\n"},
		{name: "malformed yaml", yaml: "history: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			home := t.TempDir()
			if tt.yaml != "" {
				write(t, filepath.Join(home, "config.yaml"), tt.yaml)
			}
			vars := map[string]string{EnvHome: home}
			for k, v := range tt.env {
				vars[k] = v
			}
			_, err := Loader{Getenv: env(vars), DotEnv: filepath.Join(home, ".env")}.Load()
			assert.Error(t, err)
		})
	}
}
