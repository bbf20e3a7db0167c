package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "http://localhost:3000", cfg.API.BaseURL)
	assert.Equal(t, "memory", cfg.Session.Store)
	assert.Equal(t, "Your Recipe has been deleted!", cfg.View.DeletedMessage)
	assert.Equal(t, "/my-recipes", cfg.View.RedirectPath)
	assert.Equal(t, 2*time.Second, cfg.View.RedirectDelay)
	assert.Equal(t, "Are you sure you want to delete this recipe?", cfg.View.ConfirmPrompt)
	assert.Equal(t, 60, cfg.RateLimit.RequestsPerMin)
	assert.Equal(t, 600, cfg.RateLimit.DraftRequestsPerMin)
	assert.Equal(t, 60, cfg.RateLimit.DraftBurstSize)
	assert.True(t, cfg.IsDevelopment())
	assert.False(t, cfg.IsProduction())
}

func TestLoad_FileAndEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
app:
  environment: production
  log_level: warn
api:
  base_url: http://recipes.internal:9000
view:
  redirect_delay: 500ms
`), 0o600))

	t.Setenv("RECIPEVIEW_SERVER_PORT", "9090")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.True(t, cfg.IsProduction())
	assert.Equal(t, "warn", cfg.App.LogLevel)
	assert.Equal(t, "http://recipes.internal:9000", cfg.API.BaseURL)
	assert.Equal(t, 500*time.Millisecond, cfg.View.RedirectDelay)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "0.0.0.0:9090", cfg.ListenAddr())
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"bad port", "server:\n  port: 70000\n"},
		{"bad log level", "app:\n  log_level: loud\n"},
		{"zero draft burst", "rate_limit:\n  draft_burst_size: 0\n"},
		{"relative redirect", "view:\n  redirect_path: my-recipes\n"},
		{"unknown session store", "session:\n  store: etcd\n"},
		{"tracing without endpoint", "monitoring:\n  enable_tracing: true\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.yaml), 0o600))

			_, err := Load(path)
			assert.Error(t, err)
		})
	}
}

func TestConfig_RedisAddr(t *testing.T) {
	cfg := &Config{Redis: RedisConfig{Host: "cache", Port: 6380}}
	assert.Equal(t, "cache:6380", cfg.RedisAddr())
}

func TestConfig_ViewSettings(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	cfg.View.RedirectDelay = 500 * time.Millisecond
	cfg.View.PlaceholderImage = ""
	settings := cfg.ViewSettings()

	assert.Equal(t, "Your Recipe has been deleted!", settings.DeletedMessage)
	assert.Equal(t, "/my-recipes", settings.RedirectPath)
	assert.Equal(t, 500*time.Millisecond, settings.RedirectDelay)
	assert.NotEmpty(t, settings.PlaceholderImage)
	assert.Equal(t, "/recipes/%s/edit", settings.EditPathFormat)
}

func TestWatch_ReloadsOnWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("app:\n  log_level: warn\n"), 0o600))

	reloaded := make(chan *Config, 8)
	cfg, err := Watch(path, func(next *Config, err error) {
		if err == nil {
			reloaded <- next
		}
	})
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.App.LogLevel)

	require.NoError(t, os.WriteFile(path, []byte("app:\n  log_level: debug\n"), 0o600))

	deadline := time.After(5 * time.Second)
	for {
		select {
		case next := <-reloaded:
			if next.App.LogLevel == "debug" {
				return
			}
		case <-deadline:
			t.Fatal("config change was not observed")
		}
	}
}
