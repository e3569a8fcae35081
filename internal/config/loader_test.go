package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoader_DefaultsWithoutFiles(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("HOME", t.TempDir())

	loader := NewLoader()
	loader.SetEnvFile("")
	cfg, err := loader.Load()
	require.NoError(t, err)
	require.Equal(t, "hr-admin-1", cfg.Identity.UserID)
	require.Equal(t, 3*time.Second, cfg.Chat.ConversationInterval)
	require.Equal(t, 10*time.Second, cfg.Chat.NotifyInterval)
	require.Equal(t, 4*time.Second, cfg.Chat.AlertTTL)
}

func TestLoader_FileThenEnvPrecedence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
api:
  base_url: http://localhost:9000
identity:
  user_id: hr-admin-2
  display_name: Branch HR
chat:
  conversation_interval: 1s
`), 0o644))

	t.Setenv("HRCHAT_IDENTITY_DISPLAY_NAME", "Night Shift HR")

	loader := NewLoader()
	loader.SetEnvFile("")
	loader.SetConfigFile(path)
	cfg, err := loader.Load()
	require.NoError(t, err)
	require.Equal(t, "http://localhost:9000", cfg.API.BaseURL)
	require.Equal(t, "hr-admin-2", cfg.Identity.UserID)
	require.Equal(t, "Night Shift HR", cfg.Identity.DisplayName)
	require.Equal(t, time.Second, cfg.Chat.ConversationInterval)
	require.Equal(t, "hr-admin-2", cfg.IdentityModel().UserID)
}

func TestLoader_DotEnvFile(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envPath, []byte("HRCHAT_API_BASE_URL=http://127.0.0.1:8088\n"), 0o644))
	t.Cleanup(func() { _ = os.Unsetenv("HRCHAT_API_BASE_URL") })

	loader := NewLoader()
	loader.SetEnvFile(envPath)
	cfg, err := loader.Load()
	require.NoError(t, err)
	require.Equal(t, "http://127.0.0.1:8088", cfg.API.BaseURL)
}

func TestLoader_MissingExplicitFileFails(t *testing.T) {
	loader := NewLoader()
	loader.SetEnvFile("")
	loader.SetConfigFile(filepath.Join(t.TempDir(), "nope.yaml"))
	_, err := loader.Load()
	require.Error(t, err)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "defaults ok", mutate: func(*Config) {}},
		{name: "relative base url", mutate: func(c *Config) { c.API.BaseURL = "srm-backend" }, wantErr: "api.base_url"},
		{name: "missing user", mutate: func(c *Config) { c.Identity.UserID = " " }, wantErr: "identity.user_id"},
		{name: "tiny interval", mutate: func(c *Config) { c.Chat.NotifyInterval = time.Millisecond }, wantErr: "chat.notify_interval"},
		{name: "bad theme", mutate: func(c *Config) { c.TUI.Theme = "neon" }, wantErr: "tui.theme"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.ErrorContains(t, err, tt.wantErr)
		})
	}
}
