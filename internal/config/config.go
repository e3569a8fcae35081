// Package config handles hrchat configuration loading and validation.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/srmsweets/hrportal/internal/models"
)

// Config is the root configuration structure for hrchat.
type Config struct {
	// API is the remote HR backend.
	API APIConfig `yaml:"api" mapstructure:"api"`

	// Identity is the console user; there is no login.
	Identity IdentityConfig `yaml:"identity" mapstructure:"identity"`

	// Chat holds the polling cadences of the messaging engine.
	Chat ChatConfig `yaml:"chat" mapstructure:"chat"`

	// Logging settings
	Logging LoggingConfig `yaml:"logging" mapstructure:"logging"`

	// TUI settings
	TUI TUIConfig `yaml:"tui" mapstructure:"tui"`

	// DevServer configures the local SQLite-backed API used for development.
	DevServer DevServerConfig `yaml:"dev_server" mapstructure:"dev_server"`
}

// APIConfig points the transport client at the backend.
type APIConfig struct {
	// BaseURL is the backend origin, without the /api suffix.
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`

	// Timeout bounds every request.
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// IdentityConfig is the hardcoded HR user.
type IdentityConfig struct {
	UserID      string `yaml:"user_id" mapstructure:"user_id"`
	DisplayName string `yaml:"display_name" mapstructure:"display_name"`
}

// ChatConfig contains the synchronizer and notifier periods.
type ChatConfig struct {
	// DirectoryInterval is how often the group list is re-fetched.
	DirectoryInterval time.Duration `yaml:"directory_interval" mapstructure:"directory_interval"`

	// ConversationInterval is how often the open group's messages are re-fetched.
	ConversationInterval time.Duration `yaml:"conversation_interval" mapstructure:"conversation_interval"`

	// NotifyInterval is the notification watchdog period.
	NotifyInterval time.Duration `yaml:"notify_interval" mapstructure:"notify_interval"`

	// AlertTTL is how long an alert stays visible before it dismisses itself.
	AlertTTL time.Duration `yaml:"alert_ttl" mapstructure:"alert_ttl"`

	// RequestBadgeInterval is how often the pending-request count is polled.
	RequestBadgeInterval time.Duration `yaml:"request_badge_interval" mapstructure:"request_badge_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	// Level is the minimum log level (debug, info, warn, error).
	Level string `yaml:"level" mapstructure:"level"`

	// Format is the output format (json, console).
	Format string `yaml:"format" mapstructure:"format"`

	// File is an optional log file path. The TUI always logs to a file.
	File string `yaml:"file" mapstructure:"file"`

	// EnableCaller adds caller information to logs.
	EnableCaller bool `yaml:"enable_caller" mapstructure:"enable_caller"`
}

// TUIConfig contains TUI settings.
type TUIConfig struct {
	// Theme is the color theme (default, high-contrast).
	Theme string `yaml:"theme" mapstructure:"theme"`
}

// DevServerConfig configures `hrchat dev-server`.
type DevServerConfig struct {
	Addr   string `yaml:"addr" mapstructure:"addr"`
	DBPath string `yaml:"db_path" mapstructure:"db_path"`
	Seed   bool   `yaml:"seed" mapstructure:"seed"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	homeDir, _ := os.UserHomeDir()
	identity := models.DefaultIdentity()

	return &Config{
		API: APIConfig{
			BaseURL: "https://srm-backend-lake.vercel.app",
			Timeout: 30 * time.Second,
		},
		Identity: IdentityConfig{
			UserID:      identity.UserID,
			DisplayName: identity.DisplayName,
		},
		Chat: ChatConfig{
			DirectoryInterval:    5 * time.Second,
			ConversationInterval: 3 * time.Second,
			NotifyInterval:       10 * time.Second,
			AlertTTL:             4 * time.Second,
			RequestBadgeInterval: 30 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
			File:   filepath.Join(homeDir, ".local", "state", "hrchat", "hrchat.log"),
		},
		TUI: TUIConfig{
			Theme: "default",
		},
		DevServer: DevServerConfig{
			Addr:   "127.0.0.1:8088",
			DBPath: filepath.Join(homeDir, ".local", "share", "hrchat", "dev.db"),
			Seed:   true,
		},
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	base := strings.TrimSpace(c.API.BaseURL)
	if base == "" {
		return fmt.Errorf("api.base_url is required")
	}
	parsed, err := url.Parse(base)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("api.base_url must be an absolute URL, got %q", base)
	}
	if c.API.Timeout <= 0 {
		return fmt.Errorf("api.timeout must be positive")
	}

	if strings.TrimSpace(c.Identity.UserID) == "" {
		return fmt.Errorf("identity.user_id is required")
	}
	if strings.TrimSpace(c.Identity.DisplayName) == "" {
		return fmt.Errorf("identity.display_name is required")
	}

	intervals := map[string]time.Duration{
		"chat.directory_interval":     c.Chat.DirectoryInterval,
		"chat.conversation_interval":  c.Chat.ConversationInterval,
		"chat.notify_interval":        c.Chat.NotifyInterval,
		"chat.alert_ttl":              c.Chat.AlertTTL,
		"chat.request_badge_interval": c.Chat.RequestBadgeInterval,
	}
	for key, d := range intervals {
		if d < 100*time.Millisecond {
			return fmt.Errorf("%s must be at least 100ms", key)
		}
	}

	switch c.TUI.Theme {
	case "default", "high-contrast":
	default:
		return fmt.Errorf("tui.theme must be one of default, high-contrast")
	}
	return nil
}

// IdentityModel returns the configured identity as a domain value.
func (c *Config) IdentityModel() models.Identity {
	return models.Identity{
		UserID:      strings.TrimSpace(c.Identity.UserID),
		DisplayName: strings.TrimSpace(c.Identity.DisplayName),
	}
}
