package model

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// APIConfig holds the connection settings for the task-management API.
type APIConfig struct {
	// BaseURL is the root URL of the API server; the /api base path
	// is appended by the client.
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`

	// SocketURL is the websocket endpoint for the real-time event
	// channel. Derived from BaseURL when empty.
	SocketURL string `mapstructure:"socket_url" yaml:"socket_url"`
}

// CacheConfig tunes the server-state cache.
type CacheConfig struct {
	// StaleAfterSec is the staleness window in seconds after which a
	// cached value is refreshed in the background on next access.
	StaleAfterSec int `mapstructure:"stale_after_sec" yaml:"stale_after_sec"`
}

// RealtimeConfig tunes the event-channel connection policy.
type RealtimeConfig struct {
	// MaxReconnects is the number of automatic reconnection attempts
	// before giving up.
	MaxReconnects int `mapstructure:"max_reconnects" yaml:"max_reconnects"`

	// ReconnectDelaySec is the fixed delay between attempts.
	ReconnectDelaySec int `mapstructure:"reconnect_delay_sec" yaml:"reconnect_delay_sec"`

	// ConnectTimeoutSec bounds a single connection attempt.
	ConnectTimeoutSec int `mapstructure:"connect_timeout_sec" yaml:"connect_timeout_sec"`
}

// NotificationsConfig tunes the notification polling fallback.
type NotificationsConfig struct {
	// PollIntervalSec is how often the notification feed and unread
	// count are refreshed independently of push events.
	PollIntervalSec int `mapstructure:"poll_interval_sec" yaml:"poll_interval_sec"`
}

// InboxConfig holds optional IMAP settings used to pull OTP codes out
// of the verification email. All fields empty disables the feature.
type InboxConfig struct {
	Host     string `mapstructure:"host" yaml:"host"`
	Port     string `mapstructure:"port" yaml:"port"`
	Username string `mapstructure:"username" yaml:"username"`
	TLS      bool   `mapstructure:"tls" yaml:"tls"`
}

// DisplayConfig holds UI preferences.
type DisplayConfig struct {
	Theme string `mapstructure:"theme" yaml:"theme"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	API           APIConfig           `mapstructure:"api" yaml:"api"`
	Cache         CacheConfig         `mapstructure:"cache" yaml:"cache"`
	Realtime      RealtimeConfig      `mapstructure:"realtime" yaml:"realtime"`
	Notifications NotificationsConfig `mapstructure:"notifications" yaml:"notifications"`
	Inbox         InboxConfig         `mapstructure:"inbox" yaml:"inbox"`
	Display       DisplayConfig       `mapstructure:"display" yaml:"display"`
}

// DefaultConfigPath returns the default path for the configuration
// file, located at ~/.config/taskboard/config.yaml.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "config.yaml")
	}
	return filepath.Join(home, ".config", "taskboard", "config.yaml")
}

// defaultAppConfig returns a sensible default configuration.
func defaultAppConfig() *AppConfig {
	return &AppConfig{
		API: APIConfig{
			BaseURL: "http://localhost:3000",
		},
		Cache: CacheConfig{
			StaleAfterSec: 300,
		},
		Realtime: RealtimeConfig{
			MaxReconnects:     5,
			ReconnectDelaySec: 1,
			ConnectTimeoutSec: 10,
		},
		Notifications: NotificationsConfig{
			PollIntervalSec: 30,
		},
		Display: DisplayConfig{
			Theme: "default",
		},
	}
}

// LoadConfig reads configuration from the given YAML file path using
// Viper. If the file does not exist, it returns a default
// configuration.
func LoadConfig(path string) (*AppConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	// Set defaults so missing keys resolve to sensible values.
	v.SetDefault("api.base_url", "http://localhost:3000")
	v.SetDefault("cache.stale_after_sec", 300)
	v.SetDefault("realtime.max_reconnects", 5)
	v.SetDefault("realtime.reconnect_delay_sec", 1)
	v.SetDefault("realtime.connect_timeout_sec", 10)
	v.SetDefault("notifications.poll_interval_sec", 30)
	v.SetDefault("display.theme", "default")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(*os.PathError); ok {
			return defaultAppConfig(), nil
		}
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return defaultAppConfig(), nil
		}
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	cfg := defaultAppConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	return cfg, nil
}

// SaveConfig writes the given configuration to a YAML file at path,
// creating parent directories if needed.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("api", cfg.API)
	v.Set("cache", cfg.Cache)
	v.Set("realtime", cfg.Realtime)
	v.Set("notifications", cfg.Notifications)
	v.Set("inbox", cfg.Inbox)
	v.Set("display", cfg.Display)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}
