// Package config provides configuration loading, validation, and management
// for hoyolab-auto. It reads a YAML file through viper, applies defaults and
// HOYOLAB_* environment overrides, and validates the result.
package config

import (
	"strings"
	"time"
)

// Config defines the application configuration parameters for all components.
type Config struct {
	Logger        LoggerConfig       `mapstructure:"logger"`
	Database      DatabaseConfig     `mapstructure:"database"`
	Metrics       MetricsConfig      `mapstructure:"metrics"`
	Notifications NotificationConfig `mapstructure:"notifications"`
	Reminders     ReminderConfig     `mapstructure:"reminders"`
	Redeem        RedeemConfig       `mapstructure:"redeem"`
	Crons         CronConfig         `mapstructure:"crons"`
	Accounts      []AccountConfig    `mapstructure:"accounts"  validate:"dive"`
	Platforms     []PlatformConfig   `mapstructure:"platforms" validate:"dive"`
}

// LoggerConfig controls the slog handler and optional rotating file sink.
type LoggerConfig struct {
	Level string     `mapstructure:"level" validate:"oneof=debug info warn error"`
	JSON  bool       `mapstructure:"json"`
	File  FileConfig `mapstructure:"file"`
}

// FileConfig enables a lumberjack-rotated log file next to stdout.
type FileConfig struct {
	Path       string `mapstructure:"path"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"  validate:"gte=0"`
	MaxBackups int    `mapstructure:"max_backups"  validate:"gte=0"`
	MaxAgeDays int    `mapstructure:"max_age_days" validate:"gte=0"`
	Compress   bool   `mapstructure:"compress"`
}

// DatabaseConfig points at the SQLite file holding run history and caches.
type DatabaseConfig struct {
	Path string `mapstructure:"path" validate:"required"`
}

// MetricsConfig exposes Prometheus metrics when Listen is set (e.g. ":9090").
type MetricsConfig struct {
	Listen string `mapstructure:"listen" validate:"omitempty,hostname_port"`
}

// NotificationConfig throttles and de-duplicates outgoing platform messages.
type NotificationConfig struct {
	RatePerSec int           `mapstructure:"rate_per_sec" validate:"gte=1"`
	DedupTTL   time.Duration `mapstructure:"dedup_ttl"    validate:"gte=0"`
}

// ReminderConfig holds thresholds used by the reminder tasks.
type ReminderConfig struct {
	// StaminaThreshold is the fraction of max stamina that triggers a reminder.
	StaminaThreshold float64 `mapstructure:"stamina_threshold" validate:"gt=0,lte=1"`
	// RealmCurrencyThreshold is the fraction of the realm currency cap.
	RealmCurrencyThreshold float64 `mapstructure:"realm_currency_threshold" validate:"gt=0,lte=1"`
}

// RedeemConfig lists gift codes the code-redeem task tries on every account.
type RedeemConfig struct {
	Codes []string `mapstructure:"codes" validate:"dive,required"`
}

// CronConfig is the `crons` section. Blacklist and whitelist are mutually
// exclusive; every other key is a schedule override keyed by the task's
// camel-case name.
type CronConfig struct {
	Blacklist []string          `mapstructure:"blacklist"`
	Whitelist []string          `mapstructure:"whitelist"`
	Schedules map[string]string `mapstructure:",remain"`
}

// Schedule returns the override expression for a mapped task name.
// Viper folds keys to lower case, so the lookup ignores case.
func (c CronConfig) Schedule(name string) (string, bool) {
	if expr, ok := c.Schedules[name]; ok && strings.TrimSpace(expr) != "" {
		return expr, true
	}
	for key, expr := range c.Schedules {
		if strings.EqualFold(key, name) && strings.TrimSpace(expr) != "" {
			return expr, true
		}
	}

	return "", false
}

// AccountConfig describes one HoYoLAB game account.
type AccountConfig struct {
	Type   string `mapstructure:"type"   validate:"required,oneof=genshin starrail honkai zenless"`
	Active bool   `mapstructure:"active"`
	Cookie string `mapstructure:"cookie" validate:"required_if=Active true"`
	// UID pins a specific in-game role when the cookie owns several.
	UID string `mapstructure:"uid"`
	// Notify disables platform messages for this account when false.
	Notify *bool `mapstructure:"notify"`
}

// NotifyEnabled reports whether results for the account should be sent to platforms.
func (a AccountConfig) NotifyEnabled() bool {
	return a.Notify == nil || *a.Notify
}

// PlatformConfig describes one notification platform.
type PlatformConfig struct {
	Type   string `mapstructure:"type"    validate:"required,oneof=telegram webhook"`
	Active bool   `mapstructure:"active"`
	ID     string `mapstructure:"id"`
	Token  string `mapstructure:"token"   validate:"required_if=Type telegram Active true"`
	ChatID int64  `mapstructure:"chat_id" validate:"required_if=Type telegram Active true"`
	URL    string `mapstructure:"url"     validate:"required_if=Type webhook Active true,omitempty,url"`
	// Commands lets the platform answer chat commands, when it supports them.
	Commands bool `mapstructure:"commands"`
}

// ActiveAccounts returns the accounts whose Active flag is set.
func (c *Config) ActiveAccounts() []AccountConfig {
	var out []AccountConfig
	for _, a := range c.Accounts {
		if a.Active {
			out = append(out, a)
		}
	}

	return out
}

// ActivePlatforms returns the platforms whose Active flag is set.
func (c *Config) ActivePlatforms() []PlatformConfig {
	var out []PlatformConfig
	for _, p := range c.Platforms {
		if p.Active {
			out = append(out, p)
		}
	}

	return out
}
