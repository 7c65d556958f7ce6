package config

import (
	"time"

	"github.com/spf13/viper"
)

// Default values for configuration
const (
	// Log defaults
	DefaultLogLevel          = "info"
	DefaultLogJSON           = false
	DefaultLogFileMaxSizeMB  = 10
	DefaultLogFileMaxBackups = 3
	DefaultLogFileMaxAgeDays = 28

	// Database defaults
	DefaultDBPath = "hoyolab.db"

	// Notification defaults
	DefaultNotifyRatePerSec = 1
	DefaultNotifyDedupTTL   = 6 * time.Hour

	// Reminder defaults
	DefaultStaminaThreshold       = 0.95
	DefaultRealmCurrencyThreshold = 0.9
)

// setDefaults sets default values for optional configuration parameters
func setDefaults(v *viper.Viper) {
	v.SetDefault("logger.level", DefaultLogLevel)
	v.SetDefault("logger.json", DefaultLogJSON)
	v.SetDefault("logger.file.max_size_mb", DefaultLogFileMaxSizeMB)
	v.SetDefault("logger.file.max_backups", DefaultLogFileMaxBackups)
	v.SetDefault("logger.file.max_age_days", DefaultLogFileMaxAgeDays)

	v.SetDefault("database.path", DefaultDBPath)

	v.SetDefault("notifications.rate_per_sec", DefaultNotifyRatePerSec)
	v.SetDefault("notifications.dedup_ttl", DefaultNotifyDedupTTL)

	v.SetDefault("reminders.stamina_threshold", DefaultStaminaThreshold)
	v.SetDefault("reminders.realm_currency_threshold", DefaultRealmCurrencyThreshold)

	v.SetDefault("crons.blacklist", []string{})
	v.SetDefault("crons.whitelist", []string{})
}
