package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	apperrors "github.com/cfd24/hoyolab-auto/internal/errors"
)

// EnvPrefix is the prefix of environment variables overriding file values,
// e.g. HOYOLAB_LOGGER_LEVEL=debug.
const EnvPrefix = "HOYOLAB"

const watchDebounce = 250 * time.Millisecond

// Load loads and validates configuration from:
// 1. Default values
// 2. the YAML file at path
// 3. HOYOLAB_* environment variables
func Load(path string) (*Config, error) {
	v := newViper(path)

	if err := v.ReadInConfig(); err != nil {
		return nil, apperrors.NewConfigError(apperrors.LoadFailed, path, fmt.Errorf("failed to read config file: %w", err))
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, apperrors.NewConfigError(apperrors.LoadFailed, path, fmt.Errorf("failed to parse config: %w", err))
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Watch reloads the file at path whenever it changes on disk and passes the
// validated configuration to onChange. Edits that fail to load are logged
// and otherwise ignored, so the running state is kept. Once ctx is done no
// further reload reaches onChange.
func Watch(ctx context.Context, path string, logger *slog.Logger, onChange func(*Config)) {
	if logger == nil {
		logger = slog.Default()
	}
	log := logger.With("component", "config_watcher")

	var (
		mu    sync.Mutex
		timer *time.Timer
	)
	reload := func() {
		if ctx.Err() != nil {
			return
		}
		cfg, err := Load(path)
		if err != nil {
			log.Error("Ignoring invalid configuration change", "path", path, "error", err)
			return
		}
		if ctx.Err() != nil {
			return
		}
		log.Info("Configuration reloaded", "path", path)
		onChange(cfg)
	}

	v := newViper(path)
	v.OnConfigChange(func(e fsnotify.Event) {
		if ctx.Err() != nil {
			return
		}
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		log.Debug("Configuration file changed", "path", e.Name, "op", e.Op.String())

		// editors often write in several steps
		mu.Lock()
		defer mu.Unlock()
		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(watchDebounce, reload)
	})
	v.WatchConfig()
	log.Info("Watching configuration file", "path", path)

	go func() {
		<-ctx.Done()
		mu.Lock()
		defer mu.Unlock()
		if timer != nil {
			timer.Stop()
		}
		log.Debug("Stopped watching configuration file", "path", path)
	}()
}

func newViper(path string) *viper.Viper {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	if filepath.Ext(path) == "" {
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v
}
