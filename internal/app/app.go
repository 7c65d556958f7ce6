// Package app wires configuration, storage, accounts, platforms and the
// cron registry together and runs them until the context is cancelled.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/cfd24/hoyolab-auto/internal/bootstrap"
	"github.com/cfd24/hoyolab-auto/internal/config"
	"github.com/cfd24/hoyolab-auto/internal/cron"
	"github.com/cfd24/hoyolab-auto/internal/database"
	"github.com/cfd24/hoyolab-auto/internal/hoyolab"
	"github.com/cfd24/hoyolab-auto/internal/platform"
	"github.com/cfd24/hoyolab-auto/internal/tasks"
)

const (
	runRetention    = 30 * 24 * time.Hour
	shutdownTimeout = 5 * time.Second
)

// Option customises an App.
type Option func(*App)

// WithHTTPClient sets the client used for HoYoLAB and webhook requests.
func WithHTTPClient(hc *http.Client) Option {
	return func(a *App) {
		if hc != nil {
			a.httpClient = hc
		}
	}
}

// WithConfigPath enables hot reload of the cron section from path.
func WithConfigPath(path string) Option {
	return func(a *App) { a.configPath = path }
}

// WithRetryDelay overrides the HoYoLAB client's base retry delay.
func WithRetryDelay(d time.Duration) Option {
	return func(a *App) { a.retryDelay = d }
}

// App owns every long-lived component of the process.
type App struct {
	logger     *slog.Logger
	configPath string
	httpClient *http.Client
	retryDelay time.Duration

	mu  sync.Mutex
	cfg *config.Config

	store      database.Store
	registry   *cron.Registry
	accounts   []tasks.Account
	dispatcher *platform.Dispatcher
	listeners  []platform.Listener
	promReg    *prometheus.Registry
}

// New creates an App for cfg. Nothing is started until Run.
func New(cfg *config.Config, logger *slog.Logger, opts ...Option) *App {
	if logger == nil {
		logger = slog.Default()
	}
	a := &App{
		logger:     logger,
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(a)
	}

	return a
}

// Run starts the application and blocks until ctx is cancelled. It returns
// nil right away when no account or no platform is active. Bootstrap and
// configuration failures are returned before any task runs.
func (a *App) Run(ctx context.Context) error {
	startTime := time.Now()
	cfg := a.config()
	a.logSkipped(cfg)

	if len(cfg.ActivePlatforms()) == 0 {
		a.logger.Warn("No active platforms configured, nothing to do")
		return nil
	}
	if len(cfg.ActiveAccounts()) == 0 {
		a.logger.Warn("No active accounts configured, nothing to do")
		return nil
	}

	db, err := database.NewDB(cfg.Database.Path, a.logger)
	if err != nil {
		return err
	}
	defer database.CloseDB(db, a.logger)

	a.store = database.NewStore(db, a.logger)
	a.maintain(ctx)

	if err := a.connectAccounts(ctx, cfg); err != nil {
		return err
	}
	platforms, err := a.connectPlatforms(ctx, cfg)
	if err != nil {
		return err
	}
	a.dispatcher = platform.NewDispatcher(platforms, cfg.Notifications, a.logger)

	a.promReg = prometheus.NewRegistry()
	a.promReg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	a.registry, err = cron.NewRegistry(a.logger,
		cron.WithRecorder(a.store),
		cron.WithRecorder(cron.NewMetrics(a.promReg)),
		cron.WithBaseContext(ctx),
	)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.registry.Shutdown(); err != nil {
			a.logger.Error("Failed to stop scheduler", "error", err)
		}
	}()

	if _, err := a.registry.Build(tasks.Definitions(a.deps(cfg)), cfg.Crons); err != nil {
		return err
	}

	a.logger.Info("Initialized",
		"accounts", len(a.accounts),
		"platforms", a.dispatcher.Platforms(),
		"tasks", len(a.registry.Entries()),
		"duration_ms", time.Since(startTime).Milliseconds())
	a.notifySystemd(daemon.SdNotifyReady)

	report := a.registry.RunAll(ctx)
	if err := report.Err(); err != nil {
		a.logger.Warn("Initial run finished with failures",
			"failed", len(report.Failed()),
			"succeeded", len(report.Succeeded()),
			"error", err)
	}

	g, gCtx := errgroup.WithContext(ctx)

	if cfg.Metrics.Listen != "" {
		g.Go(func() error {
			return a.serveMetrics(gCtx, cfg.Metrics.Listen)
		})
	}

	commands := tasks.Commands(a.deps(cfg))
	for _, l := range a.listeners {
		g.Go(func() error {
			return l.Listen(gCtx, commands)
		})
	}

	if a.configPath != "" {
		config.Watch(gCtx, a.configPath, a.logger, a.reload)
	}

	g.Go(func() error {
		<-gCtx.Done()
		a.logger.Info("Shutting down")
		a.notifySystemd(daemon.SdNotifyStopping)
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	return nil
}

func (a *App) config() *config.Config {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cfg
}

func (a *App) logSkipped(cfg *config.Config) {
	for i, acc := range cfg.Accounts {
		if !acc.Active {
			a.logger.Warn("Skipping inactive account", "index", i, "type", acc.Type)
		}
	}
	for i, p := range cfg.Platforms {
		if !p.Active {
			a.logger.Warn("Skipping inactive platform", "index", i, "type", p.Type)
		}
	}
}

// maintain prunes old run history and compacts the database. Failures are
// logged only.
func (a *App) maintain(ctx context.Context) {
	pruned, err := a.store.PruneRuns(ctx, time.Now().Add(-runRetention))
	if err != nil {
		a.logger.Warn("Failed to prune task runs", "error", err)
	} else if pruned > 0 {
		a.logger.Info("Pruned old task runs", "count", pruned)
	}

	if err := a.store.RunSQLMaintenance(ctx); err != nil {
		a.logger.Warn("Database maintenance failed", "error", err)
	}
}

func (a *App) connectAccounts(ctx context.Context, cfg *config.Config) error {
	client := hoyolab.NewClient(
		hoyolab.WithHTTPClient(a.httpClient),
		hoyolab.WithLogger(a.logger),
		hoyolab.WithRetryDelay(a.retryDelay),
	)
	factory := hoyolab.NewFactory(client)

	var accounts []*hoyolab.Account
	for _, ac := range cfg.ActiveAccounts() {
		acc, err := factory.Create(ac.Type, ac)
		if err != nil {
			return err
		}
		accounts = append(accounts, acc)
	}

	if err := bootstrap.Connect(ctx, a.logger, "accounts", accounts); err != nil {
		return err
	}

	a.accounts = make([]tasks.Account, 0, len(accounts))
	for _, acc := range accounts {
		a.accounts = append(a.accounts, acc)
	}

	return nil
}

func (a *App) connectPlatforms(ctx context.Context, cfg *config.Config) ([]platform.Platform, error) {
	factory := platform.NewFactory(a.logger, a.httpClient)

	var platforms []platform.Platform
	for _, pc := range cfg.ActivePlatforms() {
		p, err := factory.Create(pc.Type, pc)
		if err != nil {
			return nil, err
		}
		platforms = append(platforms, p)

		if !pc.Commands {
			continue
		}
		if l, ok := p.(platform.Listener); ok {
			a.listeners = append(a.listeners, l)
		} else {
			a.logger.Warn("Platform does not accept commands", "platform", p.ID())
		}
	}

	if err := bootstrap.Connect(ctx, a.logger, "platforms", platforms); err != nil {
		return nil, err
	}

	return platforms, nil
}

func (a *App) deps(cfg *config.Config) tasks.Deps {
	return tasks.Deps{
		Logger:         a.logger,
		Config:         cfg,
		Accounts:       a.accounts,
		Notifier:       a.dispatcher,
		Store:          a.store,
		RedeemCooldown: tasks.DefaultRedeemCooldown,
	}
}

// reload rebuilds the registry from a changed configuration. Accounts and
// platforms keep their bootstrapped sessions; only task settings and
// schedules follow the new file. A rejected cron section leaves the
// current schedules running.
func (a *App) reload(cfg *config.Config) {
	if a.registry == nil {
		return
	}

	entries, err := a.registry.Build(tasks.Definitions(a.deps(cfg)), cfg.Crons)
	switch {
	case errors.Is(err, cron.ErrRegistryClosed):
		a.logger.Debug("Ignoring configuration change after shutdown")
		return
	case err != nil:
		a.logger.Error("Keeping previous schedules", "error", err)
		return
	}

	a.mu.Lock()
	a.cfg = cfg
	a.mu.Unlock()

	a.logger.Info("Schedules rebuilt", "tasks", len(entries))
}

func (a *App) serveMetrics(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(a.promReg, promhttp.HandlerOpts{}))

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("Serving metrics", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("metrics server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Warn("Metrics server shutdown failed", "error", err)
	}

	return nil
}

func (a *App) notifySystemd(state string) {
	sent, err := daemon.SdNotify(false, state)
	if err != nil {
		a.logger.Warn("Failed to notify systemd", "state", state, "error", err)
		return
	}
	if sent {
		a.logger.Debug("Notified systemd", "state", state)
	}
}
