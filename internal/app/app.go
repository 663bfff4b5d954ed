// Package app wires the voxportal subsystems into a running server.
//
// The App owns the full lifecycle: [New] builds the HTTP surface and the page
// manager, [App.Run] serves until the context is cancelled, and
// [App.Shutdown] drains readiness, closes every page and stops the server.
//
// For testing, inject doubles via functional options. [App.Handler] exposes
// the HTTP handler so tests can serve it from httptest.
package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"
	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/voxportal/internal/config"
	"github.com/MrWong99/voxportal/internal/coordinator"
	"github.com/MrWong99/voxportal/internal/health"
	"github.com/MrWong99/voxportal/internal/observe"
)

// App owns all subsystem lifetimes.
type App struct {
	cfg     *config.Config
	watcher *config.Watcher

	pages          *PageManager
	health         *health.Handler
	metrics        *observe.Metrics
	metricsHandler http.Handler
	handler        http.Handler
	server         *http.Server
	log            *slog.Logger
	level          *slog.LevelVar

	origins atomic.Pointer[[]string]

	// pagesCtx is cancelled by Shutdown to end every page.
	pagesCtx    context.Context
	cancelPages context.CancelFunc

	// closers are called in order during Shutdown.
	closers []func(context.Context) error

	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithWatcher hot-reloads configuration from w. The watcher's current config
// replaces the one passed to [New].
func WithWatcher(w *config.Watcher) Option {
	return func(a *App) { a.watcher = w }
}

// WithMetrics sets the metric instruments. Default: [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithMetricsHandler serves h on the telemetry metrics path. Without it the
// path is not registered.
func WithMetricsHandler(h http.Handler) Option {
	return func(a *App) { a.metricsHandler = h }
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(a *App) { a.log = l }
}

// WithLevelVar lets configuration reloads change the log level.
func WithLevelVar(v *slog.LevelVar) Option {
	return func(a *App) { a.level = v }
}

// WithCloser registers fn to run during [App.Shutdown], after the server has
// stopped. fn receives the shutdown context, which is bounded by
// server.shutdown_timeout when shutdown is triggered by [App.Run].
func WithCloser(fn func(context.Context) error) Option {
	return func(a *App) { a.closers = append(a.closers, fn) }
}

// ─── New ─────────────────────────────────────────────────────────────────────

// New creates an App from cfg. It does not listen until [App.Run].
func New(cfg *config.Config, opts ...Option) (*App, error) {
	a := &App{cfg: cfg}
	for _, o := range opts {
		o(a)
	}
	if a.watcher != nil {
		a.cfg = a.watcher.Current()
	}
	if a.cfg == nil {
		return nil, errors.New("app: no configuration")
	}
	if a.log == nil {
		a.log = slog.Default()
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}
	a.pagesCtx, a.cancelPages = context.WithCancel(context.Background())

	origins := a.cfg.Server.AllowedOrigins
	a.origins.Store(&origins)

	a.pages = NewPageManager(PageManagerConfig{
		Settings: func() coordinator.Config { return a.currentConfig().Coordinator() },
		Grammar:  a.cfg.Grammar(),
		MaxPages: a.cfg.Server.MaxPages,
		Metrics:  a.metrics,
		Logger:   a.log,
	})

	a.health = health.New(
		health.Checker{Name: "pages", Check: a.pages.Ready},
	)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /ws", a.serveWS)
	mux.HandleFunc("GET /debug/pages", a.servePages)
	a.health.Register(mux)
	if a.metricsHandler != nil {
		mux.Handle("GET "+a.cfg.Telemetry.MetricsPath, a.metricsHandler)
	}
	a.handler = observe.Middleware(a.metrics)(mux)

	a.server = &http.Server{
		Addr:              a.cfg.Server.ListenAddr,
		Handler:           a.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return a, nil
}

// Handler returns the HTTP handler with middleware applied.
func (a *App) Handler() http.Handler { return a.handler }

// Pages returns the page manager.
func (a *App) Pages() *PageManager { return a.pages }

func (a *App) currentConfig() *config.Config {
	if a.watcher != nil {
		return a.watcher.Current()
	}
	return a.cfg
}

// ─── HTTP ────────────────────────────────────────────────────────────────────

// serveWS upgrades a page connection and runs its voice cycle.
func (a *App) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: *a.origins.Load(),
	})
	if err != nil {
		// Accept has already written the error response.
		a.log.Debug("websocket upgrade rejected", "remote", r.RemoteAddr, "err", err)
		return
	}
	defer conn.CloseNow()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	stop := context.AfterFunc(a.pagesCtx, cancel)
	defer stop()

	if err := a.pages.Serve(ctx, conn); err != nil {
		observe.Logger(ctx).Warn("page ended with error", "remote", r.RemoteAddr, "err", err)
		return
	}
	conn.Close(websocket.StatusNormalClosure, "")
}

// servePages lists connected pages as JSON.
func (a *App) servePages(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	if err := json.NewEncoder(w).Encode(a.pages.List()); err != nil {
		a.log.Warn("encode page list", "err", err)
	}
}

// ─── Run ─────────────────────────────────────────────────────────────────────

// Run serves HTTP and watches the config file until ctx is cancelled, then
// shuts down within the configured shutdown timeout.
func (a *App) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", a.server.Addr)
	if err != nil {
		return fmt.Errorf("app: listen %s: %w", a.server.Addr, err)
	}
	return a.Serve(ctx, ln)
}

// Serve is [App.Run] on an existing listener.
func (a *App) Serve(ctx context.Context, ln net.Listener) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.log.Info("http server listening", "addr", ln.Addr().String())
		if err := a.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("app: serve: %w", err)
		}
		return nil
	})

	if a.watcher != nil {
		g.Go(func() error { return a.watcher.Run(gctx) })
	}

	g.Go(func() error {
		select {
		case <-gctx.Done():
		case <-a.pagesCtx.Done():
		}
		sctx, cancel := context.WithTimeout(context.Background(), a.currentConfig().Server.ShutdownTimeout)
		defer cancel()
		return a.Shutdown(sctx)
	})

	return g.Wait()
}

// ─── Config reload ───────────────────────────────────────────────────────────

// OnConfigChange applies a reloaded configuration. Pass it as the watcher
// callback.
func (a *App) OnConfigChange(old, new *config.Config) {
	d := config.Diff(old, new)
	ctx := context.Background()
	if !d.Changed() {
		a.metrics.RecordConfigReload(ctx, "unchanged")
		return
	}

	if d.LogLevelChanged && a.level != nil {
		a.level.Set(SlogLevel(d.NewLogLevel))
		a.log.Info("log level changed", "level", d.NewLogLevel)
	}
	if d.VocabularyChanged {
		a.pages.SetGrammar(new.Grammar())
		a.log.Info("voice vocabulary reloaded",
			"wake_phrases", len(new.Voice.WakePhrases),
			"pages", a.pages.Count(),
		)
	}
	if d.OriginsChanged {
		origins := new.Server.AllowedOrigins
		a.origins.Store(&origins)
		a.log.Info("allowed origins changed", "origins", origins)
	}
	if d.SessionChanged {
		a.log.Info("voice settings changed; applies to pages opened from now on")
	}
	if len(d.RestartRequired) > 0 {
		a.log.Warn("config changes require a restart", "fields", d.RestartRequired)
	}
	a.metrics.RecordConfigReload(ctx, "applied")
}

// SlogLevel converts a config log level to a slog level.
func SlogLevel(l config.LogLevel) slog.Level {
	switch l {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ─── Shutdown ────────────────────────────────────────────────────────────────

// Shutdown fails readiness, ends every page, stops the HTTP server and runs
// the registered closers. If ctx expires first, remaining closers are skipped
// and the context error is returned. It is idempotent.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		a.log.Info("shutting down", "pages", a.pages.Count(), "closers", len(a.closers))

		a.health.Drain()
		if a.watcher != nil {
			a.watcher.Stop()
		}
		a.cancelPages()

		if err := a.server.Shutdown(ctx); err != nil {
			a.log.Warn("http server shutdown", "err", err)
			shutdownErr = err
		}

		for i, closer := range a.closers {
			select {
			case <-ctx.Done():
				a.log.Warn("shutdown deadline exceeded", "remaining", len(a.closers)-i)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := closer(ctx); err != nil {
				a.log.Warn("closer error", "index", i, "err", err)
			}
		}

		a.log.Info("shutdown complete")
	})
	return shutdownErr
}
