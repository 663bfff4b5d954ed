// Command voxportal is the voice command server for the statistics audio
// portal. Browser pages connect over a websocket and receive recognition,
// speech and navigation instructions driven by the server-side voice cycle.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/MrWong99/voxportal/internal/app"
	"github.com/MrWong99/voxportal/internal/config"
	"github.com/MrWong99/voxportal/internal/observe"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	watch := flag.Duration("watch", 5*time.Second, "config file poll interval (0 disables hot reload)")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "voxportal: config file %q not found; copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "voxportal: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	var level slog.LevelVar
	level.Set(app.SlogLevel(cfg.Server.LogLevel))
	logger := newLogger(os.Stderr, cfg.Server.LogFormat, &level)
	slog.SetDefault(logger)

	slog.Info("voxportal starting",
		"version", version,
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Telemetry ─────────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	provider, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName:    cfg.Telemetry.ServiceName,
		ServiceVersion: version,
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}

	opts := []app.Option{
		app.WithLogger(logger),
		app.WithLevelVar(&level),
		app.WithMetricsHandler(provider.MetricsHandler()),
		// Telemetry flushes within the shutdown deadline the app applies.
		app.WithCloser(provider.Shutdown),
	}

	// ── Config hot reload ─────────────────────────────────────────────────────
	// The watcher only polls once the app runs it, so application is set by
	// the time the callback can fire.
	var application *app.App
	if *watch > 0 {
		w, err := config.NewWatcher(*configPath,
			func(old, new *config.Config) { application.OnConfigChange(old, new) },
			config.WithInterval(*watch),
			config.WithWatcherLogger(logger),
		)
		if err != nil {
			slog.Error("failed to watch config", "err", err)
			return 1
		}
		opts = append(opts, app.WithWatcher(w))
	}

	application, err = app.New(cfg, opts...)
	if err != nil {
		slog.Error("failed to initialise application", "err", err)
		return 1
	}

	printStartupSummary(cfg, *watch)
	slog.Info("server ready; press Ctrl+C to shut down")

	if err := application.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config, watch time.Duration) {
	wake := strings.Join(cfg.Voice.WakePhrases, ", ")
	if wake == "" {
		wake = "(built-in)"
	}
	origins := strings.Join(cfg.Server.AllowedOrigins, ", ")
	if origins == "" {
		origins = "(same origin)"
	}
	maxPages := "unlimited"
	if cfg.Server.MaxPages > 0 {
		maxPages = fmt.Sprint(cfg.Server.MaxPages)
	}
	reload := "off"
	if watch > 0 {
		reload = "every " + watch.String()
	}

	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║       Voxportal: startup summary      ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	printRow("Listen addr", cfg.Server.ListenAddr)
	printRow("Language", cfg.Voice.Language)
	printRow("Wake phrases", wake)
	printRow("Origins", origins)
	printRow("Max pages", maxPages)
	printRow("Metrics", cfg.Telemetry.MetricsPath)
	printRow("Hot reload", reload)
	fmt.Println("╚═══════════════════════════════════════╝")
}

func printRow(label, value string) {
	if r := []rune(value); len(r) > 19 {
		value = string(r[:18]) + "…"
	}
	fmt.Printf("║  %-14s  : %-19s ║\n", label, value)
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func newLogger(w io.Writer, format config.LogFormat, level slog.Leveler) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	if format == config.LogFormatJSON {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
