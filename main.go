// responder is a terminal client for an emergency-event service.
//
// Its home screen lists emergency events streamed from the service, opens a
// detail view for one event, and offers self-updates when a new release
// manifest is published.
//
// Usage:
//
//	responder [flags]
//
// Flags:
//
//	--config string        Path to configuration file (default: $XDG_CONFIG_HOME/responder/config.toml)
//	--use-mocks            Use sample events and a simulated update instead of real services
//	--metrics-addr string  Serve Prometheus metrics on this address (e.g. :9091)
//	--verbose              Enable debug logging
//	--version              Print version and exit
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
	"github.com/muesli/termenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"gitlab.com/tinyland/lab/responder/pkg/app"
	"gitlab.com/tinyland/lab/responder/pkg/cache"
	"gitlab.com/tinyland/lab/responder/pkg/config"
	"gitlab.com/tinyland/lab/responder/pkg/events"
	"gitlab.com/tinyland/lab/responder/pkg/feed"
	"gitlab.com/tinyland/lab/responder/pkg/update"
)

var (
	version = "0.1.0"
	commit  = "dev"
	date    = "unknown"
)

type flags struct {
	configPath  string
	useMocks    bool
	metricsAddr string
	verbose     bool
}

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "responder: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var f flags
	root := &cobra.Command{
		Use:           "responder",
		Short:         "Follow emergency events from the terminal",
		Version:       fmt.Sprintf("%s (%s) built %s", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), f)
		},
	}
	root.Flags().StringVar(&f.configPath, "config", "", "Path to configuration file")
	root.Flags().BoolVar(&f.useMocks, "use-mocks", false, "Use sample events and a simulated update instead of real services")
	root.Flags().StringVar(&f.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9091)")
	root.Flags().BoolVar(&f.verbose, "verbose", false, "Enable verbose logging")
	return root
}

func run(ctx context.Context, f flags) error {
	var (
		cfg *config.Config
		err error
	)
	if f.configPath != "" {
		cfg, err = config.LoadFromFile(f.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if !isatty.IsTerminal(os.Stdout.Fd()) && !isatty.IsCygwinTerminal(os.Stdout.Fd()) {
		return errors.New("stdout is not a terminal")
	}

	// https://no-color.org
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		lipgloss.SetColorProfile(termenv.Ascii)
	}

	// The TUI owns the terminal, so logs only go to the log file.
	if err := os.MkdirAll(filepath.Dir(cfg.General.LogFile), 0o755); err != nil {
		return fmt.Errorf("create log directory: %w", err)
	}
	logFile, err := os.OpenFile(cfg.General.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer logFile.Close()

	logger := slog.New(slog.NewTextHandler(logFile, &slog.HandlerOptions{
		Level: logLevel(cfg.General.LogLevel, f.verbose),
	}))
	slog.SetDefault(logger)
	logger.Info("starting", "version", version, "commit", commit, "mocks", f.useMocks)

	// Setup context with signal handling
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		select {
		case <-sigChan:
			logger.Info("received shutdown signal")
			cancel()
		case <-ctx.Done():
		}
	}()

	if f.metricsAddr != "" {
		stop := serveMetrics(f.metricsAddr, logger)
		defer stop()
	}

	svc, online, closeEvents, err := newEventService(cfg, f.useMocks, logger)
	if err != nil {
		return err
	}
	defer closeEvents()

	source, closeSource := newUpdateSource(cfg, f.useMocks, logger)
	defer closeSource()

	model, err := app.New(app.Options{
		Events:        svc,
		Updates:       source,
		Online:        online,
		CheckInterval: cfg.Update.CheckInterval.Duration,
		ToastDuration: cfg.UI.ToastDuration.Duration,
		ToastPosition: cfg.UI.ToastPosition,
		Mouse:         cfg.UI.Mouse,
		Logger:        logger,
	})
	if err != nil {
		return err
	}

	opts := []tea.ProgramOption{tea.WithAltScreen(), tea.WithContext(ctx)}
	if cfg.UI.Mouse {
		opts = append(opts, tea.WithMouseCellMotion())
	}
	final, runErr := tea.NewProgram(model, opts...).Run()

	if err := model.Teardown(); err != nil {
		logger.Warn("teardown", "error", err)
	}
	if runErr != nil && !errors.Is(runErr, tea.ErrProgramKilled) {
		logger.Error("TUI error", "error", runErr)
		return runErr
	}

	if m, ok := final.(app.Model); ok && m.ReloadRequested() {
		closeSource()
		closeEvents()
		if err := reexec(logger); err != nil {
			logger.Warn("reload unavailable, exiting; start responder again to use the new version", "error", err)
		}
	}
	return nil
}

func logLevel(name string, verbose bool) slog.Level {
	if verbose {
		return slog.LevelDebug
	}
	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// serveMetrics exposes the Prometheus registry and returns a shutdown func.
func serveMetrics(addr string, logger *slog.Logger) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		logger.Info("metrics server listening", "address", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "error", err)
		}
	}()
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}

// newEventService returns the data-fetch service, its reachability feed
// (nil for mocks) and a close func.
func newEventService(cfg *config.Config, useMocks bool, logger *slog.Logger) (events.Service, *feed.Feed[events.OnlineChange], func(), error) {
	if useMocks {
		logger.Info("using sample events")
		return events.NewSampleService(time.Now()), nil, func() {}, nil
	}
	if cfg.Events.BaseURL == "" {
		return nil, nil, nil, errors.New("events.base_url is not configured (set RESPONDER_API_URL or use --use-mocks)")
	}

	store, err := cache.NewStore(cache.StoreConfig{
		Dir: filepath.Join(cfg.General.CacheDir, "events"),
		TTL: cfg.Events.OfflineTTL.Or(10 * time.Minute),
	})
	if err != nil {
		logger.Warn("offline cache unavailable", "error", err)
		store = nil
	}

	svc, err := events.NewHTTPService(events.HTTPConfig{
		BaseURL:      cfg.Events.BaseURL,
		PollInterval: cfg.Events.PollInterval.Duration,
		Timeout:      cfg.Events.RequestTimeout.Or(15 * time.Second),
		Cache:        store,
		Logger:       logger,
	})
	if err != nil {
		return nil, nil, nil, err
	}
	return svc, svc.OnlineChanges(), sync.OnceFunc(svc.Close), nil
}

// newUpdateSource returns the update backend and a close func. In mock mode
// the first check announces a simulated release.
func newUpdateSource(cfg *config.Config, useMocks bool, logger *slog.Logger) (update.Source, func()) {
	current := update.Version{Version: version}
	if cfg.Update.Version != "" {
		current.Version = cfg.Update.Version
	}
	if commit != "dev" {
		current.Hash = commit
	}

	if useMocks {
		src := update.NewMockSource()
		var once sync.Once
		src.CheckFunc = func(context.Context) error {
			once.Do(func() {
				src.PublishAvailable(update.AvailableNotice{
					Current: current,
					Available: update.Version{
						Version: current.Version + "-next",
						AppData: map[string]any{"updateMessage": "simulated release"},
					},
				})
			})
			return nil
		}
		return src, func() {}
	}

	src := update.NewManifestSource(update.ManifestConfig{
		Enabled:  cfg.Update.Enabled,
		URL:      cfg.Update.ManifestURL,
		Current:  current,
		StateDir: filepath.Join(cfg.General.CacheDir, "update"),
		Logger:   logger,
	})
	if !src.Enabled() {
		logger.Info("update checks disabled")
	}
	return src, sync.OnceFunc(src.Close)
}
