package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"sync"
	"syscall"
	"time"

	"github.com/Riboost-Studio/refugio-pos-printing/internal/api"
	"github.com/Riboost-Studio/refugio-pos-printing/internal/checkout"
	"github.com/Riboost-Studio/refugio-pos-printing/internal/config"
	"github.com/Riboost-Studio/refugio-pos-printing/internal/fallback"
	"github.com/Riboost-Studio/refugio-pos-printing/internal/logger"
	"github.com/Riboost-Studio/refugio-pos-printing/internal/model"
	"github.com/Riboost-Studio/refugio-pos-printing/internal/printer"
	"github.com/Riboost-Studio/refugio-pos-printing/internal/services"
	"github.com/Riboost-Studio/refugio-pos-printing/internal/settings"
	"github.com/Riboost-Studio/refugio-pos-printing/internal/telemetry"
	"github.com/Riboost-Studio/refugio-pos-printing/internal/utils"
)

const (
	appName    = "Refugio POS Printing"
	appVersion = "1.0.0"
	appAuthor  = "Riboost Studio"
)

// --- Main ---

func main() {
	configFile := flag.String("config", "config/pos.yaml", "path to the YAML or JSON config file")
	discover := flag.Bool("discover", false, "scan the local network for printers before starting")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = context.WithValue(ctx, model.ContextAppName, appName)
	ctx = context.WithValue(ctx, model.ContextAppVersion, appVersion)
	ctx = context.WithValue(ctx, model.ContextAppAuthor, appAuthor)
	ctx = context.WithValue(ctx, model.ContextConfigFile, *configFile)

	if err := run(ctx, *discover); err != nil {
		log.Fatal("Fatal: ", err)
	}
}

func run(ctx context.Context, forceDiscovery bool) error {
	// 1. Load Configuration
	cfg, err := config.LoadOrSetup(ctx, os.Stdin, os.Stdout)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	lg := logger.New(os.Stdout, "pos-terminal", cfg.Log.Level, cfg.Log.Format)
	slog.SetDefault(lg)
	lg.Info("configuration loaded", "version", cfg.App.Version, "hub", cfg.Hub.URL, "settings", cfg.Settings.Driver)
	sys := utils.DetectSystem()
	lg.Info("system detected", "os", sys.OS, "arch", sys.Architecture, "chrome", sys.ChromePresent)

	shutdownTelemetry, err := telemetry.Init(ctx, cfg.Telemetry, "pos-terminal", appVersion, nil)
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(sctx); err != nil {
			lg.Warn("telemetry shutdown", "error", err)
		}
	}()

	// 2. Load Printers
	store, err := openSettings(cfg, lg)
	if err != nil {
		return err
	}
	defer store.Close()
	if err := store.Seed(ctx, cfg.Printers, cfg.Routes); err != nil {
		return fmt.Errorf("seed settings: %w", err)
	}

	// 3. Discovery (if no printers found or forced)
	printers, err := store.Printers(ctx)
	if err != nil {
		return err
	}
	discovery := services.NewDiscovery(store, nil, nil, lg)
	if len(printers) == 0 || forceDiscovery {
		fmt.Println("Starting printer discovery...")
		interactive := services.NewDiscovery(store, nil, services.NewPrompt(os.Stdin, os.Stdout), lg)
		added, err := interactive.Run(ctx)
		if err != nil {
			lg.Warn("printer discovery failed", "error", err)
		}
		fmt.Printf("%d printer(s) added.\n", len(added))
	}

	// 4. Printing pipeline
	opts, err := cfg.TransportOptions()
	if err != nil {
		return err
	}
	opts.Logger = lg
	transport := printer.NewHTTPTransport(opts)
	encoder := cfg.Encoder()
	coord := checkout.NewCoordinator(transport,
		checkout.WithEncoder(encoder),
		checkout.WithLogger(lg),
		checkout.WithParallelism(cfg.Printing.Parallelism),
	)

	var renderer fallback.Renderer = fallback.HTMLRenderer{}
	if chrome, err := utils.ValidateChrome(cfg.Fallback.ChromePath); err != nil {
		lg.Warn("manual print limited to HTML", "error", err, "hint", utils.ChromeInstallHint(runtime.GOOS))
	} else {
		lg.Info("manual print browser found", "path", chrome, "version", utils.ChromeVersion(chrome))
		renderer = fallback.NewChromeRenderer(chrome, cfg.Fallback.Timeout.Std(), lg)
	}

	// 5. Start Agent and API
	var releaser checkout.TableReleaser = checkout.ReleaseFunc(func(_ context.Context, table string) error {
		lg.Info("table released", "table", table)
		return nil
	})
	var agent *services.Agent
	if cfg.Hub.Enabled {
		agent = services.NewAgent(services.AgentOptions{
			URL:         cfg.Hub.URL,
			APIKey:      cfg.Hub.APIKey,
			TerminalKey: cfg.App.TerminalKey,
			Version:     appVersion,
			Logger:      lg,
		}, store, transport, encoder)
		releaser = agent
	}
	manager := checkout.NewManager(coord, store, renderer, releaser, lg)

	var wg sync.WaitGroup
	if agent != nil {
		agent.SetCheckouts(manager)
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = agent.Run(ctx)
		}()
	}

	app := api.NewApp(api.Deps{
		Settings:  store,
		Checkouts: manager,
		Transport: transport,
		Encoder:   encoder,
		Discovery: discovery,
		Logger:    lg,
	})
	errc := make(chan error, 1)
	go func() { errc <- app.Listen(cfg.API.Listen) }()

	fmt.Printf("--- System Running. API on %s ---\n", cfg.API.Listen)

	// Wait for interrupt to exit cleanly
	select {
	case <-ctx.Done():
	case err := <-errc:
		if err != nil {
			return fmt.Errorf("api: %w", err)
		}
	}
	fmt.Println("\nShutting down...")

	sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := app.ShutdownWithContext(sctx); err != nil {
		lg.Warn("api shutdown", "error", err)
	}
	wg.Wait()
	return nil
}

func openSettings(cfg config.Config, lg *slog.Logger) (*settings.Store, error) {
	switch cfg.Settings.Driver {
	case config.DriverSQLite:
		db, err := settings.OpenSQLite(cfg.Settings.DSN)
		if err != nil {
			return nil, err
		}
		return settings.New(db, lg), nil
	case config.DriverMemory:
		return settings.New(settings.NewMemory(), lg), nil
	default:
		return nil, fmt.Errorf("unknown settings driver %q", cfg.Settings.Driver)
	}
}
