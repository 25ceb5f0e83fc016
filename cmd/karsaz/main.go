// cmd/karsaz/main.go
//
// This is the entry point for the karsaz CLI.
//
//	karsaz          sign in, pick a company and log one activity
//	karsaz logout   forget the saved session
//	karsaz version  print the build version
//
// Flow:
// 1. Resolve and initialize the home directory (~/.karsaz)
// 2. Load config, open the logs and the credential store
// 3. Launch the TUI, then print what was created

package main

import (
	"context"
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/kingrea/karsaz/internal/config"
	"github.com/kingrea/karsaz/internal/credstore"
	"github.com/kingrea/karsaz/internal/crm"
	"github.com/kingrea/karsaz/internal/flow"
	"github.com/kingrea/karsaz/internal/logbook"
	"github.com/kingrea/karsaz/internal/logging"
	"github.com/kingrea/karsaz/internal/telemetry"
	"github.com/kingrea/karsaz/internal/tui"
)

// version is set with -ldflags "-X main.version=...".
var version = "dev"

const serviceName = "karsaz"

func main() {
	command := ""
	if len(os.Args) > 1 {
		command = os.Args[1]
	}
	switch command {
	case "", "run":
	case "logout":
	case "version", "--version", "-v":
		fmt.Println(version)
		return
	case "help", "--help", "-h":
		fmt.Println("usage: karsaz [run|logout|version]")
		return
	default:
		fmt.Fprintf(os.Stderr, "Unknown command %q (try: karsaz help)\n", command)
		os.Exit(2)
	}

	if err := run(command); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(command string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	home, err := config.ResolveHomeDir()
	if err != nil {
		return err
	}
	if err := config.InitHomeDir(home); err != nil {
		return fmt.Errorf("initializing %s: %w", home, err)
	}
	cfg, err := config.Load(home)
	if err != nil {
		return err
	}

	logger, closeLog, err := logging.New(cfg.LogsDir(), cfg.File.Log.Level)
	if err != nil {
		return err
	}
	defer func() { _ = closeLog() }()

	lb, err := logbook.New(cfg.JourneyLogPath())
	if err != nil {
		return fmt.Errorf("opening logbook: %w", err)
	}

	shutdown, err := telemetry.Setup(ctx, telemetry.Settings{
		Endpoint: cfg.File.Telemetry.OTLPEndpoint,
		Insecure: cfg.File.Telemetry.Insecure,
	}, serviceName)
	if err != nil {
		// Tracing is optional; keep going without it.
		logger.Warn("telemetry disabled", zap.Error(err))
	}
	defer func() {
		flushCtx, flushCancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer flushCancel()
		_ = shutdown(flushCtx)
	}()

	store, closeStore, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = closeStore() }()

	client := crm.New(cfg.BaseURL(),
		crm.WithLogger(logger.Named("crm")),
		crm.WithTimeout(cfg.Timeout()),
	)
	manager := flow.NewManager(store, client, flow.WithLogbook(lb))

	if command == "logout" {
		if err := manager.Logout(ctx); err != nil {
			return err
		}
		fmt.Println("Signed out.")
		return nil
	}

	logger.Info("starting", zap.String("version", version), zap.String("base_url", cfg.BaseURL()),
		zap.String("store", cfg.File.Store.Backend))
	lb.Info("Session opened · %s", cfg.BaseURL())

	app, err := tui.NewApp(ctx, manager, tui.WithLogbook(lb), tui.WithLogger(logger.Named("tui")))
	if err != nil {
		return err
	}
	// tea.WithAltScreen uses the alternate screen buffer (like vim does)
	p := tea.NewProgram(app, tea.WithAltScreen())
	final, err := p.Run()
	if err != nil {
		return fmt.Errorf("running TUI: %w", err)
	}
	if done, ok := final.(*tui.App); ok {
		if title, created := done.Created(); created {
			fmt.Printf("Activity created: %s\n", title)
		}
	}
	return nil
}

// openStore builds the configured credential store and its closer.
func openStore(cfg *config.Config) (credstore.Store, func() error, error) {
	switch cfg.File.Store.Backend {
	case config.StoreBackendRedis:
		rc := cfg.File.Store.Redis
		client := redis.NewClient(&redis.Options{
			Addr:     rc.Addr,
			Password: rc.Password,
			DB:       rc.DB,
		})
		return credstore.NewRedisStore(client, rc.Key), client.Close, nil
	default:
		return credstore.NewFileStore(cfg.StorePath()), func() error { return nil }, nil
	}
}
