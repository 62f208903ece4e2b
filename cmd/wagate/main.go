// ABOUTME: Entry point for the wagate WhatsApp session gateway
// ABOUTME: Wires config, entitlement gate, store, session registry, and HTTP

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/2389/wagate/internal/config"
	"github.com/2389/wagate/internal/gate"
	"github.com/2389/wagate/internal/httpapi"
	"github.com/2389/wagate/internal/messaging"
	"github.com/2389/wagate/internal/session"
	"github.com/2389/wagate/internal/store"
	"github.com/2389/wagate/internal/transport"
	_ "github.com/2389/wagate/internal/transport/memory"
)

// Version is set by goreleaser at build time.
var version = "dev"

const banner = `
__      ____ _  __ _  __ _| |_ ___
\ \ /\ / / _' |/ _' |/ _' | __/ _ \
 \ V  V / (_| | (_| | (_| | ||  __/
  \_/\_/ \__,_|\__, |\__,_|\__\___|
               |___/
`

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// Local development convenience, a missing .env file is not an error.
	_ = godotenv.Load()

	cyan := color.New(color.FgCyan)
	cyan.Print(banner)
	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", version)

	cfg, err := config.Load(os.Getenv("WAGATE_CONFIG"))
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := setupLogger(cfg.Logging)
	slog.SetDefault(logger)

	green := color.New(color.FgGreen)
	green.Print("    ▶ ")
	fmt.Printf("HTTP:      %s\n", cfg.ListenAddr())
	green.Print("    ▶ ")
	fmt.Printf("Database:  %s\n", cfg.Database.URL)
	green.Print("    ▶ ")
	fmt.Printf("Session:   %s (%s)\n", cfg.Session.ID, cfg.Session.Transport)
	fmt.Println()

	// The entitlement gate runs exactly once and is fatal on failure.
	validator := gate.NewValidator(cfg.Gate.EntitlementURL, cfg.Gate.APIKey, logger)
	if err := validator.Validate(ctx); err != nil {
		return fmt.Errorf("api key validation: %w", err)
	}

	st, err := store.NewSQLiteStore(cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("opening session store: %w", err)
	}
	defer st.Close()

	dial, ok := transport.LookupDialer(cfg.Session.Transport)
	if !ok {
		return fmt.Errorf("unknown transport driver %q (available: %s)",
			cfg.Session.Transport, strings.Join(transport.Drivers(), ", "))
	}

	registry := session.NewRegistry(session.RegistryConfig{
		Store:             st,
		Dial:              dial,
		Logger:            logger,
		ReconnectDelay:    cfg.ReconnectDelay(),
		DisableSelfNotify: cfg.Session.DisableSelfNotify,
	})
	defer registry.Close()

	if err := registry.Initialize(ctx, cfg.Session.ID); err != nil {
		// A failed first connect is not fatal, the manager keeps retrying
		// and /status reports the state.
		logger.Warn("initial session connect failed", "session_id", cfg.Session.ID, "error", err)
	}

	svc := messaging.NewService(registry, logger)
	api := httpapi.NewServer(svc, cfg.Session.ID, logger)

	httpServer := &http.Server{
		Addr:              cfg.ListenAddr(),
		Handler:           api,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("starting wagate", "addr", cfg.ListenAddr(), "session_id", cfg.Session.ID)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	logger.Info("wagate stopped")
	return err
}

func setupLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	return slog.New(handler)
}
