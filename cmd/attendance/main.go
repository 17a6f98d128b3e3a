package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/example/attendance-tracker/internal/application"
	"github.com/example/attendance-tracker/internal/config"
	"github.com/example/attendance-tracker/internal/docstore"
	"github.com/example/attendance-tracker/internal/docstore/memory"
	"github.com/example/attendance-tracker/internal/docstore/sqlite"
	"github.com/example/attendance-tracker/internal/fleet"
	httptransport "github.com/example/attendance-tracker/internal/http"
	"github.com/example/attendance-tracker/internal/logging"
	"github.com/example/attendance-tracker/internal/telemetry"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.New(os.Stderr, slog.LevelInfo).Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	logger := logging.New(os.Stdout, cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("attendance service stopped with error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	shutdownTracing, err := telemetry.Setup(ctx, logging.ServiceName, cfg.OTLPEndpoint)
	if err != nil {
		return err
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.Error("failed to flush traces", "error", err)
		}
	}()

	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := store.Close(); cerr != nil {
			logger.Error("failed to close storage", "error", cerr)
		}
	}()

	app := newApp(store, logger)
	if err := bootstrapAdmin(ctx, app.directory, cfg); err != nil {
		return err
	}

	if err := app.aggregator.Start(ctx); err != nil {
		return fmt.Errorf("start aggregator: %w", err)
	}
	defer app.aggregator.Stop()

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           app.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("attendance API listening", "addr", server.Addr, "store_backend", cfg.StoreBackend)
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("shutdown server: %w", err)
	}
	logger.Info("attendance API stopped")
	return nil
}

// backend is a document store owned by the process.
type backend interface {
	docstore.Store
	Close() error
}

func openStore(ctx context.Context, cfg config.Config, logger *slog.Logger) (backend, error) {
	switch cfg.StoreBackend {
	case config.BackendMemory:
		logger.Warn("using in-memory store; data is lost on exit")
		return memory.New(), nil
	case config.BackendSQLite:
		store, err := sqlite.Open(ctx, sqlite.DefaultConfig(cfg.SQLitePath), logger)
		if err != nil {
			return nil, fmt.Errorf("open storage: %w", err)
		}
		if cfg.RunMigrations {
			if err := store.Migrate(ctx); err != nil {
				_ = store.Close()
				return nil, fmt.Errorf("apply migrations: %w", err)
			}
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}

type app struct {
	directory  *application.Directory
	aggregator *fleet.Aggregator
	handler    http.Handler
}

func newApp(store docstore.Store, logger *slog.Logger) *app {
	directory := application.NewDirectoryWithLogger(store, nil, logger)
	gateway := application.NewGatewayWithLogger(store, logger)
	history := application.NewHistory(store, logger)

	aggregator := fleet.New(fleet.Config{
		Store:  store,
		Logger: logger,
		OnError: func(ev fleet.ErrorEvent) {
			logger.Error("administrator view is missing live data",
				"user_id", ev.UserID,
				"collection", ev.Collection,
				"error", ev.Err,
				"error_kind", application.ErrorKind(ev.Err),
			)
		},
	})

	router := httptransport.NewRouter(httptransport.RouterConfig{
		Users:      httptransport.NewUserHandler(directory, logger),
		Attendance: httptransport.NewAttendanceHandler(gateway, history, logger),
		Admin:      httptransport.NewAdminHandler(gateway, aggregator, logger),
		Logger:     logger,
		Middleware: []func(http.Handler) http.Handler{
			httptransport.RequestLogger(logger),
			httptransport.AttachSession(directory, logger),
		},
	})

	return &app{directory: directory, aggregator: aggregator, handler: router}
}

// bootstrapAdmin registers the configured administrator unless it exists.
func bootstrapAdmin(ctx context.Context, directory *application.Directory, cfg config.Config) error {
	if cfg.BootstrapAdminID == "" {
		return nil
	}
	_, err := directory.RegisterUser(ctx, application.RegisterUserParams{
		ID:    cfg.BootstrapAdminID,
		Email: cfg.BootstrapAdminEmail,
		Role:  application.RoleAdmin,
	})
	if err != nil && !errors.Is(err, application.ErrAlreadyExists) {
		return fmt.Errorf("bootstrap admin: %w", err)
	}
	return nil
}
