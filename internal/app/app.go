package app

import (
	"context"
	"fmt"

	"github.com/F-O-T/contentagen-nx-sub000/internal/http"
	"github.com/F-O-T/contentagen-nx-sub000/internal/observability"
	"github.com/F-O-T/contentagen-nx-sub000/internal/platform/logger"
)

type App struct {
	Log      *logger.Logger
	Cfg      Config
	Clients  Clients
	Services Services
	Server   *http.Server

	shutdownOtel func(context.Context) error
}

func New(ctx context.Context) (*App, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return nil, err
	}
	log, err := logger.New(cfg.LogMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	log.Info("Configuration loaded", "queue_backend", cfg.Queue.Backend, "port", cfg.HTTP.Port)

	shutdownOtel := observability.InitOTel(ctx, log, cfg.Otel)

	clients, err := wireClients(ctx, log, cfg)
	if err != nil {
		_ = shutdownOtel(ctx)
		log.Sync()
		return nil, err
	}

	serviceset, err := wireServices(log, cfg, clients)
	if err != nil {
		clients.Close(ctx)
		_ = shutdownOtel(ctx)
		log.Sync()
		return nil, err
	}

	handlerset := wireHandlers(log, clients, serviceset)
	middleware := wireMiddleware(log, cfg, serviceset)
	server := wireServer(log, cfg, handlerset, middleware)

	return &App{
		Log:          log,
		Cfg:          cfg,
		Clients:      clients,
		Services:     serviceset,
		Server:       server,
		shutdownOtel: shutdownOtel,
	}, nil
}

// Run starts the workers and serves HTTP until ctx ends, then waits for
// in-flight stages to settle.
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.Server == nil {
		return fmt.Errorf("app not initialized")
	}
	workerCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := a.Services.start(workerCtx, a.Log); err != nil {
		return err
	}
	a.Log.Info("Server listening", "port", a.Cfg.HTTP.Port)
	err := a.Server.Run(ctx)
	cancel()
	a.Services.wait()
	return err
}

func (a *App) Close(ctx context.Context) {
	if a == nil {
		return
	}
	if a.Services.Bus != nil {
		_ = a.Services.Bus.Close()
		// The bus owns the redis client.
		a.Clients.Redis = nil
	}
	a.Clients.Close(ctx)
	if a.shutdownOtel != nil {
		if err := a.shutdownOtel(ctx); err != nil {
			a.Log.Warn("otel shutdown failed", "error", err)
		}
	}
	a.Log.Sync()
}
