package app

import (
	"context"

	temporalsdkclient "go.temporal.io/sdk/client"

	"github.com/F-O-T/contentagen-nx-sub000/internal/http"
	httpH "github.com/F-O-T/contentagen-nx-sub000/internal/http/handlers"
	httpMW "github.com/F-O-T/contentagen-nx-sub000/internal/http/middleware"
	"github.com/F-O-T/contentagen-nx-sub000/internal/observability"
	"github.com/F-O-T/contentagen-nx-sub000/internal/platform/logger"
)

type Middleware struct {
	Auth    *httpMW.AuthMiddleware
	Metrics *observability.Metrics
}

type Handlers struct {
	Health     *httpH.HealthHandler
	Pipeline   *httpH.PipelineHandler
	Realtime   *httpH.RealtimeHandler
	Similarity *httpH.SimilarityHandler
}

func wireHandlers(log *logger.Logger, clients Clients, services Services) Handlers {
	log.Info("Wiring handlers...")
	return Handlers{
		Health:     httpH.NewHealthHandler(healthChecks(clients)),
		Pipeline:   httpH.NewPipelineHandler(services.Orchestrator),
		Realtime:   httpH.NewRealtimeHandler(log, services.Hub),
		Similarity: httpH.NewSimilarityHandler(services.Similarity),
	}
}

func wireMiddleware(log *logger.Logger, cfg Config, services Services) Middleware {
	log.Info("Wiring middleware...")
	return Middleware{
		Auth:    httpMW.NewAuthMiddleware(log, cfg.HTTP.JWTSecretKey),
		Metrics: services.Metrics,
	}
}

func wireServer(log *logger.Logger, cfg Config, handlers Handlers, middleware Middleware) *http.Server {
	return http.NewServer(":"+cfg.HTTP.Port, http.RouterConfig{
		Log:               log,
		ServiceName:       cfg.Otel.ServiceName,
		AllowedOrigins:    cfg.HTTP.AllowedOrigins,
		AuthMiddleware:    middleware.Auth,
		Metrics:           middleware.Metrics,
		HealthHandler:     handlers.Health,
		PipelineHandler:   handlers.Pipeline,
		RealtimeHandler:   handlers.Realtime,
		SimilarityHandler: handlers.Similarity,
	})
}

func healthChecks(clients Clients) map[string]httpH.Pinger {
	checks := map[string]httpH.Pinger{}
	if clients.DB != nil {
		checks["database"] = func(ctx context.Context) error {
			sqlDB, err := clients.DB.DB().DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		}
	}
	if clients.Redis != nil {
		checks["redis"] = func(ctx context.Context) error {
			return clients.Redis.Ping(ctx).Err()
		}
	}
	if clients.Neo4j != nil && clients.Neo4j.Driver != nil {
		checks["neo4j"] = func(ctx context.Context) error {
			return clients.Neo4j.Driver.VerifyConnectivity(ctx)
		}
	}
	if clients.Temporal != nil {
		checks["temporal"] = func(ctx context.Context) error {
			_, err := clients.Temporal.CheckHealth(ctx, &temporalsdkclient.CheckHealthRequest{})
			return err
		}
	}
	return checks
}
