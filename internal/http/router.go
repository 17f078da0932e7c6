package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/F-O-T/contentagen-nx-sub000/internal/http/handlers"
	httpMW "github.com/F-O-T/contentagen-nx-sub000/internal/http/middleware"
	"github.com/F-O-T/contentagen-nx-sub000/internal/observability"
	"github.com/F-O-T/contentagen-nx-sub000/internal/platform/logger"
)

type RouterConfig struct {
	Log            *logger.Logger
	ServiceName    string
	AllowedOrigins []string
	AuthMiddleware *httpMW.AuthMiddleware
	// Metrics, when set, instruments every route and serves /metrics.
	Metrics *observability.Metrics

	HealthHandler     *httpH.HealthHandler
	PipelineHandler   *httpH.PipelineHandler
	RealtimeHandler   *httpH.RealtimeHandler
	SimilarityHandler *httpH.SimilarityHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.ServiceName != "" {
		r.Use(otelgin.Middleware(cfg.ServiceName))
	}
	r.Use(httpMW.AttachTraceContext())
	if cfg.Log != nil {
		r.Use(httpMW.RequestLogger(cfg.Log))
	}
	r.Use(httpMW.CORS(cfg.AllowedOrigins))
	r.Use(httpMW.Metrics(cfg.Metrics))

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	}

	// Metrics
	if cfg.Metrics != nil {
		r.GET("/metrics", gin.WrapH(cfg.Metrics.Handler()))
	}

	api := r.Group("/api")
	if cfg.AuthMiddleware != nil {
		api.Use(cfg.AuthMiddleware.RequireAuth())
	}
	{
		// Pipelines
		if cfg.PipelineHandler != nil {
			// One wildcard name for both forms: gin rejects differing names at
			// the same segment.
			api.POST("/pipelines/:pipeline", cfg.PipelineHandler.Trigger)
			api.GET("/pipelines/:pipeline", cfg.PipelineHandler.Status)
			api.POST("/pipelines/:pipeline/cancel", cfg.PipelineHandler.Cancel)
		}

		// Status events (SSE)
		if cfg.RealtimeHandler != nil {
			api.GET("/events/:subjectId", cfg.RealtimeHandler.Events)
		}

		// Similarity
		if cfg.SimilarityHandler != nil {
			api.POST("/similarity", cfg.SimilarityHandler.Compare)
		}
	}

	return r
}
