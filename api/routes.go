package api

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/opentracing/opentracing-go"

	"github.com/threatgate/threatgate/api/handlers"
	"github.com/threatgate/threatgate/api/middleware"
	"github.com/threatgate/threatgate/internal/repository"
	"github.com/threatgate/threatgate/internal/tracing"
	"github.com/threatgate/threatgate/services"
)

// RegisterRoutes sets up all API endpoints
func RegisterRoutes(ctx context.Context, r *gin.Engine, s *services.Services, repos *repository.Repositories, apikey string) {
	if s == nil {
		panic("Services cannot be nil")
	}
	if repos == nil {
		panic("Repositories cannot be nil")
	}

	// Add recovery middlewares
	r.Use(gin.Recovery())                                         // Gin's built-in recovery
	r.Use(tracing.RecoveryWithJaeger(opentracing.GlobalTracer())) // Our custom Jaeger recovery

	// Health check and status endpoints (no custom context needed)
	r.GET("/health", handlers.HealthCheck)
	r.GET("/status", handlers.Status(s.SchedulerService))

	apiKeyMiddleware := middleware.APIKeyMiddleware(middleware.APIKeyConfig{
		HeaderName:  "X-THREATGATE-API-KEY",
		ValidAPIKey: apikey,
	})

	// API group with version and custom context
	api := r.Group("/v1")
	api.Use(apiKeyMiddleware)
	api.Use(middleware.CustomContextMiddleware("threatgate")) // Add custom context for all /v1/* endpoints
	api.Use(middleware.TracingMiddleware())                   // Add tracing for all /v1/* endpoints
	{
		// Credential vault endpoints
		credentials := api.Group("/credentials")
		{
			credentials.GET("", handlers.ListCredentials(s.VaultService))
			credentials.GET("/:source", handlers.GetCredential(s.VaultService))
			credentials.PUT("/:source", handlers.UpsertCredential(s.VaultService))
			credentials.GET("/:source/audit", handlers.CredentialAudit(s.VaultService))
		}

		// Collection endpoints
		collections := api.Group("/collections")
		{
			collections.GET("/status", handlers.CollectionStatus(s.SchedulerService))
			collections.POST("/:source/trigger", handlers.TriggerCollection(s.SchedulerService))
			collections.GET("/:source/runs", handlers.ListCollectionRuns(repos.CollectionRunRepository))
		}

		// Access decision endpoint
		api.GET("/decide/:ip", handlers.Decide(s.DecisionService))

		// Allow-list endpoints
		allowlist := api.Group("/allowlist")
		{
			allowlist.GET("", handlers.ListAllowlist(repos.AllowlistRepository))
			allowlist.POST("", handlers.AddAllowlistEntry(repos.AllowlistRepository, s.DecisionService, s.EventPublisher))
			allowlist.DELETE("/:ip", handlers.RemoveAllowlistEntry(repos.AllowlistRepository, s.DecisionService, s.EventPublisher))
		}

		// Aggregate statistics
		api.GET("/stats", handlers.Stats(repos.ReputationRepository))

		// Firewall export
		api.GET("/export/firewall", handlers.FirewallExport(s.ExportService))
	}
}
