package services

import (
	"time"

	"github.com/threatgate/threatgate/config"
	"github.com/threatgate/threatgate/interfaces"
	"github.com/threatgate/threatgate/internal/geo"
	"github.com/threatgate/threatgate/internal/logger"
	"github.com/threatgate/threatgate/internal/repository"
	"github.com/threatgate/threatgate/internal/vault"
	"github.com/threatgate/threatgate/services/decision"
	"github.com/threatgate/threatgate/services/events"
	"github.com/threatgate/threatgate/services/export"
	"github.com/threatgate/threatgate/services/ingest"
	"github.com/threatgate/threatgate/services/scheduler"
	"github.com/threatgate/threatgate/services/sources"
	"github.com/threatgate/threatgate/services/sources/feed"
	"github.com/threatgate/threatgate/services/sources/portal"
)

type Services struct {
	VaultService     interfaces.VaultService
	AdapterRegistry  interfaces.AdapterRegistry
	IngestService    interfaces.IngestService
	DecisionService  interfaces.DecisionService
	ExportService    interfaces.ExportService
	SchedulerService interfaces.SchedulerService
	EventPublisher   interfaces.EventPublisher
}

func InitServices(cfg *config.Config, repositories *repository.Repositories, log logger.Logger) (*Services, error) {
	cipher, err := vault.NewCipher(cfg.VaultConfig.KeyConfig())
	if err != nil {
		return nil, err
	}
	vaultService := vault.NewVaultService(
		repositories.CredentialRepository,
		repositories.CredentialAuditRepository,
		cipher,
		log,
	)

	geoResolver, err := geo.NewResolver(cfg.AppConfig.GeoIPPath, log)
	if err != nil {
		return nil, err
	}

	callTimeout := time.Duration(cfg.CollectorConfig.CallTimeoutSeconds) * time.Second
	registry := sources.NewRegistry(
		portal.NewAdapter(portal.Config{
			CallTimeout:      callTimeout,
			TransientRetries: cfg.CollectorConfig.TransientRetries,
			PageSize:         cfg.CollectorConfig.PortalPageSize,
		}, log),
		feed.NewAdapter(feed.Config{
			CallTimeout:      callTimeout,
			TransientRetries: cfg.CollectorConfig.TransientRetries,
		}, log),
	)

	ingestService := ingest.NewIngestService(repositories.ReputationRepository, geoResolver, log)

	decisionService, err := decision.NewDecisionService(
		repositories.AllowlistRepository,
		repositories.ReputationRepository,
		cfg.AppConfig.RedisURL,
		log,
	)
	if err != nil {
		return nil, err
	}

	exportService := export.NewExportService(repositories.ReputationRepository)

	var publisher interfaces.EventPublisher
	if cfg.AppConfig.RabbitMQURL != "" {
		publisher, err = events.NewRabbitMQPublisher(cfg.AppConfig.RabbitMQURL, log)
		if err != nil {
			return nil, err
		}
	} else {
		publisher = events.NewNoopPublisher(log)
	}

	schedulerService := scheduler.NewSchedulerService(
		scheduler.Config{
			TickInterval:  time.Duration(cfg.CollectorConfig.TickIntervalSeconds) * time.Second,
			RunTimeout:    time.Duration(cfg.CollectorConfig.RunTimeoutSeconds) * time.Second,
			MaxPages:      cfg.CollectorConfig.MaxPages,
			BackoffMin:    time.Duration(cfg.CollectorConfig.BackoffMinSeconds) * time.Second,
			BackoffMax:    time.Duration(cfg.CollectorConfig.BackoffMaxSeconds) * time.Second,
			BackoffFactor: cfg.CollectorConfig.BackoffFactor,
		},
		vaultService,
		registry,
		ingestService,
		repositories.CollectionRunRepository,
		decisionService,
		publisher,
		log,
	)

	return &Services{
		VaultService:     vaultService,
		AdapterRegistry:  registry,
		IngestService:    ingestService,
		DecisionService:  decisionService,
		ExportService:    exportService,
		SchedulerService: schedulerService,
		EventPublisher:   publisher,
	}, nil
}
