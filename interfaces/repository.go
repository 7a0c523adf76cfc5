package interfaces

import (
	"context"
	"time"

	"github.com/threatgate/threatgate/internal/models"
)

type CredentialRepository interface {
	GetBySource(ctx context.Context, source string) (*models.Credential, error)
	GetAll(ctx context.Context) ([]*models.Credential, error)
	GetEnabled(ctx context.Context) ([]*models.Credential, error)
	Save(ctx context.Context, credential *models.Credential) error
	Update(ctx context.Context, credential *models.Credential) error
	UpdateRunOutcome(ctx context.Context, source string, success bool, ts time.Time, consecutiveFailures int) error
	GetRotatedBefore(ctx context.Context, before time.Time) ([]*models.Credential, error)
}

type CredentialAuditRepository interface {
	Append(ctx context.Context, audit *models.CredentialAudit) error
	ListBySource(ctx context.Context, source string, limit, offset int) ([]*models.CredentialAudit, error)
}

type CollectionRunRepository interface {
	Create(ctx context.Context, run *models.CollectionRun) error
	List(ctx context.Context, source string, limit, offset int) ([]*models.CollectionRun, int64, error)
	GetLastBySource(ctx context.Context, source string) (*models.CollectionRun, error)
}

type ReputationRepository interface {
	// Upsert writes one normalized record keyed by (ip, source) and reports whether a
	// new row was created. An existing row keeps its original detection date.
	Upsert(ctx context.Context, entry *models.ReputationEntry) (created bool, err error)
	GetByIP(ctx context.Context, ip string) ([]*models.ReputationEntry, error)
	GetByIPAndSource(ctx context.Context, ip, source string) (*models.ReputationEntry, error)
	Deactivate(ctx context.Context, ip, source string) error
	DeactivateExpired(ctx context.Context, now time.Time) (int64, error)
	ListEffectiveActive(ctx context.Context, now time.Time, limit, offset int) ([]*models.ReputationEntry, int64, error)
	CountBySource(ctx context.Context) (map[string]int64, error)
	CountByCountry(ctx context.Context) (map[string]int64, error)
	CountByActivity(ctx context.Context, now time.Time) (active int64, inactive int64, err error)
}

type AllowlistRepository interface {
	GetByIP(ctx context.Context, ip string) (*models.AllowlistEntry, error)
	List(ctx context.Context, limit, offset int) ([]*models.AllowlistEntry, int64, error)
	Save(ctx context.Context, entry *models.AllowlistEntry) error
	DeleteByIP(ctx context.Context, ip string) error
}
