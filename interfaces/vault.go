package interfaces

import (
	"context"
	"time"

	"github.com/threatgate/threatgate/internal/enum"
	"github.com/threatgate/threatgate/internal/models"
)

// CredentialFields carries a partial credential update. Nil fields are untouched.
// Secret is the only plaintext entry point; it is encrypted before storage and
// redacted in the audit trail.
type CredentialFields struct {
	Kind            *enum.SourceKind
	Username        *string
	Secret          *string
	Endpoint        *string
	Enabled         *bool
	IntervalSeconds *int
	ExpiresAt       *time.Time
}

type VaultService interface {
	Get(ctx context.Context, source string) (*models.Credential, error)
	// DecryptSecret is the explicit decrypt call; the plaintext never leaves the
	// scheduler path that needs it.
	DecryptSecret(ctx context.Context, credential *models.Credential) (string, error)
	Upsert(ctx context.Context, source string, fields CredentialFields) (*models.Credential, error)
	RecordRunOutcome(ctx context.Context, source string, success bool, ts time.Time) error
	ListExpiring(ctx context.Context, daysThreshold int) ([]*models.Credential, error)
	ListAll(ctx context.Context) ([]*models.Credential, error)
	ListEnabled(ctx context.Context) ([]*models.Credential, error)
	AuditTrail(ctx context.Context, source string, limit, offset int) ([]*models.CredentialAudit, error)
}
