package interfaces

import (
	"context"
	"encoding/json"

	"github.com/threatgate/threatgate/internal/enum"
	"github.com/threatgate/threatgate/internal/models"
)

// Session is the opaque authenticated handle an adapter hands back from
// Authenticate and expects on every Fetch. For the portal adapter it wraps session
// cookies, for the feed adapter a bearer token.
type Session interface {
	Source() string
}

// RawBatch is one page of provider rows plus the cursor for the next page. Rows stay
// opaque JSON until Normalize so the original payload can be kept for audit and
// replay. NextCursor is empty when the provider has no more rows.
type RawBatch struct {
	Rows       []json.RawMessage
	Meta       map[string]string
	NextCursor string
}

// SourceAdapter encapsulates one provider's authentication protocol and raw-record
// normalization. Implementations must refuse plaintext endpoints and bound every
// network call with the context deadline.
type SourceAdapter interface {
	Kind() enum.SourceKind
	Authenticate(ctx context.Context, credential *models.Credential, secret string) (Session, error)
	Fetch(ctx context.Context, session Session, cursor string) (*RawBatch, error)
	Normalize(credential *models.Credential, batch *RawBatch) ([]*models.ReputationEntry, error)
}

type AdapterRegistry interface {
	Resolve(kind enum.SourceKind) (SourceAdapter, error)
}
