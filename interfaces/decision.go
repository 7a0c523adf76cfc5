package interfaces

import (
	"context"

	"github.com/threatgate/threatgate/internal/enum"
	"github.com/threatgate/threatgate/internal/models"
)

type Decision struct {
	IP      string                  `json:"ip"`
	Blocked bool                    `json:"blocked"`
	Reason  enum.DecisionReason     `json:"reason"`
	Entry   *models.ReputationEntry `json:"matchedEntry,omitempty"`
}

// DecisionService answers "is this IP currently blocked". It never writes; the
// allow-list wins unconditionally, then the highest-confidence effectively-active
// reputation entry.
type DecisionService interface {
	Decide(ctx context.Context, ip string) (*Decision, error)
	// Invalidate drops any cached decisions after a write to either list. A no-op
	// when no cache is configured.
	Invalidate(ctx context.Context)
}
