package interfaces

import (
	"context"
	"time"

	"github.com/threatgate/threatgate/internal/enum"
)

type SourceStatus struct {
	Source              string               `json:"source"`
	State               enum.CollectionState `json:"state"`
	Enabled             bool                 `json:"enabled"`
	LastRunAt           *time.Time           `json:"lastRunAt"`
	LastRunSuccess      *bool                `json:"lastRunSuccess"`
	NextRunAt           *time.Time           `json:"nextRunAt"`
	ConsecutiveFailures int                  `json:"consecutiveFailures"`
}

type SchedulerService interface {
	Start(ctx context.Context) error
	Stop()
	// Trigger starts a run immediately, bypassing the enabled flag. It fails fast
	// with ErrRunInProgress when a run for the source is already in flight.
	Trigger(ctx context.Context, source string) (string, error)
	Status(ctx context.Context) ([]SourceStatus, error)
}
