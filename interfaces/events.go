package interfaces

import (
	"context"
)

// EventPublisher emits the core's integration events. Implementations must be safe
// for concurrent use across source collection goroutines.
type EventPublisher interface {
	PublishEvent(ctx context.Context, routingKey string, payload interface{}) error
	Close() error
}
