// Package producer publishes bank events to a message broker (Kafka).
package producer

import (
	"context"

	"smartbanker/backend/internal/telemetry/domain"
)

// Producer emits bank events. Callers use it best-effort: log and ignore errors.
type Producer interface {
	// Emit sends a single event. Implementations may block briefly; call via telemetry.EmitAsync.
	Emit(ctx context.Context, event *domain.Event) error
	// Close releases resources (e.g. Kafka writer). Safe to call if already closed.
	Close() error
}
