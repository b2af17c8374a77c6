package telemetry

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"smartbanker/backend/internal/telemetry/domain"
)

const emitTimeout = 5 * time.Second

var inflight sync.WaitGroup

// EmitAsync hands event to emitter on a new goroutine so the request path never waits on a sink.
// The emit is detached from ctx cancellation and bounded by its own timeout. Nil emitter or event
// is a no-op.
func EmitAsync(emitter EventEmitter, ctx context.Context, event *domain.Event) {
	if emitter == nil || event == nil {
		return
	}
	inflight.Add(1)
	go func() {
		defer inflight.Done()
		emitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), emitTimeout)
		defer cancel()
		if err := emitter.Emit(emitCtx, event); err != nil {
			slog.WarnContext(emitCtx, "bank event emit failed", "event_type", event.EventType, "error", err)
		}
	}()
}

// Drain blocks until every EmitAsync started so far has finished, or ctx ends. Call it after the
// HTTP server stops and before the sinks are closed.
func Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
