package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"smartbanker/backend/internal/telemetry/domain"
)

type recordingEmitter struct {
	mu     sync.Mutex
	events []*domain.Event
	err    error
}

func (r *recordingEmitter) Emit(ctx context.Context, event *domain.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return r.err
}

func (r *recordingEmitter) snapshot() []*domain.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*domain.Event(nil), r.events...)
}

func TestLogger_LogEvent_Emits(t *testing.T) {
	defer goleak.VerifyNone(t)
	em := &recordingEmitter{}
	logger := NewLogger(em, "ledger", func(context.Context) string { return "192.168.1.1" })

	logger.LogEvent(context.Background(), domain.EventDeposit, "alice", map[string]string{"amount": "200"})

	require.Eventually(t, func() bool { return len(em.snapshot()) == 1 }, time.Second, 5*time.Millisecond)
	ev := em.snapshot()[0]
	assert.Equal(t, domain.EventDeposit, ev.EventType)
	assert.Equal(t, "alice", ev.Username)
	assert.Equal(t, "ledger", ev.Source)
	assert.NotEmpty(t, ev.ID)
	assert.False(t, ev.CreatedAt.IsZero())

	var meta map[string]string
	require.NoError(t, json.Unmarshal(ev.Metadata, &meta))
	assert.Equal(t, map[string]string{"amount": "200", "ip": "192.168.1.1"}, meta)
}

func TestLogger_LogEvent_DefaultIPFromContext(t *testing.T) {
	defer goleak.VerifyNone(t)
	em := &recordingEmitter{}
	logger := NewLogger(em, "auth", nil)

	logger.LogEvent(WithClientIP(context.Background(), "10.0.0.7"), domain.EventSignup, "bob", nil)
	logger.LogEvent(context.Background(), domain.EventSignup, "carol", nil)

	require.Eventually(t, func() bool { return len(em.snapshot()) == 2 }, time.Second, 5*time.Millisecond)
	ips := map[string]string{}
	for _, ev := range em.snapshot() {
		var meta map[string]string
		require.NoError(t, json.Unmarshal(ev.Metadata, &meta))
		ips[ev.Username] = meta["ip"]
	}
	assert.Equal(t, map[string]string{"bob": "10.0.0.7", "carol": "unknown"}, ips)
}

func TestLogger_LogEvent_EmitErrorIsSwallowed(t *testing.T) {
	defer goleak.VerifyNone(t)
	em := &recordingEmitter{err: errors.New("sink down")}
	var buf bytes.Buffer
	logger := NewLogger(em, "auth", nil).WithLogger(slog.New(slog.NewJSONHandler(&buf, nil)))

	assert.NotPanics(t, func() {
		logger.LogEvent(context.Background(), domain.EventLoginFailure, "mallory", nil)
	})
	require.Eventually(t, func() bool { return len(em.snapshot()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Contains(t, buf.String(), `"event_type":"login_failure"`)
}

func TestLogger_NilEmitterAndReceiver(t *testing.T) {
	var nilLogger *Logger
	assert.NotPanics(t, func() {
		nilLogger.LogEvent(context.Background(), domain.EventDeposit, "alice", nil)
		NewLogger(nil, "ledger", nil).LogEvent(context.Background(), domain.EventDeposit, "alice", nil)
	})
}
