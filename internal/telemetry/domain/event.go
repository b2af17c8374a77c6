package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event types emitted by the service.
const (
	EventSignup          = "signup"
	EventLoginPassword   = "login_password_verified"
	EventLoginCode       = "login_code_verified"
	EventLoginComplete   = "login_complete"
	EventLoginFailure    = "login_failure"
	EventRecoveryStart   = "recovery_identity_matched"
	EventRecoveryCode    = "recovery_code_verified"
	EventRecoveryPin     = "recovery_pin_verified"
	EventPasswordReset   = "password_reset"
	EventRecoveryFailure = "recovery_failure"
	EventDeposit         = "deposit"
	EventWithdrawal      = "withdrawal"
	EventLedgerRejected  = "ledger_rejected"
	EventPinCheckFailure = "pin_check_failure"
)

// Event is a bank event as it travels to OTel logs, Kafka and Loki. Metadata never carries
// secrets, digests or codes.
type Event struct {
	ID        string          `json:"id"`
	EventType string          `json:"eventType"`
	Username  string          `json:"username,omitempty"`
	Source    string          `json:"source"`
	Metadata  json.RawMessage `json:"metadata,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
}

// NewEvent returns an event with a fresh ID and the current time. metadata is marshalled to JSON;
// a nil map yields no metadata.
func NewEvent(eventType, username, source string, metadata map[string]string) *Event {
	e := &Event{
		ID:        uuid.New().String(),
		EventType: eventType,
		Username:  username,
		Source:    source,
		CreatedAt: time.Now().UTC(),
	}
	if len(metadata) > 0 {
		if b, err := json.Marshal(metadata); err == nil {
			e.Metadata = b
		}
	}
	return e
}
