package amqp

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"budgetwise/internal/core"
)

// LedgerEventType names a ledger mutation.
type LedgerEventType string

const (
	EventTransactionAdded   LedgerEventType = "transaction_added"
	EventTransactionDeleted LedgerEventType = "transaction_deleted"
)

var ErrInvalidEvent = errors.New("invalid ledger event")

// LedgerEvent carries one ledger mutation for a user. Deletions carry the
// removed transaction so consumers can locate it without a lookup.
type LedgerEvent struct {
	Type        LedgerEventType  `json:"type"`
	UserID      string           `json:"user_id"`
	Transaction core.Transaction `json:"transaction"`
	OccurredAt  time.Time        `json:"occurred_at"`
}

func NewLedgerEvent(t LedgerEventType, userID string, tx core.Transaction, now time.Time) LedgerEvent {
	return LedgerEvent{
		Type:        t,
		UserID:      userID,
		Transaction: tx,
		OccurredAt:  now.UTC(),
	}
}

func (e LedgerEvent) Validate() error {
	switch e.Type {
	case EventTransactionAdded, EventTransactionDeleted:
	default:
		return fmt.Errorf("%w: unknown type %q", ErrInvalidEvent, e.Type)
	}
	if e.UserID == "" {
		return fmt.Errorf("%w: missing user id", ErrInvalidEvent)
	}
	if e.Transaction.ID == "" {
		return fmt.Errorf("%w: missing transaction id", ErrInvalidEvent)
	}
	return nil
}

func (e LedgerEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// LedgerEventFromJSON decodes and validates an event body.
func LedgerEventFromJSON(data []byte) (LedgerEvent, error) {
	var e LedgerEvent
	if err := json.Unmarshal(data, &e); err != nil {
		return LedgerEvent{}, fmt.Errorf("decode ledger event: %w", err)
	}
	if err := e.Validate(); err != nil {
		return LedgerEvent{}, err
	}
	return e, nil
}
