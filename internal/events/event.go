package events

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"wallet/internal/core"
)

// Op names the mutation carried by an event.
type Op string

const (
	OpCreated Op = "created"
	OpUpdated Op = "updated"
	OpDeleted Op = "deleted"
)

// TransactionEvent announces a committed change to one transaction.
// Transaction is set for created and updated events.
type TransactionEvent struct {
	EventID       string            `json:"event_id"`
	Op            Op                `json:"op"`
	TransactionID int64             `json:"transaction_id"`
	Transaction   *core.Transaction `json:"transaction,omitempty"`
	Timestamp     time.Time         `json:"timestamp"`
}

// NewTransactionEvent stamps an event with a fresh id and the current time.
func NewTransactionEvent(op Op, id int64, t *core.Transaction) TransactionEvent {
	return TransactionEvent{
		EventID:       uuid.NewString(),
		Op:            op,
		TransactionID: id,
		Transaction:   t,
		Timestamp:     time.Now().UTC(),
	}
}

// Validate checks that the event can be applied.
func (e TransactionEvent) Validate() error {
	if e.TransactionID <= 0 {
		return errors.New("event has no transaction id")
	}
	switch e.Op {
	case OpCreated, OpUpdated:
		if e.Transaction == nil {
			return fmt.Errorf("%s event for %d has no transaction", e.Op, e.TransactionID)
		}
	case OpDeleted:
	default:
		return fmt.Errorf("unknown event op %q", e.Op)
	}
	return nil
}

// ToJSON converts the event to JSON bytes
func (e TransactionEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// EventFromJSON decodes and validates an event.
func EventFromJSON(data []byte) (TransactionEvent, error) {
	var e TransactionEvent
	if err := json.Unmarshal(data, &e); err != nil {
		return e, err
	}
	if err := e.Validate(); err != nil {
		return e, err
	}
	return e, nil
}
