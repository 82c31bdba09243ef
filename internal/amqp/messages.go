package amqp

import (
	"encoding/json"
	"fmt"
	"time"
)

// EventAction says what happened to the transaction collection.
type EventAction string

const (
	ActionCreated  EventAction = "created"
	ActionDeleted  EventAction = "deleted"
	ActionImported EventAction = "imported"
	ActionCleared  EventAction = "cleared"
)

// TransactionEvent is a lightweight change notice. It carries only the
// affected ids; the worker reloads whatever it needs from the database.
type TransactionEvent struct {
	Action    EventAction `json:"action"`
	IDs       []int64     `json:"ids,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

func NewTransactionEvent(action EventAction, ids ...int64) *TransactionEvent {
	return &TransactionEvent{
		Action:    action,
		IDs:       ids,
		Timestamp: time.Now(),
	}
}

func (e *TransactionEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// TransactionEventFromJSON decodes and sanity-checks a message body.
func TransactionEventFromJSON(data []byte) (*TransactionEvent, error) {
	var evt TransactionEvent
	if err := json.Unmarshal(data, &evt); err != nil {
		return nil, err
	}
	switch evt.Action {
	case ActionCreated, ActionDeleted, ActionImported, ActionCleared:
	default:
		return nil, fmt.Errorf("unknown event action %q", evt.Action)
	}
	return &evt, nil
}
