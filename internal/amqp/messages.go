package amqp

import (
	"encoding/json"
	"time"
)

// EventAction names the ledger mutation that produced an event.
type EventAction string

const (
	ActionCreated EventAction = "created"
	ActionUpdated EventAction = "updated"
	ActionDeleted EventAction = "deleted"
)

// LedgerEventMessage is the lightweight message published after each
// successful expense mutation. Consumers fetch the full row themselves;
// for deletions the row is already gone and the ids are all there is.
type LedgerEventMessage struct {
	Action    EventAction `json:"action"`
	ExpenseID int64       `json:"expense_id"`
	UserID    int64       `json:"user_id"`
	Timestamp time.Time   `json:"timestamp"`
}

// NewLedgerEventMessage creates an event message stamped with the current time.
func NewLedgerEventMessage(action EventAction, expenseID, userID int64) *LedgerEventMessage {
	return &LedgerEventMessage{
		Action:    action,
		ExpenseID: expenseID,
		UserID:    userID,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *LedgerEventMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// LedgerEventMessageFromJSON creates a message from JSON bytes
func LedgerEventMessageFromJSON(data []byte) (*LedgerEventMessage, error) {
	var msg LedgerEventMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
