package amqp

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// EventType names a ledger change.
type EventType string

const (
	EventLineItemCreated   EventType = "line_item.created"
	EventLineItemAllocated EventType = "line_item.allocated"
	EventActualSaved       EventType = "actual_expense.saved"
	EventForecastReset     EventType = "forecast.reset"
)

// LedgerEvent is a lightweight notification; consumers re-read state from the store.
type LedgerEvent struct {
	ID          string    `json:"id"`
	Type        EventType `json:"type"`
	GrantID     int64     `json:"grant_id"`
	LineItemID  int64     `json:"line_item_id,omitempty"`
	Month       string    `json:"month,omitempty"`
	QBCode      string    `json:"qb_code,omitempty"`
	AmountCents int64     `json:"amount_cents,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// NewLedgerEvent creates an event with a fresh id and the current time.
func NewLedgerEvent(eventType EventType, grantID, lineItemID int64) *LedgerEvent {
	return &LedgerEvent{
		ID:         uuid.NewString(),
		Type:       eventType,
		GrantID:    grantID,
		LineItemID: lineItemID,
		Timestamp:  time.Now(),
	}
}

// ToJSON converts the event to JSON bytes
func (e *LedgerEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// LedgerEventFromJSON decodes an event.
func LedgerEventFromJSON(data []byte) (*LedgerEvent, error) {
	var ev LedgerEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, err
	}
	return &ev, nil
}
