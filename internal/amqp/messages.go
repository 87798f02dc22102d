package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"finplan/internal/events"
)

// ChangeMessage announces a committed record change. It carries no record
// data; consumers reload what they need from the store.
type ChangeMessage struct {
	ID        string      `json:"id"`
	Type      events.Type `json:"type"`
	Year      int         `json:"year"`
	Month     int         `json:"month"`
	Timestamp time.Time   `json:"timestamp"`
}

// NewChangeMessage wraps e in a message with a fresh id.
func NewChangeMessage(e events.Event) *ChangeMessage {
	ts := e.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	return &ChangeMessage{
		ID:        uuid.NewString(),
		Type:      e.Type,
		Year:      e.Year,
		Month:     e.Month,
		Timestamp: ts,
	}
}

// Event converts the message back into a bus event.
func (m *ChangeMessage) Event() events.Event {
	return events.Event{Type: m.Type, Year: m.Year, Month: m.Month, Timestamp: m.Timestamp}
}

// ToJSON converts the message to JSON bytes
func (m *ChangeMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ChangeMessageFromJSON decodes a message, rejecting unknown event types.
func ChangeMessageFromJSON(data []byte) (*ChangeMessage, error) {
	var msg ChangeMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	switch msg.Type {
	case events.ExpenseUpdated, events.IncomeUpdated, events.TravelUpdated:
	default:
		return nil, fmt.Errorf("unknown event type %q", msg.Type)
	}
	if msg.Month < 0 || msg.Month > 11 {
		return nil, fmt.Errorf("invalid month %d", msg.Month)
	}
	return &msg, nil
}
