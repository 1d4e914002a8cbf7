package amqp

import (
	"encoding/json"
	"time"
)

// RecordEvent announces a change to one ledger record. Consumers fetch the
// record itself if they need more than its identity.
type RecordEvent struct {
	Op        string    `json:"op"`
	Kind      string    `json:"kind"`
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Timestamp time.Time `json:"timestamp"`
}

func NewRecordEvent(op, kind, id, userID string) *RecordEvent {
	return &RecordEvent{
		Op:        op,
		Kind:      kind,
		ID:        id,
		UserID:    userID,
		Timestamp: time.Now().UTC(),
	}
}

// ToJSON converts the event to JSON bytes
func (e *RecordEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// RecordEventFromJSON decodes an event body.
func RecordEventFromJSON(data []byte) (*RecordEvent, error) {
	var e RecordEvent
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	return &e, nil
}
