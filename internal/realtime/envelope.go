package realtime

import (
	"encoding/json"
	"time"
)

// Push event names.  Clients subscribe by matching Envelope.Type.
const (
	EventTaskUpdate = "ReceiveTaskUpdate"
	EventUserUpdate = "ReceiveUserUpdate"
)

// Envelope is the frame written to every subscriber.  Payload carries the
// full snapshot: the task list for EventTaskUpdate, the user list for
// EventUserUpdate.
type Envelope struct {
	Type    string          `json:"type"`
	ID      string          `json:"id"`
	TS      time.Time       `json:"ts"`
	Payload json.RawMessage `json:"payload"`
}

func encodeFrame(event string, payload json.RawMessage, ts time.Time) ([]byte, error) {
	return json.Marshal(Envelope{
		Type:    event,
		ID:      NewRandomHex(8),
		TS:      ts.UTC(),
		Payload: payload,
	})
}
