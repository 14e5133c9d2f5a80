// Package queue relays change snapshots between server instances over a
// RabbitMQ fanout exchange so subscribers connected to any instance see
// every mutation.
package queue

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// DefaultExchange is the fanout exchange used when none is configured.
const DefaultExchange = "tasktracker.snapshots"

// SnapshotEvent is the message body published to the exchange.  Origin is
// the publishing instance id; consumers ignore their own messages because
// those snapshots were already delivered locally.
type SnapshotEvent struct {
	Origin      string          `json:"origin"`
	Channel     string          `json:"channel"`
	Payload     json.RawMessage `json:"payload"`
	PublishedAt time.Time       `json:"published_at"`
}

var errEmptyChannel = errors.New("snapshot event without channel")

func decodeEvent(body []byte) (SnapshotEvent, error) {
	var ev SnapshotEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return ev, fmt.Errorf("unmarshal: %w", err)
	}
	if ev.Channel == "" {
		return ev, errEmptyChannel
	}
	return ev, nil
}
