package types

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/angelmondragon/campusaid-backend/pkg/enums"
)

// Envelope is a lifecycle event as received from the analytics subscription.
type Envelope struct {
	EventID       string                    `json:"event_id"`
	EventType     enums.OutboxEventType     `json:"event_type"`
	AggregateType enums.OutboxAggregateType `json:"aggregate_type"`
	AggregateID   string                    `json:"aggregate_id"`
	Version       int                       `json:"version"`
	ActorID       string                    `json:"actor_id,omitempty"`
	OccurredAt    time.Time                 `json:"occurred_at"`
	Payload       json.RawMessage           `json:"payload"`
}

// HasPayload reports whether the envelope carries a non-null data object.
func (e Envelope) HasPayload() bool {
	trimmed := bytes.TrimSpace(e.Payload)
	return len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null"))
}
