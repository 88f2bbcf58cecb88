package outbox

import (
	"encoding/json"
	"time"
)

// ActorRef identifies the operator and station that produced the event.
type ActorRef struct {
	OperatorID string `json:"operatorId,omitempty"`
	StationID  string `json:"stationId,omitempty"`
}

// PayloadEnvelope is the stable payload structure stored in outbox_events.
type PayloadEnvelope struct {
	Version    int             `json:"version"`
	EventID    string          `json:"eventId"`
	OccurredAt time.Time       `json:"occurredAt"`
	Actor      *ActorRef       `json:"actor,omitempty"`
	Data       json.RawMessage `json:"data"`
}
