package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/angelmondragon/bintrack-backend/pkg/enums"
	"github.com/angelmondragon/bintrack-backend/pkg/outbox"
)

// DecodeFunc turns the data of one envelope version into a typed payload.
type DecodeFunc func(data json.RawMessage) (any, error)

type decoderKey struct {
	eventType enums.OutboxEventType
	version   int
}

// Decoders maps an event type and envelope version to the consumer-side decoder.
type Decoders struct {
	mtx    sync.RWMutex
	byType map[decoderKey]DecodeFunc
}

func NewDecoders() *Decoders {
	return &Decoders{byType: make(map[decoderKey]DecodeFunc)}
}

// Register adds fn for eventType@version. Re-registering a pair is an error.
func (d *Decoders) Register(eventType enums.OutboxEventType, version int, fn DecodeFunc) error {
	if !eventType.IsValid() {
		return fmt.Errorf("unknown event type %q", eventType)
	}
	if version < 1 {
		return fmt.Errorf("invalid payload version %d for %s", version, eventType)
	}
	if fn == nil {
		return fmt.Errorf("decoder for %s@v%d is nil", eventType, version)
	}
	d.mtx.Lock()
	defer d.mtx.Unlock()
	key := decoderKey{eventType: eventType, version: version}
	if _, ok := d.byType[key]; ok {
		return fmt.Errorf("decoder already registered for %s@v%d", eventType, version)
	}
	d.byType[key] = fn
	return nil
}

// RegisterJSON registers a decoder that unmarshals into a fresh T and runs check on it.
func RegisterJSON[T any](d *Decoders, eventType enums.OutboxEventType, version int, check func(*T) error) error {
	return d.Register(eventType, version, func(data json.RawMessage) (any, error) {
		out := new(T)
		if err := json.Unmarshal(data, out); err != nil {
			return nil, fmt.Errorf("decode %s@v%d: %w", eventType, version, err)
		}
		if check != nil {
			if err := check(out); err != nil {
				return nil, err
			}
		}
		return out, nil
	})
}

// Decode runs the decoder registered for eventType at the envelope's version.
func (d *Decoders) Decode(eventType enums.OutboxEventType, envelope outbox.PayloadEnvelope) (any, error) {
	d.mtx.RLock()
	fn, ok := d.byType[decoderKey{eventType: eventType, version: envelope.Version}]
	d.mtx.RUnlock()
	if !ok {
		return nil, fmt.Errorf("decoder not registered for %s@v%d", eventType, envelope.Version)
	}
	return fn(envelope.Data)
}

// OpenEnvelope parses a published message body and its event id.
func OpenEnvelope(body []byte) (outbox.PayloadEnvelope, uuid.UUID, error) {
	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return envelope, uuid.Nil, fmt.Errorf("decode envelope: %w", err)
	}
	eventID, err := uuid.Parse(envelope.EventID)
	if err != nil {
		return envelope, uuid.Nil, fmt.Errorf("invalid event id %q: %w", envelope.EventID, err)
	}
	if len(envelope.Data) == 0 {
		return envelope, eventID, errors.New("envelope has no data")
	}
	return envelope, eventID, nil
}
