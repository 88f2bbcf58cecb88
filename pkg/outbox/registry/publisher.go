package registry

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/angelmondragon/bintrack-backend/pkg/config"
	"github.com/angelmondragon/bintrack-backend/pkg/db/models"
	"github.com/angelmondragon/bintrack-backend/pkg/enums"
	"github.com/angelmondragon/bintrack-backend/pkg/outbox"
	"github.com/angelmondragon/bintrack-backend/pkg/outbox/payloads"
)

// EventDescriptor is where a row of a given type is published.
type EventDescriptor struct {
	EventType     enums.OutboxEventType
	AggregateType enums.OutboxAggregateType
	Topic         string
}

// ResolvedEvent is an outbox row with its envelope opened and data decoded.
type ResolvedEvent struct {
	Descriptor EventDescriptor
	Envelope   outbox.PayloadEnvelope
	Payload    any
}

// NonRetryableError marks a row the dispatcher must dead-letter instead of retrying.
type NonRetryableError struct {
	Err error
}

func (e NonRetryableError) Error() string {
	if e.Err == nil {
		return "non-retryable error"
	}
	return e.Err.Error()
}

func (e NonRetryableError) Unwrap() error {
	return e.Err
}

func NewNonRetryableError(err error) NonRetryableError {
	return NonRetryableError{Err: err}
}

// EventRegistry routes outbox rows to topics and decodes their payloads with
// the same versioned decoders the consumers use.
type EventRegistry struct {
	routes   map[enums.OutboxEventType]EventDescriptor
	decoders *Decoders
}

// NewEventRegistry wires every event type to the domain topic, except label
// requests which go to the labels topic.
func NewEventRegistry(cfg config.PubSubConfig) (*EventRegistry, error) {
	domain := strings.TrimSpace(cfg.DomainTopic)
	labels := strings.TrimSpace(cfg.LabelsTopic)
	switch {
	case domain == "":
		return nil, errors.New("domain topic is required")
	case labels == "":
		return nil, errors.New("labels topic is required")
	}

	reg := &EventRegistry{
		routes:   make(map[enums.OutboxEventType]EventDescriptor),
		decoders: NewDecoders(),
	}
	err := errors.Join(
		route(reg, enums.EventBinScanned, enums.AggregateBin, domain, requireBin(func(e *payloads.BinScannedEvent) string { return e.BinID })),
		route(reg, enums.EventBinStatusChanged, enums.AggregateBin, domain, requireBin(func(e *payloads.BinStatusChangedEvent) string { return e.BinID })),
		route(reg, enums.EventBinAssigned, enums.AggregateBin, domain, requireBin(func(e *payloads.BinAssignedEvent) string { return e.BinID })),
		route(reg, enums.EventBinReleased, enums.AggregateBin, domain, requireBin(func(e *payloads.BinReleasedEvent) string { return e.BinID })),
		route(reg, enums.EventBinReturned, enums.AggregateBin, domain, requireBin(func(e *payloads.BinReturnedEvent) string { return e.BinID })),
		route(reg, enums.EventComponentCalibrated, enums.AggregateComponent, domain, func(e *payloads.ComponentCalibratedEvent) error {
			if strings.TrimSpace(e.ComponentID) == "" {
				return errors.New("componentId is required")
			}
			return nil
		}),
		route(reg, enums.EventLabelRequested, enums.AggregateBin, labels, requireBin(func(e *payloads.LabelRequestedEvent) string { return e.BinID })),
	)
	if err != nil {
		return nil, err
	}
	return reg, nil
}

func route[T any](reg *EventRegistry, eventType enums.OutboxEventType, aggregate enums.OutboxAggregateType, topic string, check func(*T) error) error {
	if err := RegisterJSON(reg.decoders, eventType, 1, check); err != nil {
		return err
	}
	reg.routes[eventType] = EventDescriptor{EventType: eventType, AggregateType: aggregate, Topic: topic}
	return nil
}

func requireBin[T any](binID func(*T) string) func(*T) error {
	return func(event *T) error {
		if strings.TrimSpace(binID(event)) == "" {
			return errors.New("binId is required")
		}
		return nil
	}
}

// Resolve checks the row against its route and decodes the payload. Every
// failure is non-retryable: the row will not get better on the next pass.
func (r *EventRegistry) Resolve(event models.OutboxEvent) (*ResolvedEvent, error) {
	desc, ok := r.routes[event.EventType]
	switch {
	case !ok:
		return nil, NewNonRetryableError(fmt.Errorf("unsupported event type %s", event.EventType))
	case desc.AggregateType != event.AggregateType:
		return nil, NewNonRetryableError(fmt.Errorf("aggregate mismatch: expected %s got %s", desc.AggregateType, event.AggregateType))
	case strings.TrimSpace(event.AggregateID) == "":
		return nil, NewNonRetryableError(errors.New("missing aggregate_id"))
	}

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(event.Payload, &envelope); err != nil {
		return nil, NewNonRetryableError(fmt.Errorf("decode envelope: %w", err))
	}
	data := bytes.TrimSpace(envelope.Data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil, NewNonRetryableError(fmt.Errorf("payload missing for %s", event.EventType))
	}

	payload, err := r.decoders.Decode(event.EventType, envelope)
	if err != nil {
		return nil, NewNonRetryableError(err)
	}
	return &ResolvedEvent{Descriptor: desc, Envelope: envelope, Payload: payload}, nil
}
