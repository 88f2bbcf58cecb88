package registry

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/bintrack-backend/pkg/config"
	"github.com/angelmondragon/bintrack-backend/pkg/db/models"
	"github.com/angelmondragon/bintrack-backend/pkg/enums"
	"github.com/angelmondragon/bintrack-backend/pkg/outbox"
	"github.com/angelmondragon/bintrack-backend/pkg/outbox/payloads"
)

func TestResolveDecodesBinAssignment(t *testing.T) {
	reg := newTestEventRegistry(t)

	resolved, err := reg.Resolve(models.OutboxEvent{
		EventType:     enums.EventBinAssigned,
		AggregateType: enums.AggregateBin,
		AggregateID:   "B-001",
		Payload:       envelopeJSON(t, 1, payloads.BinAssignedEvent{BinID: "B-001", JTC: "J100"}),
	})
	require.NoError(t, err)

	assert.Equal(t, "domain-topic", resolved.Descriptor.Topic)
	payload, ok := resolved.Payload.(*payloads.BinAssignedEvent)
	require.True(t, ok, "payload type %T", resolved.Payload)
	assert.Equal(t, "J100", payload.JTC)
	assert.NotEmpty(t, resolved.Envelope.EventID)
	assert.False(t, resolved.Envelope.OccurredAt.IsZero())
}

func TestResolveRoutesLabelRequestsToLabelsTopic(t *testing.T) {
	reg := newTestEventRegistry(t)

	resolved, err := reg.Resolve(models.OutboxEvent{
		EventType:     enums.EventLabelRequested,
		AggregateType: enums.AggregateBin,
		AggregateID:   "B-001",
		Payload: envelopeJSON(t, 1, payloads.LabelRequestedEvent{
			BinID:  "B-001",
			JTC:    "J100",
			Kind:   enums.LabelKindAssignment,
			Copies: 1,
		}),
	})
	require.NoError(t, err)
	assert.Equal(t, "labels-topic", resolved.Descriptor.Topic)
}

func TestResolveRejectsBadRows(t *testing.T) {
	reg := newTestEventRegistry(t)

	cases := map[string]models.OutboxEvent{
		"unknown type": {
			EventType:     enums.OutboxEventType("bin_teleported"),
			AggregateType: enums.AggregateBin,
			AggregateID:   "B-001",
			Payload:       envelopeJSON(t, 1, map[string]string{"reason": "none"}),
		},
		"aggregate mismatch": {
			EventType:     enums.EventComponentCalibrated,
			AggregateType: enums.AggregateBin,
			AggregateID:   "C1",
			Payload:       envelopeJSON(t, 1, payloads.ComponentCalibratedEvent{ComponentID: "C1", Grams: 2.5}),
		},
		"blank aggregate id": {
			EventType:     enums.EventBinScanned,
			AggregateType: enums.AggregateBin,
			AggregateID:   "  ",
			Payload:       envelopeJSON(t, 1, payloads.BinScannedEvent{BinID: "B-001"}),
		},
		"null data": {
			EventType:     enums.EventBinReleased,
			AggregateType: enums.AggregateBin,
			AggregateID:   "B-001",
			Payload:       envelopeJSON(t, 1, nil),
		},
		"unregistered version": {
			EventType:     enums.EventBinReturned,
			AggregateType: enums.AggregateBin,
			AggregateID:   "B-001",
			Payload:       envelopeJSON(t, 2, payloads.BinReturnedEvent{BinID: "B-001"}),
		},
		"missing bin id": {
			EventType:     enums.EventBinStatusChanged,
			AggregateType: enums.AggregateBin,
			AggregateID:   "B-001",
			Payload:       envelopeJSON(t, 1, payloads.BinStatusChangedEvent{To: enums.BinStatusDamaged}),
		},
		"envelope not json": {
			EventType:     enums.EventBinScanned,
			AggregateType: enums.AggregateBin,
			AggregateID:   "B-001",
			Payload:       json.RawMessage(`not-json`),
		},
	}
	for name, event := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := reg.Resolve(event)
			require.Error(t, err)
			var nonRetry NonRetryableError
			assert.True(t, errors.As(err, &nonRetry), "got %T", err)
		})
	}
}

func TestNewEventRegistryRequiresTopics(t *testing.T) {
	_, err := NewEventRegistry(config.PubSubConfig{LabelsTopic: "labels"})
	assert.EqualError(t, err, "domain topic is required")
	_, err = NewEventRegistry(config.PubSubConfig{DomainTopic: "domain", LabelsTopic: " "})
	assert.EqualError(t, err, "labels topic is required")
}

func TestNonRetryableErrorUnwraps(t *testing.T) {
	cause := errors.New("boom")
	err := NewNonRetryableError(cause)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "non-retryable error", NonRetryableError{}.Error())
}

func newTestEventRegistry(t *testing.T) *EventRegistry {
	t.Helper()
	reg, err := NewEventRegistry(config.PubSubConfig{
		DomainTopic: "domain-topic",
		LabelsTopic: "labels-topic",
	})
	require.NoError(t, err)
	return reg
}

func envelopeJSON(t *testing.T, version int, data any) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	out, err := json.Marshal(outbox.PayloadEnvelope{
		Version:    version,
		EventID:    uuid.NewString(),
		OccurredAt: time.Now().UTC(),
		Data:       raw,
	})
	require.NoError(t, err)
	return out
}
