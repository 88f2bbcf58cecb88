package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/bintrack-backend/pkg/config"
	"github.com/angelmondragon/bintrack-backend/pkg/db/models"
	"github.com/angelmondragon/bintrack-backend/pkg/enums"
	"github.com/angelmondragon/bintrack-backend/pkg/logger"
	"github.com/angelmondragon/bintrack-backend/pkg/outbox"
	"github.com/angelmondragon/bintrack-backend/pkg/outbox/registry"
)

const domainTopic = "bt-domain-events"

func binRow(t *testing.T, binID string, attempts int) models.OutboxEvent {
	t.Helper()
	payload, err := json.Marshal(outbox.PayloadEnvelope{
		Version:    1,
		EventID:    uuid.NewString(),
		OccurredAt: time.Now().UTC(),
		Data:       json.RawMessage(`{"binId":"` + binID + `"}`),
	})
	require.NoError(t, err)
	return models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     enums.EventBinScanned,
		AggregateType: enums.AggregateBin,
		AggregateID:   binID,
		Payload:       payload,
		AttemptCount:  attempts,
	}
}

type harness struct {
	repo *fakeRepo
	dlq  *fakeDLQRepo
	pub  *fakePublisher
	svc  *Service
}

func newHarness(t *testing.T, resolver registryResolver, maxAttempts int, rows ...models.OutboxEvent) *harness {
	t.Helper()
	h := &harness{
		repo: &fakeRepo{events: rows},
		dlq:  &fakeDLQRepo{},
		pub:  &fakePublisher{},
	}
	if resolver == nil {
		resolver = topicResolver(domainTopic)
	}
	svc, err := NewService(ServiceParams{
		Config: &config.Config{Outbox: config.OutboxConfig{
			BatchSize:      len(rows) + 1,
			PollIntervalMS: 100,
			MaxAttempts:    maxAttempts,
		}},
		Logger:           logger.New(logger.Options{ServiceName: "outbox-publisher-test", Output: io.Discard}),
		DB:               &fakeDB{},
		PubSub:           &fakePubSubClient{},
		Repository:       h.repo,
		Registry:         resolver,
		PublisherFactory: func(string) publisher { return h.pub },
		DLQRepository:    h.dlq,
	})
	require.NoError(t, err)
	h.svc = svc
	return h
}

func TestProcessBatchContinuesPastTransientFailure(t *testing.T) {
	first, second := binRow(t, "B-001", 0), binRow(t, "B-002", 0)
	h := newHarness(t, nil, 5, first, second)
	h.pub.errs = []error{errors.New("transient"), nil}

	processed, err := h.svc.processBatch(context.Background())
	require.NoError(t, err)
	assert.True(t, processed)
	assert.Equal(t, []uuid.UUID{first.ID}, h.repo.failed)
	assert.Equal(t, []uuid.UUID{second.ID}, h.repo.published)
	assert.Empty(t, h.dlq.entries)
}

func TestProcessBatchDeadLetters(t *testing.T) {
	cases := []struct {
		name     string
		resolver registryResolver
		attempts int
		pubErr   error
		noPub    bool
		reason   enums.OutboxDLQErrorReason
	}{
		{
			name:     "registry rejects row",
			resolver: &fakeRegistry{err: registry.NewNonRetryableError(errors.New("invalid payload"))},
			reason:   enums.OutboxDLQReasonNonRetryable,
		},
		{
			name:   "topic has no publisher",
			noPub:  true,
			reason: enums.OutboxDLQReasonNonRetryable,
		},
		{
			name:     "attempts exhausted",
			attempts: 1,
			pubErr:   errors.New("deadline exceeded"),
			reason:   enums.OutboxDLQReasonMaxAttempts,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			row := binRow(t, "B-010", tc.attempts)
			h := newHarness(t, tc.resolver, 2, row)
			h.pub.errs = []error{tc.pubErr}
			if tc.noPub {
				h.svc.publisherFactory = func(string) publisher { return nil }
			}

			processed, err := h.svc.processBatch(context.Background())
			require.NoError(t, err)
			assert.True(t, processed)
			assert.Empty(t, h.repo.published)

			require.Len(t, h.dlq.entries, 1)
			entry := h.dlq.entries[0]
			assert.Equal(t, row.ID, entry.EventID)
			assert.Equal(t, "B-010", entry.AggregateID)
			assert.JSONEq(t, string(row.Payload), string(entry.Payload))
			assert.Equal(t, tc.reason, entry.ErrorReason)
			assert.Equal(t, []uuid.UUID{row.ID}, h.repo.terminal)
		})
	}
}

func TestProcessBatchReportsEmptyBatch(t *testing.T) {
	h := newHarness(t, nil, 5)
	processed, err := h.svc.processBatch(context.Background())
	require.NoError(t, err)
	assert.False(t, processed)
}

func TestProcessBatchReturnsBookkeepingErrors(t *testing.T) {
	h := newHarness(t, nil, 5, binRow(t, "B-003", 0))
	h.repo.markErr = errors.New("connection reset")

	_, err := h.svc.processBatch(context.Background())
	assert.ErrorContains(t, err, "mark published")
}

func TestBuildMessageOrdersBinEventsByAggregate(t *testing.T) {
	row := binRow(t, "B-042", 0)
	resolved := &registry.ResolvedEvent{Envelope: outbox.PayloadEnvelope{
		EventID: row.ID.String(),
		Actor:   &outbox.ActorRef{StationID: "ST-3"},
	}}

	msg := buildMessage(row, resolved)
	assert.Equal(t, "B-042", msg.OrderingKey)
	assert.Equal(t, "ST-3", msg.Attributes["station_id"])
	assert.Equal(t, string(enums.EventBinScanned), msg.Attributes["event_type"])

	row.AggregateType = enums.AggregateComponent
	assert.Empty(t, buildMessage(row, resolved).OrderingKey, "component events are unordered")
}

func TestPublisherForCachesPerTopic(t *testing.T) {
	h := newHarness(t, nil, 5)
	calls := 0
	h.svc.publisherFactory = func(string) publisher {
		calls++
		return &fakePublisher{}
	}

	first := h.svc.publisherFor(domainTopic)
	assert.Same(t, first, h.svc.publisherFor(domainTopic))
	assert.Equal(t, 1, calls)
	h.svc.publisherFor("bt-label-events")
	assert.Equal(t, 2, calls)

	h.svc.stopPublishers()
	assert.Empty(t, h.svc.publishers)
}

func TestNextBackoffDoublesUpToCap(t *testing.T) {
	base := 500 * time.Millisecond
	assert.Equal(t, time.Second, nextBackoff(base, base, maxBackoff))
	assert.Equal(t, maxBackoff, nextBackoff(8*time.Second, base, maxBackoff))
	assert.Equal(t, time.Second, nextBackoff(0, base, maxBackoff))
}

type fakeRepo struct {
	events    []models.OutboxEvent
	published []uuid.UUID
	failed    []uuid.UUID
	terminal  []uuid.UUID
	markErr   error
}

func (f *fakeRepo) FetchUnpublishedForPublish(_ *gorm.DB, _, _ int) ([]models.OutboxEvent, error) {
	return f.events, nil
}

func (f *fakeRepo) MarkPublishedTx(_ *gorm.DB, id uuid.UUID) error {
	if f.markErr != nil {
		return f.markErr
	}
	f.published = append(f.published, id)
	return nil
}

func (f *fakeRepo) MarkFailedTx(_ *gorm.DB, id uuid.UUID, _ error) error {
	f.failed = append(f.failed, id)
	return nil
}

func (f *fakeRepo) MarkTerminalTx(_ *gorm.DB, id uuid.UUID, _ error, _ int) error {
	f.terminal = append(f.terminal, id)
	return nil
}

type fakeDLQRepo struct {
	entries []models.OutboxDLQ
}

func (f *fakeDLQRepo) InsertTx(_ *gorm.DB, entry models.OutboxDLQ) error {
	f.entries = append(f.entries, entry)
	return nil
}

type fakeDB struct{}

func (fakeDB) Ping(context.Context) error { return nil }

func (fakeDB) WithTx(_ context.Context, fn func(*gorm.DB) error) error { return fn(nil) }

type fakePubSubClient struct{}

func (fakePubSubClient) Ping(context.Context) error            { return nil }
func (fakePubSubClient) DomainPublisher() *gcppubsub.Publisher { return nil }
func (fakePubSubClient) Publisher(string) *gcppubsub.Publisher { return nil }

// fakePublisher pops one error per publish; an exhausted list succeeds.
type fakePublisher struct {
	errs []error
}

func (f *fakePublisher) Publish(context.Context, *gcppubsub.Message) publishResult {
	var err error
	if len(f.errs) > 0 {
		err, f.errs = f.errs[0], f.errs[1:]
	}
	return fakeResult{err: err}
}

type fakeResult struct{ err error }

func (r fakeResult) Get(context.Context) (string, error) { return "server-id", r.err }

type fakeRegistry struct {
	err error
}

func (f *fakeRegistry) Resolve(models.OutboxEvent) (*registry.ResolvedEvent, error) {
	return nil, f.err
}

// topicResolver routes every row to topic with an envelope built from the row.
type topicResolver string

func (r topicResolver) Resolve(event models.OutboxEvent) (*registry.ResolvedEvent, error) {
	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(event.Payload, &envelope); err != nil {
		return nil, registry.NewNonRetryableError(err)
	}
	return &registry.ResolvedEvent{
		Descriptor: registry.EventDescriptor{EventType: event.EventType, AggregateType: event.AggregateType, Topic: string(r)},
		Envelope:   envelope,
	}, nil
}
