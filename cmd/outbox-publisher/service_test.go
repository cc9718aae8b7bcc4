package main

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"

	"github.com/ecomstore/storefront-backend/pkg/config"
	"github.com/ecomstore/storefront-backend/pkg/db/models"
	"github.com/ecomstore/storefront-backend/pkg/enums"
	"github.com/ecomstore/storefront-backend/pkg/logger"
	"github.com/ecomstore/storefront-backend/pkg/metrics"
	"github.com/ecomstore/storefront-backend/pkg/outbox"
	"github.com/ecomstore/storefront-backend/pkg/outbox/registry"
)

func orderEvent(attempts int) models.OutboxEvent {
	return models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     enums.EventOrderCreated,
		AggregateType: enums.AggregateOrder,
		AggregateID:   uuid.New(),
		Payload:       []byte(`{"event_id":"e1"}`),
		AttemptCount:  attempts,
	}
}

func TestProcessBatchSettlesEachRow(t *testing.T) {
	ok, transient := orderEvent(0), orderEvent(2)
	repo := &fakeRepo{events: []models.OutboxEvent{transient, ok}}
	pub := &fakePublisher{errs: []error{errors.New("deadline exceeded"), nil}}
	reg := prometheus.NewRegistry()
	svc := newTestService(t, repo, &fakeRegistry{}, &fakeDLQ{}, pub, metrics.NewOutboxMetrics(reg))

	handled, err := svc.processBatch(context.Background())
	if err != nil {
		t.Fatalf("process batch: %v", err)
	}
	if handled != 2 {
		t.Fatalf("expected 2 handled rows, got %d", handled)
	}
	if len(repo.failed) != 1 || repo.failed[0] != transient.ID {
		t.Fatalf("expected transient row marked failed, got %v", repo.failed)
	}
	if len(repo.published) != 1 || repo.published[0] != ok.ID {
		t.Fatalf("expected ok row marked published, got %v", repo.published)
	}
	if got := len(pub.sent); got != 2 {
		t.Fatalf("expected 2 publish attempts, got %d", got)
	}
	if attr := pub.sent[1].Attributes["event_type"]; attr != string(enums.EventOrderCreated) {
		t.Fatalf("unexpected event_type attribute %q", attr)
	}
	if got := counterValue(t, reg, metrics.OutboxRetry); got != 1 {
		t.Fatalf("expected one retry recorded, got %v", got)
	}
	if got := counterValue(t, reg, metrics.OutboxPublished); got != 1 {
		t.Fatalf("expected one publish recorded, got %v", got)
	}
}

func TestProcessBatchBuriesAtMaxAttempts(t *testing.T) {
	event := orderEvent(defaultMaxAttempts - 1)
	repo := &fakeRepo{events: []models.OutboxEvent{event}}
	dlq := &fakeDLQ{}
	svc := newTestService(t, repo, &fakeRegistry{}, dlq, &fakePublisher{errs: []error{errors.New("unavailable")}}, nil)

	if _, err := svc.processBatch(context.Background()); err != nil {
		t.Fatalf("process batch: %v", err)
	}
	if len(dlq.entries) != 1 || dlq.entries[0].ErrorReason != enums.OutboxDLQReasonMaxAttempts {
		t.Fatalf("expected max_attempts dlq entry, got %+v", dlq.entries)
	}
	if len(repo.terminal) != 1 || repo.terminal[0] != event.ID {
		t.Fatalf("expected row marked terminal")
	}
	if len(repo.failed) != 0 {
		t.Fatalf("terminal row should not also be marked failed")
	}
}

func TestProcessBatchBuriesUnresolvableRows(t *testing.T) {
	event := orderEvent(0)
	repo := &fakeRepo{events: []models.OutboxEvent{event}}
	dlq := &fakeDLQ{}
	pub := &fakePublisher{}
	resolver := &fakeRegistry{err: registry.NewNonRetryableError(errors.New("invalid payload"))}
	svc := newTestService(t, repo, resolver, dlq, pub, nil)

	if _, err := svc.processBatch(context.Background()); err != nil {
		t.Fatalf("process batch: %v", err)
	}
	if len(dlq.entries) != 1 || dlq.entries[0].ErrorReason != enums.OutboxDLQReasonNonRetryable {
		t.Fatalf("expected non_retryable dlq entry, got %+v", dlq.entries)
	}
	if dlq.entries[0].ErrorMessage == nil || *dlq.entries[0].ErrorMessage != "invalid payload" {
		t.Fatalf("unexpected dlq message %v", dlq.entries[0].ErrorMessage)
	}
	if len(pub.sent) != 0 {
		t.Fatalf("unresolvable rows must not be published")
	}
}

func TestProcessBatchMissingPublisherIsTerminal(t *testing.T) {
	repo := &fakeRepo{events: []models.OutboxEvent{orderEvent(0)}}
	dlq := &fakeDLQ{}
	svc := newTestService(t, repo, &fakeRegistry{}, dlq, nil, nil)
	svc.publishers = func(string) topicPublisher { return nil }

	if _, err := svc.processBatch(context.Background()); err != nil {
		t.Fatalf("process batch: %v", err)
	}
	if len(dlq.entries) != 1 {
		t.Fatalf("expected dlq entry when topic has no publisher")
	}
}

func TestProcessBatchPropagatesStoreErrors(t *testing.T) {
	repo := &fakeRepo{events: []models.OutboxEvent{orderEvent(0)}, publishErr: errors.New("db gone")}
	svc := newTestService(t, repo, &fakeRegistry{}, &fakeDLQ{}, &fakePublisher{}, nil)

	if _, err := svc.processBatch(context.Background()); err == nil {
		t.Fatalf("expected store error to abort the batch")
	}
}

func TestNewServiceDefaults(t *testing.T) {
	svc := newTestService(t, &fakeRepo{}, &fakeRegistry{}, &fakeDLQ{}, &fakePublisher{}, nil)
	if svc.batchSize != defaultBatchSize || svc.maxAttempts != defaultMaxAttempts || svc.pollInterval != defaultPollInterval {
		t.Fatalf("unexpected defaults: %d %d %s", svc.batchSize, svc.maxAttempts, svc.pollInterval)
	}
	if _, err := NewService(ServiceParams{}); err == nil {
		t.Fatalf("expected missing config error")
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	svc := newTestService(t, &fakeRepo{}, &fakeRegistry{}, &fakeDLQ{}, &fakePublisher{}, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if err := svc.Run(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
}

func counterValue(t *testing.T, reg *prometheus.Registry, result string) float64 {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != "outbox_events_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, label := range m.GetLabel() {
				if label.GetName() == "result" && label.GetValue() == result {
					return m.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}

func newTestService(t *testing.T, repo *fakeRepo, resolver eventResolver, dlq *fakeDLQ, pub *fakePublisher, m *metrics.OutboxMetrics) *Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		Config:     &config.Config{},
		Logger:     logger.New(logger.Options{ServiceName: "outbox-test", Output: io.Discard}),
		DB:         fakeDB{},
		PubSub:     fakeTopics{},
		Repository: repo,
		DLQ:        dlq,
		Registry:   resolver,
		Metrics:    m,
		PublisherFactory: func(string) topicPublisher {
			if pub == nil {
				return nil
			}
			return pub
		},
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

type fakeDB struct{}

func (fakeDB) Ping(context.Context) error { return nil }

func (fakeDB) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error { return fn(nil) }

type fakeTopics struct{}

func (fakeTopics) Ping(context.Context) error { return nil }

func (fakeTopics) Publisher(string) *gcppubsub.Publisher { return nil }

type fakeRepo struct {
	events     []models.OutboxEvent
	published  []uuid.UUID
	failed     []uuid.UUID
	terminal   []uuid.UUID
	publishErr error
}

func (f *fakeRepo) FetchUnpublishedForPublish(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error) {
	events := f.events
	f.events = nil
	return events, nil
}

func (f *fakeRepo) MarkPublishedTx(tx *gorm.DB, id uuid.UUID) error {
	if f.publishErr != nil {
		return f.publishErr
	}
	f.published = append(f.published, id)
	return nil
}

func (f *fakeRepo) MarkFailedTx(tx *gorm.DB, id uuid.UUID, err error) error {
	f.failed = append(f.failed, id)
	return nil
}

func (f *fakeRepo) MarkTerminalTx(tx *gorm.DB, id uuid.UUID, err error, terminalAttempts int) error {
	f.terminal = append(f.terminal, id)
	return nil
}

type fakeDLQ struct {
	entries []models.OutboxDLQ
}

func (f *fakeDLQ) InsertTx(tx *gorm.DB, entry models.OutboxDLQ) error {
	f.entries = append(f.entries, entry)
	return nil
}

type fakeRegistry struct {
	err error
}

func (f *fakeRegistry) Resolve(event models.OutboxEvent) (*registry.ResolvedEvent, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &registry.ResolvedEvent{
		Descriptor: registry.EventDescriptor{EventType: event.EventType, AggregateType: event.AggregateType, Topic: "storefront-order-events"},
		Envelope:   outbox.PayloadEnvelope{EventID: uuid.NewString(), OccurredAt: time.Now()},
	}, nil
}

type fakePublisher struct {
	errs []error
	sent []*gcppubsub.Message
}

func (f *fakePublisher) Send(ctx context.Context, msg *gcppubsub.Message) error {
	f.sent = append(f.sent, msg)
	if len(f.errs) == 0 {
		return nil
	}
	err := f.errs[0]
	f.errs = f.errs[1:]
	return err
}
