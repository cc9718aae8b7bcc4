package stripewebhook

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"

	pkgerrors "github.com/ecomstore/storefront-backend/pkg/errors"
)

type stubReconciler struct {
	byIntent  map[string]uuid.UUID
	completed []uuid.UUID
	failed    map[uuid.UUID]string
	err       error
}

func newStubReconciler() *stubReconciler {
	return &stubReconciler{byIntent: map[string]uuid.UUID{}, failed: map[uuid.UUID]string{}}
}

func (s *stubReconciler) OrderIDForIntent(_ context.Context, intentID string) (uuid.UUID, error) {
	id, ok := s.byIntent[intentID]
	if !ok {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found for payment intent")
	}
	return id, nil
}

func (s *stubReconciler) MarkCompleted(_ context.Context, orderID uuid.UUID) error {
	if s.err != nil {
		return s.err
	}
	s.completed = append(s.completed, orderID)
	return nil
}

func (s *stubReconciler) MarkFailed(_ context.Context, orderID uuid.UUID, reason string) error {
	if s.err != nil {
		return s.err
	}
	s.failed[orderID] = reason
	return nil
}

func intentEvent(t *testing.T, eventType stripe.EventType, intent *stripe.PaymentIntent) *stripe.Event {
	t.Helper()
	raw, err := json.Marshal(intent)
	if err != nil {
		t.Fatalf("marshal intent: %v", err)
	}
	return &stripe.Event{ID: "evt_" + intent.ID, Type: eventType, Data: &stripe.EventData{Raw: raw}}
}

func newTestService(t *testing.T, rec *stubReconciler) *Service {
	t.Helper()
	svc, err := NewService(ServiceParams{Reconciler: rec})
	if err != nil {
		t.Fatalf("setup service: %v", err)
	}
	return svc
}

func TestHandleSucceededUsesMetadataOrderID(t *testing.T) {
	rec := newStubReconciler()
	svc := newTestService(t, rec)
	orderID := uuid.New()

	event := intentEvent(t, stripe.EventTypePaymentIntentSucceeded, &stripe.PaymentIntent{
		ID:       "pi_1",
		Metadata: map[string]string{"order_id": orderID.String()},
	})
	if err := svc.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("handle event: %v", err)
	}
	if len(rec.completed) != 1 || rec.completed[0] != orderID {
		t.Fatalf("expected order %s completed, got %v", orderID, rec.completed)
	}
}

func TestHandleFailedFallsBackToIntentLookup(t *testing.T) {
	rec := newStubReconciler()
	orderID := uuid.New()
	rec.byIntent["pi_2"] = orderID
	svc := newTestService(t, rec)

	event := intentEvent(t, stripe.EventTypePaymentIntentPaymentFailed, &stripe.PaymentIntent{
		ID:               "pi_2",
		LastPaymentError: &stripe.Error{Msg: "Your card was declined."},
	})
	if err := svc.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("handle event: %v", err)
	}
	if rec.failed[orderID] != "Your card was declined." {
		t.Fatalf("unexpected failure reason %q", rec.failed[orderID])
	}
}

func TestHandleCanceledRecordsReason(t *testing.T) {
	rec := newStubReconciler()
	orderID := uuid.New()
	svc := newTestService(t, rec)

	event := intentEvent(t, stripe.EventTypePaymentIntentCanceled, &stripe.PaymentIntent{
		ID:                 "pi_3",
		Metadata:           map[string]string{"order_id": orderID.String()},
		CancellationReason: stripe.PaymentIntentCancellationReasonAbandoned,
	})
	if err := svc.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("handle event: %v", err)
	}
	if rec.failed[orderID] != "canceled: abandoned" {
		t.Fatalf("unexpected reason %q", rec.failed[orderID])
	}
}

func TestHandleAcknowledgesUnknownAndSettled(t *testing.T) {
	rec := newStubReconciler()
	svc := newTestService(t, rec)

	unknown := intentEvent(t, stripe.EventTypePaymentIntentSucceeded, &stripe.PaymentIntent{ID: "pi_missing"})
	if err := svc.HandleEvent(context.Background(), unknown); err != nil {
		t.Fatalf("expected unknown intent to be acknowledged, got %v", err)
	}

	rec.err = pkgerrors.New(pkgerrors.CodeStateConflict, "payment already settled")
	settled := intentEvent(t, stripe.EventTypePaymentIntentPaymentFailed, &stripe.PaymentIntent{
		ID:       "pi_4",
		Metadata: map[string]string{"order_id": uuid.NewString()},
	})
	if err := svc.HandleEvent(context.Background(), settled); err != nil {
		t.Fatalf("expected settled payment to be acknowledged, got %v", err)
	}
}

func TestHandleReturnsDependencyErrors(t *testing.T) {
	rec := newStubReconciler()
	rec.err = pkgerrors.Wrap(pkgerrors.CodeDependency, errors.New("db down"), "update payment status")
	svc := newTestService(t, rec)

	event := intentEvent(t, stripe.EventTypePaymentIntentSucceeded, &stripe.PaymentIntent{
		ID:       "pi_5",
		Metadata: map[string]string{"order_id": uuid.NewString()},
	})
	if err := svc.HandleEvent(context.Background(), event); err == nil {
		t.Fatalf("expected dependency error")
	}
}

func TestHandleIgnoresOtherEvents(t *testing.T) {
	rec := newStubReconciler()
	svc := newTestService(t, rec)
	event := &stripe.Event{Type: stripe.EventTypeChargeRefunded, Data: &stripe.EventData{Raw: []byte(`{}`)}}
	if err := svc.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
	if err := svc.HandleEvent(context.Background(), nil); err == nil {
		t.Fatalf("expected error for nil event")
	}
}

type memoryStore struct {
	keys map[string]bool
}

func (m *memoryStore) Get(_ context.Context, key string) (string, error) {
	if m.keys[key] {
		return "1", nil
	}
	return "", errors.New("redis: nil")
}

func (m *memoryStore) SetNX(_ context.Context, key string, _ any, _ time.Duration) (bool, error) {
	if m.keys[key] {
		return false, nil
	}
	m.keys[key] = true
	return true, nil
}

func (m *memoryStore) IdempotencyKey(scope, id string) string {
	return "sf:idempotency:" + scope + ":" + id
}

func (m *memoryStore) Del(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(m.keys, k)
	}
	return nil
}

func TestIdempotencyGuard(t *testing.T) {
	store := &memoryStore{keys: map[string]bool{}}
	guard, err := NewIdempotencyGuard(store, time.Hour, "stripe")
	if err != nil {
		t.Fatalf("new guard: %v", err)
	}

	seen, err := guard.CheckAndMark(context.Background(), "evt_1")
	if err != nil || seen {
		t.Fatalf("first delivery: seen=%v err=%v", seen, err)
	}
	seen, _ = guard.CheckAndMark(context.Background(), "evt_1")
	if !seen {
		t.Fatalf("expected duplicate delivery to be detected")
	}
	if err := guard.Delete(context.Background(), "evt_1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	seen, _ = guard.CheckAndMark(context.Background(), "evt_1")
	if seen {
		t.Fatalf("expected key to be cleared")
	}
	if _, err := NewIdempotencyGuard(nil, time.Hour, "stripe"); err == nil {
		t.Fatalf("expected nil store error")
	}
}
