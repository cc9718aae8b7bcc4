package stripewebhook

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"

	pkgerrors "github.com/ecomstore/storefront-backend/pkg/errors"
	"github.com/ecomstore/storefront-backend/pkg/logger"
)

type paymentReconciler interface {
	OrderIDForIntent(ctx context.Context, intentID string) (uuid.UUID, error)
	MarkCompleted(ctx context.Context, orderID uuid.UUID) error
	MarkFailed(ctx context.Context, orderID uuid.UUID, reason string) error
}

type ServiceParams struct {
	Reconciler paymentReconciler
	Logger     *logger.Logger
}

// Service maps Stripe payment intent events onto order payment state.
type Service struct {
	reconciler paymentReconciler
	logg       *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Reconciler == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "payment reconciler required")
	}
	return &Service{reconciler: params.Reconciler, logg: params.Logger}, nil
}

// HandleEvent applies payment_intent outcomes. Events for unknown orders or already
// settled payments are acknowledged without changes; other event types are ignored.
func (s *Service) HandleEvent(ctx context.Context, event *stripe.Event) error {
	if event == nil || event.Data == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "stripe event data required")
	}

	switch event.Type {
	case stripe.EventTypePaymentIntentSucceeded,
		stripe.EventTypePaymentIntentPaymentFailed,
		stripe.EventTypePaymentIntentCanceled:
	default:
		return nil
	}

	var intent stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode payment intent event")
	}

	orderID, err := s.resolveOrder(ctx, &intent)
	if err != nil {
		return s.acknowledge(ctx, event, err)
	}

	switch event.Type {
	case stripe.EventTypePaymentIntentSucceeded:
		err = s.reconciler.MarkCompleted(ctx, orderID)
	default:
		err = s.reconciler.MarkFailed(ctx, orderID, failureReason(event.Type, &intent))
	}
	return s.acknowledge(ctx, event, err)
}

func (s *Service) resolveOrder(ctx context.Context, intent *stripe.PaymentIntent) (uuid.UUID, error) {
	if raw := strings.TrimSpace(intent.Metadata["order_id"]); raw != "" {
		if id, err := uuid.Parse(raw); err == nil {
			return id, nil
		}
	}
	return s.reconciler.OrderIDForIntent(ctx, intent.ID)
}

// acknowledge swallows outcomes that a Stripe retry could never fix.
func (s *Service) acknowledge(ctx context.Context, event *stripe.Event, err error) error {
	if err == nil {
		return nil
	}
	typed := pkgerrors.As(err)
	if typed == nil {
		return err
	}
	switch typed.Code() {
	case pkgerrors.CodeNotFound, pkgerrors.CodeStateConflict, pkgerrors.CodeValidation:
		if s.logg != nil {
			logCtx := s.logg.WithFields(ctx, map[string]any{
				"stripe_event_id":   event.ID,
				"stripe_event_type": string(event.Type),
				"reason":            typed.Message(),
			})
			s.logg.Warn(logCtx, "stripe event ignored")
		}
		return nil
	default:
		return err
	}
}

func failureReason(eventType stripe.EventType, intent *stripe.PaymentIntent) string {
	if eventType == stripe.EventTypePaymentIntentCanceled {
		if intent.CancellationReason != "" {
			return "canceled: " + string(intent.CancellationReason)
		}
		return "canceled"
	}
	if intent.LastPaymentError != nil && intent.LastPaymentError.Msg != "" {
		return intent.LastPaymentError.Msg
	}
	return "payment failed"
}
