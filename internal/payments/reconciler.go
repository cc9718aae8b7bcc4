package payments

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ecomstore/storefront-backend/internal/cart"
	"github.com/ecomstore/storefront-backend/internal/orders"
	"github.com/ecomstore/storefront-backend/pkg/db/models"
	"github.com/ecomstore/storefront-backend/pkg/enums"
	pkgerrors "github.com/ecomstore/storefront-backend/pkg/errors"
	"github.com/ecomstore/storefront-backend/pkg/logger"
	"github.com/ecomstore/storefront-backend/pkg/metrics"
	"github.com/ecomstore/storefront-backend/pkg/outbox"
	"github.com/ecomstore/storefront-backend/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type eventEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
	EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type cartClearer interface {
	Clear(ctx context.Context, owner cart.Owner) (int64, error)
}

// Reconciler moves order payment state in response to dispatch results and provider callbacks.
type Reconciler struct {
	orders  orders.Repository
	tx      txRunner
	outbox  eventEmitter
	cart    cartClearer
	metrics *metrics.PaymentMetrics
	logg    *logger.Logger
	now     func() time.Time
}

// ReconcilerParams groups the reconciler dependencies.
type ReconcilerParams struct {
	Orders  orders.Repository
	Tx      txRunner
	Outbox  eventEmitter
	Cart    cartClearer
	Metrics *metrics.PaymentMetrics
	Logger  *logger.Logger
	Now     func() time.Time
}

func NewReconciler(p ReconcilerParams) (*Reconciler, error) {
	if p.Orders == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "orders repository required")
	}
	if p.Tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "transaction runner required")
	}
	if p.Outbox == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "outbox service required")
	}
	now := p.Now
	if now == nil {
		now = time.Now
	}
	return &Reconciler{
		orders:  p.Orders,
		tx:      p.Tx,
		outbox:  p.Outbox,
		cart:    p.Cart,
		metrics: p.Metrics,
		logg:    p.Logger,
		now:     now,
	}, nil
}

// AttachArtifact stores the adapter result on a pending order that has no artifact yet,
// then clears the buyer's cart. Cart failures are logged and do not fail the call.
func (r *Reconciler) AttachArtifact(ctx context.Context, order *models.Order, result *DispatchResult, owner cart.Owner) error {
	if order == nil || result == nil {
		return pkgerrors.New(pkgerrors.CodeInternal, "order and dispatch result required")
	}

	status := result.Status
	if status == "" {
		status = enums.PaymentStatusPending
	}
	updates := map[string]any{
		"payment_data":   result.Data,
		"payment_status": status,
	}
	if result.PaymentIntentID != nil {
		updates["payment_intent_id"] = *result.PaymentIntentID
	}

	err := r.tx.WithTx(ctx, func(tx *gorm.DB) error {
		ok, err := r.orders.WithTx(tx).UpdatePaymentState(ctx, order.ID, orders.PaymentStateFilter{
			From:            []enums.PaymentStatus{enums.PaymentStatusPending},
			WithoutArtifact: true,
		}, updates)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "attach payment data")
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order already has a payment in progress").WithDetails(map[string]any{
				"order_id": order.ID.String(),
			})
		}
		return r.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPaymentDispatched,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         &outbox.ActorRef{UserID: order.UserID, Source: "payments"},
			Data: payloads.PaymentDispatchedEvent{
				OrderID:       order.ID,
				PaymentMethod: order.PaymentMethod,
				PaymentStatus: status,
				Reference:     result.Reference,
				ExpiresAt:     result.ExpiresAt,
			},
		})
	})
	if err != nil {
		return err
	}

	order.PaymentStatus = status
	data := result.Data
	order.PaymentData = &data
	order.PaymentIntentID = result.PaymentIntentID
	r.metrics.IncReconcile(status.String())

	if owner.UserID == "" {
		owner.UserID = order.UserID
	}
	if r.cart != nil {
		if _, err := r.cart.Clear(ctx, owner); err != nil && r.logg != nil {
			r.logg.Warn(r.logg.WithOrderID(ctx, order.ID.String()), "clear cart after dispatch failed: "+err.Error())
		}
	}
	return nil
}

// MarkCompleted confirms the order after the provider reports success.
func (r *Reconciler) MarkCompleted(ctx context.Context, orderID uuid.UUID) error {
	return r.settle(ctx, orderID, settlement{
		payment: enums.PaymentStatusCompleted,
		order:   enums.OrderStatusConfirmed,
		event:   enums.EventPaymentCompleted,
	})
}

// MarkFailed records a provider-reported failure. The order stays pending and a
// later success on the same intent can still complete it.
func (r *Reconciler) MarkFailed(ctx context.Context, orderID uuid.UUID, reason string) error {
	return r.settle(ctx, orderID, settlement{
		payment: enums.PaymentStatusFailed,
		event:   enums.EventPaymentFailed,
		reason:  reason,
	})
}

// Expire fails the payment and cancels the order once its artifact can no longer be paid.
func (r *Reconciler) Expire(ctx context.Context, orderID uuid.UUID, reason string) error {
	return r.settle(ctx, orderID, settlement{
		payment: enums.PaymentStatusFailed,
		order:   enums.OrderStatusCancelled,
		event:   enums.EventPaymentFailed,
		reason:  reason,
		cancel:  true,
	})
}

// OrderIDForIntent resolves the order that owns a Stripe payment intent.
func (r *Reconciler) OrderIDForIntent(ctx context.Context, intentID string) (uuid.UUID, error) {
	intentID = strings.TrimSpace(intentID)
	if intentID == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "payment intent id required")
	}
	order, err := r.orders.FindByPaymentIntentID(ctx, intentID)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order by payment intent")
	}
	if order == nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found for payment intent")
	}
	return order.ID, nil
}

type settlement struct {
	payment enums.PaymentStatus
	order   enums.OrderStatus
	event   enums.OutboxEventType
	reason  string
	cancel  bool
}

func (r *Reconciler) settle(ctx context.Context, orderID uuid.UUID, s settlement) error {
	if orderID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order_id is required")
	}

	applied := false
	err := r.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := r.orders.WithTx(tx)
		order, err := repo.FindByID(ctx, orderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		if order.PaymentStatus == s.payment && (s.order == "" || order.Status == s.order) {
			return nil
		}
		if order.PaymentStatus.IsTerminal() {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "payment already settled").WithDetails(map[string]any{
				"order_id":       orderID.String(),
				"payment_status": order.PaymentStatus,
			})
		}
		// An expired order stays cancelled even if a late success arrives.
		if order.Status == enums.OrderStatusCancelled && s.order != enums.OrderStatusCancelled {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order already cancelled").WithDetails(map[string]any{
				"order_id": orderID.String(),
			})
		}

		updates := map[string]any{"payment_status": s.payment}
		if s.order != "" {
			updates["status"] = s.order
		}
		ok, err := repo.UpdatePaymentState(ctx, orderID, orders.PaymentStateFilter{
			From: []enums.PaymentStatus{enums.PaymentStatusPending, enums.PaymentStatusProcessing, enums.PaymentStatusFailed},
		}, updates)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update payment status")
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "payment status changed concurrently")
		}

		now := r.now().UTC()
		actor := &outbox.ActorRef{UserID: order.UserID, Source: "payments"}
		if err := r.outbox.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
			EventType:     s.event,
			AggregateType: enums.AggregateOrder,
			AggregateID:   orderID,
			Actor:         actor,
			OccurredAt:    now,
			Data: payloads.PaymentStatusEvent{
				OrderID:       orderID,
				PaymentMethod: order.PaymentMethod,
				PaymentStatus: s.payment,
				Reason:        s.reason,
				OccurredAt:    now,
			},
		}); err != nil {
			return err
		}
		if s.cancel {
			if err := r.outbox.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventOrderCancelled,
				AggregateType: enums.AggregateOrder,
				AggregateID:   orderID,
				Actor:         actor,
				OccurredAt:    now,
				Data: payloads.OrderCancelledEvent{
					OrderID:     orderID,
					Reason:      s.reason,
					CancelledAt: now,
				},
			}); err != nil {
				return err
			}
		}
		applied = true
		return nil
	})
	if err != nil {
		return err
	}
	if applied {
		r.metrics.IncReconcile(s.payment.String())
		if r.logg != nil {
			logCtx := r.logg.WithFields(ctx, map[string]any{
				"order_id":       orderID.String(),
				"payment_status": s.payment,
			})
			r.logg.Info(logCtx, "payment status reconciled")
		}
	}
	return nil
}
