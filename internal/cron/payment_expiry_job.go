package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/ecomstore/storefront-backend/pkg/db/models"
	"github.com/ecomstore/storefront-backend/pkg/enums"
	"github.com/ecomstore/storefront-backend/pkg/logger"
	"github.com/ecomstore/storefront-backend/pkg/pagination"
)

const (
	defaultPixTTL        = 30 * time.Minute
	defaultBoletoDueDays = 3
	expiryBatchSize      = 200

	pixExpiredReason    = "pix code expired"
	boletoExpiredReason = "boleto due date passed"
)

// PaymentExpiryJobParams configure the sweep that cancels unpaid PIX and boleto orders.
type PaymentExpiryJobParams struct {
	Logger        *logger.Logger
	Orders        pendingPaymentReader
	Expirer       paymentExpirer
	PixTTL        time.Duration
	BoletoDueDays int
	BatchSize     int
}

type pendingPaymentReader interface {
	FindPendingPayments(ctx context.Context, method enums.PaymentMethod, createdBefore time.Time, after *pagination.Cursor, limit int) ([]models.Order, error)
}

type paymentExpirer interface {
	Expire(ctx context.Context, orderID uuid.UUID, reason string) error
}

// NewPaymentExpiryJob builds the payment-expiry job.
func NewPaymentExpiryJob(params PaymentExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("orders reader required")
	}
	if params.Expirer == nil {
		return nil, fmt.Errorf("payment expirer required")
	}
	pixTTL := params.PixTTL
	if pixTTL <= 0 {
		pixTTL = defaultPixTTL
	}
	dueDays := params.BoletoDueDays
	if dueDays <= 0 {
		dueDays = defaultBoletoDueDays
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = expiryBatchSize
	}
	return &paymentExpiryJob{
		logg:      params.Logger,
		orders:    params.Orders,
		expirer:   params.Expirer,
		pixTTL:    pixTTL,
		dueDays:   dueDays,
		batchSize: batch,
		now:       time.Now,
	}, nil
}

type paymentExpiryJob struct {
	logg      *logger.Logger
	orders    pendingPaymentReader
	expirer   paymentExpirer
	pixTTL    time.Duration
	dueDays   int
	batchSize int
	now       func() time.Time
}

func (j *paymentExpiryJob) Name() string { return "payment-expiry" }

func (j *paymentExpiryJob) Run(ctx context.Context) error {
	now := j.now().UTC()
	return multierr.Combine(
		j.sweep(ctx, enums.PaymentMethodPix, now.Add(-j.pixTTL), now, pixExpiredReason, pixExpired),
		j.sweep(ctx, enums.PaymentMethodBoleto, now.AddDate(0, 0, -j.dueDays), now, boletoExpiredReason, boletoExpired),
	)
}

func (j *paymentExpiryJob) sweep(
	ctx context.Context,
	method enums.PaymentMethod,
	cutoff, now time.Time,
	reason string,
	expired func(order models.Order, now time.Time) bool,
) error {
	var (
		errs       error
		after      *pagination.Cursor
		candidates int
		count      int
	)
	// Artifacts that have not lapsed yet are skipped, so keep paging until
	// the backlog is exhausted instead of rereading the same head batch.
	for {
		if err := ctx.Err(); err != nil {
			return multierr.Append(errs, err)
		}
		page, err := j.orders.FindPendingPayments(ctx, method, cutoff, after, j.batchSize)
		if err != nil {
			return multierr.Append(errs, fmt.Errorf("query pending %s payments: %w", method, err))
		}
		candidates += len(page)
		for _, order := range page {
			if !expired(order, now) {
				continue
			}
			if err := j.expirer.Expire(ctx, order.ID, reason); err != nil {
				orderCtx := j.logg.WithOrderID(ctx, order.ID.String())
				j.logg.Error(orderCtx, "expire payment", err)
				errs = multierr.Append(errs, fmt.Errorf("expire order %s: %w", order.ID, err))
				continue
			}
			count++
		}
		if len(page) < j.batchSize {
			break
		}
		last := page[len(page)-1]
		after = &pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID}
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"payment_method": string(method),
		"candidates":     candidates,
		"expired":        count,
		"cutoff":         cutoff,
	})
	j.logg.Info(logCtx, "payment expiry sweep complete")
	return errs
}

func pixExpired(order models.Order, now time.Time) bool {
	if order.PaymentData == nil || order.PaymentData.ExpiresAt == nil {
		return true
	}
	return now.After(*order.PaymentData.ExpiresAt)
}

func boletoExpired(order models.Order, now time.Time) bool {
	if order.PaymentData == nil || order.PaymentData.DueDate == nil {
		return true
	}
	return now.After(*order.PaymentData.DueDate)
}
