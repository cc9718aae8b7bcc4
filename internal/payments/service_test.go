package payments

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v84"
	"gorm.io/gorm"

	"github.com/ecomstore/storefront-backend/internal/cart"
	"github.com/ecomstore/storefront-backend/internal/orders"
	dbpkg "github.com/ecomstore/storefront-backend/pkg/db"
	"github.com/ecomstore/storefront-backend/pkg/db/dbtest"
	"github.com/ecomstore/storefront-backend/pkg/db/models"
	"github.com/ecomstore/storefront-backend/pkg/enums"
	pkgerrors "github.com/ecomstore/storefront-backend/pkg/errors"
	"github.com/ecomstore/storefront-backend/pkg/metrics"
	"github.com/ecomstore/storefront-backend/pkg/outbox"
	"github.com/ecomstore/storefront-backend/pkg/types"
)

const testIntentID = "pi_test_123"

type paymentsEnv struct {
	db         *gorm.DB
	svc        Service
	reconciler *Reconciler
	intents    *fakeIntents
}

func newPaymentsEnv(t *testing.T, extra ...Adapter) paymentsEnv {
	t.Helper()
	db := dbtest.Open(t)
	repo := orders.NewRepository(db)
	m := metrics.NewPaymentMetrics(prometheus.NewRegistry())

	reconciler, err := NewReconciler(ReconcilerParams{
		Orders:  repo,
		Tx:      dbpkg.NewWithConn(db),
		Outbox:  outbox.NewService(outbox.NewRepository(db), nil),
		Cart:    cart.NewRepository(db),
		Metrics: m,
		Now:     func() time.Time { return adapterNow },
	})
	require.NoError(t, err)

	intents := &fakeIntents{intent: &stripe.PaymentIntent{ID: testIntentID, ClientSecret: testIntentID + "_secret"}}
	adapters := []Adapter{
		NewCardAdapter(intents),
		NewPixAdapter(testPaymentsConfig(), func() time.Time { return adapterNow }, nil),
		NewBoletoAdapter(testPaymentsConfig(), func() time.Time { return adapterNow }, nil),
	}
	adapters = append(adapters, extra...)
	dispatcher, err := NewDispatcher(m, nil, adapters...)
	require.NoError(t, err)

	svc, err := NewService(repo, dispatcher, reconciler, nil)
	require.NoError(t, err)
	return paymentsEnv{db: db, svc: svc, reconciler: reconciler, intents: intents}
}

func insertOrder(t *testing.T, db *gorm.DB, method enums.PaymentMethod, total string) *models.Order {
	t.Helper()
	amount := decimal.RequireFromString(total)
	order := &models.Order{
		ID:            uuid.New(),
		UserID:        "u1",
		Status:        enums.OrderStatusPending,
		PaymentStatus: enums.PaymentStatusPending,
		PaymentMethod: method,
		Currency:      enums.CurrencyBRL,
		Subtotal:      amount,
		Total:         amount,
		ShippingAddress: types.Address{
			Name: "Ana", Street: "Rua A", City: "Recife", State: "PE", PostalCode: "50000-000", Country: "BR",
		},
		Items: []models.OrderItem{{
			ID: uuid.New(), ProductID: "p1", Quantity: 1, UnitPrice: amount, TotalPrice: amount,
		}},
	}
	require.NoError(t, orders.NewRepository(db).Create(context.Background(), order))
	return order
}

func loadOrder(t *testing.T, db *gorm.DB, id uuid.UUID) models.Order {
	t.Helper()
	var order models.Order
	require.NoError(t, db.First(&order, "id = ?", id).Error)
	return order
}

func eventTypes(t *testing.T, db *gorm.DB, orderID uuid.UUID) []enums.OutboxEventType {
	t.Helper()
	var rows []models.OutboxEvent
	require.NoError(t, db.Where("aggregate_id = ?", orderID).Order("created_at ASC").Find(&rows).Error)
	out := make([]enums.OutboxEventType, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.EventType)
	}
	return out
}

func TestPayPixAttachesArtifactAndClearsCart(t *testing.T) {
	env := newPaymentsEnv(t)
	order := insertOrder(t, env.db, enums.PaymentMethodPix, "100")
	userID := "u1"
	require.NoError(t, env.db.Create(&models.CartItem{
		ID: uuid.New(), UserID: &userID, ProductID: "p1", Quantity: 2, UnitPrice: decimal.NewFromInt(50),
	}).Error)

	result, err := env.svc.Pay(context.Background(), PayInput{OrderID: order.ID, Method: enums.PaymentMethodPix, UserID: "u1"})
	require.NoError(t, err)
	assert.Equal(t, order.OrderNumber(), result.OrderNumber)
	assert.NotEmpty(t, result.PaymentData.PixCode)
	assert.Equal(t, enums.PaymentStatusPending, result.PaymentStatus)

	stored := loadOrder(t, env.db, order.ID)
	require.NotNil(t, stored.PaymentData)
	assert.Equal(t, result.PaymentData.PixCode, stored.PaymentData.PixCode)
	assert.Equal(t, enums.OrderStatusPending, stored.Status)

	var cartCount int64
	require.NoError(t, env.db.Model(&models.CartItem{}).Count(&cartCount).Error)
	assert.Zero(t, cartCount)
	assert.Equal(t, []enums.OutboxEventType{enums.EventPaymentDispatched}, eventTypes(t, env.db, order.ID))

	replay, err := env.svc.Pay(context.Background(), PayInput{OrderID: order.ID, Method: enums.PaymentMethodPix})
	require.NoError(t, err)
	assert.True(t, replay.Replayed)
	assert.Equal(t, result.PaymentData.PixCode, replay.PaymentData.PixCode)
	assert.Len(t, eventTypes(t, env.db, order.ID), 1)
}

func TestPayCardMovesToProcessing(t *testing.T) {
	env := newPaymentsEnv(t)
	order := insertOrder(t, env.db, enums.PaymentMethodCard, "59.90")

	result, err := env.svc.Pay(context.Background(), PayInput{OrderID: order.ID, Method: enums.PaymentMethodCard})
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentStatusProcessing, result.PaymentStatus)
	assert.Equal(t, int64(5990), *env.intents.params.Amount)

	stored := loadOrder(t, env.db, order.ID)
	require.NotNil(t, stored.PaymentIntentID)
	assert.Equal(t, testIntentID, *stored.PaymentIntentID)

	id, err := env.reconciler.OrderIDForIntent(context.Background(), testIntentID)
	require.NoError(t, err)
	assert.Equal(t, order.ID, id)
}

func TestPayAdapterFailureLeavesOrderPending(t *testing.T) {
	env := newPaymentsEnv(t)
	env.intents.err = errors.New("card_declined")
	order := insertOrder(t, env.db, enums.PaymentMethodCard, "10")

	_, err := env.svc.Pay(context.Background(), PayInput{OrderID: order.ID, Method: enums.PaymentMethodCard})
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodePaymentFailed, typed.Code())
	details, ok := typed.Details().(map[string]any)
	require.True(t, ok)
	assert.Equal(t, order.ID.String(), details["order_id"])

	stored := loadOrder(t, env.db, order.ID)
	assert.Nil(t, stored.PaymentData)
	assert.Equal(t, enums.PaymentStatusPending, stored.PaymentStatus)
	assert.Empty(t, eventTypes(t, env.db, order.ID))
}

func TestPayRejections(t *testing.T) {
	env := newPaymentsEnv(t)
	pix := insertOrder(t, env.db, enums.PaymentMethodPix, "10")
	paypal := insertOrder(t, env.db, enums.PaymentMethodPaypal, "10")

	cases := []struct {
		name  string
		input PayInput
		code  pkgerrors.Code
	}{
		{"missing order", PayInput{Method: enums.PaymentMethodPix}, pkgerrors.CodeValidation},
		{"unknown order", PayInput{OrderID: uuid.New(), Method: enums.PaymentMethodPix}, pkgerrors.CodeNotFound},
		{"other user", PayInput{OrderID: pix.ID, Method: enums.PaymentMethodPix, UserID: "u9"}, pkgerrors.CodeNotFound},
		{"method mismatch", PayInput{OrderID: pix.ID, Method: enums.PaymentMethodBoleto}, pkgerrors.CodeStateConflict},
		{"no adapter", PayInput{OrderID: paypal.ID, Method: enums.PaymentMethodPaypal}, pkgerrors.CodeValidation},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := env.svc.Pay(context.Background(), tc.input)
			require.Error(t, err)
			typed := pkgerrors.As(err)
			require.NotNil(t, typed)
			assert.Equal(t, tc.code, typed.Code())
		})
	}
}

func TestPayClearsSessionCart(t *testing.T) {
	env := newPaymentsEnv(t)
	order := insertOrder(t, env.db, enums.PaymentMethodBoleto, "20")
	session, other := "sess-1", "sess-2"
	for _, owner := range []*string{&session, &other} {
		require.NoError(t, env.db.Create(&models.CartItem{
			ID: uuid.New(), SessionID: owner, ProductID: "p1", Quantity: 1, UnitPrice: decimal.NewFromInt(20),
		}).Error)
	}

	_, err := env.svc.Pay(context.Background(), PayInput{
		OrderID: order.ID, Method: enums.PaymentMethodBoleto, UserID: "u1", SessionID: session,
	})
	require.NoError(t, err)

	var left []models.CartItem
	require.NoError(t, env.db.Find(&left).Error)
	require.Len(t, left, 1)
	assert.Equal(t, other, *left[0].SessionID)
}

func TestMarkCompletedIsIdempotent(t *testing.T) {
	env := newPaymentsEnv(t)
	order := insertOrder(t, env.db, enums.PaymentMethodCard, "10")
	_, err := env.svc.Pay(context.Background(), PayInput{OrderID: order.ID, Method: enums.PaymentMethodCard})
	require.NoError(t, err)

	require.NoError(t, env.reconciler.MarkCompleted(context.Background(), order.ID))
	require.NoError(t, env.reconciler.MarkCompleted(context.Background(), order.ID))

	stored := loadOrder(t, env.db, order.ID)
	assert.Equal(t, enums.PaymentStatusCompleted, stored.PaymentStatus)
	assert.Equal(t, enums.OrderStatusConfirmed, stored.Status)
	assert.Equal(t, []enums.OutboxEventType{enums.EventPaymentDispatched, enums.EventPaymentCompleted}, eventTypes(t, env.db, order.ID))

	err = env.reconciler.MarkFailed(context.Background(), order.ID, "late failure")
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeStateConflict, typed.Code())
}

func TestMarkFailedKeepsOrderPending(t *testing.T) {
	env := newPaymentsEnv(t)
	order := insertOrder(t, env.db, enums.PaymentMethodCard, "10")

	require.NoError(t, env.reconciler.MarkFailed(context.Background(), order.ID, "card_declined"))
	stored := loadOrder(t, env.db, order.ID)
	assert.Equal(t, enums.PaymentStatusFailed, stored.PaymentStatus)
	assert.Equal(t, enums.OrderStatusPending, stored.Status)
}

func TestMarkCompletedAfterFailure(t *testing.T) {
	env := newPaymentsEnv(t)
	ctx := context.Background()
	order := insertOrder(t, env.db, enums.PaymentMethodCard, "10")
	_, err := env.svc.Pay(ctx, PayInput{OrderID: order.ID, Method: enums.PaymentMethodCard})
	require.NoError(t, err)

	require.NoError(t, env.reconciler.MarkFailed(ctx, order.ID, "card_declined"))
	replay, err := env.svc.Pay(ctx, PayInput{OrderID: order.ID, Method: enums.PaymentMethodCard})
	require.NoError(t, err)
	assert.True(t, replay.Replayed)

	require.NoError(t, env.reconciler.MarkCompleted(ctx, order.ID))
	stored := loadOrder(t, env.db, order.ID)
	assert.Equal(t, enums.PaymentStatusCompleted, stored.PaymentStatus)
	assert.Equal(t, enums.OrderStatusConfirmed, stored.Status)
	assert.ElementsMatch(t, []enums.OutboxEventType{
		enums.EventPaymentDispatched, enums.EventPaymentFailed, enums.EventPaymentCompleted,
	}, eventTypes(t, env.db, order.ID))
}

func TestExpireAfterFailureCancelsOrder(t *testing.T) {
	env := newPaymentsEnv(t)
	ctx := context.Background()
	order := insertOrder(t, env.db, enums.PaymentMethodPix, "10")

	require.NoError(t, env.reconciler.MarkFailed(ctx, order.ID, "provider error"))
	require.NoError(t, env.reconciler.Expire(ctx, order.ID, "pix code expired"))

	stored := loadOrder(t, env.db, order.ID)
	assert.Equal(t, enums.PaymentStatusFailed, stored.PaymentStatus)
	assert.Equal(t, enums.OrderStatusCancelled, stored.Status)

	err := env.reconciler.MarkCompleted(ctx, order.ID)
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeStateConflict, pkgerrors.As(err).Code())
}

func TestExpireCancelsOrder(t *testing.T) {
	env := newPaymentsEnv(t)
	order := insertOrder(t, env.db, enums.PaymentMethodBoleto, "10")

	require.NoError(t, env.reconciler.Expire(context.Background(), order.ID, "boleto due date passed"))
	stored := loadOrder(t, env.db, order.ID)
	assert.Equal(t, enums.PaymentStatusFailed, stored.PaymentStatus)
	assert.Equal(t, enums.OrderStatusCancelled, stored.Status)
	assert.ElementsMatch(t, []enums.OutboxEventType{enums.EventPaymentFailed, enums.EventOrderCancelled}, eventTypes(t, env.db, order.ID))
}

func TestAttachArtifactRejectsSecondArtifact(t *testing.T) {
	env := newPaymentsEnv(t)
	order := insertOrder(t, env.db, enums.PaymentMethodPix, "10")
	first := &DispatchResult{Status: enums.PaymentStatusPending, Data: types.PaymentData{PixCode: "first"}}
	second := &DispatchResult{Status: enums.PaymentStatusPending, Data: types.PaymentData{PixCode: "second"}}

	require.NoError(t, env.reconciler.AttachArtifact(context.Background(), order, first, cart.Owner{}))
	err := env.reconciler.AttachArtifact(context.Background(), order, second, cart.Owner{})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeStateConflict, pkgerrors.As(err).Code())

	stored := loadOrder(t, env.db, order.ID)
	assert.Equal(t, "first", stored.PaymentData.PixCode)
}

func TestNewDispatcherRejectsDuplicates(t *testing.T) {
	_, err := NewDispatcher(nil, nil, NewPaypalAdapter(testPaymentsConfig(), nil), NewPaypalAdapter(testPaymentsConfig(), nil))
	require.Error(t, err)
}

func TestDispatchValidatesRequest(t *testing.T) {
	dispatcher, err := NewDispatcher(nil, nil, NewPaypalAdapter(testPaymentsConfig(), nil))
	require.NoError(t, err)
	assert.True(t, dispatcher.Supports(enums.PaymentMethodPaypal))
	assert.False(t, dispatcher.Supports(enums.PaymentMethodCard))

	req := sampleRequest(enums.PaymentMethodPaypal, "0")
	_, err = dispatcher.Dispatch(context.Background(), req)
	require.Error(t, err)

	req = sampleRequest(enums.PaymentMethodPaypal, "10")
	req.Currency = ""
	result, err := dispatcher.Dispatch(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentMethodPaypal, result.Method)
}
