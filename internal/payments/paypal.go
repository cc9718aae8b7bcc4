package payments

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/ecomstore/storefront-backend/pkg/config"
	"github.com/ecomstore/storefront-backend/pkg/enums"
	"github.com/ecomstore/storefront-backend/pkg/types"
)

const defaultPaypalSandbox = "https://www.sandbox.paypal.com/checkoutnow"

// PaypalAdapter synthesizes a sandbox order id and approval URL without calling PayPal.
type PaypalAdapter struct {
	approvalBase string
	rand         io.Reader
}

func NewPaypalAdapter(cfg config.PaymentsConfig, src io.Reader) *PaypalAdapter {
	base := strings.TrimSpace(cfg.PaypalSandbox)
	if base == "" {
		base = defaultPaypalSandbox
	}
	return &PaypalAdapter{approvalBase: base, rand: defaultRandom(src)}
}

func (a *PaypalAdapter) Method() enums.PaymentMethod { return enums.PaymentMethodPaypal }

func (a *PaypalAdapter) Dispatch(_ context.Context, _ DispatchRequest) (*DispatchResult, error) {
	suffix, err := randomHex(a.rand, 6)
	if err != nil {
		return nil, fmt.Errorf("generate paypal order id: %w", err)
	}
	orderID := "PAYPAL-" + suffix
	approval := a.approvalBase + "?token=" + url.QueryEscape(orderID)

	return &DispatchResult{
		Status: enums.PaymentStatusPending,
		Data: types.PaymentData{
			PaypalOrderID: orderID,
			ApprovalURL:   approval,
		},
		Reference: orderID,
	}, nil
}
