package types

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// PaymentData is the method-specific artifact attached to an order after dispatch.
// Only the fields of the dispatched method are populated.
type PaymentData struct {
	// card
	PaymentIntentID string `json:"payment_intent_id,omitempty"`
	ClientSecret    string `json:"client_secret,omitempty"`

	// pix
	PixCode   string     `json:"pix_code,omitempty"`
	QRCode    string     `json:"qr_code,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`

	// boleto
	BoletoNumber string     `json:"boleto_number,omitempty"`
	Barcode      string     `json:"barcode,omitempty"`
	DueDate      *time.Time `json:"due_date,omitempty"`

	// paypal
	PaypalOrderID string `json:"paypal_order_id,omitempty"`
	ApprovalURL   string `json:"approval_url,omitempty"`
}

// Value marshals PaymentData into JSON.
func (p PaymentData) Value() (driver.Value, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("payment data: %w", err)
	}
	return string(raw), nil
}

// Scan decodes a JSON payment artifact.
func (p *PaymentData) Scan(value interface{}) error {
	raw, ok := toBytes(value)
	if !ok {
		return fmt.Errorf("payment data: unsupported scan type %T", value)
	}
	if len(raw) == 0 {
		*p = PaymentData{}
		return nil
	}
	return json.Unmarshal(raw, p)
}
