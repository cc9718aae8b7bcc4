package payments

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ecomstore/storefront-backend/pkg/config"
	"github.com/ecomstore/storefront-backend/pkg/enums"
	"github.com/ecomstore/storefront-backend/pkg/types"
)

const (
	BoletoBarcodeLength = 44
	boletoCurrencyCode  = "9"
	boletoFreeFieldLen  = 25
	boletoAmountLen     = 10
	boletoDefaultDays   = 3
)

var boletoFactorBase = time.Date(1997, time.October, 7, 0, 0, 0, 0, time.UTC)

// BoletoAdapter generates a boleto number and barcode locally.
type BoletoAdapter struct {
	bankCode string
	dueDays  int
	now      func() time.Time
	rand     io.Reader
}

// NewBoletoAdapter builds the adapter from payment settings.
func NewBoletoAdapter(cfg config.PaymentsConfig, now func() time.Time, src io.Reader) *BoletoAdapter {
	bank := strings.TrimSpace(cfg.BoletoBankCode)
	if len(bank) != 3 {
		bank = "001"
	}
	days := cfg.BoletoDueDays
	if days <= 0 {
		days = boletoDefaultDays
	}
	if now == nil {
		now = time.Now
	}
	return &BoletoAdapter{bankCode: bank, dueDays: days, now: now, rand: defaultRandom(src)}
}

func (a *BoletoAdapter) Method() enums.PaymentMethod { return enums.PaymentMethodBoleto }

func (a *BoletoAdapter) Dispatch(_ context.Context, req DispatchRequest) (*DispatchResult, error) {
	if req.Currency != enums.CurrencyBRL {
		return nil, fmt.Errorf("currency %s not supported for boleto", req.Currency)
	}
	issued := req.OrderCreatedAt
	if issued.IsZero() {
		issued = a.now()
	}
	dueDate := issued.UTC().AddDate(0, 0, a.dueDays)

	now := a.now()
	millis := strconv.FormatInt(now.UnixMilli(), 10)
	if len(millis) > 10 {
		millis = millis[len(millis)-10:]
	}
	numberDigits, err := randomDigits(a.rand, 10)
	if err != nil {
		return nil, fmt.Errorf("generate boleto number: %w", err)
	}
	number := a.bankCode + boletoCurrencyCode + millis + numberDigits

	free, err := randomDigits(a.rand, boletoFreeFieldLen)
	if err != nil {
		return nil, fmt.Errorf("generate boleto free field: %w", err)
	}
	barcode, err := BuildBoletoBarcode(a.bankCode, dueDate, req.Amount, free)
	if err != nil {
		return nil, err
	}

	return &DispatchResult{
		Status: enums.PaymentStatusPending,
		Data: types.PaymentData{
			BoletoNumber: number,
			Barcode:      barcode,
			DueDate:      &dueDate,
		},
		Reference: number,
		ExpiresAt: &dueDate,
	}, nil
}

// BuildBoletoBarcode lays out the 44-digit barcode: bank(3) currency(1) check digit(1)
// due factor(4) amount in cents(10) free field(25).
func BuildBoletoBarcode(bankCode string, dueDate time.Time, amount decimal.Decimal, freeField string) (string, error) {
	segment, err := BoletoAmountSegment(amount)
	if err != nil {
		return "", err
	}
	if len(freeField) != boletoFreeFieldLen {
		return "", fmt.Errorf("boleto free field must have %d digits", boletoFreeFieldLen)
	}
	factor := fmt.Sprintf("%04d", BoletoDueFactor(dueDate))
	body := bankCode + boletoCurrencyCode + factor + segment + freeField
	dv := boletoCheckDigit(body)
	return bankCode + boletoCurrencyCode + strconv.Itoa(dv) + factor + segment + freeField, nil
}

// BoletoAmountSegment zero-pads the amount in cents to ten digits.
func BoletoAmountSegment(amount decimal.Decimal) (string, error) {
	if amount.IsNegative() {
		return "", fmt.Errorf("boleto amount must not be negative")
	}
	cents := amount.Round(2).Shift(2).IntPart()
	segment := fmt.Sprintf("%0*d", boletoAmountLen, cents)
	if len(segment) > boletoAmountLen {
		return "", fmt.Errorf("boleto amount %s exceeds %d digits", amount.StringFixed(2), boletoAmountLen)
	}
	return segment, nil
}

// BoletoDueFactor counts days since 1997-10-07, wrapping back to 1000 after 9999.
func BoletoDueFactor(due time.Time) int {
	d := time.Date(due.Year(), due.Month(), due.Day(), 0, 0, 0, 0, time.UTC)
	days := int(d.Sub(boletoFactorBase).Hours() / 24)
	if days < 10000 {
		return days
	}
	return (days-10000)%9000 + 1000
}

// boletoCheckDigit is the barcode mod-11 digit: weights 2..9 from the right,
// results of 0, 10 or 11 become 1.
func boletoCheckDigit(digits string) int {
	sum := 0
	weight := 2
	for i := len(digits) - 1; i >= 0; i-- {
		sum += int(digits[i]-'0') * weight
		weight++
		if weight > 9 {
			weight = 2
		}
	}
	dv := 11 - sum%11
	if dv == 0 || dv == 10 || dv == 11 {
		return 1
	}
	return dv
}
