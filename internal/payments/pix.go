package payments

import (
	"context"
	"encoding/base64"
	"fmt"
	"html"
	"io"
	"strings"
	"time"
	"unicode"

	"github.com/ecomstore/storefront-backend/pkg/config"
	"github.com/ecomstore/storefront-backend/pkg/enums"
	"github.com/ecomstore/storefront-backend/pkg/types"
)

const (
	// PixPayloadPrefix opens every generated BR Code (payload format indicator 01).
	PixPayloadPrefix = "000201"
	pixGUI           = "BR.GOV.BCB.PIX"
	pixDefaultTTL    = 30 * time.Minute
	pixTxIDSuffixLen = 10
)

var pixCurrencyCodes = map[enums.Currency]string{
	enums.CurrencyBRL: "986",
	enums.CurrencyUSD: "840",
}

// PixAdapter builds a static EMV BR Code locally; no provider is called.
type PixAdapter struct {
	key  string
	name string
	city string
	ttl  time.Duration
	now  func() time.Time
	rand io.Reader
}

// NewPixAdapter builds the adapter from payment settings.
func NewPixAdapter(cfg config.PaymentsConfig, now func() time.Time, src io.Reader) *PixAdapter {
	ttl := cfg.PixTTL
	if ttl <= 0 {
		ttl = pixDefaultTTL
	}
	if now == nil {
		now = time.Now
	}
	return &PixAdapter{
		key:  strings.TrimSpace(cfg.PixKey),
		name: emvText(cfg.PixMerchantName, 25),
		city: emvText(cfg.PixMerchantCity, 15),
		ttl:  ttl,
		now:  now,
		rand: defaultRandom(src),
	}
}

func (a *PixAdapter) Method() enums.PaymentMethod { return enums.PaymentMethodPix }

func (a *PixAdapter) Dispatch(_ context.Context, req DispatchRequest) (*DispatchResult, error) {
	if a.key == "" {
		return nil, fmt.Errorf("pix key not configured")
	}
	currency, ok := pixCurrencyCodes[req.Currency]
	if !ok {
		return nil, fmt.Errorf("currency %s not supported for pix", req.Currency)
	}
	suffix, err := randomDigits(a.rand, pixTxIDSuffixLen)
	if err != nil {
		return nil, fmt.Errorf("generate pix txid: %w", err)
	}
	txid := pixTxID(req, suffix)

	code := BuildPixPayload(PixPayload{
		Key:          a.key,
		MerchantName: a.name,
		MerchantCity: a.city,
		Currency:     currency,
		Amount:       req.Amount.StringFixed(2),
		TxID:         txid,
	})
	expiresAt := a.now().UTC().Add(a.ttl)

	return &DispatchResult{
		Status: enums.PaymentStatusPending,
		Data: types.PaymentData{
			PixCode:   code,
			QRCode:    pixQRPlaceholder(code),
			ExpiresAt: &expiresAt,
		},
		Reference: txid,
		ExpiresAt: &expiresAt,
	}, nil
}

// PixPayload holds the fields encoded into a BR Code.
type PixPayload struct {
	Key          string
	MerchantName string
	MerchantCity string
	Currency     string
	Amount       string
	TxID         string
}

// BuildPixPayload encodes the EMV TLV fields and appends the CRC16 checksum field.
func BuildPixPayload(p PixPayload) string {
	account := emvField("00", pixGUI) + emvField("01", p.Key)

	var b strings.Builder
	b.WriteString(PixPayloadPrefix)
	b.WriteString(emvField("26", account))
	b.WriteString(emvField("52", "0000"))
	b.WriteString(emvField("53", p.Currency))
	b.WriteString(emvField("54", p.Amount))
	b.WriteString(emvField("58", "BR"))
	b.WriteString(emvField("59", p.MerchantName))
	b.WriteString(emvField("60", p.MerchantCity))
	b.WriteString(emvField("62", emvField("05", p.TxID)))
	b.WriteString("6304")
	payload := b.String()
	return payload + fmt.Sprintf("%04X", CRC16CCITT([]byte(payload)))
}

func emvField(id, value string) string {
	return fmt.Sprintf("%s%02d%s", id, len(value), value)
}

// emvText keeps uppercase ASCII letters, digits and spaces, capped at max characters.
func emvText(value string, max int) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(strings.TrimSpace(value)) {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r) || r == ' ') {
			b.WriteRune(r)
		}
	}
	out := b.String()
	if len(out) > max {
		out = out[:max]
	}
	return out
}

// pixTxID is ECM plus the compact order id prefix plus a random suffix, at most 25 alphanumerics.
func pixTxID(req DispatchRequest, suffix string) string {
	compact := strings.ToUpper(strings.ReplaceAll(req.OrderID.String(), "-", ""))
	return "ECM" + compact[:12] + suffix
}

func pixQRPlaceholder(code string) string {
	svg := fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" width="256" height="256"><title>%s</title><rect width="256" height="256" fill="#ffffff"/></svg>`, html.EscapeString(code))
	return "data:image/svg+xml;base64," + base64.StdEncoding.EncodeToString([]byte(svg))
}

// CRC16CCITT computes CRC-16/CCITT-FALSE (poly 0x1021, init 0xFFFF).
func CRC16CCITT(data []byte) uint16 {
	crc := uint16(0xFFFF)
	for _, b := range data {
		crc ^= uint16(b) << 8
		for i := 0; i < 8; i++ {
			if crc&0x8000 != 0 {
				crc = crc<<1 ^ 0x1021
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}
