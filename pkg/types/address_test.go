package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddressNormalizeDefaultsCountry(t *testing.T) {
	addr := Address{Name: " Ana ", Street: "Rua A", City: " Sao Paulo ", State: "SP", PostalCode: "01000-000"}.Normalize()
	assert.Equal(t, "Ana", addr.Name)
	assert.Equal(t, "Sao Paulo", addr.City)
	assert.Equal(t, "BR", addr.Country)
}

func TestAddressValueScan(t *testing.T) {
	complement := "apto 12"
	in := Address{Name: "Ana", Street: "Rua A", Number: "10", Complement: &complement, City: "Sao Paulo", State: "SP", PostalCode: "01000-000", Country: "BR"}

	raw, err := in.Value()
	require.NoError(t, err)

	var out Address
	require.NoError(t, out.Scan(raw))
	assert.Equal(t, in, out)

	require.NoError(t, out.Scan([]byte(raw.(string))))
	assert.Equal(t, in, out)

	require.Error(t, out.Scan(42))
}

func TestPaymentDataOmitsOtherMethods(t *testing.T) {
	expires := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	data := PaymentData{PixCode: "000201", QRCode: "data:image/png;base64,AA==", ExpiresAt: &expires}

	raw, err := data.Value()
	require.NoError(t, err)
	assert.NotContains(t, raw.(string), "boleto_number")
	assert.NotContains(t, raw.(string), "client_secret")

	var decoded PaymentData
	require.NoError(t, decoded.Scan(raw))
	require.NotNil(t, decoded.ExpiresAt)
	assert.True(t, expires.Equal(*decoded.ExpiresAt))
	assert.Equal(t, "000201", decoded.PixCode)
}
