package validators

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/ecomstore/storefront-backend/pkg/errors"
)

func TestSanitizeString(t *testing.T) {
	assert.Equal(t, "tenis", SanitizeString("  tenis\n", 0))
	assert.Equal(t, "ab", SanitizeString("a\x00b", 10))
	assert.Equal(t, "caf", SanitizeString("café", 4))
	assert.Equal(t, "café", SanitizeString("café", 5))
}

type sampleRequest struct {
	Name   string          `json:"name" validate:"required,max=5"`
	Amount decimal.Decimal `json:"amount" validate:"dgte0"`
	Items  []sampleItem    `json:"items" validate:"required,min=1,dive"`
}

type sampleItem struct {
	Quantity int `json:"quantity" validate:"gt=0"`
}

func decode(body string) error {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	var dest sampleRequest
	return DecodeJSONBody(httptest.NewRecorder(), req, &dest)
}

func TestDecodeJSONBodyReportsFieldPaths(t *testing.T) {
	err := decode(`{"name":"toolong","amount":"-1","items":[{"quantity":0}]}`)

	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
	details, ok := typed.Details().(map[string]string)
	require.True(t, ok)
	assert.Equal(t, "must be at most 5", details["name"])
	assert.Equal(t, "must not be negative", details["amount"])
	assert.Equal(t, "must be greater than 0", details["items[0].quantity"])
}

func TestDecodeJSONBodyRejectsMalformedInput(t *testing.T) {
	for _, body := range []string{`{`, `{"name":"ok","items":[{"quantity":1}],"extra":1}`, `{"name":"ok","items":[{"quantity":1}]} {}`} {
		assert.True(t, pkgerrors.IsCode(decode(body), pkgerrors.CodeValidation), body)
	}
	assert.NoError(t, decode(`{"name":"ok","amount":"1.50","items":[{"quantity":1}]}`))
}

func TestParseQueryInt(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?limit=7&bad=x&big=500", nil)

	v, err := ParseQueryInt(req, "limit", 20, 1, 100)
	require.NoError(t, err)
	assert.Equal(t, 7, v)

	v, err = ParseQueryInt(req, "missing", 20, 1, 100)
	require.NoError(t, err)
	assert.Equal(t, 20, v)

	_, err = ParseQueryInt(req, "bad", 20, 1, 100)
	assert.Error(t, err)
	_, err = ParseQueryInt(req, "big", 20, 1, 100)
	assert.Error(t, err)
}

func TestParseQueryDecimal(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?min=10.5&neg=-1", nil)

	v, err := ParseQueryDecimal(req, "min")
	require.NoError(t, err)
	assert.True(t, v.Equal(decimal.RequireFromString("10.5")))

	v, err = ParseQueryDecimal(req, "max")
	require.NoError(t, err)
	assert.Nil(t, v)

	_, err = ParseQueryDecimal(req, "neg")
	assert.Error(t, err)
}
