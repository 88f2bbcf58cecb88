package validators

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/angelmondragon/bintrack-backend/pkg/errors"
)

type weightBody struct {
	WeightKg float64 `json:"weightKg" validate:"gt=0"`
	Quantity int     `json:"quantity" validate:"gt=0"`
}

func TestDecodeJSONBodyReportsFieldsByJSONName(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"weightKg":0,"quantity":3}`))
	var body weightBody
	err := DecodeJSONBody(req, &body)
	require.Error(t, err)

	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
	assert.Equal(t, map[string]string{"weightKg": "must be greater than 0"}, typed.Details())
}

func TestDecodeJSONBodyRejectsUnknownFields(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"weightKg":1,"quantity":3,"extra":true}`))
	var body weightBody
	err := DecodeJSONBody(req, &body)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestParseQueryInt(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?quantity=12", nil)
	value, err := ParseQueryInt(req, "quantity", 1, 0, 100)
	require.NoError(t, err)
	assert.Equal(t, 12, value)

	value, err = ParseQueryInt(req, "limit", 25, 1, 100)
	require.NoError(t, err)
	assert.Equal(t, 25, value)

	req = httptest.NewRequest(http.MethodGet, "/?quantity=-1", nil)
	_, err = ParseQueryInt(req, "quantity", 1, 0, 100)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestParseQueryListMergesRepeatedAndCommaValues(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?bins=B1,%20B2&bins=B3&bins=", nil)
	values, err := ParseQueryList(req, "bins", 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"B1", "B2", "B3"}, values)

	_, err = ParseQueryList(req, "bins", 2)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestSanitizeString(t *testing.T) {
	assert.Equal(t, "abc", SanitizeString("  abcdef ", 3))
	assert.Equal(t, "abcdef", SanitizeString("abcdef", 0))
	assert.Equal(t, "B-0001", SanitizeString("B-00\x1d01\r\n", 0))
	assert.Equal(t, "ÄÖ", SanitizeString("ÄÖÜ", 2))
}

type scanBody struct {
	BinID      string          `json:"binId" validate:"required,max=64,scanid"`
	Components []scanComponent `json:"components" validate:"required,min=1,dive"`
}

type scanComponent struct {
	ComponentID string `json:"componentId" validate:"required,scanid"`
}

func TestDecodeJSONBodyNamesNestedFieldsByPath(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"binId":"B 1","components":[{"componentId":"C1"},{"componentId":""}]}`))
	var body scanBody
	err := DecodeJSONBody(req, &body)

	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, map[string]string{
		"binId":                     "must be a printable barcode value without spaces",
		"components[1].componentId": "is required",
	}, typed.Details())
}

func TestDecodeJSONBodyRejectsEmptyAndTrailingDocuments(t *testing.T) {
	var body weightBody

	err := DecodeJSONBody(httptest.NewRequest(http.MethodPost, "/", nil), &body)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	err = DecodeJSONBody(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"weightKg":1,"quantity":1}{}`)), &body)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "single JSON object")
}

func TestDecodeJSONBodyReportsTypeMismatch(t *testing.T) {
	var body weightBody
	err := DecodeJSONBody(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"weightKg":"heavy","quantity":1}`)), &body)

	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, map[string]string{"weightKg": "must be float64"}, typed.Details())
}

func TestIsScanID(t *testing.T) {
	assert.True(t, isScanID("B-0001"))
	assert.True(t, isScanID(" *J1234 "))
	assert.False(t, isScanID("B 0001"))
	assert.False(t, isScanID("B\x1d0001"))
	assert.False(t, isScanID("BÄ"))
}
