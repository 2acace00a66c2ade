package validators

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/stockroomhq/stockroom-backend/pkg/errors"
)

type reservePayload struct {
	ItemID   string `json:"item_id" validate:"required"`
	OrderID  string `json:"order_id" validate:"required,uuid"`
	Quantity int64  `json:"quantity" validate:"required,gt=0"`
}

func TestDecodeJSONBodyValid(t *testing.T) {
	t.Parallel()

	body := `{"item_id":"sku-1","order_id":"b7a9c1ce-9f1f-4dd5-9f3b-1c7f6f8f2a10","quantity":3}`
	req := httptest.NewRequest("POST", "/", strings.NewReader(body))

	var payload reservePayload
	require.NoError(t, DecodeJSONBody(req, &payload))
	assert.Equal(t, "sku-1", payload.ItemID)
	assert.Equal(t, int64(3), payload.Quantity)
}

func TestDecodeJSONBodyEmpty(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest("POST", "/", strings.NewReader(""))

	var payload reservePayload
	err := DecodeJSONBody(req, &payload)
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())
}

func TestDecodeJSONBodyUnknownField(t *testing.T) {
	t.Parallel()

	body := `{"item_id":"sku-1","order_id":"b7a9c1ce-9f1f-4dd5-9f3b-1c7f6f8f2a10","quantity":3,"qty":4}`
	req := httptest.NewRequest("POST", "/", strings.NewReader(body))

	var payload reservePayload
	err := DecodeJSONBody(req, &payload)
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())
}

func TestDecodeJSONBodyValidationMessages(t *testing.T) {
	t.Parallel()

	body := `{"item_id":"sku-1","order_id":"not-a-uuid","quantity":0}`
	req := httptest.NewRequest("POST", "/", strings.NewReader(body))

	var payload reservePayload
	err := DecodeJSONBody(req, &payload)
	require.Error(t, err)

	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
	assert.Contains(t, typed.Message(), "order_id must be a valid UUID")
}

func TestDecodeJSONBodyTrailingData(t *testing.T) {
	t.Parallel()

	body := `{"item_id":"sku-1","order_id":"b7a9c1ce-9f1f-4dd5-9f3b-1c7f6f8f2a10","quantity":3}{"extra":true}`
	req := httptest.NewRequest("POST", "/", strings.NewReader(body))

	var payload reservePayload
	err := DecodeJSONBody(req, &payload)
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())
}
