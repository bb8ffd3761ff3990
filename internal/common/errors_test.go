package common

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAsAppErrorWrapsUnknownAsInternal(t *testing.T) {
	cause := errors.New("connection refused")
	appErr := AsAppError(cause)
	require.Equal(t, KindInternal, appErr.Kind)
	require.Equal(t, http.StatusInternalServerError, appErr.HTTPStatus)
	require.ErrorIs(t, appErr, cause)
	require.NotContains(t, appErr.Message, "refused")
}

func TestAsAppErrorKeepsWrappedAppError(t *testing.T) {
	inner := Validation("Name required")
	wrapped := errors.Join(errors.New("context"), inner)
	require.Same(t, inner, AsAppError(wrapped))
}

func TestNewAppErrorDerivesKind(t *testing.T) {
	require.Equal(t, KindNotFound, NewAppError("NOT_FOUND", "Not found", http.StatusNotFound, nil).Kind)
	require.Equal(t, KindValidation, NewAppError("BAD", "bad", http.StatusBadRequest, nil).Kind)
	require.Equal(t, KindInternal, NewAppError("X", "x", http.StatusBadGateway, nil).Kind)
}

func TestWriteAppError(t *testing.T) {
	rr := httptest.NewRecorder()
	WriteAppError(rr, Validation("customer_id required"))
	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Equal(t, "application/json", rr.Header().Get("Content-Type"))

	var body map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Equal(t, "customer_id required", body["error"])
	require.Equal(t, "VALIDATION_ERROR", body["code"])
	_, hasDetails := body["details"]
	require.False(t, hasDetails)
}
