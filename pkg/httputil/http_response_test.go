package httputil_test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/limbo/stakesave/pkg/httputil"
)

func TestWriteErrorResponse(t *testing.T) {
	rr := httptest.NewRecorder()
	httputil.WriteErrorResponse(rr, http.StatusBadRequest, "invalid parameter", errors.New("dailyAmount>0"))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))

	var resp httputil.ErrorResponse
	require.NoError(t, sonic.ConfigDefault.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, httputil.ErrorResponse{Code: 400, Message: "invalid parameter", Details: "dailyAmount>0"}, resp)
}

func TestWriteJSONResponse(t *testing.T) {
	t.Run("with body", func(t *testing.T) {
		rr := httptest.NewRecorder()
		httputil.WriteJSONResponse(rr, http.StatusOK, map[string]any{"count": 3})
		assert.JSONEq(t, `{"count":3}`, rr.Body.String())
	})
	t.Run("nil body", func(t *testing.T) {
		rr := httptest.NewRecorder()
		httputil.WriteJSONResponse(rr, http.StatusAccepted, nil)
		assert.Equal(t, http.StatusAccepted, rr.Code)
		assert.Empty(t, rr.Body.String())
	})
	t.Run("no content", func(t *testing.T) {
		rr := httptest.NewRecorder()
		httputil.WriteNoContent(rr)
		assert.Equal(t, http.StatusNoContent, rr.Code)
	})
}
