package utils

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"livedom/dom/common"
)

func TestStatusCode(t *testing.T) {
	tests := []struct {
		err  error
		code int
	}{
		{common.ErrViewNotFound{ID: "x"}, http.StatusNotFound},
		{common.ErrUnknownView{Name: "x"}, http.StatusNotFound},
		{common.ErrNodeNotFound{ID: "n"}, http.StatusNotFound},
		{common.ErrInputQueueFull{View: "x"}, http.StatusServiceUnavailable},
		{errors.Wrap(common.ErrUnknownZone{Zone: "x"}, "schedule"), http.StatusBadRequest},
		{common.ErrInvalidEncoding{Format: "xml"}, http.StatusBadRequest},
		{errors.Wrap(common.ErrSchedulerStopped{}, "start"), http.StatusServiceUnavailable},
		{common.ErrStopped{}, http.StatusGone},
		{errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.code, StatusCode(tt.err))
		})
	}
}

func TestSetError_WithoutSlot(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	assert.False(t, SetError(req, errors.New("boom")))
	assert.Nil(t, GetErrorContext(req.Context()))
}

func TestErrorHandlerMiddleware_WritesRecordedError(t *testing.T) {
	handler := RequestIDMiddleware(ErrorHandlerMiddleware(zaptest.NewLogger(t),
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// a derived request shares the slot of the middleware
			r = r.WithContext(r.Context())
			require.True(t, SetError(r, common.ErrViewNotFound{ID: "v1"}))
		})))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/api/views/v1", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "view not found: v1", body["error"])
	assert.Equal(t, "/api/views/v1", body["path"])
	assert.Equal(t, "GET", body["method"])
	assert.Equal(t, rec.Header().Get("X-Request-ID"), body["request_id"])
}

func TestErrorHandlerMiddleware_RecoversPanic(t *testing.T) {
	handler := ErrorHandlerMiddleware(zaptest.NewLogger(t),
		http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
			panic("broken handler")
		}))

	rec := httptest.NewRecorder()
	assert.NotPanics(t, func() {
		handler.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))
	})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestRequestIDMiddleware(t *testing.T) {
	var seen string
	handler := RequestIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = r.Header.Get("X-Request-ID")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))
	assert.NotEmpty(t, seen)
	assert.Equal(t, seen, rec.Header().Get("X-Request-ID"))

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("X-Request-ID", "given")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, "given", rec.Header().Get("X-Request-ID"))

	assert.NotEqual(t, GenerateRequestID(), GenerateRequestID())
}
