// internal/infrastructure/middleware/middleware_test.go
package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/damon-houk/rate-sync-client/internal/infrastructure/logger"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestIDMiddleware(t *testing.T) {
	handler := RequestIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(GetRequestID(r.Context())))
	}))

	t.Run("Generates an ID", func(t *testing.T) {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/rates", nil))

		requestID := w.Header().Get(RequestIDHeader)
		assert.Len(t, requestID, 36)
		assert.Equal(t, requestID, w.Body.String())
	})

	t.Run("Keeps the caller's ID", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/rates", nil)
		req.Header.Set(RequestIDHeader, "test-id-123")
		w := httptest.NewRecorder()

		handler.ServeHTTP(w, req)

		assert.Equal(t, "test-id-123", w.Header().Get(RequestIDHeader))
		assert.Equal(t, "test-id-123", w.Body.String())
	})
}

func TestGetRequestID(t *testing.T) {
	ctx := context.WithValue(context.Background(), requestIDKey, "test-id-123")
	assert.Equal(t, "test-id-123", GetRequestID(ctx))
	assert.Equal(t, "unknown", GetRequestID(context.Background()))
}

func TestLoggingMiddlewareLevels(t *testing.T) {
	tests := []struct {
		status  int
		level   string
		message string
	}{
		{http.StatusAccepted, "info", "Request served"},
		{http.StatusBadRequest, "warn", "Request rejected"},
		{http.StatusBadGateway, "error", "Request failed"},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			var buf bytes.Buffer
			log := logger.NewJSONLogger(&buf, logger.DebugLevel)

			chain := RequestIDMiddleware(LoggingMiddleware(log)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte("body"))
			})))

			req := httptest.NewRequest(http.MethodPost, "/rates/refresh", nil)
			req.Header.Set(RequestIDHeader, "test-id-123")
			chain.ServeHTTP(httptest.NewRecorder(), req)

			var entry map[string]interface{}
			require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
			assert.Equal(t, tt.level, entry["level"])
			assert.Equal(t, tt.message, entry["message"])
			assert.Equal(t, "test-id-123", entry["request_id"])
			assert.Equal(t, float64(tt.status), entry["status"])
			assert.Equal(t, float64(4), entry["content_length"])
		})
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	var buf bytes.Buffer
	log := logger.NewJSONLogger(&buf, logger.InfoLevel)

	handler := RecoveryMiddleware(log)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("nil snapshot")
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/rates", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.True(t, strings.Contains(buf.String(), "nil snapshot"))
}

func TestRouteName(t *testing.T) {
	router := mux.NewRouter()
	var got string
	router.HandleFunc("/assets/{path:.+}", func(w http.ResponseWriter, r *http.Request) {
		got = routeName(r)
	})

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/assets/flags/eu.svg", nil))
	assert.Equal(t, "/assets/{path:.+}", got)

	assert.Equal(t, "unmatched", routeName(httptest.NewRequest(http.MethodGet, "/nowhere", nil)))
}
