package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"trafficslice/config"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestGetRequestID(t *testing.T) {
	_, ok := GetRequestID(context.Background())
	assert.False(t, ok)

	ctx := WithRequestID(context.Background(), "req-1")
	id, ok := GetRequestID(ctx)
	require.True(t, ok)
	assert.Equal(t, "req-1", id)
}

func TestGetRequestIDOrDefault(t *testing.T) {
	assert.Equal(t, "unknown", GetRequestIDOrDefault(context.Background()))
	assert.Equal(t, "unknown", GetRequestIDOrDefault(WithRequestID(context.Background(), "")))
	assert.Equal(t, "abc", GetRequestIDOrDefault(WithRequestID(context.Background(), "abc")))
}

// A plain string key must not collide with the typed key
func TestContextKeyStringKeyIsolation(t *testing.T) {
	//nolint:staticcheck // deliberately uses a raw string key
	ctx := context.WithValue(context.Background(), "request_id", "raw")
	_, ok := GetRequestID(ctx)
	assert.False(t, ok)
}

func TestWithTraceStart(t *testing.T) {
	start := time.Now()
	got, ok := GetTraceStart(WithTraceStart(context.Background(), start))
	require.True(t, ok)
	assert.True(t, got.Equal(start))

	got, ok = GetTraceStart(context.Background())
	assert.False(t, ok)
	assert.True(t, got.IsZero())
}

func TestResponseWriterWrapper(t *testing.T) {
	recorder := httptest.NewRecorder()
	wrapper := &responseWriterWrapper{ResponseWriter: recorder, statusCode: http.StatusOK}

	wrapper.WriteHeader(http.StatusCreated)
	assert.Equal(t, http.StatusCreated, wrapper.statusCode)

	wrapper.WriteHeader(http.StatusBadRequest)
	assert.Equal(t, http.StatusCreated, wrapper.statusCode, "only the first status is captured")
}

func TestResponseWriterWrapper_Write(t *testing.T) {
	recorder := httptest.NewRecorder()
	wrapper := &responseWriterWrapper{ResponseWriter: recorder, statusCode: http.StatusTeapot}

	_, err := wrapper.Write([]byte("test"))
	require.NoError(t, err)
	assert.True(t, wrapper.written)
	assert.Equal(t, http.StatusOK, wrapper.statusCode)
	assert.Equal(t, "test", recorder.Body.String())
}

func TestRequestIDMiddleware(t *testing.T) {
	tests := []struct {
		name      string
		header    string
		wantID    string
		generated bool
	}{
		{name: "provided request ID is used", header: "provided-id-123", wantID: "provided-id-123"},
		{name: "request ID generated when missing", header: "", generated: true},
		{name: "unsafe characters are stripped", header: "id\nwith spaces", wantID: "idwithspaces"},
		{name: "ID made only of unsafe characters is replaced", header: "\r\n<>", generated: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var captured string
			handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				captured, _ = GetRequestID(r.Context())
				_, hasStart := GetTraceStart(r.Context())
				assert.True(t, hasStart)
				w.WriteHeader(http.StatusNoContent)
			})

			api := &API{logger: zaptest.NewLogger(t).Sugar(), config: &config.Config{}}
			req := httptest.NewRequest(http.MethodGet, "/api/alerts", nil)
			if tt.header != "" {
				req.Header.Set(RequestIDHeader, tt.header)
			}
			rec := httptest.NewRecorder()
			api.requestIDMiddleware(handler).ServeHTTP(rec, req)

			assert.Equal(t, http.StatusNoContent, rec.Code)
			assert.Equal(t, captured, rec.Header().Get(RequestIDHeader))
			if tt.generated {
				_, err := uuid.Parse(captured)
				assert.NoError(t, err)
			} else {
				assert.Equal(t, tt.wantID, captured)
			}
		})
	}
}
