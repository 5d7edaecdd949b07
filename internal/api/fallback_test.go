package api

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/Sternrassler/rank-lookup/pkg/metrics"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestFallbackResponsesCarryMiddleware(t *testing.T) {
	tests := []struct {
		name   string
		method string
		path   string
		status int
		code   string
	}{
		{"unknown path", http.MethodGet, "/api/unknown", http.StatusNotFound, CodeNotFound},
		{"wrong method on health", http.MethodPost, HealthPath, http.StatusMethodNotAllowed, CodeMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := newStubHandler(stubService{})
			counter := metrics.HTTPRequests.WithLabelValues(unmatchedRoute, tt.method, strconv.Itoa(tt.status))
			before := promtest.ToFloat64(counter)

			req := httptest.NewRequest(tt.method, tt.path, nil)
			req.Header.Set(RequestIDHeader, "fallback-1")
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.code, decodeError(t, rec).Code)
			assert.Equal(t, "fallback-1", rec.Header().Get(RequestIDHeader))
			assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
			assert.Equal(t, before+1, promtest.ToFloat64(counter))
		})
	}
}
