package httpapi

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	up := false
	s := New(":0", func() bool { return up }, nil)

	rec := get(t, s.Handler(), "/healthz")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	up = true
	rec = get(t, s.Handler(), "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"online"}`, rec.Body.String())
}

func TestStatsAndMetrics(t *testing.T) {
	s := New(":0", nil, func() any { return map[string]int{"users": 3} })

	rec := get(t, s.Handler(), "/stats")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"users":3}`, rec.Body.String())

	rec = get(t, s.Handler(), "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}
