package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestID_GeneratesWhenMissing(t *testing.T) {
	var seen string
	handler := RequestID(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))

	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.NotEmpty(t, seen)
	assert.NotEqual(t, "unknown", seen)
	assert.Equal(t, seen, recorder.Header().Get("X-Request-Id"))
}

func TestRequestID_PropagatesIncomingHeader(t *testing.T) {
	var seen string
	handler := RequestID(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))

	request := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	request.Header.Set("X-Request-Id", "client-supplied-id")
	handler.ServeHTTP(httptest.NewRecorder(), request)

	assert.Equal(t, "client-supplied-id", seen)
}

func TestGetRequestID_DefaultsToUnknown(t *testing.T) {
	assert.Equal(t, "unknown", GetRequestID(context.Background()))
}

func TestRateLimit_RejectsAfterBurst(t *testing.T) {
	handler := RateLimit(1, 2)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		recorder := httptest.NewRecorder()
		request := httptest.NewRequest(http.MethodGet, "/v1/tenders", nil)
		request.RemoteAddr = "10.0.0.1:52000"
		handler.ServeHTTP(recorder, request)
		codes = append(codes, recorder.Code)
	}

	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestRateLimit_TracksClientsSeparately(t *testing.T) {
	handler := RateLimit(1, 1)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	first := httptest.NewRequest(http.MethodGet, "/v1/tenders", nil)
	first.RemoteAddr = "10.0.0.1:52000"
	second := httptest.NewRequest(http.MethodGet, "/v1/tenders", nil)
	second.RemoteAddr = "10.0.0.2:52000"

	firstRecorder := httptest.NewRecorder()
	handler.ServeHTTP(firstRecorder, first)
	secondRecorder := httptest.NewRecorder()
	handler.ServeHTTP(secondRecorder, second)

	assert.Equal(t, http.StatusOK, firstRecorder.Code)
	assert.Equal(t, http.StatusOK, secondRecorder.Code)
}
