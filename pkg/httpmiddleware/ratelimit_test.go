package httpmiddleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func send(h http.Handler, method, remote string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, "/api/cart/items", nil)
	req.RemoteAddr = remote
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestRateLimit(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	h := RateLimit(ctx, RateLimitConfig{Max: 3, Window: time.Minute})(okHandler())

	for i := range 3 {
		w := send(h, http.MethodPost, "10.0.0.1:5000")
		require.Equal(t, http.StatusOK, w.Code, "request %d", i+1)
		assert.Equal(t, "3", w.Header().Get("X-RateLimit-Limit"))
	}

	w := send(h, http.MethodPost, "10.0.0.1:5001")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
	assert.JSONEq(t, `{"code":"rate_limited","message":"too many cart updates"}`, w.Body.String())

	t.Run("reads are not throttled", func(t *testing.T) {
		w := send(h, http.MethodGet, "10.0.0.1:5000")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, w.Header().Get("X-RateLimit-Limit"))
	})

	t.Run("other hosts have their own bucket", func(t *testing.T) {
		assert.Equal(t, http.StatusOK, send(h, http.MethodDelete, "10.0.0.2:5000").Code)
	})
}

func TestRateLimit_Disabled(t *testing.T) {
	h := RateLimit(context.Background(), RateLimitConfig{})(okHandler())
	for range 10 {
		assert.Equal(t, http.StatusOK, send(h, http.MethodPost, "10.0.0.1:1").Code)
	}
}

func TestLimiter_SlidingWindow(t *testing.T) {
	l := newLimiter(RateLimitConfig{Max: 2, Window: time.Minute})
	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	_, _, ok := l.allow("k", start)
	require.True(t, ok)
	_, _, ok = l.allow("k", start.Add(time.Second))
	require.True(t, ok)
	_, _, ok = l.allow("k", start.Add(2*time.Second))
	require.False(t, ok)

	// 25s into the next window the previous one still weighs over one request.
	_, _, ok = l.allow("k", start.Add(85*time.Second))
	require.True(t, ok)
	_, _, ok = l.allow("k", start.Add(86*time.Second))
	require.False(t, ok)

	// Two idle windows clear the history.
	_, _, ok = l.allow("k", start.Add(5*time.Minute))
	require.True(t, ok)

	l.evict(start.Add(10 * time.Minute))
	assert.Empty(t, l.windows)
}
