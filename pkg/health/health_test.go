package health

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func passing() CheckFunc {
	return func(context.Context) error { return nil }
}

func failing(msg string) CheckFunc {
	return func(context.Context) error { return errors.New(msg) }
}

func serve(t *testing.T, handler http.HandlerFunc) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	handler(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	return w
}

func TestLiveEndpoint(t *testing.T) {
	t.Run("checks start healthy", func(t *testing.T) {
		h := New()
		h.Add(Liveness, "goroutines", time.Second, failing("too many"))

		w := serve(t, h.LiveEndpoint)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
	})

	t.Run("failure threshold", func(t *testing.T) {
		h := New()
		h.Add(Liveness, "goroutines", time.Second, failing("too many"))
		ctx := context.Background()

		h.probes[0].run(ctx)
		h.probes[0].run(ctx)
		assert.Equal(t, http.StatusOK, serve(t, h.LiveEndpoint).Code)

		h.probes[0].run(ctx)
		w := serve(t, h.LiveEndpoint)
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.JSONEq(t, `{"status":"unhealthy","checks":{"goroutines":"too many"}}`, w.Body.String())
	})

	t.Run("readiness checks are ignored", func(t *testing.T) {
		h := New()
		h.Add(Readiness, "storage", time.Second, failing("down"), WithFailureThreshold(1))
		h.probes[0].run(context.Background())

		assert.Equal(t, http.StatusOK, serve(t, h.LiveEndpoint).Code)
	})
}

func TestReadyEndpoint(t *testing.T) {
	t.Run("not marked ready", func(t *testing.T) {
		h := New()
		w := serve(t, h.ReadyEndpoint)
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.Contains(t, w.Body.String(), "service is not ready")
	})

	t.Run("ready and passing", func(t *testing.T) {
		h := New()
		h.Add(Readiness, "storage", time.Second, passing())
		h.SetReady(true)

		assert.Equal(t, http.StatusOK, serve(t, h.ReadyEndpoint).Code)
		assert.True(t, h.IsReady())
	})

	t.Run("failing readiness check", func(t *testing.T) {
		h := New()
		h.Add(Readiness, "storage", time.Second, failing("redis: connection refused"), WithFailureThreshold(1))
		h.SetReady(true)
		h.probes[0].run(context.Background())

		w := serve(t, h.ReadyEndpoint)
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.Contains(t, w.Body.String(), "redis: connection refused")
		assert.False(t, h.IsReady())
	})
}

func TestProbe_Recovery(t *testing.T) {
	var broken atomic.Bool
	broken.Store(true)
	check := func(context.Context) error {
		if broken.Load() {
			return errors.New("down")
		}
		return nil
	}

	h := New()
	h.Add(Readiness, "storage", time.Second, check, WithFailureThreshold(1), WithSuccessThreshold(2))
	h.SetReady(true)
	p := h.probes[0]
	ctx := context.Background()

	p.run(ctx)
	require.False(t, h.IsReady())

	broken.Store(false)
	p.run(ctx)
	assert.False(t, h.IsReady(), "one success is below the threshold")
	p.run(ctx)
	assert.True(t, h.IsReady())
}

func TestProbe_Timeout(t *testing.T) {
	h := New()
	h.Add(Readiness, "slow", 10*time.Millisecond, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}, WithFailureThreshold(1))

	h.probes[0].run(context.Background())
	msg, failed := h.probes[0].failure()
	assert.True(t, failed)
	assert.Contains(t, msg, "deadline exceeded")
}

type fakePinger struct{ err error }

func (f fakePinger) Ping(context.Context) error { return f.err }

func TestStartStop(t *testing.T) {
	h := New()
	h.Add(Readiness, "storage", time.Second, PingCheck(fakePinger{err: errors.New("nope")}), WithFailureThreshold(1))
	h.SetReady(true)

	h.Start(context.Background(), 5*time.Millisecond)
	defer h.Stop()

	require.Eventually(t, func() bool { return !h.IsReady() }, time.Second, 5*time.Millisecond)
	h.Stop()
	h.Stop()
}

func TestGoroutineCountCheck(t *testing.T) {
	require.NoError(t, GoroutineCountCheck(1_000_000)(context.Background()))
	require.Error(t, GoroutineCountCheck(0)(context.Background()))
}
