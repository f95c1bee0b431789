package fetcher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"autoria-harvester/internal/metrics"
)

func init() {
	metrics.Init()
}

func fastConfig() Config {
	return Config{
		Timeout:       2 * time.Second,
		MaxRetries:    3,
		JitterMin:     time.Millisecond,
		JitterMax:     2 * time.Millisecond,
		BaseBackoff:   time.Millisecond,
		MaxServerWait: 50 * time.Millisecond,
	}
}

func TestFetchReturnsBodyOn200(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>ok</html>"))
	}))
	defer srv.Close()

	c := New(fastConfig(), zap.NewNop())
	body, ok := c.Fetch(context.Background(), srv.URL)
	require.True(t, ok)
	require.Equal(t, "<html>ok</html>", string(body))
}

func TestFetchSendsBrowserProfileHeaders(t *testing.T) {
	t.Parallel()

	var gotUA, gotReferer string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotReferer = r.Header.Get("Referer")
	}))
	defer srv.Close()

	c := New(fastConfig(), zap.NewNop())
	_, ok := c.Fetch(context.Background(), srv.URL)
	require.True(t, ok)
	require.Equal(t, "https://auto.ria.com/", gotReferer)

	var known bool
	for _, p := range browserProfiles {
		if p["User-Agent"] == gotUA {
			known = true
		}
	}
	require.True(t, known, "user agent %q is not a known profile", gotUA)
}

func TestFetchRetriesOn503ThenSucceeds(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("recovered"))
	}))
	defer srv.Close()

	c := New(fastConfig(), zap.NewNop())
	body, ok := c.Fetch(context.Background(), srv.URL)
	require.True(t, ok)
	require.Equal(t, "recovered", string(body))
	require.Equal(t, int32(2), calls.Load())
}

func TestFetchGivesUpAfterMaxRetries(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := New(fastConfig(), zap.NewNop())
	body, ok := c.Fetch(context.Background(), srv.URL)
	require.False(t, ok)
	require.Nil(t, body)
	require.Equal(t, int32(3), calls.Load())
}

func TestFetchAbortsImmediatelyOnOtherStatus(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := New(fastConfig(), zap.NewNop())
	_, ok := c.Fetch(context.Background(), srv.URL)
	require.False(t, ok)
	require.Equal(t, int32(1), calls.Load(), "4xx other than 429 must not retry")
}

func TestFetchRetriesTransportErrors(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // every request now fails at the transport layer

	c := New(fastConfig(), zap.NewNop())
	_, ok := c.Fetch(context.Background(), srv.URL)
	require.False(t, ok)
}

func TestFetchStopsOnCanceledContext(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := New(fastConfig(), zap.NewNop())
	_, ok := c.Fetch(ctx, srv.URL)
	require.False(t, ok)
}

func TestServerWaitCapsRetryAfter(t *testing.T) {
	t.Parallel()

	c := New(fastConfig(), zap.NewNop())
	resp := &http.Response{Header: http.Header{"Retry-After": {"3600"}}}
	require.Equal(t, 50*time.Millisecond, c.serverWait(resp, time.Millisecond))

	resp = &http.Response{Header: http.Header{}}
	require.Equal(t, 7*time.Millisecond, c.serverWait(resp, 7*time.Millisecond))
}

func TestJitterWithLargeMinimum(t *testing.T) {
	t.Parallel()

	c := New(Config{JitterMin: 700 * time.Millisecond}, zap.NewNop())
	require.Equal(t, 1100*time.Millisecond, c.cfg.JitterMax)

	for i := 0; i < 100; i++ {
		d := c.jitter()
		require.GreaterOrEqual(t, d, 700*time.Millisecond)
		require.Less(t, d, 1100*time.Millisecond)
	}
}
