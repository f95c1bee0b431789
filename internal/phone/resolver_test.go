package phone

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"autoria-harvester/internal/harvest"
	"autoria-harvester/internal/metrics"
)

func init() {
	metrics.Init()
}

func TestResolveReturnsDigitsOnly(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/users/phones/777", r.URL.Path)
		require.Equal(t, "abc", r.URL.Query().Get("hash"))
		require.Equal(t, "3600", r.URL.Query().Get("expires"))
		require.Equal(t, "XMLHttpRequest", r.Header.Get("X-Requested-With"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"phones":[{"phoneFormatted":"(067) 123-45-67"}]}`))
	}))
	defer srv.Close()

	r := New(Config{BaseURL: srv.URL}, zap.NewNop())
	got, ok := r.Resolve(context.Background(), harvest.PhoneLookup{
		ListingID: "777",
		Hash:      "abc",
		Expires:   "3600",
	})
	require.True(t, ok)
	require.Equal(t, "0671234567", got)
}

func TestResolveSkipsCallWithoutKeys(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer srv.Close()

	r := New(Config{BaseURL: srv.URL}, zap.NewNop())

	_, ok := r.Resolve(context.Background(), harvest.PhoneLookup{Hash: "abc"})
	require.False(t, ok)
	_, ok = r.Resolve(context.Background(), harvest.PhoneLookup{ListingID: "777"})
	require.False(t, ok)
	require.Equal(t, int32(0), calls.Load(), "missing keys must not trigger a network call")
}

func TestResolveFailureModesYieldAbsent(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "non-200 status",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusForbidden)
			},
		},
		{
			name: "malformed json",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte("not json"))
			},
		},
		{
			name: "empty phones list",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"phones":[]}`))
			},
		},
		{
			name: "phone with no digits",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"phones":[{"phoneFormatted":"—"}]}`))
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			srv := httptest.NewServer(tc.handler)
			defer srv.Close()

			r := New(Config{BaseURL: srv.URL}, zap.NewNop())
			got, ok := r.Resolve(context.Background(), harvest.PhoneLookup{ListingID: "1", Hash: "h"})
			require.False(t, ok)
			require.Empty(t, got)
		})
	}
}

func TestResolveTransportErrorYieldsAbsent(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	r := New(Config{BaseURL: srv.URL}, zap.NewNop())
	_, ok := r.Resolve(context.Background(), harvest.PhoneLookup{ListingID: "1", Hash: "h"})
	require.False(t, ok)
}
