package schedule

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"autoria-harvester/internal/config"
)

func TestUntilNext(t *testing.T) {
	loc := time.UTC
	cases := []struct {
		name string
		now  time.Time
		at   config.Clock
		want time.Duration
	}{
		{
			name: "later today",
			now:  time.Date(2026, 8, 1, 10, 0, 0, 0, loc),
			at:   config.Clock{Hour: 12, Minute: 30},
			want: 2*time.Hour + 30*time.Minute,
		},
		{
			name: "already passed rolls to tomorrow",
			now:  time.Date(2026, 8, 1, 13, 0, 0, 0, loc),
			at:   config.Clock{Hour: 12, Minute: 0},
			want: 23 * time.Hour,
		},
		{
			name: "exactly now rolls to tomorrow",
			now:  time.Date(2026, 8, 1, 12, 0, 0, 0, loc),
			at:   config.Clock{Hour: 12, Minute: 0},
			want: 24 * time.Hour,
		},
		{
			name: "month boundary",
			now:  time.Date(2026, 8, 31, 23, 0, 0, 0, loc),
			at:   config.Clock{Hour: 22, Minute: 0},
			want: 23 * time.Hour,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := NewDaily("test", tc.at, func(context.Context) {}, zap.NewNop())
			s.now = func() time.Time { return tc.now }
			require.Equal(t, tc.want, s.untilNext())
		})
	}
}

func TestRunFiresJob(t *testing.T) {
	fired := make(chan struct{})
	var once sync.Once
	s := NewDaily("test", config.Clock{}, func(context.Context) {
		once.Do(func() { close(fired) })
	}, zap.NewNop())
	// Force a near-immediate first tick.
	base := time.Now()
	s.now = func() time.Time {
		return time.Date(base.Year(), base.Month(), base.Day(),
			23, 59, 59, int(999*time.Millisecond), base.Location())
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("job never fired")
	}
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop on cancel")
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	s := NewDaily("test", config.Clock{Hour: 12}, func(context.Context) {
		t.Fatal("job should not fire")
	}, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop on cancel")
	}
}
