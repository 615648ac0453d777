package schedule

import (
	"context"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestSchedulerRunsImmediately(t *testing.T) {
	var runs atomic.Int32
	done := make(chan struct{}, 1)

	s, err := New(t.Context(), Config{Cron: "0 0 1 1 *", RunImmediately: true}, func(context.Context) {
		runs.Add(1)
		select {
		case done <- struct{}{}:
		default:
		}
	}, discard)
	require.NoError(t, err)

	s.Start()
	defer func() { require.NoError(t, s.Stop()) }()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("task did not run on start")
	}
	assert.Equal(t, int32(1), runs.Load())

	next, err := s.NextRun()
	require.NoError(t, err)
	assert.True(t, next.After(time.Now()))
}

func TestSchedulerRejectsBadCron(t *testing.T) {
	_, err := New(t.Context(), Config{Cron: "not a cron"}, func(context.Context) {}, discard)
	require.Error(t, err)
}

func TestRunLoopSkipsCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	called := false
	runLoop(ctx, "check", func(context.Context) { called = true }, discard)
	assert.False(t, called)
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "* * * * *", cfg.Cron)
	assert.True(t, cfg.RunImmediately)
}
