package scheduler_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Edwouard/SenegalAirWatch/internal/scheduler"
)

func TestScheduler_FirstRunFiresImmediately(t *testing.T) {
	var runs atomic.Int32

	s := scheduler.New(time.Hour, func(ctx context.Context) error {
		runs.Add(1)
		return nil
	}, zerolog.Nop())
	defer s.Stop()

	require.NoError(t, s.Start(context.Background()))

	assert.Eventually(t, func() bool {
		return runs.Load() >= 1
	}, 2*time.Second, 10*time.Millisecond, "first run should fire without waiting for the interval")
}

func TestScheduler_RepeatsOnInterval(t *testing.T) {
	var runs atomic.Int32

	s := scheduler.New(50*time.Millisecond, func(ctx context.Context) error {
		runs.Add(1)
		return nil
	}, zerolog.Nop())
	defer s.Stop()

	require.NoError(t, s.Start(context.Background()))

	assert.Eventually(t, func() bool {
		return runs.Load() >= 2
	}, 3*time.Second, 10*time.Millisecond)
}

func TestScheduler_FailedRunDoesNotStopSchedule(t *testing.T) {
	var runs atomic.Int32

	s := scheduler.New(50*time.Millisecond, func(ctx context.Context) error {
		runs.Add(1)
		return errors.New("upstream unavailable")
	}, zerolog.Nop())
	defer s.Stop()

	require.NoError(t, s.Start(context.Background()))

	assert.Eventually(t, func() bool {
		return runs.Load() >= 2
	}, 3*time.Second, 10*time.Millisecond, "failures must not break the schedule")
}

func TestScheduler_CancelledContextSkipsRuns(t *testing.T) {
	var runs atomic.Int32

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := scheduler.New(20*time.Millisecond, func(ctx context.Context) error {
		runs.Add(1)
		return nil
	}, zerolog.Nop())
	defer s.Stop()

	require.NoError(t, s.Start(ctx))

	time.Sleep(100 * time.Millisecond)
	assert.Zero(t, runs.Load(), "runs must not start after cancellation")
}
