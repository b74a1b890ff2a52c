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

	"github.com/yeisme/fileparser/pkg/scheduler"
)

func newScheduler(t *testing.T) *scheduler.Scheduler {
	t.Helper()

	s, err := scheduler.NewScheduler(zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Stop() })

	return s
}

func TestRunNowRecordsSuccess(t *testing.T) {
	s := newScheduler(t)

	var runs atomic.Int32

	require.NoError(t, s.AddCron(context.Background(), "count", "0 0 1 1 *", func(context.Context) error {
		runs.Add(1)
		return nil
	}, false))

	s.Start()
	require.NoError(t, s.RunNow("count"))

	require.Eventually(t, func() bool {
		info, err := s.GetJobInfoByName("count")
		return err == nil && info.Runs == 1 && !info.LastSuccess.IsZero()
	}, 2*time.Second, 10*time.Millisecond)

	assert.Equal(t, int32(1), runs.Load())

	info, err := s.GetJobInfoByName("count")
	require.NoError(t, err)
	assert.Equal(t, scheduler.StatusScheduled, info.Status)
	assert.Equal(t, "0 0 1 1 *", info.CronExpr)
}

func TestRunAtStart(t *testing.T) {
	s := newScheduler(t)

	done := make(chan struct{}, 1)

	require.NoError(t, s.AddCron(context.Background(), "boot", "0 0 1 1 *", func(context.Context) error {
		done <- struct{}{}
		return nil
	}, true))

	s.Start()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("job did not run at start")
	}
}

func TestJobErrorsAndPanics(t *testing.T) {
	s := newScheduler(t)
	ctx := context.Background()

	require.NoError(t, s.AddCron(ctx, "fails", "0 0 1 1 *", func(context.Context) error {
		return errors.New("boom")
	}, false))
	require.NoError(t, s.AddCron(ctx, "panics", "0 0 1 1 *", func(context.Context) error {
		panic("kaboom")
	}, false))

	s.Start()
	require.NoError(t, s.RunNow("fails"))
	require.NoError(t, s.RunNow("panics"))

	for name, want := range map[string]string{"fails": "boom", "panics": "panic in job: kaboom"} {
		require.Eventually(t, func() bool {
			info, err := s.GetJobInfoByName(name)
			return err == nil && info.Status == scheduler.StatusError && info.Error == want
		}, 2*time.Second, 10*time.Millisecond, name)
	}
}

func TestDuplicateAndUnknown(t *testing.T) {
	s := newScheduler(t)
	noop := func(context.Context) error { return nil }

	require.NoError(t, s.AddCron(context.Background(), "b", "*/5 * * * *", noop, false))
	require.NoError(t, s.AddCron(context.Background(), "a", "*/5 * * * *", noop, false))
	require.Error(t, s.AddCron(context.Background(), "a", "*/5 * * * *", noop, false))
	require.Error(t, s.AddCron(context.Background(), "bad", "not a cron", noop, false))

	require.ErrorIs(t, s.RunNow("missing"), scheduler.ErrJobNotFound)

	_, err := s.GetJobInfoByName("missing")
	require.ErrorIs(t, err, scheduler.ErrJobNotFound)

	infos := s.GetJobInfos()
	require.Len(t, infos, 2)
	assert.Equal(t, "a", infos[0].Name)
	assert.Equal(t, "b", infos[1].Name)
}
