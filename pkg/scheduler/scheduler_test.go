package scheduler_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/emberql/emberql/pkg/scheduler"
)

func TestTaskRunsRepeatedlyAtInterval(t *testing.T) {
	var count int32
	s := scheduler.New([]scheduler.Task{
		{
			Name:     "tick",
			Interval: 5 * time.Millisecond,
			Run: func(ctx context.Context) error {
				atomic.AddInt32(&count, 1)
				return nil
			},
		},
	}, nil)

	s.Start(context.Background())
	time.Sleep(40 * time.Millisecond)
	s.Stop()

	assert.GreaterOrEqual(t, atomic.LoadInt32(&count), int32(3))
}

func TestStopWaitsForSlowRunToFinish(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var finished int32

	s := scheduler.New([]scheduler.Task{
		{
			Name:     "slow",
			Interval: time.Millisecond,
			Run: func(ctx context.Context) error {
				close(started)
				<-release
				atomic.StoreInt32(&finished, 1)
				return nil
			},
		},
	}, nil)

	s.Start(context.Background())
	<-started

	done := make(chan struct{})
	go func() {
		s.Stop()
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("Stop returned before the in-flight run finished")
	case <-time.After(10 * time.Millisecond):
	}

	close(release)
	<-done
	assert.Equal(t, int32(1), atomic.LoadInt32(&finished))
}

func TestRunErrorIsReportedAndTaskKeepsGoing(t *testing.T) {
	var errCount, runCount int32
	s := scheduler.New([]scheduler.Task{
		{
			Name:     "flaky",
			Interval: 5 * time.Millisecond,
			Run: func(ctx context.Context) error {
				n := atomic.AddInt32(&runCount, 1)
				if n == 1 {
					return assert.AnError
				}
				return nil
			},
		},
	}, func(task string, err error) {
		assert.Equal(t, "flaky", task)
		atomic.AddInt32(&errCount, 1)
	})

	s.Start(context.Background())
	time.Sleep(30 * time.Millisecond)
	s.Stop()

	assert.Equal(t, int32(1), atomic.LoadInt32(&errCount))
	assert.GreaterOrEqual(t, atomic.LoadInt32(&runCount), int32(2))
}
