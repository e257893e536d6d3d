package dispatch

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/capitalize-ai/medical-assistant/pkg/logger"
	"github.com/capitalize-ai/medical-assistant/pkg/metrics"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func start(t *testing.T, q *Queue) context.CancelFunc {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = q.Run(ctx)
	}()
	stop := func() {
		cancel()
		<-done
	}
	t.Cleanup(stop)
	return stop
}

func TestQueue_RunsInSubmissionOrder(t *testing.T) {
	q := New("order", 128, logger.NewNop())
	start(t, q)

	var (
		mu  sync.Mutex
		got []int
	)
	for i := 0; i < 100; i++ {
		i := i
		require.NoError(t, q.Submit(func(context.Context) {
			mu.Lock()
			got = append(got, i)
			mu.Unlock()
		}))
	}

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 100
	}, 2*time.Second, 5*time.Millisecond)
	for i, v := range got {
		require.Equal(t, i, v)
	}
}

func TestQueue_SubmitDoesNotWaitForJobs(t *testing.T) {
	q := New("slow", 8, logger.NewNop())
	start(t, q)

	ran := make(chan struct{}, 2)
	begin := time.Now()
	for i := 0; i < 2; i++ {
		require.NoError(t, q.Submit(func(context.Context) {
			time.Sleep(200 * time.Millisecond)
			ran <- struct{}{}
		}))
	}
	require.Less(t, time.Since(begin), 100*time.Millisecond)

	<-ran
	<-ran
}

func TestQueue_FullDropsAndCounts(t *testing.T) {
	q := New("full", 1, logger.NewNop())
	before := testutil.ToFloat64(metrics.DispatchDroppedTotal.WithLabelValues("full"))

	require.NoError(t, q.Submit(func(context.Context) {}))
	require.ErrorIs(t, q.Submit(func(context.Context) {}), ErrFull)

	require.Equal(t, before+1, testutil.ToFloat64(metrics.DispatchDroppedTotal.WithLabelValues("full")))
	require.Equal(t, 1, q.Len())
}

func TestQueue_DrainsQueuedJobsOnStop(t *testing.T) {
	q := New("drain", 16, logger.NewNop())

	var count int
	for i := 0; i < 10; i++ {
		require.NoError(t, q.Submit(func(context.Context) { count++ }))
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, q.Run(ctx))
	require.Equal(t, 10, count)
	require.Zero(t, q.Len())
}

func TestQueue_DrainIsBounded(t *testing.T) {
	q := New("bounded", 16, logger.NewNop())
	q.drainTimeout = 50 * time.Millisecond

	for i := 0; i < 5; i++ {
		require.NoError(t, q.Submit(func(ctx context.Context) { <-ctx.Done() }))
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	begin := time.Now()
	require.NoError(t, q.Run(ctx))
	require.Less(t, time.Since(begin), time.Second)
	require.Equal(t, 4, q.Len())
}

func TestQueue_PanickingJobDoesNotStopQueue(t *testing.T) {
	q := New("panic", 4, logger.NewNop())
	start(t, q)

	done := make(chan struct{})
	require.NoError(t, q.Submit(func(context.Context) { panic("boom") }))
	require.NoError(t, q.Submit(func(context.Context) { close(done) }))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("queue stopped after a panicking job")
	}
}
