package runner

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ecs "github.com/redlilium/ecs"
	"github.com/redlilium/ecs/compute"
	"github.com/redlilium/ecs/metrics"
	"github.com/redlilium/ecs/scheduler"
)

func Test_SingleThreaded_RunStartupRunsOnceAndDrainsCompute(t *testing.T) {
	w := ecs.NewWorld(nil)
	s := scheduler.NewSchedules(0)
	pool := compute.NewPool(2)
	defer pool.Close()
	r := NewSingleThreaded(w, s, pool)

	fired := false
	s.Graph(scheduler.PhaseStartup).AddSystem("kick", func(w *ecs.World) {
		h := compute.Spawn(pool, ecs.PriorityLow, func() int { return 1 })
		h.Recv()
		h.OnComplete(func(int) { fired = true })
	})

	require.NoError(t, r.RunStartup())

	assert.True(t, fired, "RunStartup must drain compute completions queued during startup")
}

func Test_SingleThreaded_RunFrameUpdatesMetrics(t *testing.T) {
	w := ecs.NewWorld(nil)
	s := scheduler.NewSchedules(0)
	r := NewSingleThreaded(w, s, nil)
	r.Metrics = metrics.NewCollectors("test_runner")
	w.Spawn()
	w.Spawn()

	require.NoError(t, r.RunFrame(16*time.Millisecond))

	assert.Equal(t, float64(2), testutil.ToFloat64(r.Metrics.EntityCount))
	assert.Equal(t, uint64(1), testutil.CollectAndCount(r.Metrics.FrameDuration))
}

func Test_SingleThreaded_RunFrameSucceedsWithComputeBudget(t *testing.T) {
	w := ecs.NewWorld(nil)
	s := scheduler.NewSchedules(0)
	pool := compute.NewPool(2)
	defer pool.Close()
	r := NewSingleThreaded(w, s, pool)
	r.ComputeBudget = 5 * time.Millisecond

	require.NoError(t, r.RunFrame(time.Millisecond))
}

func Test_MultiThreaded_RunFrameRunsAllSystemsAcrossPhases(t *testing.T) {
	w := ecs.NewWorld(nil)
	s := scheduler.NewSchedules(0)
	r := NewMultiThreaded(w, s, nil, 4)
	t.Cleanup(r.Close)

	var ran int32
	s.Graph(scheduler.PhasePreUpdate).AddSystem("a", func(w *ecs.World) { atomic.AddInt32(&ran, 1) })
	s.Graph(scheduler.PhaseUpdate).AddSystem("b", func(w *ecs.World) { atomic.AddInt32(&ran, 1) })
	s.Graph(scheduler.PhasePostUpdate).AddSystem("c", func(w *ecs.World) { atomic.AddInt32(&ran, 1) })

	require.NoError(t, r.RunFrame(time.Millisecond))

	assert.Equal(t, int32(3), atomic.LoadInt32(&ran))
}

func Test_MultiThreaded_ExclusiveSystemDoesNotRunConcurrentlyWithOthers(t *testing.T) {
	w := ecs.NewWorld(nil)
	s := scheduler.NewSchedules(0)
	r := NewMultiThreaded(w, s, nil, 8)
	t.Cleanup(r.Close)
	graph := s.Graph(scheduler.PhaseUpdate)

	var mu sync.Mutex
	concurrent := 0
	exclusiveRunning := false
	violated := false
	track := func(exclusive bool) func() {
		mu.Lock()
		if exclusive {
			exclusiveRunning = true
		} else if exclusiveRunning {
			violated = true
		}
		concurrent++
		mu.Unlock()
		time.Sleep(time.Millisecond)
		return func() {
			mu.Lock()
			concurrent--
			if exclusive {
				exclusiveRunning = false
			}
			mu.Unlock()
		}
	}

	for i := 0; i < 5; i++ {
		name := fmt.Sprintf("sys-%d", i)
		graph.AddSystem(name, func(w *ecs.World) { done := track(false); done() })
	}
	graph.AddExclusive("solo", func(w *ecs.World) { done := track(true); done() })

	require.NoError(t, r.RunFrame(time.Millisecond))

	assert.False(t, violated, "a concurrent system must never run while the exclusive system is in flight")
}

func Test_MultiThreaded_PanicInSystemIsAggregatedNotFatal(t *testing.T) {
	w := ecs.NewWorld(nil)
	s := scheduler.NewSchedules(0)
	r := NewMultiThreaded(w, s, nil, 2)
	t.Cleanup(r.Close)
	s.Graph(scheduler.PhaseUpdate).AddSystem("boom", func(w *ecs.World) { panic("nope") })

	var err error
	assert.NotPanics(t, func() { err = r.RunFrame(time.Millisecond) })
	assert.Error(t, err)
}

func Test_MultiThreaded_GracefulShutdownDrainsPendingWork(t *testing.T) {
	w := ecs.NewWorld(nil)
	s := scheduler.NewSchedules(0)
	pool := compute.NewPool(2)
	defer pool.Close()
	r := NewMultiThreaded(w, s, pool, 2)

	h := compute.Spawn(pool, ecs.PriorityLow, func() int { return 1 })
	h.Recv()
	h.OnComplete(func(int) {})

	err := r.GracefulShutdown(100 * time.Millisecond)

	assert.NoError(t, err)
}

func Test_MultiThreaded_GracefulShutdownReportsTimeoutWhenWorkRemains(t *testing.T) {
	w := ecs.NewWorld(nil)
	s := scheduler.NewSchedules(0)
	pool := compute.NewPool(1)
	defer pool.Close()
	r := NewMultiThreaded(w, s, pool, 1)

	// Let the task finish and land in the completed queue, but starve the
	// budget so GracefulShutdown's poll loop never gets a chance to drain
	// it before checking for leftovers.
	h := compute.Spawn(pool, ecs.PriorityLow, func() int { return 1 })
	h.Recv()

	err := r.GracefulShutdown(0)

	var timeout *ecs.ShutdownTimeout
	require.Error(t, err)
	require.ErrorAs(t, err, &timeout)
}
