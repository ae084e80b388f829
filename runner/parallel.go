package runner

import (
	"fmt"
	"time"

	"go.uber.org/multierr"

	ecs "github.com/redlilium/ecs"
	"github.com/redlilium/ecs/compute"
	"github.com/redlilium/ecs/scheduler"
)

// MultiThreaded walks a phase's system graph by submitting every ready
// (indegree-zero) system as a task on Pool, the same worker set background
// compute work runs on. Systems run at ecs.PrioritySystem, the highest
// priority the pool recognizes, so a ready system always preempts queued
// background work for the next free worker — but any worker with no ready
// system to run keeps pulling from the pool's shared heap, which is exactly
// how idle cores between dependent systems end up doing background compute
// instead of sitting empty. Exclusive systems stall the graph: every other
// in-flight system must finish before an exclusive one starts, and nothing
// else starts until it finishes.
type MultiThreaded struct {
	World     *ecs.World
	Schedules *scheduler.Schedules
	Pool      *compute.Pool
	Workers   int

	ownsPool bool
}

// NewMultiThreaded wires a parallel runner. workers <= 0 defaults to 4. A
// nil pool is not optional here — systems themselves now run as pool tasks
// — so NewMultiThreaded creates and owns one sized to workers; Close
// releases it. Passing an existing pool shares it with whatever else is
// spawning background work against it, and Close leaves it running.
func NewMultiThreaded(w *ecs.World, s *scheduler.Schedules, pool *compute.Pool, workers int) *MultiThreaded {
	if workers <= 0 {
		workers = 4
	}
	ownsPool := false
	if pool == nil {
		pool = compute.NewPool(workers)
		ownsPool = true
	}
	return &MultiThreaded{World: w, Schedules: s, Pool: pool, Workers: workers, ownsPool: ownsPool}
}

// Close releases the pool NewMultiThreaded created internally when called
// with a nil pool. It is a no-op when the caller supplied its own pool.
func (r *MultiThreaded) Close() {
	if r.ownsPool {
		r.Pool.Close()
	}
}

// RunStartup runs the startup graph in parallel, then drains compute.
func (r *MultiThreaded) RunStartup() error {
	if err := r.runGraphParallel(r.Schedules.Graph(scheduler.PhaseStartup)); err != nil {
		return err
	}
	if r.Pool != nil {
		r.Pool.TickAll()
	}
	return nil
}

// RunFrame runs pre-update, fixed-update, update, and post-update in that
// order, each as a parallel graph walk, applying commands and flushing
// observers after each phase. FixedUpdate runs exactly once per call: dt is
// not used and Schedules' fixed-timestep accumulator is not consulted. If a
// phase's systems fail (a recovered panic), that phase's queued commands
// are still applied and observers flushed before the error is returned;
// the remaining phases of the frame do not run.
func (r *MultiThreaded) RunFrame(dt time.Duration) error {
	for _, phase := range []scheduler.Phase{
		scheduler.PhasePreUpdate,
		scheduler.PhaseFixedUpdate,
		scheduler.PhaseUpdate,
		scheduler.PhasePostUpdate,
	} {
		err := r.runGraphParallel(r.Schedules.Graph(phase))
		r.World.ApplyCommands()
		r.World.FlushObservers()
		if err != nil {
			return err
		}
	}
	if r.Pool != nil {
		r.Pool.TickAll()
	}
	return nil
}

// runGraphParallel executes graph's nodes using Kahn's algorithm, but
// dispatch itself is just another compute.Spawn call: each ready node
// becomes a PrioritySystem task on r.Pool, and this goroutine coordinates
// the topology (indegree bookkeeping, exclusivity gating, error
// aggregation) by ticking the pool's completion queue instead of spawning
// its own per-node goroutines or tracking its own semaphore. Because the
// coordinator is the only goroutine that ever touches indegree/ready/
// combined, every OnComplete callback runs serially with no extra locking.
// While no system is ready to dispatch (e.g. waiting on a long-running
// dependency), the coordinator's Tick call is also draining whatever
// background compute tasks the pool's idle workers have been chewing
// through — the same mechanism GracefulShutdown uses, just run inline
// during a frame instead of at teardown.
func (r *MultiThreaded) runGraphParallel(graph *scheduler.SystemsContainer) error {
	order, err := graph.TopoOrder()
	if err != nil {
		return err
	}
	if len(order) == 0 {
		return nil
	}

	indegree := graph.Indegree()
	remaining := len(order)

	var ready []string
	for _, name := range order {
		if indegree[name] == 0 {
			ready = append(ready, name)
		}
	}

	var (
		inFlight        int
		exclusiveActive bool
		combined        error
	)

	runGuarded := func(name string) (err error) {
		defer func() {
			if rec := recover(); rec != nil {
				err = fmt.Errorf("ecs: system %q panicked: %v", name, rec)
			}
		}()
		graph.Run(r.World, name)
		return nil
	}

	dispatchOne := func(name string) {
		exclusive := graph.IsExclusive(name)
		if exclusive {
			exclusiveActive = true
		} else {
			inFlight++
		}
		compute.Spawn(r.Pool, ecs.PrioritySystem, func() error {
			return runGuarded(name)
		}).OnComplete(func(runErr error) {
			if runErr != nil {
				combined = multierr.Append(combined, runErr)
			}
			if exclusive {
				exclusiveActive = false
			} else {
				inFlight--
			}
			remaining--
			for _, dep := range graph.Dependents(name) {
				indegree[dep]--
				if indegree[dep] == 0 {
					ready = append(ready, dep)
				}
			}
		})
	}

	dispatchReady := func() {
		if exclusiveActive {
			return
		}
		var stillReady []string
		for _, name := range ready {
			if exclusiveActive {
				stillReady = append(stillReady, name)
				continue
			}
			if graph.IsExclusive(name) {
				if inFlight > 0 {
					stillReady = append(stillReady, name)
					continue
				}
			}
			dispatchOne(name)
		}
		ready = stillReady
	}

	dispatchReady()
	for remaining > 0 {
		if !r.Pool.Tick() {
			time.Sleep(time.Millisecond)
			continue
		}
		dispatchReady()
	}
	return combined
}

// GracefulShutdown waits up to budget for the compute pool to finish every
// in-flight and queued task, ticking completions as they land. Returns
// *ecs.ShutdownTimeout if work remains when budget elapses.
func (r *MultiThreaded) GracefulShutdown(budget time.Duration) error {
	if r.Pool == nil {
		return nil
	}
	deadline := time.Now().Add(budget)
	for time.Now().Before(deadline) {
		if r.Pool.TickAll() == 0 {
			// Nothing completed this pass; give workers a moment to produce
			// more before checking again.
			time.Sleep(time.Millisecond)
		}
	}
	remaining := r.Pool.TickExtract()
	if remaining > 0 {
		return &ecs.ShutdownTimeout{Remaining: remaining}
	}
	return nil
}
