// Package runner drives a World through its schedules frame after frame,
// either on a single goroutine or spread across a worker pool, interleaving
// compute.Pool completion drains with system execution each phase.
package runner

import (
	"time"

	ecs "github.com/redlilium/ecs"
	"github.com/redlilium/ecs/compute"
	"github.com/redlilium/ecs/metrics"
	"github.com/redlilium/ecs/scheduler"
)

// SingleThreaded runs every phase's systems in topological order on the
// calling goroutine, ticking the compute pool once after every system and
// draining its completions once after each RunFrame/RunStartup. Generalized from a fixed system list to the scheduler's derived
// topological order.
type SingleThreaded struct {
	World     *ecs.World
	Schedules *scheduler.Schedules
	Pool      *compute.Pool

	// ComputeBudget bounds how long the drain after each RunFrame/RunStartup
	// may spend on compute completions; zero means "drain everything pending".
	ComputeBudget time.Duration

	// Metrics, if set, is updated after every RunFrame call.
	Metrics *metrics.Collectors
}

// NewSingleThreaded wires a runner around an already-built world and
// schedule set. pool may be nil if the caller has no background compute
// work. Schedules.AfterSystem is wired to tick the pool once between every
// system poll, so a core left idle while waiting on the next system's
// dependencies still drains whatever background work has completed.
func NewSingleThreaded(w *ecs.World, s *scheduler.Schedules, pool *compute.Pool) *SingleThreaded {
	r := &SingleThreaded{World: w, Schedules: s, Pool: pool}
	s.AfterSystem = func() {
		if r.Pool != nil {
			r.Pool.Tick()
		}
	}
	return r
}

// RunStartup runs the startup graph once, then drains any compute
// completions it queued.
func (r *SingleThreaded) RunStartup() error {
	if err := r.Schedules.RunStartup(r.World); err != nil {
		return err
	}
	r.drainCompute()
	return nil
}

// RunFrame advances one frame of dt and then drains compute completions,
// interleaving the two so a long-running background task's OnComplete
// callback lands promptly rather than waiting for a dedicated phase.
func (r *SingleThreaded) RunFrame(dt time.Duration) error {
	start := time.Now()
	if err := r.Schedules.RunFrame(r.World, dt); err != nil {
		return err
	}
	r.drainCompute()
	if r.Metrics != nil {
		r.Metrics.FrameDuration.Observe(time.Since(start).Seconds())
		r.Metrics.EntityCount.Set(float64(r.World.EntityCount()))
	}
	return nil
}

func (r *SingleThreaded) drainCompute() {
	if r.Pool == nil {
		return
	}
	if r.ComputeBudget > 0 {
		r.Pool.TickWithBudget(r.ComputeBudget)
		return
	}
	r.Pool.TickAll()
}
