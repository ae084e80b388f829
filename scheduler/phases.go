package scheduler

import (
	"time"

	ecs "github.com/redlilium/ecs"
)

// Phase names the fixed frame stages the runtime defines. Startup runs
// once; the rest run every frame in this order.
type Phase string

const (
	PhaseStartup    Phase = "startup"
	PhasePreUpdate  Phase = "pre_update"
	PhaseFixedUpdate Phase = "fixed_update"
	PhaseUpdate     Phase = "update"
	PhasePostUpdate Phase = "post_update"
)

var frameOrder = []Phase{PhasePreUpdate, PhaseFixedUpdate, PhaseUpdate, PhasePostUpdate}

// Schedules groups one SystemsContainer per phase and tracks fixed-update
// accumulation across a frame-stage split with a fixed-timestep
// accumulator for FixedUpdate.
type Schedules struct {
	graphs map[Phase]*SystemsContainer

	fixedTimestep time.Duration
	accumulator   time.Duration

	startupRan bool

	// AfterSystem, if set, runs after every individual system poll within
	// a phase's topological walk — not just once per phase. A runner
	// wires this to its compute pool's Tick so background completions
	// interleave between systems rather than landing in one lump after
	// the whole phase has already run.
	AfterSystem func()
}

// NewSchedules builds an empty set of per-phase graphs. fixedTimestep is
// the wall-clock duration one FixedUpdate tick represents; pass 0 to
// disable FixedUpdate accumulation (RunFrame then runs it exactly once per
// frame, like Update).
func NewSchedules(fixedTimestep time.Duration) *Schedules {
	s := &Schedules{
		graphs:        make(map[Phase]*SystemsContainer),
		fixedTimestep: fixedTimestep,
	}
	s.graphs[PhaseStartup] = NewSystemsContainer()
	for _, p := range frameOrder {
		s.graphs[p] = NewSystemsContainer()
	}
	return s
}

// Graph returns the SystemsContainer for phase, building systems/edges
// against it directly.
func (s *Schedules) Graph(phase Phase) *SystemsContainer { return s.graphs[phase] }

// RunStartup runs the startup graph once. Subsequent calls are no-ops.
func (s *Schedules) RunStartup(w *ecs.World) error {
	if s.startupRan {
		return nil
	}
	if err := runGraph(w, s.graphs[PhaseStartup], s.AfterSystem); err != nil {
		return err
	}
	s.startupRan = true
	return nil
}

// RunFrame advances PreUpdate, zero-or-more FixedUpdate ticks, Update, and
// PostUpdate, in that order, applying commands and flushing observers
// after each phase rather than once per frame.
func (s *Schedules) RunFrame(w *ecs.World, dt time.Duration) error {
	if err := s.runPhase(w, PhasePreUpdate); err != nil {
		return err
	}

	if s.fixedTimestep > 0 {
		s.accumulator += dt
		for s.accumulator >= s.fixedTimestep {
			if err := s.runPhase(w, PhaseFixedUpdate); err != nil {
				return err
			}
			s.accumulator -= s.fixedTimestep
		}
	} else {
		if err := s.runPhase(w, PhaseFixedUpdate); err != nil {
			return err
		}
	}

	if err := s.runPhase(w, PhaseUpdate); err != nil {
		return err
	}
	return s.runPhase(w, PhasePostUpdate)
}

func (s *Schedules) runPhase(w *ecs.World, phase Phase) error {
	if err := runGraph(w, s.graphs[phase], s.AfterSystem); err != nil {
		return err
	}
	w.ApplyCommands()
	w.FlushObservers()
	return nil
}

func runGraph(w *ecs.World, graph *SystemsContainer, afterSystem func()) error {
	order, err := graph.TopoOrder()
	if err != nil {
		return err
	}
	for _, name := range order {
		graph.Run(w, name)
		if afterSystem != nil {
			afterSystem()
		}
	}
	return nil
}
