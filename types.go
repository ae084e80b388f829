package ecs

import "reflect"

// Tick is the monotonically increasing frame counter used for change
// detection. It is bumped once per frame by AdvanceTick.
type Tick uint64

// componentKey identifies a registered component type. Components are
// keyed by reflect.Type rather than a string name, because Go generics
// let us recover the static type at each call site; reflect.Type gives us
// a comparable map key without asking callers to name their own types.
type componentKey = reflect.Type

func keyOf[T any]() componentKey {
	var zero T
	return reflect.TypeOf(&zero).Elem()
}

// EntityFlags is a per-entity bitset. Only DISABLED and STATIC are defined
// by the core; both propagate through the hierarchy (set_parent,
// disable/enable, mark_static/unmark_static).
type EntityFlags uint8

const (
	FlagDisabled EntityFlags = 1 << iota
	FlagStatic
)

// Has reports whether all bits in other are set.
func (f EntityFlags) Has(other EntityFlags) bool { return f&other == other }

// Priority orders compute tasks. Higher-priority tasks always poll before
// lower-priority ones; within a priority, FIFO sequence number breaks ties.
type Priority int

const (
	PriorityLow Priority = iota
	PriorityHigh
	PriorityCritical
	// PrioritySystem is reserved for system bodies the runner dispatches
	// through the shared compute pool. It always outranks every
	// user-facing priority so a ready system preempts queued background
	// work the instant a worker is free, while still leaving that
	// background work to run on whatever worker capacity no ready system
	// is using.
	PrioritySystem
)

func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "Low"
	case PriorityHigh:
		return "High"
	case PriorityCritical:
		return "Critical"
	case PrioritySystem:
		return "System"
	default:
		return "Unknown"
	}
}
