package ecs

// Events is a double-buffered event queue for event type E, installed as a
// type-keyed resource via AddEvent. Writers call Send during a frame;
// readers see both the events sent this frame and, until the next swap,
// the ones sent the previous frame — the same double-buffering the
// reactive triggers use rather than a single draining channel, so two
// systems reading the same event in one frame don't race over who drains
// it first.
type Events[E any] struct {
	current []E
	next    []E
}

// Send appends an event to the pending buffer: Iter includes it at once,
// IterCurrent only after the next swap.
func (ev *Events[E]) Send(event E) { ev.next = append(ev.next, event) }

// Iter returns every event visible this frame: the previous frame's batch
// followed by whatever has been sent so far this frame.
func (ev *Events[E]) Iter() []E {
	out := make([]E, 0, len(ev.current)+len(ev.next))
	out = append(out, ev.current...)
	out = append(out, ev.next...)
	return out
}

// IterCurrent returns only the batch that became visible at the start of
// this frame, excluding anything sent so far this frame.
func (ev *Events[E]) IterCurrent() []E { return ev.current }

// Len reports the number of events visible this frame (Iter's length).
func (ev *Events[E]) Len() int { return len(ev.current) + len(ev.next) }

// IsEmpty reports whether no events are visible this frame.
func (ev *Events[E]) IsEmpty() bool { return ev.Len() == 0 }

// Clear drops every buffered event, current and pending.
func (ev *Events[E]) Clear() {
	ev.current = nil
	ev.next = nil
}

func (ev *Events[E]) swap() {
	ev.current = ev.next
	ev.next = nil
}

// AddEvent installs an Events[E] resource for E, idempotent like
// RegisterComponent. It only installs the resource: neither runner nor
// Schedules calls SwapEvents[E], so the caller swaps each added event type
// once per frame itself.
func AddEvent[E any](w *World) {
	if HasResource[Events[E]](w) {
		return
	}
	InsertResource[Events[E]](w, Events[E]{}, false)
}

// SwapEvents rotates E's pending buffer into the current one. Call once per
// frame, before systems run, for every event type in use.
func SwapEvents[E any](w *World) {
	MutateResource[Events[E]](w, func(ev *Events[E]) { ev.swap() })
}

// SendEvent is a convenience wrapper around MutateResource for sending to
// an already-installed Events[E] resource.
func SendEvent[E any](w *World, event E) bool {
	return MutateResource[Events[E]](w, func(ev *Events[E]) { ev.Send(event) })
}
