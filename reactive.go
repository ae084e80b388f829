package ecs

// Reactive layer: synchronous hooks (at most one per event per type),
// deferred observers (any number, run after commands apply), and
// double-buffered reactive triggers readable as resources.

func mustRegistration[T any](w *World) *componentRegistration {
	key := keyOf[T]()
	w.mu.Lock()
	defer w.mu.Unlock()
	reg, ok := w.registrations[key]
	if !ok {
		panic("ecs: component not registered: " + key.String())
	}
	return reg
}

// SetOnAdd installs T's on_add hook, firing only on first insertion. Only
// one on_add handler exists per type; a later call replaces the former.
func SetOnAdd[T any](w *World, fn func(w *World, e Entity)) {
	mustRegistration[T](w).hookOnAdd = fn
}

// SetOnInsert installs T's on_insert hook, firing on every insertion.
func SetOnInsert[T any](w *World, fn func(w *World, e Entity)) {
	mustRegistration[T](w).hookOnInsert = fn
}

// SetOnReplace installs T's on_replace hook, firing before an overwrite
// while the old value is still readable.
func SetOnReplace[T any](w *World, fn func(w *World, e Entity)) {
	mustRegistration[T](w).hookOnReplace = fn
}

// SetOnRemove installs T's on_remove hook, firing before the value leaves
// storage.
func SetOnRemove[T any](w *World, fn func(w *World, e Entity)) {
	mustRegistration[T](w).hookOnRemove = fn
}

// ObserveAdd registers a deferred observer invoked after commands are
// applied for each first-time T insertion in that frame.
func ObserveAdd[T any](w *World, fn func(w *World, e Entity)) {
	reg := mustRegistration[T](w)
	reg.observersAdd = append(reg.observersAdd, fn)
}

// ObserveInsert registers a deferred observer invoked after commands are
// applied for every T insertion (first or replacement) in that frame.
func ObserveInsert[T any](w *World, fn func(w *World, e Entity)) {
	reg := mustRegistration[T](w)
	reg.observersInsert = append(reg.observersInsert, fn)
}

// ObserveRemove registers a deferred observer invoked after commands are
// applied for each T removal in that frame.
func ObserveRemove[T any](w *World, fn func(w *World, e Entity)) {
	reg := mustRegistration[T](w)
	reg.observersRemove = append(reg.observersRemove, fn)
}

// queueObserver enqueues a deferred observer callback. Observers can
// trigger further structural changes, which in turn enqueue more
// observers; FlushObservers drains to a fixpoint, capped at 100 cascading
// iterations.
func (w *World) queueObserver(fn func()) {
	w.observerMu.Lock()
	w.observerQueue = append(w.observerQueue, fn)
	w.observerMu.Unlock()
}

const maxObserverCascades = 100

// FlushObservers drains queued observers to a fixpoint, running at most
// maxObserverCascades rounds. Returns true if the cap was hit: an
// "observer overflow" — non-fatal, logged, and cascading stops for the
// remainder of the frame.
func (w *World) FlushObservers() (overflowed bool) {
	for round := 0; round < maxObserverCascades; round++ {
		w.observerMu.Lock()
		batch := w.observerQueue
		w.observerQueue = nil
		w.observerMu.Unlock()

		if len(batch) == 0 {
			return false
		}
		for _, fn := range batch {
			fn()
		}
	}
	w.observerMu.Lock()
	remaining := len(w.observerQueue)
	w.observerMu.Unlock()
	if remaining > 0 {
		w.log.Sugar().Warnw("observer overflow: cascade cap reached, dropping remaining cascades for this frame",
			"cap", maxObserverCascades, "remaining", remaining)
		w.observerMu.Lock()
		w.observerQueue = nil
		w.observerMu.Unlock()
		return true
	}
	return false
}

// ---- trigger buffers ----

// OnAdd, OnInsert, OnRemove are phantom marker types used to parameterize
// Triggers[M], one per reactive-trigger kind.
type OnAdd[T any] struct{}
type OnInsert[T any] struct{}
type OnRemove[T any] struct{}

// Triggers is a double-buffered entity list for the reactive-trigger kind
// M (e.g. OnAdd[Transform]). Readable as a resource: systems call
// Resource[Triggers[OnAdd[Transform]]](world) and range over Current().
// Buffers swap when SwapTriggers[T] (or Swap) is called.
type Triggers[M any] struct {
	current []Entity
	next     []Entity
}

// Current returns this frame's trigger list (filled during the previous
// frame's mutations, visible from the start of this frame).
func (t *Triggers[M]) Current() []Entity { return t.current }

func (t *Triggers[M]) push(e Entity) { t.next = append(t.next, e) }

// Swap rotates next into current and clears next, ready to accumulate the
// following frame's events. Nothing in the runners or Schedules calls it;
// SwapTriggers[T] is the usual caller.
func (t *Triggers[M]) Swap() {
	t.current = t.next
	t.next = nil
}

// EnableTriggers installs OnAdd[T]/OnInsert[T]/OnRemove[T] trigger
// resources for T and wires the registration's push closures. Call once
// per component type that reactive-trigger consumers need to observe.
func EnableTriggers[T any](w *World) {
	InsertResource[Triggers[OnAdd[T]]](w, Triggers[OnAdd[T]]{}, false)
	InsertResource[Triggers[OnInsert[T]]](w, Triggers[OnInsert[T]]{}, false)
	InsertResource[Triggers[OnRemove[T]]](w, Triggers[OnRemove[T]]{}, false)

	reg := mustRegistration[T](w)
	reg.pushTriggerAdd = func(w *World, e Entity) {
		MutateResource[Triggers[OnAdd[T]]](w, func(t *Triggers[OnAdd[T]]) { t.push(e) })
	}
	reg.pushTriggerInsert = func(w *World, e Entity) {
		MutateResource[Triggers[OnInsert[T]]](w, func(t *Triggers[OnInsert[T]]) { t.push(e) })
	}
	reg.pushTriggerRemove = func(w *World, e Entity) {
		MutateResource[Triggers[OnRemove[T]]](w, func(t *Triggers[OnRemove[T]]) { t.push(e) })
	}
}

// SwapTriggers swaps the OnAdd/OnInsert/OnRemove buffers for T. Neither
// runner nor Schedules calls it: the caller invokes it for every
// trigger-enabled type at the start of each frame.
func SwapTriggers[T any](w *World) {
	MutateResource[Triggers[OnAdd[T]]](w, func(t *Triggers[OnAdd[T]]) { t.Swap() })
	MutateResource[Triggers[OnInsert[T]]](w, func(t *Triggers[OnInsert[T]]) { t.Swap() })
	MutateResource[Triggers[OnRemove[T]]](w, func(t *Triggers[OnRemove[T]]) { t.Swap() })
}
