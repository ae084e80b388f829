package ecs

// Filter narrows a Query's iteration to entities satisfying some predicate
// over component presence or change state. Filters declare their own lock
// access separately from the query's fetch list, so With[Velocity] on a
// query that only fetches Position still takes Velocity's read lock for
// the duration of iteration.
type Filter interface {
	access() []accessDescriptor
	match(w *World, index uint32) bool
}

type withFilter[T any] struct{}

// With matches entities that have T, without fetching its value.
func With[T any]() Filter { return withFilter[T]{} }

func (withFilter[T]) access() []accessDescriptor {
	return []accessDescriptor{{kind: kindComponent, key: keyOf[T](), write: false, optional: true}}
}
func (withFilter[T]) match(w *World, index uint32) bool {
	h, ok := handleFor[T](w)
	return ok && h.storage.has(index)
}

type withoutFilter[T any] struct{}

// Without matches entities that lack T.
func Without[T any]() Filter { return withoutFilter[T]{} }

func (withoutFilter[T]) access() []accessDescriptor {
	return []accessDescriptor{{kind: kindComponent, key: keyOf[T](), write: false, optional: true}}
}
func (withoutFilter[T]) match(w *World, index uint32) bool {
	h, ok := handleFor[T](w)
	return !ok || !h.storage.has(index)
}

type addedFilter[T any] struct{ since Tick }

// Added matches entities whose T was first inserted after since. The
// caller supplies since (typically the tick a system last ran); the
// scheduler is responsible for tracking that per system.
func Added[T any](since Tick) Filter { return addedFilter[T]{since: since} }

func (addedFilter[T]) access() []accessDescriptor {
	return []accessDescriptor{{kind: kindComponent, key: keyOf[T](), write: false, optional: true}}
}
func (f addedFilter[T]) match(w *World, index uint32) bool {
	h, ok := handleFor[T](w)
	return ok && h.storage.addedSince(index, f.since)
}

type changedFilter[T any] struct{ since Tick }

// Changed matches entities whose T was inserted or mutated after since.
func Changed[T any](since Tick) Filter { return changedFilter[T]{since: since} }

func (changedFilter[T]) access() []accessDescriptor {
	return []accessDescriptor{{kind: kindComponent, key: keyOf[T](), write: false, optional: true}}
}
func (f changedFilter[T]) match(w *World, index uint32) bool {
	h, ok := handleFor[T](w)
	return ok && h.storage.changedSince(index, f.since)
}

type maybeAddedFilter[T any] struct{ since Tick }

// MaybeAdded matches every entity lacking T, and among entities with T only
// those added after since — useful for queries where T is an optional
// fetch rather than a hard requirement.
func MaybeAdded[T any](since Tick) Filter { return maybeAddedFilter[T]{since: since} }

func (maybeAddedFilter[T]) access() []accessDescriptor {
	return []accessDescriptor{{kind: kindComponent, key: keyOf[T](), write: false, optional: true}}
}
func (f maybeAddedFilter[T]) match(w *World, index uint32) bool {
	h, ok := handleFor[T](w)
	if !ok || !h.storage.has(index) {
		return true
	}
	return h.storage.addedSince(index, f.since)
}

type maybeChangedFilter[T any] struct{ since Tick }

// MaybeChanged is MaybeAdded's Changed counterpart.
func MaybeChanged[T any](since Tick) Filter { return maybeChangedFilter[T]{since: since} }

func (maybeChangedFilter[T]) access() []accessDescriptor {
	return []accessDescriptor{{kind: kindComponent, key: keyOf[T](), write: false, optional: true}}
}
func (f maybeChangedFilter[T]) match(w *World, index uint32) bool {
	h, ok := handleFor[T](w)
	if !ok || !h.storage.has(index) {
		return true
	}
	return h.storage.changedSince(index, f.since)
}

type removedFilter[T any] struct{}

// Removed matches entities listed in the OnRemove[T] trigger buffer's
// current list, i.e. T removals recorded before the most recent
// SwapTriggers[T]. Requires EnableTriggers[T] to have been called;
// otherwise it never matches.
func Removed[T any]() Filter { return removedFilter[T]{} }

func (removedFilter[T]) access() []accessDescriptor {
	return []accessDescriptor{{kind: kindResource, key: keyOf[Triggers[OnRemove[T]]](), write: false, optional: true}}
}
func (removedFilter[T]) match(w *World, index uint32) bool {
	h, ok := resourceHandle[Triggers[OnRemove[T]]](w)
	if !ok {
		return false
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, e := range h.value.current {
		if e.Index() == index {
			return true
		}
	}
	return false
}

type orFilter struct{ a, b Filter }

// Or matches entities satisfying either a or b.
func Or(a, b Filter) Filter { return orFilter{a: a, b: b} }

func (f orFilter) access() []accessDescriptor {
	return append(append([]accessDescriptor(nil), f.a.access()...), f.b.access()...)
}
func (f orFilter) match(w *World, index uint32) bool {
	return f.a.match(w, index) || f.b.match(w, index)
}

type anyFilter struct{ filters []Filter }

// Any matches entities satisfying at least one of filters.
func Any(filters ...Filter) Filter { return anyFilter{filters: filters} }

func (f anyFilter) access() []accessDescriptor {
	var out []accessDescriptor
	for _, sub := range f.filters {
		out = append(out, sub.access()...)
	}
	return out
}
func (f anyFilter) match(w *World, index uint32) bool {
	for _, sub := range f.filters {
		if sub.match(w, index) {
			return true
		}
	}
	return false
}
