package ecs

import (
	"runtime"
	"sync"
)

// Query iterates entities holding the primary component T, narrowed by any
// number of Filters, under the deadlock-free locking protocol in
// access.go. T itself is always fetched; extra components accessed only
// through a filter (With/Without) are locked but never handed to the
// callback.
type Query[T any] struct {
	w             *World
	filters       []Filter
	includeStatic bool
}

// NewQuery builds a query over T narrowed by filters. By default it honors
// the Read<T>/Write<T> visibility rule: disabled or static entities (or
// descendants of one) never visit. Call IncludeStatic for the ReadAll<T>
// rule instead (disabled still skipped, static included).
func NewQuery[T any](w *World, filters ...Filter) *Query[T] {
	return &Query[T]{w: w, filters: filters}
}

// IncludeStatic switches this query to ReadAll<T>'s visibility rule: static
// entities are visited, only DISABLED is still honored. Returns the same
// query for chaining.
func (q *Query[T]) IncludeStatic() *Query[T] {
	q.includeStatic = true
	return q
}

func (q *Query[T]) accessors(write bool) []Access {
	access := make([]Access, 0, len(q.filters)+1)
	if write {
		access = append(access, Write[T]{})
	} else {
		access = append(access, Read[T]{})
	}
	access = append(access, filterAccess(q.filters))
	return access
}

// filterAccess adapts a []Filter's combined descriptors into a single
// Access value Locker.resolve can consume alongside the primary marker.
func filterAccess(filters []Filter) Access { return filterAccessor{filters: filters} }

type filterAccessor struct{ filters []Filter }

func (f filterAccessor) descriptors() []accessDescriptor {
	var out []accessDescriptor
	for _, flt := range f.filters {
		out = append(out, flt.access()...)
	}
	return out
}

func (q *Query[T]) matches(index uint32) bool {
	flags := q.w.entityFlagsByIndex(index)
	if flags&FlagDisabled != 0 {
		return false
	}
	if !q.includeStatic && flags&FlagStatic != 0 {
		return false
	}
	for _, f := range q.filters {
		if !f.match(q.w, index) {
			return false
		}
	}
	return true
}

// ForEach visits every matching entity's T by value, read-only, under a
// shared lock held for the whole call.
func (q *Query[T]) ForEach(fn func(e Entity, value T)) {
	Lock(q.w, q.accessors(false)...).Execute(func() {
		h, ok := handleFor[T](q.w)
		if !ok {
			return
		}
		h.storage.forEach(func(index uint32, value *T) {
			if q.matches(index) {
				fn(newEntity(index, q.w.allocator.generationOf(index)), *value)
			}
		})
	})
}

// ForEachMut visits every matching entity's T by pointer, under an
// exclusive lock, stamping changed_tick on every visited slot.
func (q *Query[T]) ForEachMut(fn func(e Entity, value *T)) {
	Lock(q.w, q.accessors(true)...).Execute(func() {
		h, ok := handleFor[T](q.w)
		if !ok {
			return
		}
		tick := q.w.CurrentTick()
		h.storage.forEach(func(index uint32, value *T) {
			if q.matches(index) {
				h.storage.getMutTracked(index, tick)
				fn(newEntity(index, q.w.allocator.generationOf(index)), value)
			}
		})
	})
}

// ParForEach is ForEach's parallel counterpart: the matching dense range is
// split into contiguous chunks, one goroutine per chunk (bounded by
// GOMAXPROCS), each reading its own disjoint slice of the dense array. Safe
// because dense-array slots are never aliased across chunks and the shared
// lock is already held for the whole call.
func (q *Query[T]) ParForEach(fn func(e Entity, value T)) {
	Lock(q.w, q.accessors(false)...).Execute(func() {
		h, ok := handleFor[T](q.w)
		if !ok {
			return
		}
		n := h.storage.len()
		if n == 0 {
			return
		}
		workers := runtime.GOMAXPROCS(0)
		if workers > n {
			workers = n
		}
		chunk := (n + workers - 1) / workers

		var wg sync.WaitGroup
		for start := 0; start < n; start += chunk {
			end := start + chunk
			if end > n {
				end = n
			}
			wg.Add(1)
			go func(lo, hi int) {
				defer wg.Done()
				for i := lo; i < hi; i++ {
					index := h.storage.entities[i]
					if q.matches(index) {
						fn(newEntity(index, q.w.allocator.generationOf(index)), h.storage.dense[i])
					}
				}
			}(start, end)
		}
		wg.Wait()
	})
}

// Count returns the number of entities currently matching the query.
func (q *Query[T]) Count() int {
	count := 0
	Lock(q.w, q.accessors(false)...).Execute(func() {
		h, ok := handleFor[T](q.w)
		if !ok {
			return
		}
		h.storage.forEach(func(index uint32, _ *T) {
			if q.matches(index) {
				count++
			}
		})
	})
	return count
}

// Execute runs fn with every descriptor in access locked in deadlock-free
// order, for system bodies that don't fit the single-primary-component
// Query shape (e.g. resource-only systems, or systems reading several
// unrelated component types directly via Get).
func Execute(w *World, access []Access, fn func()) {
	Lock(w, access...).Execute(fn)
}
