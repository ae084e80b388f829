package ecs

import (
	"fmt"
	"sort"
	"sync"

	"github.com/cespare/xxhash/v2"
)

// Access declares the component storages and resources a system parameter
// touches, so Lock can compute a deadlock-free acquisition order across an
// arbitrary set of systems running concurrently, regardless of the order
// in which each system declared its own access.
type Access interface {
	descriptors() []accessDescriptor
}

type resourceKind uint8

const (
	kindComponent resourceKind = iota
	kindResource
)

type accessDescriptor struct {
	kind     resourceKind
	key      componentKey
	write    bool
	optional bool
}

func (d accessDescriptor) sortKey() uint64 {
	tag := "c:"
	if d.kind == kindResource {
		tag = "r:"
	}
	return xxhash.Sum64String(tag + d.key.String())
}

// ---- component access markers ----

// Read grants shared read access to T's component storage.
type Read[T any] struct{}

func (Read[T]) descriptors() []accessDescriptor {
	return []accessDescriptor{{kind: kindComponent, key: keyOf[T](), write: false}}
}

// Write grants exclusive write access to T's component storage.
type Write[T any] struct{}

func (Write[T]) descriptors() []accessDescriptor {
	return []accessDescriptor{{kind: kindComponent, key: keyOf[T](), write: true}}
}

// OptionalRead behaves like Read but does not require T to be registered:
// Lock takes no lock for it when T has no storage.
type OptionalRead[T any] struct{}

func (OptionalRead[T]) descriptors() []accessDescriptor {
	return []accessDescriptor{{kind: kindComponent, key: keyOf[T](), write: false, optional: true}}
}

// OptionalWrite behaves like Write but does not require T to be
// registered, in the same way as OptionalRead.
type OptionalWrite[T any] struct{}

func (OptionalWrite[T]) descriptors() []accessDescriptor {
	return []accessDescriptor{{kind: kindComponent, key: keyOf[T](), write: true, optional: true}}
}

// ReadAll grants shared read access to T for whole-storage iteration
// (query shapes that never filter by any other component).
type ReadAll[T any] struct{}

func (ReadAll[T]) descriptors() []accessDescriptor {
	return []accessDescriptor{{kind: kindComponent, key: keyOf[T](), write: false}}
}

// ---- resource access markers ----

// Res grants shared read access to resource T.
type Res[T any] struct{}

func (Res[T]) descriptors() []accessDescriptor {
	return []accessDescriptor{{kind: kindResource, key: keyOf[T](), write: false}}
}

// ResMut grants exclusive write access to resource T.
type ResMut[T any] struct{}

func (ResMut[T]) descriptors() []accessDescriptor {
	return []accessDescriptor{{kind: kindResource, key: keyOf[T](), write: true}}
}

// OptionalRes behaves like Res but does not require T to be installed.
type OptionalRes[T any] struct{}

func (OptionalRes[T]) descriptors() []accessDescriptor {
	return []accessDescriptor{{kind: kindResource, key: keyOf[T](), write: false, optional: true}}
}

// OptionalResMut behaves like ResMut but does not require T to be
// installed.
type OptionalResMut[T any] struct{}

func (OptionalResMut[T]) descriptors() []accessDescriptor {
	return []accessDescriptor{{kind: kindResource, key: keyOf[T](), write: true, optional: true}}
}

// ---- lock acquisition ----

// Locker accumulates the Access set a call site needs and executes a
// closure once every descriptor's lock is held, releasing them afterward
// regardless of panic.
type Locker struct {
	w      *World
	access []Access
}

// Lock starts building an acquisition for the given access markers.
func Lock(w *World, access ...Access) *Locker {
	return &Locker{w: w, access: access}
}

type heldLock struct {
	mu    *sync.RWMutex
	write bool
}

// Execute resolves every descriptor to its backing mutex, sorts the
// deduplicated set by a hash of (kind, type), acquires in that order, runs
// fn, and releases in reverse order. Sorting by a hash of the descriptor
// rather than by declaration order is what makes the scheme deadlock-free:
// any two call sites touching an overlapping access set agree on a total
// order regardless of how they wrote their own access lists.
func (l *Locker) Execute(fn func()) {
	locks := l.resolve()
	for _, hl := range locks {
		if hl.write {
			hl.mu.Lock()
		} else {
			hl.mu.RLock()
		}
	}
	defer func() {
		for i := len(locks) - 1; i >= 0; i-- {
			hl := locks[i]
			if hl.write {
				hl.mu.Unlock()
			} else {
				hl.mu.RUnlock()
			}
		}
	}()
	fn()
}

func (l *Locker) resolve() []heldLock {
	merged := make(map[uint64]*accessDescriptor)
	order := make([]uint64, 0)

	for _, a := range l.access {
		for _, d := range a.descriptors() {
			d := d
			k := d.sortKey()
			if existing, ok := merged[k]; ok {
				if d.write {
					existing.write = true
				}
				if !d.optional {
					existing.optional = false
				}
				continue
			}
			merged[k] = &d
			order = append(order, k)
		}
	}

	sort.Slice(order, func(i, j int) bool { return order[i] < order[j] })

	locks := make([]heldLock, 0, len(order))
	for _, k := range order {
		d := merged[k]
		mu, ok := l.w.mutexFor(*d)
		if !ok {
			if d.optional {
				continue
			}
			if d.kind == kindResource {
				panic("ecs: resource not found: " + d.key.String())
			}
			panic("ecs: component not registered: " + d.key.String())
		}
		locks = append(locks, heldLock{mu: mu, write: d.write})
	}
	return locks
}

// mutexFor looks up the backing RWMutex for a descriptor. Missing
// components/resources resolve to (nil, false); Locker.resolve skips them
// for Optional* markers and panics for every other marker, matching the
// panic Get/Resource themselves raise on the same condition.
func (w *World) mutexFor(d accessDescriptor) (*sync.RWMutex, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	switch d.kind {
	case kindComponent:
		h, ok := w.components[d.key]
		if !ok {
			return nil, false
		}
		return h.mutex(), true
	case kindResource:
		h, ok := w.resources[d.key]
		if !ok {
			return nil, false
		}
		return h.mutex(), true
	default:
		panic(fmt.Sprintf("ecs: unknown access kind %d", d.kind))
	}
}
