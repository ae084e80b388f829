package ecs

import (
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// World owns the entity allocator, component storages, resources, the
// current tick, the deferred command buffer, and reactive state. It is
// the sole owner of entities, component data, and resources; all access
// during a frame is mediated by the per-storage and per-resource locks
// declared in this file plus the lock-acquisition protocol in access.go.
type World struct {
	id uuid.UUID

	mu                sync.RWMutex
	components        map[componentKey]erasedStorage
	registrations     map[componentKey]*componentRegistration
	registrationOrder []componentKey
	resources         map[componentKey]erasedResource

	allocator   *entityAllocator
	flagsMu     sync.RWMutex
	flags       []EntityFlags
	parent      map[Entity]Entity
	children    map[Entity][]Entity

	tickMu      sync.Mutex
	currentTick Tick

	commands *CommandBuffer

	observerMu    sync.Mutex
	observerQueue []func()

	log *zap.Logger
}

// NewWorld constructs an empty world. logger may be nil, in which case a
// no-op logger is used. The world is the only type in the module that
// takes a logger.
func NewWorld(logger *zap.Logger) *World {
	if logger == nil {
		logger = zap.NewNop()
	}
	w := &World{
		id:                uuid.New(),
		components:        make(map[componentKey]erasedStorage),
		registrations:     make(map[componentKey]*componentRegistration),
		resources:         make(map[componentKey]erasedResource),
		allocator:         newEntityAllocator(),
		flags:             make([]EntityFlags, 1, 256),
		parent:            make(map[Entity]Entity),
		children:           make(map[Entity][]Entity),
		log:               logger,
	}
	w.commands = newCommandBuffer(w)
	return w
}

// ID returns a process-unique identifier for this world instance, useful
// for tagging metrics/log lines when more than one world is alive (e.g. a
// server simulation world and an editor preview world).
func (w *World) ID() uuid.UUID { return w.id }

// ---- entity lifecycle ----

// Spawn allocates a fresh entity.
func (w *World) Spawn() Entity {
	e := w.allocator.spawn()
	w.ensureFlagsSlot(e.Index())
	return e
}

func (w *World) ensureFlagsSlot(index uint32) {
	w.flagsMu.Lock()
	defer w.flagsMu.Unlock()
	for uint32(len(w.flags)) <= index {
		w.flags = append(w.flags, 0)
	}
	w.flags[index] = 0
}

// Despawn removes all of e's components (firing on_remove hooks), clears
// its hierarchy links, and recycles its slot. Returns false if e was
// already dead.
func (w *World) Despawn(e Entity) bool {
	if !w.allocator.isAlive(e) {
		return false
	}

	w.mu.RLock()
	order := append([]componentKey(nil), w.registrationOrder...)
	regs := make(map[componentKey]*componentRegistration, len(order))
	for _, k := range order {
		regs[k] = w.registrations[k]
	}
	storages := make(map[componentKey]erasedStorage, len(w.components))
	for k, v := range w.components {
		storages[k] = v
	}
	w.mu.RUnlock()

	for _, k := range order {
		reg := regs[k]
		s, ok := storages[k]
		if !ok {
			continue
		}
		s.mutex().RLock()
		_, present := presentGeneric(s, e.Index())
		s.mutex().RUnlock()
		if !present {
			continue
		}
		if reg.hookOnRemove != nil {
			reg.hookOnRemove(w, e)
		}
		for _, obs := range reg.observersRemove {
			w.queueObserver(func() { obs(w, e) })
		}
		s.mutex().Lock()
		s.removeEntity(e.Index())
		s.mutex().Unlock()
	}

	w.removeFromParentLinks(e)
	return w.allocator.despawn(e)
}

// IsAlive reports whether e is live (matching both index and generation).
func (w *World) IsAlive(e Entity) bool { return w.allocator.isAlive(e) }

// EntityCount returns the number of live entities.
func (w *World) EntityCount() int { return w.allocator.count() }

// IterEntities returns all live entities in ascending index order.
func (w *World) IterEntities() []Entity { return w.allocator.entities() }

// ---- ticks ----

// CurrentTick returns the world's current frame tick.
func (w *World) CurrentTick() Tick {
	w.tickMu.Lock()
	defer w.tickMu.Unlock()
	return w.currentTick
}

// AdvanceTick bumps the current tick by one. Saturates at the maximum
// uint64 value rather than wrapping or panicking.
func (w *World) AdvanceTick() Tick {
	w.tickMu.Lock()
	defer w.tickMu.Unlock()
	if w.currentTick != Tick(^uint64(0)) {
		w.currentTick++
	}
	return w.currentTick
}

// ---- components ----

// insertComponent is the shared implementation behind Insert and
// insert_bundle element application. It fires on_add (first insertion
// only), on_insert (every insertion), and on_replace (before an overwrite,
// with the old value still readable via the hook's own Get call), stamps
// added_tick on first insertion and changed_tick always, and recursively
// satisfies the type's required-component list with default constructors.
func insertComponent[T any](w *World, e Entity, value T) error {
	if !w.allocator.isAlive(e) {
		return errEntityDead(e)
	}
	reg, ok := registrationFor[T](w)
	if !ok {
		return errComponentNotRegistered(keyOf[T]().String())
	}
	h, _ := handleFor[T](w)

	h.mu.Lock()
	_, existed := h.storage.get(e.Index())
	if existed && reg.hookOnReplace != nil {
		// on_replace must observe the old value still in place.
		h.mu.Unlock()
		reg.hookOnReplace(w, e)
		h.mu.Lock()
	}
	tick := w.CurrentTick()
	firstInsert := h.storage.insertWithTick(e.Index(), value, tick)
	h.mu.Unlock()

	for _, req := range reg.requires {
		if err := w.ensureRequired(req, e); err != nil {
			return err
		}
	}

	if firstInsert && reg.hookOnAdd != nil {
		reg.hookOnAdd(w, e)
	}
	if reg.hookOnInsert != nil {
		reg.hookOnInsert(w, e)
	}
	if firstInsert {
		for _, obs := range reg.observersAdd {
			w.queueObserver(func() { obs(w, e) })
		}
		if reg.pushTriggerAdd != nil {
			reg.pushTriggerAdd(w, e)
		}
	}
	for _, obs := range reg.observersInsert {
		w.queueObserver(func() { obs(w, e) })
	}
	if reg.pushTriggerInsert != nil {
		reg.pushTriggerInsert(w, e)
	}
	return nil
}

func (w *World) ensureRequired(key componentKey, e Entity) error {
	w.mu.RLock()
	reg, ok := w.registrations[key]
	w.mu.RUnlock()
	if !ok || !reg.hasDefault {
		return nil
	}
	h := w.components[key]
	h.mutex().RLock()
	_, present := presentGeneric(h, e.Index())
	h.mutex().RUnlock()
	if present {
		return nil
	}
	return reg.insertDefault(w, e)
}

// presentGeneric is a tiny reflection-free presence check implemented via
// the erasedStorage's removeEntity-adjacent contains hook; kept minimal
// since the only type-erased query the world needs here is "does entity
// have a dense slot".
func presentGeneric(h erasedStorage, index uint32) (struct{}, bool) {
	type contains interface{ Contains(uint32) bool }
	if c, ok := h.(contains); ok {
		return struct{}{}, c.Contains(index)
	}
	return struct{}{}, false
}

// Contains lets typedStorageHandle satisfy the contains helper above.
func (h *typedStorageHandle[T]) Contains(index uint32) bool { return h.storage.has(index) }

// Insert attaches c to e. Fails with ComponentNotRegistered if T was never
// registered, or EntityDead if e is not alive.
func Insert[T any](w *World, e Entity, value T) error {
	return insertComponent(w, e, value)
}

// Get returns a copy of e's T component. Returning a value rather than a
// pointer sidesteps the aliasing hazard of a sparse set's dense array
// moving under swap-remove; mutation goes through GetMut.
//
// Get is direct access, not mediated by a declared Access set: it takes
// T's storage lock itself rather than relying on a caller-held Locker
// acquisition. It tries the lock rather than waiting for it, so a
// conflicting borrow already held on T's storage — most dangerously a
// reentrant one on the same goroutine, which a plain RLock/Lock would
// deadlock on — panics immediately instead of blocking.
func Get[T any](w *World, e Entity) (T, bool) {
	var zero T
	h, ok := handleFor[T](w)
	if !ok {
		return zero, false
	}
	if !h.mu.TryRLock() {
		panicBorrowConflict(keyOf[T]().String())
	}
	defer h.mu.RUnlock()
	v, present := h.storage.get(e.Index())
	if !present {
		return zero, false
	}
	return *v, true
}

// GetMut applies fn to e's T component under T's write lock, stamping
// changed_tick to the current tick. Reports whether T was present. Like
// Get, it tries the write lock rather than blocking on it and panics with
// BorrowConflict if T's storage is already borrowed.
func GetMut[T any](w *World, e Entity) (setter func(fn func(*T)) bool) {
	h, ok := handleFor[T](w)
	if !ok {
		return func(func(*T)) bool { return false }
	}
	return func(fn func(*T)) bool {
		if !h.mu.TryLock() {
			panicBorrowConflict(keyOf[T]().String())
		}
		defer h.mu.Unlock()
		v, present := h.storage.getMutTracked(e.Index(), w.CurrentTick())
		if !present {
			return false
		}
		fn(v)
		return true
	}
}

// Remove detaches e's T component, firing on_remove before the value
// leaves storage, and returns it.
func Remove[T any](w *World, e Entity) (T, bool) {
	var zero T
	reg, ok := registrationFor[T](w)
	if !ok {
		return zero, false
	}
	h, _ := handleFor[T](w)

	h.mu.RLock()
	present := h.storage.has(e.Index())
	h.mu.RUnlock()
	if !present {
		return zero, false
	}
	if reg.hookOnRemove != nil {
		reg.hookOnRemove(w, e)
	}

	h.mu.Lock()
	v, present := h.storage.remove(e.Index())
	h.mu.Unlock()
	if !present {
		return zero, false
	}

	for _, obs := range reg.observersRemove {
		w.queueObserver(func() { obs(w, e) })
	}
	if reg.pushTriggerRemove != nil {
		reg.pushTriggerRemove(w, e)
	}
	return v, true
}

// HasComponent reports whether e has T, without registering or panicking
// if T is unregistered.
func HasComponent[T any](w *World) func(Entity) bool {
	h, ok := handleFor[T](w)
	if !ok {
		return func(Entity) bool { return false }
	}
	return func(e Entity) bool {
		h.mu.RLock()
		defer h.mu.RUnlock()
		return h.storage.has(e.Index())
	}
}
