package ecs

// ComponentOptions configures registration for component type T: an
// optional default constructor used to satisfy required-component lists,
// an optional clone hook used by prefab extraction, and optional
// entity-reference collect/remap hooks used by the prefab snapshot
// contract.
type ComponentOptions[T any] struct {
	DefaultCtor     func() T
	CloneEnabled    bool
	CollectEntities func(*T) []Entity
	RemapEntities   func(*T, map[Entity]Entity)
	// Requires lists component types that must be present whenever T is
	// present; missing ones are inserted via their own DefaultCtor,
	// recursively, whenever T is inserted.
	Requires []componentKey
}

// componentRegistration is the type-erased record the world keeps per
// registered component type, capturing type-specific operations as
// function pointers at registration time.
type componentRegistration struct {
	key             componentKey
	name            string
	hasDefault      bool
	insertDefault   func(w *World, e Entity) error
	cloneEnabled    bool
	cloneInto       func(w *World, src, dst Entity) error
	captureValue    func(w *World, e Entity) (any, bool)
	restoreValue    func(w *World, e Entity, value any) error
	collectEntities func(w *World, e Entity) []Entity
	remapEntities   func(w *World, e Entity, remap map[Entity]Entity)
	remapValue      func(value any, remap map[Entity]Entity) any
	requires        []componentKey

	hookOnAdd     func(w *World, e Entity)
	hookOnInsert  func(w *World, e Entity)
	hookOnReplace func(w *World, e Entity)
	hookOnRemove  func(w *World, e Entity)

	observersAdd    []func(w *World, e Entity)
	observersInsert []func(w *World, e Entity)
	observersRemove []func(w *World, e Entity)

	pushTriggerAdd    func(w *World, e Entity)
	pushTriggerInsert func(w *World, e Entity)
	pushTriggerRemove func(w *World, e Entity)
}

// RegisterComponent registers T with the world. Idempotent: a second
// registration of the same type is a silent no-op.
func RegisterComponent[T any](w *World, opts ComponentOptions[T]) {
	key := keyOf[T]()

	w.mu.Lock()
	defer w.mu.Unlock()

	if _, exists := w.components[key]; exists {
		return
	}

	handle := &typedStorageHandle[T]{storage: newComponentStorage[T](), typeNm: key.String()}
	w.components[key] = handle

	reg := &componentRegistration{
		key:      key,
		name:     key.String(),
		requires: append([]componentKey(nil), opts.Requires...),
	}

	if opts.DefaultCtor != nil {
		reg.hasDefault = true
		reg.insertDefault = func(w *World, e Entity) error {
			return insertComponent(w, e, opts.DefaultCtor())
		}
	}

	if opts.CloneEnabled {
		reg.cloneEnabled = true
		reg.cloneInto = func(w *World, src, dst Entity) error {
			h := w.components[key].(*typedStorageHandle[T])
			h.mu.RLock()
			v, ok := h.storage.get(src.Index())
			var cp T
			if ok {
				cp = *v
			}
			h.mu.RUnlock()
			if !ok {
				return nil
			}
			return insertComponent(w, dst, cp)
		}
		reg.captureValue = func(w *World, e Entity) (any, bool) {
			h := w.components[key].(*typedStorageHandle[T])
			h.mu.RLock()
			defer h.mu.RUnlock()
			v, ok := h.storage.get(e.Index())
			if !ok {
				return nil, false
			}
			cp := *v
			return cp, true
		}
		reg.restoreValue = func(w *World, e Entity, value any) error {
			return insertComponent(w, e, value.(T))
		}
	}

	if opts.CollectEntities != nil {
		reg.collectEntities = func(w *World, e Entity) []Entity {
			h := w.components[key].(*typedStorageHandle[T])
			h.mu.RLock()
			defer h.mu.RUnlock()
			v, ok := h.storage.get(e.Index())
			if !ok {
				return nil
			}
			return opts.CollectEntities(v)
		}
	}

	if opts.RemapEntities != nil {
		reg.remapEntities = func(w *World, e Entity, remap map[Entity]Entity) {
			h := w.components[key].(*typedStorageHandle[T])
			h.mu.Lock()
			defer h.mu.Unlock()
			v, ok := h.storage.get(e.Index())
			if ok {
				opts.RemapEntities(v, remap)
			}
		}
		reg.remapValue = func(value any, remap map[Entity]Entity) any {
			cp := value.(T)
			opts.RemapEntities(&cp, remap)
			return cp
		}
	}

	w.registrations[key] = reg
	w.registrationOrder = append(w.registrationOrder, key)
}

// registrationFor is a helper used internally wherever a type-erased
// registration lookup is needed. Returns (nil, false) if T was never
// registered — callers translate that into either a panic (direct
// accessors) or a recoverable error (insert/insert_bundle), matching the
// split between programmer errors and recoverable ones.
func registrationFor[T any](w *World) (*componentRegistration, bool) {
	key := keyOf[T]()
	w.mu.RLock()
	defer w.mu.RUnlock()
	reg, ok := w.registrations[key]
	return reg, ok
}

func handleFor[T any](w *World) (*typedStorageHandle[T], bool) {
	key := keyOf[T]()
	w.mu.RLock()
	defer w.mu.RUnlock()
	h, ok := w.components[key]
	if !ok {
		return nil, false
	}
	return h.(*typedStorageHandle[T]), true
}
