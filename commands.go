package ecs

import "sync"

// Command is a deferred, boxed structural mutation, captured as a closure
// at push time.
type Command func(w *World)

// CommandBuffer is the deferred command queue every World owns. Systems
// may push concurrently; apply-time execution is strict push order with
// exclusive world access.
type CommandBuffer struct {
	mu    sync.Mutex
	queue []Command
	world *World
}

func newCommandBuffer(w *World) *CommandBuffer {
	return &CommandBuffer{world: w}
}

// Push enqueues a raw command closure.
func (b *CommandBuffer) Push(cmd Command) {
	b.mu.Lock()
	b.queue = append(b.queue, cmd)
	b.mu.Unlock()
}

func (b *CommandBuffer) drain() []Command {
	b.mu.Lock()
	defer b.mu.Unlock()
	drained := b.queue
	b.queue = nil
	return drained
}

// InitCommands returns the world's command buffer. Idempotent: the buffer
// is created once in NewWorld, so this just exposes it.
func (w *World) InitCommands() *CommandBuffer { return w.commands }

// ApplyCommands drains the buffer and applies each queued command in push
// order with exclusive world access. Structural errors surfaced by a
// command panic at apply time — they are bugs, not recoverable
// conditions, unlike the direct-access paths which return errors the
// caller can still proceed past.
func (w *World) ApplyCommands() {
	for _, cmd := range w.commands.drain() {
		cmd(w)
	}
}

// ---- bundles ----

// BundleOp applies one component to a freshly spawned or existing entity.
// A sequence of BundleOps gives bundle-style multi-component inserts
// without Go's lack of variadic generics forcing eight near-identical
// overloads: Comp[T] plus a variadic call site covers any arity.
type BundleOp func(w *World, e Entity) error

// Comp lifts a component value into a BundleOp.
func Comp[T any](value T) BundleOp {
	return func(w *World, e Entity) error { return Insert[T](w, e, value) }
}

// InsertBundle applies ops to e in declared order. This is atomic only in
// the sense that ops apply in declared order and each is individually
// observable by hooks as it lands; on any element's failure, elements
// already applied remain inserted and the first error is returned —
// there is no rollback.
func InsertBundle(w *World, e Entity, ops ...BundleOp) error {
	for _, op := range ops {
		if err := op(w, e); err != nil {
			return err
		}
	}
	return nil
}

// SpawnWith spawns e then applies ops via InsertBundle.
func SpawnWith(w *World, ops ...BundleOp) (Entity, error) {
	e := w.Spawn()
	if err := InsertBundle(w, e, ops...); err != nil {
		return e, err
	}
	return e, nil
}

// ---- deferred command helpers ----

// CommandsSpawn reserves a fresh entity immediately (so the caller can
// chain further deferred ops against it) and returns it; no components
// are attached until ApplyCommands runs any ops queued against it.
func CommandsSpawn(cb *CommandBuffer) Entity { return cb.world.Spawn() }

// CommandsSpawnWith reserves an entity immediately and defers applying
// ops to it at apply time.
func CommandsSpawnWith(cb *CommandBuffer, ops ...BundleOp) Entity {
	e := cb.world.Spawn()
	cb.Push(func(w *World) {
		if err := InsertBundle(w, e, ops...); err != nil {
			panic(err)
		}
	})
	return e
}

// CommandsInsert defers inserting value onto e.
func CommandsInsert[T any](cb *CommandBuffer, e Entity, value T) {
	cb.Push(func(w *World) {
		if err := Insert[T](w, e, value); err != nil {
			panic(err)
		}
	})
}

// CommandsInsertBundle defers applying ops to e.
func CommandsInsertBundle(cb *CommandBuffer, e Entity, ops ...BundleOp) {
	cb.Push(func(w *World) {
		if err := InsertBundle(w, e, ops...); err != nil {
			panic(err)
		}
	})
}

// CommandsRemove defers removing T from e.
func CommandsRemove[T any](cb *CommandBuffer, e Entity) {
	cb.Push(func(w *World) { Remove[T](w, e) })
}

// CommandsDespawn defers despawning e.
func CommandsDespawn(cb *CommandBuffer, e Entity) {
	cb.Push(func(w *World) { w.Despawn(e) })
}

// CommandsSetParent defers SetParent(child, parent).
func CommandsSetParent(cb *CommandBuffer, child, parent Entity) {
	cb.Push(func(w *World) { SetParent(w, child, parent) })
}

// CommandsRemoveParent defers RemoveParent(child).
func CommandsRemoveParent(cb *CommandBuffer, child Entity) {
	cb.Push(func(w *World) { RemoveParent(w, child) })
}

// CommandsDespawnRecursive defers DespawnRecursive(root).
func CommandsDespawnRecursive(cb *CommandBuffer, root Entity) {
	cb.Push(func(w *World) { DespawnRecursive(w, root) })
}

// SpawnBuilder accumulates BundleOps before committing a single deferred
// spawn command via its own Build() call.
type SpawnBuilder struct {
	cb  *CommandBuffer
	ops []BundleOp
}

// SpawnEntity starts a builder for a deferred spawn-with-bundle.
func (cb *CommandBuffer) SpawnEntity() *SpawnBuilder {
	return &SpawnBuilder{cb: cb}
}

// With queues one component to attach once Build is called.
func (sb *SpawnBuilder) With(op BundleOp) *SpawnBuilder {
	sb.ops = append(sb.ops, op)
	return sb
}

// WithBundle queues several components at once.
func (sb *SpawnBuilder) WithBundle(ops ...BundleOp) *SpawnBuilder {
	sb.ops = append(sb.ops, ops...)
	return sb
}

// Build reserves the entity immediately and defers attaching its
// accumulated components, returning the reserved entity.
func (sb *SpawnBuilder) Build() Entity {
	return CommandsSpawnWith(sb.cb, sb.ops...)
}
