package ecs

// Hierarchy operations are library functions over World rather than World
// methods on an owning component, since parent/children are plain entity
// ids kept in central indices, never cyclic ownership.

// SetParent makes parent the parent of child, rewiring any previous
// parent's children list. Panics if child == parent (SelfParent, always a
// programmer error). Idempotent if child is already parented to parent.
// Propagates DISABLED/STATIC flags from parent to child.
func SetParent(w *World, child, parent Entity) {
	if child == parent {
		panicSelfParent(child)
	}

	w.flagsMu.Lock()
	if existing, ok := w.parent[child]; ok {
		if existing == parent {
			w.flagsMu.Unlock()
			return
		}
		removeChild(w.children, existing, child)
	}
	w.parent[child] = parent
	w.children[parent] = append(w.children[parent], child)
	parentFlags := w.flagAt(parent)
	w.propagateFlagsLocked(child, parentFlags&(FlagDisabled|FlagStatic))
	w.flagsMu.Unlock()
}

// RemoveParent detaches child from its parent, if any.
func RemoveParent(w *World, child Entity) {
	w.flagsMu.Lock()
	defer w.flagsMu.Unlock()
	if parent, ok := w.parent[child]; ok {
		removeChild(w.children, parent, child)
		delete(w.parent, child)
	}
}

// GetParent returns child's parent, if any.
func GetParent(w *World, child Entity) (Entity, bool) {
	w.flagsMu.RLock()
	defer w.flagsMu.RUnlock()
	p, ok := w.parent[child]
	return p, ok
}

// GetChildren returns parent's direct children. The returned slice is a
// copy; mutating it does not affect the hierarchy.
func GetChildren(w *World, parent Entity) []Entity {
	w.flagsMu.RLock()
	defer w.flagsMu.RUnlock()
	kids := w.children[parent]
	out := make([]Entity, len(kids))
	copy(out, kids)
	return out
}

func removeChild(children map[Entity][]Entity, parent, child Entity) {
	kids := children[parent]
	for i, c := range kids {
		if c == child {
			children[parent] = append(kids[:i], kids[i+1:]...)
			return
		}
	}
}

func (w *World) removeFromParentLinks(e Entity) {
	w.flagsMu.Lock()
	defer w.flagsMu.Unlock()
	if parent, ok := w.parent[e]; ok {
		removeChild(w.children, parent, e)
		delete(w.parent, e)
	}
	for _, c := range w.children[e] {
		delete(w.parent, c)
	}
	delete(w.children, e)
}

// DespawnRecursive despawns root and every descendant, depth-first and
// child-first, so no step ever looks up an already-despawned parent.
func DespawnRecursive(w *World, root Entity) {
	for _, child := range GetChildren(w, root) {
		DespawnRecursive(w, child)
	}
	w.Despawn(root)
}

// Disable sets FlagDisabled on e and every descendant.
func Disable(w *World, e Entity) { w.setFlagRecursive(e, FlagDisabled, true) }

// Enable clears FlagDisabled on e and every descendant.
func Enable(w *World, e Entity) { w.setFlagRecursive(e, FlagDisabled, false) }

// MarkStatic sets FlagStatic on e and every descendant.
func MarkStatic(w *World, e Entity) { w.setFlagRecursive(e, FlagStatic, true) }

// UnmarkStatic clears FlagStatic on e, preserving it on any descendant
// that was independently marked static. Only e's own bit is touched here;
// descendants keep whatever static bit they already carry.
func UnmarkStatic(w *World, e Entity) {
	w.flagsMu.Lock()
	defer w.flagsMu.Unlock()
	w.ensureFlagsSlotLocked(e.Index())
	w.flags[e.Index()] &^= FlagStatic
}

func (w *World) setFlagRecursive(e Entity, flag EntityFlags, set bool) {
	w.flagsMu.Lock()
	w.ensureFlagsSlotLocked(e.Index())
	if set {
		w.flags[e.Index()] |= flag
	} else {
		w.flags[e.Index()] &^= flag
	}
	kids := append([]Entity(nil), w.children[e]...)
	w.flagsMu.Unlock()

	for _, c := range kids {
		w.setFlagRecursive(c, flag, set)
	}
}

func (w *World) propagateFlagsLocked(e Entity, flags EntityFlags) {
	w.ensureFlagsSlotLocked(e.Index())
	w.flags[e.Index()] |= flags
	for _, c := range w.children[e] {
		w.propagateFlagsLocked(c, flags)
	}
}

func (w *World) ensureFlagsSlotLocked(index uint32) {
	for uint32(len(w.flags)) <= index {
		w.flags = append(w.flags, 0)
	}
}

func (w *World) flagAt(e Entity) EntityFlags {
	if int(e.Index()) >= len(w.flags) {
		return 0
	}
	return w.flags[e.Index()]
}

// entityFlagsByIndex returns the flags stored at index without requiring a
// full Entity (generation is irrelevant to flag lookup), for the query
// layer's per-slot visibility check.
func (w *World) entityFlagsByIndex(index uint32) EntityFlags {
	w.flagsMu.RLock()
	defer w.flagsMu.RUnlock()
	if int(index) >= len(w.flags) {
		return 0
	}
	return w.flags[index]
}

// EntityFlagsOf returns e's current flags (read-only snapshot).
func EntityFlagsOf(w *World, e Entity) EntityFlags {
	w.flagsMu.RLock()
	defer w.flagsMu.RUnlock()
	return w.flagAt(e)
}

// SetEntityFlags ORs flags onto e.
func SetEntityFlags(w *World, e Entity, flags EntityFlags) {
	w.flagsMu.Lock()
	defer w.flagsMu.Unlock()
	w.ensureFlagsSlotLocked(e.Index())
	w.flags[e.Index()] |= flags
}

// ClearEntityFlags clears flags on e.
func ClearEntityFlags(w *World, e Entity, flags EntityFlags) {
	w.flagsMu.Lock()
	defer w.flagsMu.Unlock()
	w.ensureFlagsSlotLocked(e.Index())
	w.flags[e.Index()] &^= flags
}
