package ecs

// Prefab is the opaque, portable snapshot ExtractPrefab produces: a
// self-contained subtree of detached component values and hierarchy
// links, independent of the entities it was captured from, ready to be
// re-materialized with fresh ids via Instantiate — in the same world, a
// different one, or after the originals have despawned.
type Prefab struct {
	nodes []prefabNode
}

type prefabNode struct {
	parent     int // index into nodes, or -1 for the subtree root
	source     Entity
	components []prefabComponent
}

type prefabComponent struct {
	key   componentKey
	value any
}

// ExtractPrefab walks root and every descendant, capturing a detached copy
// of every clone-enabled component each carries. Components without
// CloneEnabled are silently skipped — they opt in via their registration
// options.
func ExtractPrefab(w *World, root Entity) *Prefab {
	p := &Prefab{}
	var walk func(e Entity, parentIdx int)
	walk = func(e Entity, parentIdx int) {
		w.mu.RLock()
		order := append([]componentKey(nil), w.registrationOrder...)
		regs := make(map[componentKey]*componentRegistration, len(order))
		for _, k := range order {
			regs[k] = w.registrations[k]
		}
		w.mu.RUnlock()

		node := prefabNode{parent: parentIdx, source: e}
		for _, k := range order {
			reg := regs[k]
			if !reg.cloneEnabled {
				continue
			}
			v, ok := reg.captureValue(w, e)
			if !ok {
				continue
			}
			node.components = append(node.components, prefabComponent{key: k, value: v})
		}
		p.nodes = append(p.nodes, node)
		selfIdx := len(p.nodes) - 1

		for _, child := range GetChildren(w, e) {
			walk(child, selfIdx)
		}
	}
	walk(root, -1)
	return p
}

// Instantiate materializes fresh entities for every node in p, preserving
// the captured hierarchy and remapping any internal entity references
// (via each component's RemapEntities hook) to the freshly spawned ids.
// Returns the new root entity.
func Instantiate(w *World, p *Prefab) Entity {
	newEntities := make([]Entity, len(p.nodes))
	remap := make(map[Entity]Entity, len(p.nodes))

	for i, node := range p.nodes {
		e := w.Spawn()
		newEntities[i] = e
		remap[node.source] = e
	}

	for i, node := range p.nodes {
		if node.parent >= 0 {
			SetParent(w, newEntities[i], newEntities[node.parent])
		}
	}

	w.mu.RLock()
	regs := make(map[componentKey]*componentRegistration, len(w.registrations))
	for k, v := range w.registrations {
		regs[k] = v
	}
	w.mu.RUnlock()

	for i, node := range p.nodes {
		dst := newEntities[i]
		for _, comp := range node.components {
			reg, ok := regs[comp.key]
			if !ok || reg.restoreValue == nil {
				continue
			}
			value := comp.value
			if reg.remapValue != nil {
				value = reg.remapValue(value, remap)
			}
			if err := reg.restoreValue(w, dst, value); err != nil {
				panic(err)
			}
		}
	}

	return newEntities[0]
}
