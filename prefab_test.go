package ecs

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Owner references another entity in the same subtree, exercising the
// CollectEntities/RemapEntities hooks a prefab must rewrite on instantiate.
type Owner struct{ Target Entity }

func registerPrefabFixtures(w *World) {
	RegisterComponent[Position](w, ComponentOptions[Position]{CloneEnabled: true})
	RegisterComponent[Health](w, ComponentOptions[Health]{CloneEnabled: true})
	RegisterComponent[Owner](w, ComponentOptions[Owner]{
		CloneEnabled:    true,
		CollectEntities: func(o *Owner) []Entity { return []Entity{o.Target} },
		RemapEntities: func(o *Owner, remap map[Entity]Entity) {
			if mapped, ok := remap[o.Target]; ok {
				o.Target = mapped
			}
		},
	})
}

func Test_Prefab_RoundTripPreservesComponentValues(t *testing.T) {
	w := NewWorld(nil)
	registerPrefabFixtures(w)

	root := w.Spawn()
	child := w.Spawn()
	require.NoError(t, Insert(w, root, Position{X: 1, Y: 2}))
	require.NoError(t, Insert(w, child, Health{HP: 7}))
	SetParent(w, child, root)

	p := ExtractPrefab(w, root)
	newRoot := Instantiate(w, p)

	assert.NotEqual(t, root, newRoot)
	gotPos, ok := Get[Position](w, newRoot)
	require.True(t, ok)
	if diff := cmp.Diff(Position{X: 1, Y: 2}, gotPos); diff != "" {
		t.Errorf("instantiated Position mismatch (-want +got):\n%s", diff)
	}

	children := GetChildren(w, newRoot)
	require.Len(t, children, 1)
	gotHealth, ok := Get[Health](w, children[0])
	require.True(t, ok)
	if diff := cmp.Diff(Health{HP: 7}, gotHealth); diff != "" {
		t.Errorf("instantiated Health mismatch (-want +got):\n%s", diff)
	}
}

func Test_Prefab_InstantiateRemapsInternalEntityReferences(t *testing.T) {
	w := NewWorld(nil)
	registerPrefabFixtures(w)

	root := w.Spawn()
	child := w.Spawn()
	require.NoError(t, Insert(w, root, Position{}))
	require.NoError(t, Insert(w, child, Owner{Target: root}))
	SetParent(w, child, root)

	p := ExtractPrefab(w, root)
	newRoot := Instantiate(w, p)
	newChild := GetChildren(w, newRoot)[0]

	owner, ok := Get[Owner](w, newChild)
	require.True(t, ok)
	assert.Equal(t, newRoot, owner.Target, "Owner.Target must be remapped to the new root, not the original")
	assert.NotEqual(t, root, owner.Target)
}

func Test_Prefab_IsIndependentOfOriginalEntities(t *testing.T) {
	w := NewWorld(nil)
	registerPrefabFixtures(w)

	root := w.Spawn()
	require.NoError(t, Insert(w, root, Position{X: 9}))

	p := ExtractPrefab(w, root)
	w.Despawn(root)

	newRoot := Instantiate(w, p)

	assert.True(t, w.IsAlive(newRoot))
	got, ok := Get[Position](w, newRoot)
	require.True(t, ok)
	assert.Equal(t, 9.0, got.X)
}

func Test_Prefab_SkipsComponentsWithoutCloneEnabled(t *testing.T) {
	w := NewWorld(nil)
	RegisterComponent[Position](w, ComponentOptions[Position]{CloneEnabled: true})
	RegisterComponent[Health](w, ComponentOptions[Health]{}) // CloneEnabled left false
	root := w.Spawn()
	require.NoError(t, Insert(w, root, Position{X: 1}))
	require.NoError(t, Insert(w, root, Health{HP: 3}))

	p := ExtractPrefab(w, root)
	newRoot := Instantiate(w, p)

	_, hasPos := Get[Position](w, newRoot)
	_, hasHealth := Get[Health](w, newRoot)
	assert.True(t, hasPos)
	assert.False(t, hasHealth, "components without CloneEnabled must not be carried into the snapshot")
}
