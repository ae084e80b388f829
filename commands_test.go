package ecs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_Commands_SpawnWithAppliesOnlyAfterApply(t *testing.T) {
	w := NewWorld(nil)
	RegisterComponent[Position](w, ComponentOptions[Position]{})
	cb := w.InitCommands()

	e := CommandsSpawnWith(cb, Comp(Position{X: 5}))

	assert.True(t, w.IsAlive(e), "spawn itself is immediate, only component attach is deferred")
	_, present := Get[Position](w, e)
	assert.False(t, present)

	w.ApplyCommands()

	got, present := Get[Position](w, e)
	assert.True(t, present)
	assert.Equal(t, Position{X: 5}, got)
}

func Test_Commands_ApplyRunsInPushOrder(t *testing.T) {
	w := NewWorld(nil)
	cb := w.InitCommands()
	var order []int

	for i := 0; i < 5; i++ {
		i := i
		cb.Push(func(w *World) { order = append(order, i) })
	}
	w.ApplyCommands()

	assert.Equal(t, []int{0, 1, 2, 3, 4}, order)
}

func Test_Commands_InsertBundleStopsAtFirstErrorKeepingEarlierInserts(t *testing.T) {
	w := NewWorld(nil)
	RegisterComponent[Position](w, ComponentOptions[Position]{})
	// Health deliberately left unregistered to force a bundle element error.
	e := w.Spawn()

	err := InsertBundle(w, e, Comp(Position{X: 1}), Comp(Health{HP: 10}))

	require.Error(t, err)
	got, ok := Get[Position](w, e)
	assert.True(t, ok)
	assert.Equal(t, Position{X: 1}, got)
}

func Test_Commands_SpawnBuilderChainsMultipleComponents(t *testing.T) {
	w := NewWorld(nil)
	RegisterComponent[Position](w, ComponentOptions[Position]{})
	RegisterComponent[Health](w, ComponentOptions[Health]{})
	cb := w.InitCommands()

	e := cb.SpawnEntity().
		With(Comp(Position{X: 1})).
		With(Comp(Health{HP: 5})).
		Build()
	w.ApplyCommands()

	pos, ok := Get[Position](w, e)
	assert.True(t, ok)
	assert.Equal(t, Position{X: 1}, pos)
	health, ok := Get[Health](w, e)
	assert.True(t, ok)
	assert.Equal(t, Health{HP: 5}, health)
}

func Test_Commands_DespawnRecursiveDeferred(t *testing.T) {
	w := NewWorld(nil)
	cb := w.InitCommands()
	root := w.Spawn()
	child := w.Spawn()
	SetParent(w, child, root)

	CommandsDespawnRecursive(cb, root)
	assert.True(t, w.IsAlive(root))

	w.ApplyCommands()
	assert.False(t, w.IsAlive(root))
	assert.False(t, w.IsAlive(child))
}
