package ecs

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_Query_ForEachVisitsMatchingEntities(t *testing.T) {
	w := NewWorld(nil)
	RegisterComponent[Position](w, ComponentOptions[Position]{})
	e1 := w.Spawn()
	e2 := w.Spawn()
	require.NoError(t, Insert(w, e1, Position{X: 1}))
	require.NoError(t, Insert(w, e2, Position{X: 2}))

	var xs []float64
	NewQuery[Position](w).ForEach(func(e Entity, p Position) { xs = append(xs, p.X) })

	sort.Float64s(xs)
	assert.Equal(t, []float64{1, 2}, xs)
}

func Test_Query_WithFilterExcludesEntitiesLackingComponent(t *testing.T) {
	w := NewWorld(nil)
	RegisterComponent[Position](w, ComponentOptions[Position]{})
	RegisterComponent[Velocity](w, ComponentOptions[Velocity]{})
	moving := w.Spawn()
	still := w.Spawn()
	require.NoError(t, Insert(w, moving, Position{X: 1}))
	require.NoError(t, Insert(w, moving, Velocity{DX: 1}))
	require.NoError(t, Insert(w, still, Position{X: 2}))

	var visited []Entity
	NewQuery[Position](w, With[Velocity]()).ForEach(func(e Entity, p Position) {
		visited = append(visited, e)
	})

	assert.Equal(t, []Entity{moving}, visited)
}

func Test_Query_WithoutFilterExcludesEntitiesHavingComponent(t *testing.T) {
	w := NewWorld(nil)
	RegisterComponent[Position](w, ComponentOptions[Position]{})
	RegisterComponent[Velocity](w, ComponentOptions[Velocity]{})
	moving := w.Spawn()
	still := w.Spawn()
	require.NoError(t, Insert(w, moving, Position{X: 1}))
	require.NoError(t, Insert(w, moving, Velocity{DX: 1}))
	require.NoError(t, Insert(w, still, Position{X: 2}))

	var visited []Entity
	NewQuery[Position](w, Without[Velocity]()).ForEach(func(e Entity, p Position) {
		visited = append(visited, e)
	})

	assert.Equal(t, []Entity{still}, visited)
}

func Test_Query_ForEachMutStampsChangedTick(t *testing.T) {
	w := NewWorld(nil)
	RegisterComponent[Position](w, ComponentOptions[Position]{})
	e := w.Spawn()
	require.NoError(t, Insert(w, e, Position{X: 1}))
	w.AdvanceTick()
	since := w.CurrentTick()

	NewQuery[Position](w).ForEachMut(func(e Entity, p *Position) { p.X = 42 })

	h, _ := handleFor[Position](w)
	assert.True(t, h.storage.changedSince(e.Index(), since-1))
	got, _ := Get[Position](w, e)
	assert.Equal(t, 42.0, got.X)
}

func Test_Query_CountMatchesFilteredEntities(t *testing.T) {
	w := NewWorld(nil)
	RegisterComponent[Position](w, ComponentOptions[Position]{})
	e1, e2, e3 := w.Spawn(), w.Spawn(), w.Spawn()
	require.NoError(t, Insert(w, e1, Position{}))
	require.NoError(t, Insert(w, e2, Position{}))
	_ = e3

	assert.Equal(t, 2, NewQuery[Position](w).Count())
}

func Test_Query_ParForEachVisitsEveryEntityExactlyOnce(t *testing.T) {
	w := NewWorld(nil)
	RegisterComponent[Position](w, ComponentOptions[Position]{})
	n := 200
	for i := 0; i < n; i++ {
		e := w.Spawn()
		require.NoError(t, Insert(w, e, Position{X: float64(i)}))
	}

	var mu = make(chan struct{}, 1)
	mu <- struct{}{}
	seen := make(map[uint32]bool)
	NewQuery[Position](w).ParForEach(func(e Entity, p Position) {
		<-mu
		seen[e.Index()] = true
		mu <- struct{}{}
	})

	assert.Len(t, seen, n)
}
