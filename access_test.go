package ecs

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func Test_Locker_ExecuteRunsClosureUnderLock(t *testing.T) {
	w := NewWorld(nil)
	RegisterComponent[Position](w, ComponentOptions[Position]{})
	ran := false

	Lock(w, Read[Position]{}).Execute(func() { ran = true })

	assert.True(t, ran)
}

func Test_Locker_DedupPromotesReadWriteOnSameTypeToSingleWriteLock(t *testing.T) {
	w := NewWorld(nil)
	RegisterComponent[Position](w, ComponentOptions[Position]{})

	locks := Lock(w, Read[Position]{}, Write[Position]{}).resolve()

	assert.Len(t, locks, 1)
	assert.True(t, locks[0].write)
}

func Test_Locker_ResolveOrderIsIndependentOfDeclarationOrder(t *testing.T) {
	w := NewWorld(nil)
	RegisterComponent[Position](w, ComponentOptions[Position]{})
	RegisterComponent[Velocity](w, ComponentOptions[Velocity]{})
	InsertResource[int](w, 1, false)

	a := Lock(w, Read[Position]{}, Write[Velocity]{}, Res[int]{}).resolve()
	b := Lock(w, Res[int]{}, Write[Velocity]{}, Read[Position]{}).resolve()

	as := assert.New(t)
	as.Len(a, 3)
	as.Len(b, 3)
	for i := range a {
		as.Same(a[i].mu, b[i].mu)
	}
}

func Test_Locker_MissingOptionalAccessIsSkippedNotPanic(t *testing.T) {
	w := NewWorld(nil)
	ran := false

	assert.NotPanics(t, func() {
		Lock(w, OptionalRead[Position]{}).Execute(func() { ran = true })
	})
	assert.True(t, ran)
}

func Test_Locker_MissingRequiredComponentAccessPanics(t *testing.T) {
	w := NewWorld(nil)

	assert.Panics(t, func() {
		Lock(w, Read[Position]{}).Execute(func() {})
	})
	assert.Panics(t, func() {
		Lock(w, Write[Position]{}).Execute(func() {})
	})
	assert.Panics(t, func() {
		Lock(w, ReadAll[Position]{}).Execute(func() {})
	})
}

func Test_Locker_MissingRequiredResourceAccessPanics(t *testing.T) {
	w := NewWorld(nil)

	assert.Panics(t, func() {
		Lock(w, Res[int]{}).Execute(func() {})
	})
	assert.Panics(t, func() {
		Lock(w, ResMut[int]{}).Execute(func() {})
	})
}

func Test_Locker_RequiredAccessOverridesOptionalOnSameType(t *testing.T) {
	w := NewWorld(nil)

	assert.Panics(t, func() {
		Lock(w, OptionalRead[Position]{}, Read[Position]{}).Execute(func() {})
	})
}
