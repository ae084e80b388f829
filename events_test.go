package ecs

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type DamageEvent struct{ Amount int }

func Test_Events_SentEventVisibleThisFrameNotNextUntilSwap(t *testing.T) {
	w := NewWorld(nil)
	AddEvent[DamageEvent](w)

	SendEvent(w, DamageEvent{Amount: 10})

	events := Resource[Events[DamageEvent]](w)
	assert.Equal(t, 1, events.Len())
	assert.Equal(t, []DamageEvent{{Amount: 10}}, events.Iter())
	assert.Empty(t, events.IterCurrent())
}

func Test_Events_SwapRotatesIntoCurrent(t *testing.T) {
	w := NewWorld(nil)
	AddEvent[DamageEvent](w)
	SendEvent(w, DamageEvent{Amount: 10})

	SwapEvents[DamageEvent](w)

	events := Resource[Events[DamageEvent]](w)
	assert.Equal(t, []DamageEvent{{Amount: 10}}, events.IterCurrent())
}

func Test_Events_SwapWithNothingNewClearsCurrent(t *testing.T) {
	w := NewWorld(nil)
	AddEvent[DamageEvent](w)
	SendEvent(w, DamageEvent{Amount: 10})
	SwapEvents[DamageEvent](w)

	SwapEvents[DamageEvent](w)

	events := Resource[Events[DamageEvent]](w)
	assert.True(t, events.IsEmpty())
}

func Test_Events_AddEventIsIdempotent(t *testing.T) {
	w := NewWorld(nil)
	AddEvent[DamageEvent](w)
	SendEvent(w, DamageEvent{Amount: 1})

	AddEvent[DamageEvent](w)

	events := Resource[Events[DamageEvent]](w)
	assert.Equal(t, 1, events.Len(), "re-adding must not reset an existing Events resource")
}
