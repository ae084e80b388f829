package iorunner

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ecs "github.com/redlilium/ecs"
	"github.com/redlilium/ecs/compute"
)

func Test_Run_RecvReturnsFutureValueOnSuccess(t *testing.T) {
	pool := compute.NewPool(2)
	defer pool.Close()

	h := Run(context.Background(), pool, func(ctx context.Context) (int, error) {
		return 7, nil
	})

	got, err := h.Recv()

	require.NoError(t, err)
	assert.Equal(t, 7, got)
}

func Test_Run_RecvWrapsFutureError(t *testing.T) {
	pool := compute.NewPool(2)
	defer pool.Close()
	underlying := errors.New("connection refused")

	h := Run(context.Background(), pool, func(ctx context.Context) (int, error) {
		return 0, underlying
	})

	_, err := h.Recv()

	require.Error(t, err)
	assert.ErrorIs(t, err, underlying)
	assert.Contains(t, err.Error(), "iorunner: future failed")
}

func Test_Run_TryRecvReportsPendingThenDone(t *testing.T) {
	pool := compute.NewPool(1)
	defer pool.Close()
	block := make(chan struct{})

	h := Run(context.Background(), pool, func(ctx context.Context) (int, error) {
		<-block
		return 1, nil
	})

	_, _, done := h.TryRecv()
	assert.False(t, done)

	close(block)
	got, err := h.Recv()
	require.NoError(t, err)
	assert.Equal(t, 1, got)

	gotAgain, errAgain, done := h.TryRecv()
	assert.True(t, done)
	assert.NoError(t, errAgain)
	assert.Equal(t, 1, gotAgain)
}

func Test_Run_OnCompleteReceivesValueAndErrorOnTick(t *testing.T) {
	pool := compute.NewPool(2)
	defer pool.Close()

	h := Run(context.Background(), pool, func(ctx context.Context) (string, error) {
		return "ok", nil
	})
	h.Recv()

	var gotValue string
	var gotErr error
	fired := false
	h.OnComplete(func(v string, err error) { fired = true; gotValue = v; gotErr = err })

	assert.False(t, fired, "OnComplete must wait for a pool Tick, not fire immediately")
	pool.TickAll()

	assert.True(t, fired)
	assert.Equal(t, "ok", gotValue)
	assert.NoError(t, gotErr)
}

func Test_AwaitAll_ReturnsValuesInHandleOrder(t *testing.T) {
	pool := compute.NewPool(4)
	defer pool.Close()

	var handles []IoHandle[int]
	for i := 0; i < 5; i++ {
		i := i
		handles = append(handles, Run(context.Background(), pool, func(ctx context.Context) (int, error) {
			return i, nil
		}))
	}

	got, err := AwaitAll(handles...)

	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2, 3, 4}, got)
}

func Test_AwaitAll_ReturnsFirstError(t *testing.T) {
	pool := compute.NewPool(4)
	defer pool.Close()
	boom := errors.New("disk full")

	ok := Run(context.Background(), pool, func(ctx context.Context) (int, error) { return 1, nil })
	bad := Run(context.Background(), pool, func(ctx context.Context) (int, error) { return 0, boom })

	_, err := AwaitAll(ok, bad)

	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
}

func Test_Run_CancelBeforeStartSkipsFuture(t *testing.T) {
	pool := compute.NewPool(1)
	defer pool.Close()
	block := make(chan struct{})
	occupy := compute.Spawn(pool, ecs.PriorityCritical, func() int { <-block; return 0 })

	ran := false
	h := Run(context.Background(), pool, func(ctx context.Context) (int, error) {
		ran = true
		return 0, nil
	})
	h.Cancel()

	close(block)
	occupy.Recv()
	h.Recv()

	assert.False(t, ran, "a cancelled future must never run")
}
