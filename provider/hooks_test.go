package provider

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHookRegistry_FireAllSettle(t *testing.T) {
	hooks := newHookRegistry()

	var calls atomic.Int32
	hooks.add(EventSuccess, func(ctx context.Context, n *Notification) error {
		calls.Add(1)
		return nil
	})
	hooks.add(EventSuccess, func(ctx context.Context, n *Notification) error {
		calls.Add(1)
		return errors.New("webhook down")
	})
	hooks.add(EventSuccess, func(ctx context.Context, n *Notification) error {
		calls.Add(1)
		return nil
	})

	errs := hooks.fire(context.Background(), EventSuccess, &Notification{TradeStatus: StatusSuccess})

	// Every hook ran even though one failed.
	assert.Equal(t, int32(3), calls.Load())
	assert.Len(t, errs, 1)
}

func TestHookRegistry_PanicRecovered(t *testing.T) {
	hooks := newHookRegistry()

	var ran atomic.Bool
	hooks.add(EventFail, func(ctx context.Context, n *Notification) error {
		panic("boom")
	})
	hooks.add(EventFail, func(ctx context.Context, n *Notification) error {
		ran.Store(true)
		return nil
	})

	errs := hooks.fire(context.Background(), EventFail, &Notification{TradeStatus: StatusFailed})

	assert.True(t, ran.Load())
	assert.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), "panic")
}

func TestHookRegistry_NoHooks(t *testing.T) {
	hooks := newHookRegistry()
	assert.Nil(t, hooks.fire(context.Background(), EventNotify, &Notification{}))
}

func TestStatusEvent(t *testing.T) {
	tests := []struct {
		status   TradeStatus
		expected HookEvent
	}{
		{StatusSuccess, EventSuccess},
		{StatusFailed, EventFail},
		{StatusPending, EventPending},
		{TradeStatus("unknown"), EventPending},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, statusEvent(tt.status))
	}
}
