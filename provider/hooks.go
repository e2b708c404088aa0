package provider

import (
	"context"
	"fmt"
	"sync"
)

// HookEvent names a lifecycle point hooks can attach to.
type HookEvent string

const (
	EventNotify  HookEvent = "notify"  // every verified callback
	EventSuccess HookEvent = "success" // callback with trade status success
	EventFail    HookEvent = "fail"    // callback with trade status failed
	EventPending HookEvent = "pending" // callback with trade status pending
)

// HookFunc is an observer invoked after a callback has been verified and
// transformed. Hooks must not mutate the notification.
type HookFunc func(ctx context.Context, notification *Notification) error

// hookRegistry holds hook functions keyed by event.
type hookRegistry struct {
	mu    sync.RWMutex
	hooks map[HookEvent][]HookFunc
}

func newHookRegistry() *hookRegistry {
	return &hookRegistry{hooks: make(map[HookEvent][]HookFunc)}
}

func (h *hookRegistry) add(event HookEvent, fn HookFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.hooks[event] = append(h.hooks[event], fn)
}

func (h *hookRegistry) get(event HookEvent) []HookFunc {
	h.mu.RLock()
	defer h.mu.RUnlock()
	fns := h.hooks[event]
	out := make([]HookFunc, len(fns))
	copy(out, fns)
	return out
}

// fire runs all hooks for an event concurrently and waits for every one to
// settle. Errors and panics are collected and returned for logging; they
// never abort the remaining hooks.
func (h *hookRegistry) fire(ctx context.Context, event HookEvent, notification *Notification) []error {
	fns := h.get(event)
	if len(fns) == 0 {
		return nil
	}

	errCh := make(chan error, len(fns))
	var wg sync.WaitGroup
	for _, fn := range fns {
		wg.Add(1)
		go func(fn HookFunc) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					errCh <- fmt.Errorf("hook panic on %s: %v", event, r)
				}
			}()
			if err := fn(ctx, notification); err != nil {
				errCh <- fmt.Errorf("hook error on %s: %w", event, err)
			}
		}(fn)
	}
	wg.Wait()
	close(errCh)

	var errs []error
	for err := range errCh {
		errs = append(errs, err)
	}
	return errs
}

// statusEvent maps a trade status to its hook event.
func statusEvent(status TradeStatus) HookEvent {
	switch status {
	case StatusSuccess:
		return EventSuccess
	case StatusFailed:
		return EventFail
	default:
		return EventPending
	}
}
