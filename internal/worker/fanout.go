package worker

import (
	"context"
	"time"
)

// FanOut runs one call per id concurrently under a shared deadline.
//
// Each call gets a context that expires after Timeout. Collection closes when
// every call has returned or when Timeout+Grace has elapsed, whichever comes
// first. Values that arrive after closure are never returned; they are handed
// to OnLate from a background goroutine.
//
// With MaxInFlight set, queued calls share the deadline fixed at dispatch, so
// a call that waits for a slot gets less than Timeout. A call still queued at
// the deadline runs with the expired context and never holds a slot.
type FanOut[T any] struct {
	Timeout     time.Duration
	Grace       time.Duration
	MaxInFlight int // 0 means no limit
	OnLate      func(id string, value T)
}

type fanOutItem[T any] struct {
	id    string
	value T
}

// Run dispatches call for every distinct id. It returns the values collected
// before closure and the ids still pending at closure, in input order.
func (f FanOut[T]) Run(ctx context.Context, ids []string, call func(ctx context.Context, id string, deadline time.Time) T) (map[string]T, []string) {
	ids = distinct(ids)
	results := make(map[string]T, len(ids))
	if len(ids) == 0 {
		return results, nil
	}

	deadline := time.Now().Add(f.Timeout)
	callCtx, cancel := context.WithDeadline(ctx, deadline)

	var sem chan struct{}
	if f.MaxInFlight > 0 {
		sem = make(chan struct{}, f.MaxInFlight)
	}

	// Buffered so that senders never block after closure
	ch := make(chan fanOutItem[T], len(ids))
	for _, id := range ids {
		go func(id string) {
			if sem != nil {
				select {
				case sem <- struct{}{}:
					defer func() { <-sem }()
				case <-callCtx.Done():
				}
			}
			ch <- fanOutItem[T]{id: id, value: call(callCtx, id, deadline)}
		}(id)
	}

	closeTimer := time.NewTimer(f.Timeout + f.Grace)
	defer closeTimer.Stop()

	remaining := len(ids)
collect:
	for remaining > 0 {
		select {
		case item := <-ch:
			results[item.id] = item.value
			remaining--
		case <-closeTimer.C:
			break collect
		case <-ctx.Done():
			break collect
		}
	}
	cancel()

	if remaining == 0 {
		return results, nil
	}

	pending := make([]string, 0, remaining)
	for _, id := range ids {
		if _, ok := results[id]; !ok {
			pending = append(pending, id)
		}
	}

	go func(n int) {
		for i := 0; i < n; i++ {
			item := <-ch
			if f.OnLate != nil {
				f.OnLate(item.id, item.value)
			}
		}
	}(remaining)

	return results, pending
}

func distinct(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
