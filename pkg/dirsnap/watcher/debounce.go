package watcher

import (
	"context"
	"time"
)

// Debounce collects changes from events and calls fn with the batch once no
// new change has arrived for quiet. It returns when ctx is done or events is
// closed; a pending batch is flushed when events closes.
func Debounce(ctx context.Context, events <-chan Change, quiet time.Duration, fn func([]Change)) {
	var (
		batch []Change
		timer *time.Timer
		fire  <-chan time.Time
	)
	stop := func() {
		if timer != nil {
			timer.Stop()
		}
	}
	defer stop()

	for {
		select {
		case <-ctx.Done():
			return

		case c, ok := <-events:
			if !ok {
				if len(batch) > 0 {
					fn(batch)
				}
				return
			}
			batch = append(batch, c)
			stop()
			timer = time.NewTimer(quiet)
			fire = timer.C

		case <-fire:
			fire = nil
			pending := batch
			batch = nil
			fn(pending)
		}
	}
}

// Drain discards changes until none has arrived for settle, and returns how
// many were dropped. Used after a sync so its own writes do not trigger
// another one.
func Drain(ctx context.Context, events <-chan Change, settle time.Duration) int {
	dropped := 0
	timer := time.NewTimer(settle)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return dropped
		case _, ok := <-events:
			if !ok {
				return dropped
			}
			dropped++
			timer.Reset(settle)
		case <-timer.C:
			return dropped
		}
	}
}
