package tools

import (
	"context"
	"log"
	"time"
)

// PollResult is the terminal value of one poll loop.
type PollResult struct {
	// Value is the last status payload observed, possibly nil when no status
	// call ever succeeded.
	Value    interface{}
	Elapsed  time.Duration
	TimedOut bool
	Polls    int
}

// StatusFunc queries the current state of a long-running backend operation.
type StatusFunc func(ctx context.Context) (interface{}, error)

// PollUntil repeatedly calls status every interval until done reports a
// terminal payload or timeout elapses. A failed status call is logged and the
// loop continues; only the done condition or the timeout stops it. The loop
// runs as its own goroutine and delivers exactly one PollResult; it is not
// cancellable from outside: if the caller's connection drops the loop still
// runs to its own timeout.
func PollUntil(ctx context.Context, status StatusFunc, done func(interface{}) bool, timeout, interval time.Duration) PollResult {
	results := make(chan PollResult, 1)

	go func() {
		start := time.Now()
		deadline := time.NewTimer(timeout)
		defer deadline.Stop()

		var last interface{}
		polls := 0

		for {
			v, err := status(ctx)
			polls++
			if err != nil {
				log.Printf("poll: status call %d failed: %v", polls, err)
			} else {
				last = v
				if done(v) {
					results <- PollResult{Value: last, Elapsed: time.Since(start), Polls: polls}
					return
				}
			}

			select {
			case <-deadline.C:
				results <- PollResult{Value: last, Elapsed: time.Since(start), TimedOut: true, Polls: polls}
				return
			case <-time.After(interval):
			}
		}
	}()

	return <-results
}
