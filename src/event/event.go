package event

import (
	"context"

	"github.com/rs/zerolog/log"
)

// Signal is a single-slot asynchronous mailbox: multiple producers call Set,
// one consumer loop drains it with AwaitAndRun. Capacity is exactly one and
// newer values overwrite an unconsumed pending value (most-recent-wins). That
// drop policy is deliberate: producers that outrun the consumer lose
// intermediate values, never block.
type Signal[T any] struct {
	ch chan T
}

func NewSignal[T any]() *Signal[T] {
	return &Signal[T]{ch: make(chan T, 1)}
}

// Set stores v as the pending value, replacing an unconsumed one.
// It never blocks.
func (s *Signal[T]) Set(v T) {
	for {
		select {
		case s.ch <- v:
			return
		default:
		}
		// edge case: slot full, drop the stale value and retry
		select {
		case <-s.ch:
		default:
		}
	}
}

// AwaitAndRun blocks until a value is pending or ctx is cancelled, then runs
// handler with the value. A panicking handler is recovered and logged; the
// error return is non-nil only on cancellation, so consumer loops can use it
// as their sole exit condition.
func (s *Signal[T]) AwaitAndRun(ctx context.Context, handler func(T)) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case v := <-s.ch:
		runProtected(handler, v)
		return nil
	}
}

func runProtected[T any](handler func(T), v T) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Interface("panic", r).
				Msg("Signal handler panicked, loop continues")
		}
	}()
	handler(v)
}
