package resilience

import (
	"context"
	"fmt"
	"time"
)

// DeadlineError reports that a unit of work exceeded its wall-clock
// budget. The in-flight work is abandoned, not cancelled on the remote
// side: the collaborator call may still complete and its side effects
// may still land, but the result is discarded.
type DeadlineError struct {
	Budget time.Duration
}

func (e *DeadlineError) Error() string {
	return fmt.Sprintf("work abandoned after exceeding %dms budget (in-flight calls are not rolled back)", e.Budget.Milliseconds())
}

// Guard races fn against a wall-clock budget. If fn finishes first its
// result is returned; otherwise Guard returns a DeadlineError naming
// the budget. The context handed to fn is cancelled on timeout so
// cancellation-aware collaborators can stop early, but Guard never
// waits for fn past the budget.
func Guard[T any](ctx context.Context, budget time.Duration, fn func(ctx context.Context) (T, error)) (T, error) {
	type outcome struct {
		val T
		err error
	}

	innerCtx, cancel := context.WithCancel(ctx)

	done := make(chan outcome, 1)
	go func() {
		val, err := fn(innerCtx)
		done <- outcome{val: val, err: err}
		cancel()
	}()

	timer := time.NewTimer(budget)
	defer timer.Stop()

	var zero T
	select {
	case out := <-done:
		cancel()
		return out.val, out.err
	case <-timer.C:
		cancel()
		return zero, &DeadlineError{Budget: budget}
	case <-ctx.Done():
		cancel()
		return zero, ctx.Err()
	}
}
