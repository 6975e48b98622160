package websocket

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Bowarc/Tetris-wasm/domain"
)

var ErrRegistrationFailed = errors.New("registration failed")

// RetryPolicy bounds how long a new connection waits for a busy registry.
type RetryPolicy struct {
	Attempts int
	Backoff  time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{Attempts: 5, Backoff: 200 * time.Millisecond}
}

// Register inserts sink into reg, retrying while the registry reports
// ErrRegistryBusy. It waits policy.Backoff between attempts and gives up after
// policy.Attempts tries. Any other registry error is returned at once.
func Register(ctx context.Context, reg domain.Registry, sink domain.Sink, policy RetryPolicy) (domain.ConnectionID, error) {
	attempts := max(policy.Attempts, 1)

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		id, err := reg.TryRegister(sink)
		if err == nil {
			return id, nil
		}
		lastErr = err
		if !errors.Is(err, domain.ErrRegistryBusy) {
			return domain.ConnectionID{}, fmt.Errorf("%w: %w", ErrRegistrationFailed, err)
		}
		slog.Debug("registry busy", "attempt", attempt, "attempts", attempts)

		if attempt == attempts {
			break
		}
		timer := time.NewTimer(policy.Backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return domain.ConnectionID{}, fmt.Errorf("%w: %w", ErrRegistrationFailed, ctx.Err())
		case <-timer.C:
		}
	}

	return domain.ConnectionID{}, fmt.Errorf("%w after %d attempts: %w", ErrRegistrationFailed, attempts, lastErr)
}
