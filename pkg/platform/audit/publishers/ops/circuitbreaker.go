package ops

import (
	"errors"
	"time"

	"github.com/sony/gobreaker/v2"
)

// CircuitBreaker stops ops writes while the audit store is failing, so a database
// outage does not pile up goroutines behind fire-and-forget events.
type CircuitBreaker struct {
	cb *gobreaker.CircuitBreaker[struct{}]
}

// NewCircuitBreaker opens after threshold consecutive failures and lets one probe
// through once cooldown has elapsed.
func NewCircuitBreaker(threshold int, cooldown time.Duration) *CircuitBreaker {
	if threshold <= 0 {
		threshold = 5
	}
	if cooldown <= 0 {
		cooldown = time.Minute
	}
	limit := uint32(threshold) //nolint:gosec // threshold is positive
	return &CircuitBreaker{cb: gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        "audit_ops",
		MaxRequests: 1,
		Timeout:     cooldown,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= limit
		},
	})}
}

// Do runs fn through the breaker. Rejected calls return an error for which
// rejected reports true; fn is not run.
func (b *CircuitBreaker) Do(fn func() error) error {
	_, err := b.cb.Execute(func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}

func (b *CircuitBreaker) IsOpen() bool {
	return b.cb.State() == gobreaker.StateOpen
}

func rejected(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}
