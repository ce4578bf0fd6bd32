// Package resilience guards calls to upstreams we do not control. Every call site
// has its own breaker and retry budget.
package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"
)

// Failure is implemented by errors that carry their own handling instructions.
type Failure interface {
	error
	// Transient reports whether the same call may succeed if repeated.
	Transient() bool
	// Unhealthy reports whether the failure says something about the upstream's
	// health rather than about the request.
	Unhealthy() bool
	// Backoff is the wait the upstream asked for, or zero.
	Backoff() time.Duration
}

// Verdict is how the guard treats one failed attempt.
type Verdict struct {
	Retry bool
	Trips bool
	Wait  time.Duration
}

// Judge decides on errors that do not implement Failure.
type Judge func(err error) Verdict

// Guard runs calls under the policy of their call site.
type Guard struct {
	cfg    Config
	logger *slog.Logger

	mu    sync.Mutex
	sites map[string]*gobreaker.CircuitBreaker[struct{}]
}

func NewGuard(cfg Config, logger *slog.Logger) *Guard {
	if logger == nil {
		logger = slog.Default()
	}
	return &Guard{
		cfg:    cfg,
		logger: logger,
		sites:  make(map[string]*gobreaker.CircuitBreaker[struct{}]),
	}
}

// Run calls fn until it succeeds, the site's attempts are spent, a failure is final,
// or ctx ends. The last error is returned unchanged.
func (g *Guard) Run(ctx context.Context, site string, fn func(context.Context) error, judge Judge) error {
	if fn == nil {
		return fmt.Errorf("resilience: nil call for site %q", site)
	}
	site = strings.TrimSpace(site)
	if site == "" {
		site = "unnamed"
	}
	policy := g.cfg.policyFor(site)

	if !policy.Breaker {
		return g.attempt(ctx, site, policy, fn, judge)
	}
	_, err := g.breaker(site, policy, judge).Execute(func() (struct{}, error) {
		return struct{}{}, g.attempt(ctx, site, policy, fn, judge)
	})
	return err
}

func (g *Guard) attempt(ctx context.Context, site string, p Policy, fn func(context.Context) error, judge Judge) error {
	var err error
	for n := 1; n <= p.Attempts; n++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			if err != nil {
				return err
			}
			return ctxErr
		}
		if err = fn(ctx); err == nil {
			return nil
		}

		v := judgeOf(err, judge)
		if !v.Retry || n == p.Attempts {
			return err
		}

		wait := max(p.delay(n), v.Wait)
		if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) < wait {
			g.logger.WarnContext(ctx, "retry abandoned, wait exceeds deadline",
				"site", site, "attempt", n, "wait_ms", wait.Milliseconds(), "error", err)
			return err
		}
		g.logger.WarnContext(ctx, "retrying upstream call",
			"site", site, "attempt", n, "of", p.Attempts, "wait_ms", wait.Milliseconds(), "error", err)

		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return err
		case <-t.C:
		}
	}
	return err
}

func (g *Guard) breaker(site string, p Policy, judge Judge) *gobreaker.CircuitBreaker[struct{}] {
	g.mu.Lock()
	defer g.mu.Unlock()

	if cb, ok := g.sites[site]; ok {
		return cb
	}
	cb := gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        site,
		MaxRequests: p.HalfOpenCalls,
		Timeout:     p.OpenFor,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.Requests >= p.MinRequests &&
				float64(c.TotalFailures)/float64(c.Requests) >= p.FailureRatio
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !judgeOf(err, judge).Trips
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			g.logger.Warn("breaker state changed", "site", name, "from", from.String(), "to", to.String())
		},
	})
	g.sites[site] = cb
	return cb
}

func judgeOf(err error, judge Judge) Verdict {
	if judge != nil {
		return judge(err)
	}
	return FailureVerdict(err)
}

// FailureVerdict reads the verdict off a Failure in err's chain. Anything else is
// final and counts against the breaker.
func FailureVerdict(err error) Verdict {
	var f Failure
	if errors.As(err, &f) {
		return Verdict{Retry: f.Transient(), Trips: f.Unhealthy(), Wait: f.Backoff()}
	}
	return Verdict{Trips: true}
}

// IsCircuitOpen reports whether err came from an open or saturated breaker.
func IsCircuitOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}
