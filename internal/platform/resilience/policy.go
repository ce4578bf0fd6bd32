package resilience

import (
	"time"

	"kycdesk/internal/platform/config"
)

// Policy is the retry and breaker budget of one guarded call site.
type Policy struct {
	Attempts   int
	FirstDelay time.Duration
	MaxDelay   time.Duration
	Growth     float64

	Breaker       bool
	MinRequests   uint32
	FailureRatio  float64
	OpenFor       time.Duration
	HalfOpenCalls uint32
}

// Config holds the fallback policy and the per-site overrides, keyed by call site
// ("brasilapi_cnpj", "nats.publish").
type Config struct {
	Default Policy
	Sites   map[string]Policy
}

func DefaultPolicy() Policy {
	return Policy{
		Attempts:      3,
		FirstDelay:    200 * time.Millisecond,
		MaxDelay:      2 * time.Second,
		Growth:        2,
		Breaker:       true,
		MinRequests:   10,
		FailureRatio:  0.5,
		OpenFor:       30 * time.Second,
		HalfOpenCalls: 2,
	}
}

// FromConfig builds the guard configuration. Each override starts from the
// service-wide settings and replaces only the fields it sets.
func FromConfig(c config.ResilienceConfig) Config {
	base := Policy{
		Attempts:      c.RetryMaxAttempts,
		FirstDelay:    c.RetryInitialBackoff,
		MaxDelay:      c.RetryMaxBackoff,
		Growth:        2,
		Breaker:       c.BreakerEnabled,
		MinRequests:   clampUint32(c.BreakerMinRequests),
		FailureRatio:  c.BreakerFailureRatio,
		OpenFor:       c.BreakerOpenTimeout,
		HalfOpenCalls: clampUint32(c.BreakerHalfOpenMaxCalls),
	}
	out := Config{Default: base}
	if len(c.Overrides) == 0 {
		return out
	}
	out.Sites = make(map[string]Policy, len(c.Overrides))
	for site, o := range c.Overrides {
		p := base
		if o.RetryMaxAttempts > 0 {
			p.Attempts = o.RetryMaxAttempts
		}
		if o.RetryMaxBackoff > 0 {
			p.MaxDelay = o.RetryMaxBackoff
		}
		if o.BreakerDisabled {
			p.Breaker = false
		}
		if o.BreakerMinRequests > 0 {
			p.MinRequests = clampUint32(o.BreakerMinRequests)
		}
		if o.BreakerFailureRatio > 0 {
			p.FailureRatio = o.BreakerFailureRatio
		}
		if o.BreakerOpenTimeout > 0 {
			p.OpenFor = o.BreakerOpenTimeout
		}
		out.Sites[site] = p
	}
	return out
}

func clampUint32(n int) uint32 {
	return uint32(max(n, 0)) //nolint:gosec // clamped
}

// filled replaces every unusable field with the DefaultPolicy value.
func (p Policy) filled() Policy {
	def := DefaultPolicy()
	if p.Attempts <= 0 {
		p.Attempts = def.Attempts
	}
	if p.FirstDelay <= 0 {
		p.FirstDelay = def.FirstDelay
	}
	if p.MaxDelay < p.FirstDelay {
		p.MaxDelay = p.FirstDelay
	}
	if p.Growth < 1 {
		p.Growth = def.Growth
	}
	if p.MinRequests == 0 {
		p.MinRequests = def.MinRequests
	}
	if p.FailureRatio <= 0 || p.FailureRatio > 1 {
		p.FailureRatio = def.FailureRatio
	}
	if p.OpenFor <= 0 {
		p.OpenFor = def.OpenFor
	}
	if p.HalfOpenCalls == 0 {
		p.HalfOpenCalls = def.HalfOpenCalls
	}
	return p
}

func (c Config) policyFor(site string) Policy {
	if p, ok := c.Sites[site]; ok {
		return p.filled()
	}
	return c.Default.filled()
}

// delay is the pause before attempt n+1, not counting an upstream-requested wait.
func (p Policy) delay(n int) time.Duration {
	d := p.FirstDelay
	for i := 1; i < n && d < p.MaxDelay; i++ {
		d = time.Duration(float64(d) * p.Growth)
	}
	return min(d, p.MaxDelay)
}
