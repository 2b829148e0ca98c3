package resilience

import "time"

// CircuitBreakerConfig tunes the breaker in front of one dependency. Numeric
// fields left at zero fall back to DefaultCircuitBreakerConfig.
type CircuitBreakerConfig struct {
	Enabled          bool
	FailureThreshold int
	OpenTimeout      time.Duration
	HalfOpenMaxReq   int
}

func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		Enabled:          true,
		FailureThreshold: 5,
		OpenTimeout:      10 * time.Second,
		HalfOpenMaxReq:   1,
	}
}

// Normalized fills unset or invalid fields from the defaults. Enabled is kept
// as given.
func (c CircuitBreakerConfig) Normalized() CircuitBreakerConfig {
	defaults := DefaultCircuitBreakerConfig()
	if c.FailureThreshold < 1 {
		c.FailureThreshold = defaults.FailureThreshold
	}
	if c.OpenTimeout <= 0 {
		c.OpenTimeout = defaults.OpenTimeout
	}
	if c.HalfOpenMaxReq < 1 {
		c.HalfOpenMaxReq = defaults.HalfOpenMaxReq
	}
	return c
}

// LogFields renders the effective settings as logger key/value pairs.
func (c CircuitBreakerConfig) LogFields() []any {
	if !c.Enabled {
		return []any{"circuit_enabled", false}
	}
	c = c.Normalized()
	return []any{
		"circuit_enabled", true,
		"failure_threshold", c.FailureThreshold,
		"open_timeout", c.OpenTimeout,
		"half_open_max_req", c.HalfOpenMaxReq,
	}
}
