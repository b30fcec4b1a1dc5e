package config

import "time"

// RateLimitConfig tunes the fixed-window limiter applied to the credential
// endpoints (login/register). Password hashing makes those the most
// expensive requests in the service, so they get their own budget.
type RateLimitConfig struct {
	Enabled bool
	Limit   int           // requests allowed per window
	Window  time.Duration // window length
	Prefix  string        // redis key prefix
}

// LoadRateLimitConfig reads RATE_LIMIT_* variables with sane defaults:
// 10 requests per minute per client IP and route.
func LoadRateLimitConfig() RateLimitConfig {
	cfg := RateLimitConfig{
		Enabled: envBool("RATE_LIMIT_ENABLED", true),
		Limit:   envInt("RATE_LIMIT_REQUESTS", 10),
		Window:  envDur("RATE_LIMIT_WINDOW", time.Minute),
		Prefix:  envStr("RATE_LIMIT_PREFIX", "rl"),
	}
	if cfg.Limit < 1 {
		cfg.Limit = 1
	}
	// The limiter buckets time in whole seconds; anything shorter would
	// divide by zero there.
	if cfg.Window < time.Second {
		cfg.Window = time.Minute
	}
	return cfg
}
