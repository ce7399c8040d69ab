package config

import "time"

// CacheConfig drives the optional per-user response cache in front of
// /api/purchases/stats.  It is off unless CACHE_ENABLED is set.  Creating a
// purchase drops the owner's entries.
type CacheConfig struct {
	Enabled bool
	TTL     time.Duration
	Prefix  string
	// IgnoreQuery keys entries on user and route only.
	IgnoreQuery  bool
	MaxBodyBytes int
}

func LoadCacheConfig() CacheConfig {
	cfg := CacheConfig{
		Enabled:      envBool("CACHE_ENABLED", false),
		TTL:          envDur("CACHE_TTL", 15*time.Second),
		Prefix:       envStr("CACHE_PREFIX", "cache"),
		IgnoreQuery:  envBool("CACHE_IGNORE_QUERY", false),
		MaxBodyBytes: envInt("CACHE_MAX_BODY_BYTES", 1<<20),
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 15 * time.Second
	}
	return cfg
}
