package config

import (
	"log"
	"os"
	"strconv"
	"time"
)

// History retention modes for previousMatches after a user disconnects.
const (
	// RetainByIdentity keeps a user's match history keyed by session ID, so
	// a reconnect with the same token restores it.
	RetainByIdentity = "identity"
	// RetainPerSession drops match history when the user unregisters.
	RetainPerSession = "session"
)

// Defaults. Every value is overridable through the environment.
const (
	DefaultPort             = "3001"
	DefaultJWTTTL           = 72 * time.Hour
	DefaultSkipCooldown     = 30 * time.Second
	DefaultForcedMatchAfter = 20 * time.Second
	DefaultSweepInterval    = 30 * time.Second
	DefaultRoomGracePeriod  = 60 * time.Second
	DefaultMaxClients       = 10000
)

// Config holds every tunable of the service. Policy constants (cooldowns,
// thresholds) live here rather than being hardcoded next to their use sites.
type Config struct {
	Port      string
	JWTSecret string
	JWTTTL    time.Duration

	// SkipCooldown is how long two users stay mutually ineligible after one
	// skips the other.
	SkipCooldown time.Duration
	// ForcedMatchAfter is how long a user may wait before the matcher pairs
	// them with a normally ineligible candidate.
	ForcedMatchAfter time.Duration

	// SweepInterval is the period of the abandoned-room cleanup loop;
	// RoomGracePeriod is how long an abandoned room survives before the
	// sweep reclaims it.
	SweepInterval   time.Duration
	RoomGracePeriod time.Duration

	// MaxClients caps the registry; joins past the cap are rejected.
	MaxClients int

	// HistoryRetention is RetainByIdentity or RetainPerSession.
	HistoryRetention string

	// RedisAddr enables the cross-instance signal bridge when non-empty.
	RedisAddr     string
	RedisPassword string
}

// Load reads the configuration from the environment, falling back to
// defaults. It never fails: a malformed value is logged and replaced by the
// default so a bad deploy degrades instead of crashing.
func Load() Config {
	cfg := Config{
		Port:             envString("PORT", DefaultPort),
		JWTSecret:        envString("JWT_SECRET", "dev-only-insecure-secret"),
		JWTTTL:           envDuration("JWT_TTL", DefaultJWTTTL),
		SkipCooldown:     envDuration("SKIP_COOLDOWN", DefaultSkipCooldown),
		ForcedMatchAfter: envDuration("FORCED_MATCH_AFTER", DefaultForcedMatchAfter),
		SweepInterval:    envDuration("SWEEP_INTERVAL", DefaultSweepInterval),
		RoomGracePeriod:  envDuration("ROOM_GRACE_PERIOD", DefaultRoomGracePeriod),
		MaxClients:       envInt("MAX_CLIENTS", DefaultMaxClients),
		HistoryRetention: envString("HISTORY_RETENTION", RetainByIdentity),
		RedisAddr:        os.Getenv("REDIS_ADDR"),
		RedisPassword:    os.Getenv("REDIS_PASSWORD"),
	}

	if cfg.HistoryRetention != RetainByIdentity && cfg.HistoryRetention != RetainPerSession {
		log.Printf("config: unknown HISTORY_RETENTION %q, using %q", cfg.HistoryRetention, RetainByIdentity)
		cfg.HistoryRetention = RetainByIdentity
	}
	return cfg
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Printf("config: invalid %s=%q: %v, using %s", key, v, err, fallback)
		return fallback
	}
	return d
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("config: invalid %s=%q: %v, using %d", key, v, err, fallback)
		return fallback
	}
	return n
}
