package config

import (
	"log/slog"
	"os"
	"time"
)

// DefaultSigningSecret is the development fallback for the HMAC signing secret.
// It is NOT safe for production: any party who knows it can forge module
// signatures and download tokens. Deployments must set BULWARK_SIGNING_SECRET
// (or at minimum BULWARK_SESSION_SECRET); FromEnv logs loudly when the
// fallback is in use.
const DefaultSigningSecret = "bulwark-dev-secret-change-in-production"

// Server captures process-level configuration so main stays lean.
type Server struct {
	Addr            string
	SigningSecret   string
	AdminServiceKey string // bcrypt hash of the operational API key
	RatePolicyFile  string // optional YAML override for the rate-limit policy table
	PostgresDSN     string // ledger + audit sink; empty disables the postgres paths
	RedisAddr       string // shared rate-limit window store; empty uses in-memory
	KafkaBrokers    string // comma-separated; empty disables the kafka audit sink
	SweepInterval   time.Duration
	SweepStartDelay time.Duration
}

// FromEnv builds a Server config from environment variables.
//
// The signing secret resolves through a fallback chain: the module-specific
// secret, then the generic session secret, then DefaultSigningSecret. The
// final fallback is flagged at warn level because shipping it to production
// is a default-credential incident waiting to happen.
func FromEnv(log *slog.Logger) Server {
	addr := os.Getenv("BULWARK_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	secret := os.Getenv("BULWARK_SIGNING_SECRET")
	if secret == "" {
		secret = os.Getenv("BULWARK_SESSION_SECRET")
	}
	if secret == "" {
		secret = DefaultSigningSecret
		if log != nil {
			log.Warn("no signing secret configured, using built-in development default",
				"hint", "set BULWARK_SIGNING_SECRET before deploying")
		}
	}

	sweepInterval := 30 * time.Minute
	if v := os.Getenv("BULWARK_SWEEP_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			sweepInterval = d
		}
	}

	sweepDelay := time.Minute
	if v := os.Getenv("BULWARK_SWEEP_START_DELAY"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d >= 0 {
			sweepDelay = d
		}
	}

	return Server{
		Addr:            addr,
		SigningSecret:   secret,
		AdminServiceKey: os.Getenv("BULWARK_ADMIN_SERVICE_KEY_HASH"),
		RatePolicyFile:  os.Getenv("BULWARK_RATE_POLICY_FILE"),
		PostgresDSN:     os.Getenv("BULWARK_POSTGRES_DSN"),
		RedisAddr:       os.Getenv("BULWARK_REDIS_ADDR"),
		KafkaBrokers:    os.Getenv("BULWARK_KAFKA_BROKERS"),
		SweepInterval:   sweepInterval,
		SweepStartDelay: sweepDelay,
	}
}
