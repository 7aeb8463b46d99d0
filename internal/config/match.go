package config

import (
	"time"

	"github.com/caarlos0/env/v11"
)

// MatchConfig is the single source of truth for the reveal threshold: score
// ingestion and the client-facing compatibility meter both read from here.
type MatchConfig struct {
	RevealThreshold float64 `env:"MATCH_REVEAL_THRESHOLD" envDefault:"0.80"`

	// RearmReveal allows a match that folded back to chatting after a mutual
	// continue to reveal again on a later threshold crossing. Off by default:
	// reveal is once per match lifetime.
	RearmReveal bool `env:"MATCH_REARM_REVEAL" envDefault:"false"`

	EventBufferSize int `env:"MATCH_EVENT_BUFFER_SIZE" envDefault:"500"`

	ReconnectBaseDelay  time.Duration `env:"SESSION_RECONNECT_BASE_DELAY" envDefault:"2s"`
	ReconnectMaxDelay   time.Duration `env:"SESSION_RECONNECT_MAX_DELAY" envDefault:"30s"`
	ReconnectMaxAttempt int           `env:"SESSION_RECONNECT_MAX_ATTEMPTS" envDefault:"5"`

	HeartbeatInterval time.Duration `env:"SESSION_HEARTBEAT_INTERVAL" envDefault:"30s"`

	JanitorInterval time.Duration `env:"MATCH_JANITOR_INTERVAL" envDefault:"1m"`
	MatchTTL        time.Duration `env:"MATCH_IDLE_TTL" envDefault:"24h"`
}

func LoadMatch() (MatchConfig, error) {
	var cfg MatchConfig
	err := env.Parse(&cfg)
	return cfg, err
}
