package app

import (
	"errors"
	"fmt"
	"time"

	"github.com/specialistvlad/lazyinit/internal/tracing"
	"github.com/specialistvlad/lazyinit/modules/notifier"
	"github.com/specialistvlad/lazyinit/modules/powermeter"
)

// DefaultPendingInterval is used when neither the command line nor the
// policy files set one.
const DefaultPendingInterval = 10 * time.Second

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	PolicyPaths []string // .hcl/.yaml files or directories

	LogFormat string
	LogLevel  string

	Listen     string
	AdminToken string
	RateLimit  float64
	RateBurst  int

	MaxImageSize int64
	Vermagic     string

	// Debug forces the diagnostic mode on; the policy files may also
	// enable it.
	Debug           bool
	PendingInterval time.Duration

	Tracing    tracing.Config
	PowerMeter powermeter.Config
	Notifier   notifier.Config
	Banner     string
}

// NewConfig validates cfg and returns a copy.
func NewConfig(cfg Config) (*Config, error) {
	if len(cfg.PolicyPaths) == 0 {
		return nil, errors.New("at least one policy path is required")
	}
	switch cfg.LogFormat {
	case "text", "json":
	default:
		return nil, fmt.Errorf("invalid log format %q: must be 'text' or 'json'", cfg.LogFormat)
	}
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return nil, fmt.Errorf("invalid log level %q: must be 'debug', 'info', 'warn', or 'error'", cfg.LogLevel)
	}
	if cfg.Listen == "" {
		return nil, errors.New("listen address cannot be empty")
	}
	if cfg.RateLimit < 0 {
		return nil, errors.New("rate limit cannot be negative")
	}
	if cfg.PendingInterval < 0 {
		return nil, errors.New("pending interval cannot be negative")
	}
	return &cfg, nil
}
