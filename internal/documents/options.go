package documents

import (
	"time"

	"github.com/Iron-Ham/git2doc/internal/event"
	"github.com/Iron-Ham/git2doc/internal/logging"
)

const (
	// DefaultPollInterval is the delay between poll ticks.
	DefaultPollInterval = 3 * time.Second

	// DefaultCheckTimeout bounds a single status check within a tick.
	DefaultCheckTimeout = 10 * time.Second
)

type config struct {
	pollInterval time.Duration
	checkTimeout time.Duration
	bus          *event.Bus
	logger       *logging.Logger
}

// Option configures an Orchestrator.
type Option func(*config)

// WithPollInterval sets the delay between poll ticks.
// Non-positive values are ignored.
func WithPollInterval(d time.Duration) Option {
	return func(c *config) {
		if d > 0 {
			c.pollInterval = d
		}
	}
}

// WithCheckTimeout bounds each status check. Non-positive values are ignored.
func WithCheckTimeout(d time.Duration) Option {
	return func(c *config) {
		if d > 0 {
			c.checkTimeout = d
		}
	}
}

// WithBus sets the bus used to publish document events and to observe
// session changes.
func WithBus(bus *event.Bus) Option {
	return func(c *config) {
		c.bus = bus
	}
}

// WithLogger sets the logger.
func WithLogger(logger *logging.Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}
