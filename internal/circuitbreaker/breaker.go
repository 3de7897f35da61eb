package circuitbreaker

import (
	"fmt"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// Breaker guards one venue's transport. After repeated failures the venue
// degrades to empty results immediately instead of burning the tick budget
// on a down API.
type Breaker struct {
	cb     *gobreaker.CircuitBreaker
	logger *zap.Logger
}

// Config holds breaker configuration for one venue.
type Config struct {
	Venue  string
	Logger *zap.Logger

	// MaxConsecutiveFailures trips the breaker outright. Zero means 3.
	MaxConsecutiveFailures uint32

	// OpenTimeout is how long the breaker stays open before probing.
	// Zero means 30 seconds.
	OpenTimeout time.Duration
}

// New creates a breaker for a venue.
func New(cfg *Config) (*Breaker, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if cfg.Venue == "" {
		return nil, fmt.Errorf("venue cannot be empty")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}

	maxFailures := cfg.MaxConsecutiveFailures
	if maxFailures == 0 {
		maxFailures = 3
	}
	openTimeout := cfg.OpenTimeout
	if openTimeout == 0 {
		openTimeout = 30 * time.Second
	}

	b := &Breaker{logger: cfg.Logger}

	settings := gobreaker.Settings{
		Name:     cfg.Venue,
		Interval: 60 * time.Second,
		Timeout:  openTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.ConsecutiveFailures >= maxFailures {
				return true
			}
			// Trip on a sustained failure ratio once there is enough signal.
			if counts.Requests >= 20 &&
				float64(counts.TotalFailures)/float64(counts.Requests) > 0.05 {
				return true
			}
			return false
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			StateTransitionsTotal.WithLabelValues(name, to.String()).Inc()
			cfg.Logger.Warn("circuit-breaker-state-change",
				zap.String("venue", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	}

	b.cb = gobreaker.NewCircuitBreaker(settings)
	return b, nil
}

// Execute runs fn through the breaker. When the breaker is open the call
// fails fast with gobreaker.ErrOpenState without invoking fn.
func (b *Breaker) Execute(fn func() (any, error)) (any, error) {
	result, err := b.cb.Execute(fn)
	if err != nil {
		RequestsTotal.WithLabelValues(b.cb.Name(), "failure").Inc()
		return nil, err
	}

	RequestsTotal.WithLabelValues(b.cb.Name(), "success").Inc()
	return result, nil
}

// Open reports whether the breaker currently rejects calls.
func (b *Breaker) Open() bool {
	return b.cb.State() == gobreaker.StateOpen
}
