package backend

import (
	"math/rand/v2"
	"time"
)

// BackoffConfig controls the delay between reconnection attempts.
type BackoffConfig struct {
	InitialDelay time.Duration `mapstructure:"initial_delay" yaml:"initial_delay"`
	MaxDelay     time.Duration `mapstructure:"max_delay" yaml:"max_delay"`
	Multiplier   float64       `mapstructure:"multiplier" yaml:"multiplier"`
	// MaxJitter bounds the random delay added on top of each sleep.
	MaxJitter time.Duration `mapstructure:"max_jitter" yaml:"max_jitter"`
}

// DefaultBackoffConfig starts at one second, grows by 1.75 up to ten minutes
// and adds up to three seconds of jitter.
func DefaultBackoffConfig() BackoffConfig {
	return BackoffConfig{
		InitialDelay: time.Second,
		MaxDelay:     600 * time.Second,
		Multiplier:   1.75,
		MaxJitter:    3 * time.Second,
	}
}

// Backoff tracks reconnection attempts. The base delay grows geometrically
// and is capped at MaxDelay; jitter is added to each sleep only, so the cap
// can be exceeded by at most MaxJitter. Backoff is not safe for concurrent use.
type Backoff struct {
	cfg    BackoffConfig
	delay  time.Duration
	count  int
	jitter func() time.Duration
}

// NewBackoff builds a backoff, filling zero fields from DefaultBackoffConfig.
func NewBackoff(cfg BackoffConfig) *Backoff {
	def := DefaultBackoffConfig()
	if cfg.InitialDelay <= 0 {
		cfg.InitialDelay = def.InitialDelay
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = def.MaxDelay
	}
	if cfg.MaxDelay < cfg.InitialDelay {
		cfg.MaxDelay = cfg.InitialDelay
	}
	if cfg.Multiplier < 1 {
		cfg.Multiplier = def.Multiplier
	}
	if cfg.MaxJitter < 0 {
		cfg.MaxJitter = 0
	}

	b := &Backoff{cfg: cfg, delay: cfg.InitialDelay}
	b.jitter = b.randomJitter
	return b
}

// Next records a failed cycle and returns the new base delay and the delay
// to actually sleep.
func (b *Backoff) Next() (base, sleep time.Duration) {
	b.count++
	next := time.Duration(float64(b.delay) * b.cfg.Multiplier)
	if next > b.cfg.MaxDelay {
		next = b.cfg.MaxDelay
	}
	b.delay = next
	return b.delay, b.delay + b.jitter()
}

// Reset goes back to the initial delay and a zero count.
func (b *Backoff) Reset() {
	b.delay = b.cfg.InitialDelay
	b.count = 0
}

// Delay is the current base delay.
func (b *Backoff) Delay() time.Duration {
	return b.delay
}

// Count is the number of failed cycles since the last reset.
func (b *Backoff) Count() int {
	return b.count
}

func (b *Backoff) Config() BackoffConfig {
	return b.cfg
}

func (b *Backoff) randomJitter() time.Duration {
	if b.cfg.MaxJitter <= 0 {
		return 0
	}
	return rand.N(b.cfg.MaxJitter + 1)
}
