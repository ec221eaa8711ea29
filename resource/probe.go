package resource

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/rickwporter/gointegration/logging"
)

// Defaults for readiness polling. The interval starts small and doubles on
// each attempt so a fast service is noticed quickly without hammering a
// slow one.
const (
	DefaultPollStart    = 500 * time.Millisecond
	DefaultPollMin      = 250 * time.Millisecond
	DefaultPollMax      = 2 * time.Second
	DefaultReadyTimeout = 30 * time.Second

	// DefaultRequestTimeout bounds individual HTTP probe requests so a dead
	// endpoint does not stall the poll loop.
	DefaultRequestTimeout = 500 * time.Millisecond
)

// Probe controls how long and how often WaitForReady polls. Zero fields
// take the package defaults.
type Probe struct {
	Start   time.Duration
	Min     time.Duration
	Max     time.Duration
	Timeout time.Duration
}

func (p Probe) withDefaults() Probe {
	if p.Start == 0 {
		p.Start = DefaultPollStart
	}
	if p.Min == 0 {
		p.Min = DefaultPollMin
	}
	if p.Max == 0 {
		p.Max = DefaultPollMax
	}
	if p.Timeout == 0 {
		p.Timeout = DefaultReadyTimeout
	}
	return p
}

// WaitForReady polls check until it reports true, the probe times out, or
// ctx is cancelled.
func WaitForReady(ctx context.Context, logger logging.Logger, what string, p Probe,
	check func(ctx context.Context) bool) error {
	p = p.withDefaults()
	if logger == nil {
		logger = logging.NullLogger()
	}
	logger.Printf("waiting up to %s for %s", p.Timeout, what)

	interval := p.Start
	if interval < p.Min {
		interval = p.Min
	}
	deadline := time.Now().Add(p.Timeout)
	for {
		if check(ctx) {
			return nil
		}
		if !time.Now().Before(deadline) {
			return errors.Errorf("timed out after %s waiting for %s", p.Timeout, what)
		}
		if interval > p.Max {
			interval = p.Max
		}
		select {
		case <-ctx.Done():
			return errors.Wrapf(ctx.Err(), "cancelled while waiting for %s", what)
		case <-time.After(interval):
		}
		interval *= 2
	}
}
