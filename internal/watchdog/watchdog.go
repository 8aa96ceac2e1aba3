// Package watchdog stops the process when BLE traffic dries up.
package watchdog

import (
	"context"
	"errors"
	"log"
	"time"
)

const (
	DefaultInterval = time.Second
	DefaultTimeout  = 30 * time.Second
)

// ErrNoTraffic is returned by Run once the liveness clock goes stale.
var ErrNoTraffic = errors.New("no BLE traffic within timeout")

type Clock interface {
	Since() time.Duration
}

type Watchdog struct {
	clock    Clock
	interval time.Duration
	timeout  time.Duration
	logger   *log.Logger
}

func New(clock Clock, logger *log.Logger) *Watchdog {
	return &Watchdog{clock: clock, interval: DefaultInterval, timeout: DefaultTimeout, logger: logger}
}

// WithTiming overrides the poll interval and staleness timeout.
func (w *Watchdog) WithTiming(interval, timeout time.Duration) *Watchdog {
	w.interval = interval
	w.timeout = timeout
	return w
}

// Run polls the clock until ctx is done (nil) or the clock has not been
// touched for longer than the timeout (ErrNoTraffic).
func (w *Watchdog) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if w.clock.Since() > w.timeout {
				w.logger.Printf("[watchdog] no new BLE data received in %d seconds, exiting", int(w.timeout.Seconds()))
				return ErrNoTraffic
			}
		}
	}
}
