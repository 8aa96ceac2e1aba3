// Package liveness tracks when the process last saw transport traffic.
package liveness

import (
	"sync/atomic"
	"time"
)

// Clock is safe for concurrent use. The zero value is not usable; use New.
type Clock struct {
	lastNano atomic.Int64
	now      func() time.Time
}

// New returns a clock stamped with the current time.
func New() *Clock {
	return NewWithNow(time.Now)
}

func NewWithNow(now func() time.Time) *Clock {
	c := &Clock{now: now}
	c.Touch()
	return c
}

func (c *Clock) Touch() {
	c.lastNano.Store(c.now().UnixNano())
}

func (c *Clock) last() time.Time {
	return time.Unix(0, c.lastNano.Load())
}

func (c *Clock) Since() time.Duration {
	return c.now().Sub(c.last())
}
