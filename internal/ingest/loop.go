// Package ingest drives the transport subscription and hands each delivery to
// the envelope handler.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"github.com/tazle/ruuvitag-mqtt-ble-influxdb/internal/metrics"
)

// ErrConnect wraps any failure to connect or subscribe before the first delivery.
var ErrConnect = errors.New("transport connect failed")

type Transport interface {
	Connect(ctx context.Context) error
	// Subscribe returns deliveries in arrival order.
	Subscribe(ctx context.Context) (<-chan []byte, error)
	Disconnect()
}

type MessageHandler interface {
	HandleMessage(ctx context.Context, raw []byte)
}

type Toucher interface {
	Touch()
}

type State int32

const (
	Idle State = iota
	Connecting
	Subscribed
	Stopped
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Connecting:
		return "connecting"
	case Subscribed:
		return "subscribed"
	case Stopped:
		return "stopped"
	default:
		return "unknown"
	}
}

type Loop struct {
	transport Transport
	handler   MessageHandler
	clock     Toucher
	logger    *log.Logger
	state     atomic.Int32
}

func NewLoop(transport Transport, handler MessageHandler, clock Toucher, logger *log.Logger) *Loop {
	return &Loop{transport: transport, handler: handler, clock: clock, logger: logger}
}

func (l *Loop) State() State { return State(l.state.Load()) }

// Run blocks until ctx is done or the delivery channel closes (nil), or the
// initial connect/subscribe fails (ErrConnect). Handler faults never end the loop.
func (l *Loop) Run(ctx context.Context) error {
	defer l.state.Store(int32(Stopped))

	l.state.Store(int32(Connecting))
	if err := l.transport.Connect(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrConnect, err)
	}
	msgs, err := l.transport.Subscribe(ctx)
	if err != nil {
		return fmt.Errorf("%w: subscribe: %v", ErrConnect, err)
	}
	l.state.Store(int32(Subscribed))

	for {
		select {
		case <-ctx.Done():
			return nil
		case raw, ok := <-msgs:
			if !ok {
				l.logger.Printf("[mqtt] delivery channel closed")
				return nil
			}
			l.handler.HandleMessage(ctx, raw)
			l.clock.Touch()
			metrics.LastActivity.Set(float64(time.Now().Unix()))
		}
	}
}
