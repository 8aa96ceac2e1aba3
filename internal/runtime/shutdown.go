package runtime

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
)

// SetupGracefulShutdown cancels on the first SIGINT/SIGTERM. The returned
// func stops signal delivery.
func SetupGracefulShutdown(cancel context.CancelFunc, logger *log.Logger) (stop func()) {
	sigCh := make(chan os.Signal, 1)
	done := make(chan struct{})
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case s := <-sigCh:
			logger.Printf("[shutdown] received signal: %v, shutting down...", s)
			cancel()
		case <-done:
		}
	}()
	return func() {
		signal.Stop(sigCh)
		close(done)
	}
}

// Closers releases resources in reverse order of registration.
type Closers struct {
	names []string
	fns   []func()
}

func (c *Closers) Add(name string, fn func()) {
	c.names = append(c.names, name)
	c.fns = append(c.fns, fn)
}

func (c *Closers) CloseAll(logger *log.Logger) {
	for i := len(c.fns) - 1; i >= 0; i-- {
		c.fns[i]()
		logger.Printf("[shutdown] closed %s", c.names[i])
	}
	c.names, c.fns = nil, nil
}
