package runtime

import (
	"bytes"
	"context"
	"log"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSetupGracefulShutdown_CancelsOnSignal(t *testing.T) {
	var logs bytes.Buffer
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop := SetupGracefulShutdown(cancel, log.New(&logs, "", 0))
	defer stop()

	assert.NoError(t, syscall.Kill(syscall.Getpid(), syscall.SIGTERM))

	select {
	case <-ctx.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("context not cancelled")
	}
	assert.Eventually(t, func() bool { return bytes.Contains(logs.Bytes(), []byte("received signal")) }, time.Second, 5*time.Millisecond)
}

func TestSetupGracefulShutdown_StopLeavesContextAlone(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop := SetupGracefulShutdown(cancel, log.New(&bytes.Buffer{}, "", 0))
	stop()

	time.Sleep(10 * time.Millisecond)
	assert.NoError(t, ctx.Err())
}

func TestClosers_ReverseOrder(t *testing.T) {
	var logs bytes.Buffer
	var order []string
	var c Closers
	c.Add("influx", func() { order = append(order, "influx") })
	c.Add("kafka", func() { order = append(order, "kafka") })
	c.Add("mqtt", func() { order = append(order, "mqtt") })

	c.CloseAll(log.New(&logs, "", 0))
	c.CloseAll(log.New(&logs, "", 0))

	assert.Equal(t, []string{"mqtt", "kafka", "influx"}, order)
	assert.Contains(t, logs.String(), "closed mqtt")
}
