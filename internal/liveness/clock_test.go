package liveness

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeNow struct {
	mu sync.Mutex
	t  time.Time
}

func (f *fakeNow) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.t
}

func (f *fakeNow) Advance(d time.Duration) {
	f.mu.Lock()
	f.t = f.t.Add(d)
	f.mu.Unlock()
}

func TestClock(t *testing.T) {
	now := &fakeNow{t: time.Unix(1000, 0)}
	c := NewWithNow(now.Now)

	assert.Zero(t, c.Since())
	assert.True(t, c.last().Equal(time.Unix(1000, 0)))

	now.Advance(12 * time.Second)
	assert.Equal(t, 12*time.Second, c.Since())

	c.Touch()
	assert.Zero(t, c.Since())
	assert.True(t, c.last().Equal(time.Unix(1012, 0)))
}

func TestClock_ConcurrentTouch(t *testing.T) {
	c := New()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				c.Touch()
				_ = c.Since()
			}
		}()
	}
	wg.Wait()
	assert.Less(t, c.Since(), time.Minute)
}
