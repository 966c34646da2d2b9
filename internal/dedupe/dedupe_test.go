package dedupe

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCheckAndMarkNewID(t *testing.T) {
	c := New(time.Minute, 100)
	defer c.Close()

	assert.False(t, c.CheckAndMark(1), "first delivery should pass")
	assert.True(t, c.CheckAndMark(1), "redelivery should be caught")
	assert.False(t, c.CheckAndMark(2), "different ID should pass")
}

func TestExpiredIDPassesAgain(t *testing.T) {
	c := New(10*time.Millisecond, 100)
	defer c.Close()

	assert.False(t, c.CheckAndMark(7))
	time.Sleep(20 * time.Millisecond)
	assert.False(t, c.CheckAndMark(7), "expired ID is treated as new")
}

func TestEvictionAtCapacity(t *testing.T) {
	c := New(time.Hour, 3)
	defer c.Close()

	for id := int64(1); id <= 4; id++ {
		c.CheckAndMark(id)
	}

	assert.Equal(t, 3, c.Len())
	assert.False(t, c.CheckAndMark(1), "oldest ID was evicted")
	assert.True(t, c.CheckAndMark(4), "newest ID is still tracked")
}

func TestConcurrentSameID(t *testing.T) {
	c := New(time.Minute, 100)
	defer c.Close()

	const workers = 50
	var wg sync.WaitGroup
	passed := make(chan struct{}, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if !c.CheckAndMark(99) {
				passed <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(passed)

	count := 0
	for range passed {
		count++
	}
	assert.Equal(t, 1, count, "exactly one delivery passes")
}

func TestCloseIdempotent(t *testing.T) {
	c := New(time.Minute, 10)
	c.Close()
	c.Close()
}

func TestSweepRemovesExpired(t *testing.T) {
	c := New(5*time.Millisecond, 100)
	defer c.Close()

	c.CheckAndMark(1)
	c.CheckAndMark(2)
	time.Sleep(10 * time.Millisecond)
	c.sweep()

	assert.Equal(t, 0, c.Len())
}
