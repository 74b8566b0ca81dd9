package lock

import (
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestKeyedSerializesSameKey(t *testing.T) {
	k := NewKeyed()
	key := uuid.New()

	const goroutines = 50
	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := k.Lock(key)
			defer unlock()
			counter++
		}()
	}
	wg.Wait()

	assert.Equal(t, goroutines, counter)
}

func TestKeyedDifferentKeysDoNotContend(t *testing.T) {
	k := NewKeyed()
	a, b := uuid.New(), uuid.New()

	unlockA := k.Lock(a)
	defer unlockA()

	done := make(chan struct{})
	go func() {
		unlockB := k.Lock(b)
		unlockB()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock on a different key blocked")
	}
}

func TestKeyedEntriesAreReclaimed(t *testing.T) {
	k := NewKeyed()
	key := uuid.New()

	unlock := k.Lock(key)
	unlock()

	k.mu.Lock()
	defer k.mu.Unlock()
	assert.Empty(t, k.entries, "released entries must be removed")
}
