package guard

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSet_TryAcquireRelease(t *testing.T) {
	set := NewSet()

	assert.True(t, set.TryAcquire("cats"))
	assert.False(t, set.TryAcquire("cats"))
	assert.True(t, set.Held("cats"))

	// Independent names don't block each other
	assert.True(t, set.TryAcquire("dogs"))

	set.Release("cats")
	assert.False(t, set.Held("cats"))
	assert.True(t, set.TryAcquire("cats"))
}

func TestSet_ReleaseUnheldName(t *testing.T) {
	set := NewSet()
	// Releasing a name never acquired must not panic
	set.Release("ghost")
	assert.True(t, set.TryAcquire("ghost"))
}

func TestSet_ConcurrentAcquire(t *testing.T) {
	set := NewSet()

	const goroutines = 32
	var wg sync.WaitGroup
	var mu sync.Mutex
	winners := 0

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if set.TryAcquire("cats") {
				mu.Lock()
				winners++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, winners)
}
