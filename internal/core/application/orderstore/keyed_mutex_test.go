package orderstore

import (
	"sync"
	"testing"

	"routesync/internal/core/domain/model/kernel"

	"github.com/stretchr/testify/assert"
)

func TestKeyedMutex(t *testing.T) {
	k := newKeyedMutex()
	key := kernel.NewUUID()
	counter := 0

	var wg sync.WaitGroup
	for range 100 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := k.Lock(key)
			counter++
			unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 100, counter)
	assert.Equal(t, 0, k.len())
}

func TestKeyedMutex_IndependentKeys(t *testing.T) {
	k := newKeyedMutex()
	a, b := kernel.NewUUID(), kernel.NewUUID()

	unlockA := k.Lock(a)
	unlockB := k.Lock(b)

	assert.Equal(t, 2, k.len())
	unlockA()
	unlockB()
	assert.Equal(t, 0, k.len())
}
