package ledger

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestKeyedMutex_ReleasesIdleKeys(t *testing.T) {
	k := newKeyedMutex()

	unlockA := k.Lock("A")
	unlockB := k.Lock("B")
	assert.Equal(t, 2, k.size())

	unlockA()
	unlockB()
	assert.Equal(t, 0, k.size())
}

func TestKeyedMutex_SerializesSameKey(t *testing.T) {
	k := newKeyedMutex()
	unlock := k.Lock("A")

	acquired := make(chan struct{})
	go func() {
		u := k.Lock("A")
		close(acquired)
		u()
	}()

	select {
	case <-acquired:
		t.Fatal("second lock acquired while first is held")
	case <-time.After(20 * time.Millisecond):
	}

	unlock()
	<-acquired
}

func TestKeyedMutex_DifferentKeysInParallel(t *testing.T) {
	k := newKeyedMutex()
	unlockA := k.Lock("A")
	defer unlockA()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		k.Lock("B")()
	}()
	wg.Wait()
}
