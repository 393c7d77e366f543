package locks

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKeyedMutex_SerializesPerKey(t *testing.T) {
	km := NewKeyedMutex()

	counters := [2]int{}
	keys := []string{"a", "b"}
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		for k := range keys {
			wg.Add(1)
			go func(k int) {
				defer wg.Done()
				unlock := km.Lock(keys[k])
				defer unlock()
				counters[k]++
			}(k)
		}
	}
	wg.Wait()

	require.Equal(t, 50, counters[0])
	require.Equal(t, 50, counters[1])
}

func TestKeyedMutex_ReusesMutexPerKey(t *testing.T) {
	km := NewKeyedMutex()

	unlock := km.Lock("a")
	unlock()

	// Relocking the same key must not deadlock after release
	unlock = km.Lock("a")
	unlock()
}
