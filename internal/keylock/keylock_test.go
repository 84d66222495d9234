package keylock

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLocker(t *testing.T) {
	locker := New()
	counters := map[string]int{}
	var wg sync.WaitGroup
	var mapMu sync.Mutex

	for i := 0; i < 50; i++ {
		for _, key := range []string{"a", "b"} {
			wg.Add(1)
			go func(key string) {
				defer wg.Done()
				unlock := locker.Lock(key)
				defer unlock()
				mapMu.Lock()
				v := counters[key]
				mapMu.Unlock()
				mapMu.Lock()
				counters[key] = v + 1
				mapMu.Unlock()
			}(key)
		}
	}
	wg.Wait()
	assert.Equal(t, 50, counters["a"])
	assert.Equal(t, 50, counters["b"])
	assert.Equal(t, 0, locker.Len())
}
