package lockmap

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tiqwab/xv6fs/common"
)

func TestAcquireRelease(t *testing.T) {
	lm := MkLockMap()
	lm.Acquire(1)
	lm.Acquire(1 + NSHARD) // same shard, different lock
	lm.Release(1)
	lm.Release(1 + NSHARD)
	lm.Acquire(1)
	lm.Release(1)
	assert.Panics(t, func() { lm.Release(1) })
}

func TestMutualExclusion(t *testing.T) {
	lm := MkLockMap()
	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				lm.AcquireBlock(common.ROOTDEV, 7)
				counter += 1
				lm.ReleaseBlock(common.ROOTDEV, 7)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1000, counter)
}

func TestBlockKeysDistinctPerDevice(t *testing.T) {
	assert.NotEqual(t, blockKey(1, 5), blockKey(2, 5))
}
