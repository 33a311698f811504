// lockmap is a sharded lock map.
//
// The API is as if LockMap held a lock for every possible uint64 key;
// LockMap.Acquire(k) acquires the lock associated with k and
// LockMap.Release(k) releases it. The file system keys it by disk block so
// that operations sharing a metadata block (a bitmap block, a block of
// inode records) modify it one at a time.
//
// The implementation doesn't actually maintain all of these locks; it
// instead maintains a fixed collection of shards so that shard i is
// responsible for the lock state of all k such that k % NSHARD = i.
// Acquiring a lock requires synchronizing with any goroutines accessing the
// same shard.
package lockmap

import (
	"sync"

	"github.com/tiqwab/xv6fs/common"
)

type lockState struct {
	held    bool
	cond    *sync.Cond
	waiters uint64
}

type lockShard struct {
	mu    *sync.Mutex
	state map[uint64]*lockState
}

func mkLockShard() *lockShard {
	return &lockShard{
		mu:    new(sync.Mutex),
		state: make(map[uint64]*lockState),
	}
}

func (lmap *lockShard) acquire(key uint64) {
	lmap.mu.Lock()
	defer lmap.mu.Unlock()
	for {
		state, ok := lmap.state[key]
		if !ok {
			state = &lockState{cond: sync.NewCond(lmap.mu)}
			lmap.state[key] = state
		}
		if !state.held {
			state.held = true
			return
		}
		state.waiters += 1
		state.cond.Wait()
		// the state is not deleted while it has waiters
		state.waiters -= 1
	}
}

func (lmap *lockShard) release(key uint64) {
	lmap.mu.Lock()
	defer lmap.mu.Unlock()
	state, ok := lmap.state[key]
	if !ok || !state.held {
		panic("lockmap: release of unheld lock")
	}
	state.held = false
	if state.waiters > 0 {
		state.cond.Signal()
	} else {
		delete(lmap.state, key)
	}
}

const NSHARD uint64 = 43

type LockMap struct {
	shards []*lockShard
}

func MkLockMap() *LockMap {
	var shards []*lockShard
	for i := uint64(0); i < NSHARD; i++ {
		shards = append(shards, mkLockShard())
	}
	return &LockMap{shards: shards}
}

func (lmap *LockMap) Acquire(key uint64) {
	shard := lmap.shards[key%NSHARD]
	shard.acquire(key)
}

func (lmap *LockMap) Release(key uint64) {
	shard := lmap.shards[key%NSHARD]
	shard.release(key)
}

func blockKey(dev common.Dev, bn common.Bnum) uint64 {
	return uint64(dev)<<32 | uint64(bn)
}

// AcquireBlock locks block bn of dev.
func (lmap *LockMap) AcquireBlock(dev common.Dev, bn common.Bnum) {
	lmap.Acquire(blockKey(dev, bn))
}

func (lmap *LockMap) ReleaseBlock(dev common.Dev, bn common.Bnum) {
	lmap.Release(blockKey(dev, bn))
}
