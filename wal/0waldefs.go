package wal

import (
	"sync"

	"github.com/tiqwab/xv6fs/buf"
	"github.com/tiqwab/xv6fs/common"
)

type logState struct {
	outstanding uint64 // operations between BeginOp and EndOp
	committing  bool
	hdr         *hdr
	addrPos     map[common.Bnum]uint64 // position of each logged block in hdr
}

func mkLogState(h *hdr) *logState {
	st := &logState{hdr: h, addrPos: make(map[common.Bnum]uint64)}
	for i, a := range h.addrs {
		st.addrPos[a] = uint64(i)
	}
	return st
}

// reset empties the in-memory header after a commit.
func (st *logState) reset() {
	st.hdr = &hdr{}
	st.addrPos = make(map[common.Bnum]uint64)
}

type Log struct {
	memLock *sync.Mutex
	condOp  *sync.Cond // signalled when log space is released or a commit ends

	cache    *buf.Cache
	dev      common.Dev
	start    common.Bnum // header block
	capacity uint64
	maxOp    uint64

	st *logState
}

// Capacity is the number of blocks one group commit can hold.
func (l *Log) Capacity() uint64 {
	return l.capacity
}

// MaxOpBlocks is the most distinct blocks a single operation may log.
func (l *Log) MaxOpBlocks() uint64 {
	return l.maxOp
}

func (l *Log) Dev() common.Dev {
	return l.dev
}

// Pending is the number of distinct blocks logged since the last commit.
func (l *Log) Pending() uint64 {
	l.memLock.Lock()
	defer l.memLock.Unlock()
	return uint64(len(l.st.hdr.addrs))
}
