package wal

import (
	"fmt"
	"sync"

	"github.com/tiqwab/xv6fs/buf"
	"github.com/tiqwab/xv6fs/common"
	"github.com/tiqwab/xv6fs/super"
	"github.com/tiqwab/xv6fs/util"
)

// MkLog takes ownership of the log region of dev and recovers any committed
// transaction left in it before returning.
func MkLog(cache *buf.Cache, dev common.Dev, sb *super.Superblock, maxOpBlocks uint64) *Log {
	capacity := sb.LogCapacity()
	if maxOpBlocks == 0 || maxOpBlocks > capacity {
		panic(fmt.Errorf("MkLog: op of %d blocks does not fit log of %d",
			maxOpBlocks, capacity))
	}
	ml := new(sync.Mutex)
	l := &Log{
		memLock:  ml,
		condOp:   sync.NewCond(ml),
		cache:    cache,
		dev:      dev,
		start:    common.Bnum(sb.LogStart),
		capacity: capacity,
		maxOp:    maxOpBlocks,
		st:       mkLogState(&hdr{}),
	}
	util.DPrintf(1, "MkLog: start %d capacity %d maxop %d\n", l.start, capacity, maxOpBlocks)
	l.Recover()
	return l
}

// Recover installs a committed but uninstalled transaction, if the header
// records one, and then clears the header. Running it again after a crash
// part-way through is harmless.
func (l *Log) Recover() {
	l.memLock.Lock()
	defer l.memLock.Unlock()
	if l.st.outstanding > 0 || l.st.committing {
		panic("recover: log in use")
	}
	l.st = mkLogState(l.readHdr())
	n := len(l.st.hdr.addrs)
	if n > 0 {
		util.DPrintf(1, "recover: installing %d blocks\n", n)
		l.installTrans(true)
		l.cache.Sync(l.dev)
	}
	l.st.reset()
	l.writeHdr(l.st.hdr)
	l.cache.Sync(l.dev)
}

// Assumes caller holds memLock
func (st *logState) hasSpace(capacity uint64, maxOp uint64) bool {
	reserved := (st.outstanding + 1) * maxOp
	return uint64(len(st.hdr.addrs))+reserved <= capacity
}

// BeginOp starts a file-system operation, waiting while a commit is in
// progress or while the log could not absorb one more operation.
func (l *Log) BeginOp() {
	l.memLock.Lock()
	for l.st.committing || !l.st.hasSpace(l.capacity, l.maxOp) {
		util.DPrintf(5, "BeginOp: wait (committing %v, outstanding %d)\n",
			l.st.committing, l.st.outstanding)
		l.condOp.Wait()
	}
	l.st.outstanding += 1
	l.memLock.Unlock()
}

// EndOp ends an operation. The last of a group of concurrent operations
// commits all of their writes before returning.
func (l *Log) EndOp() {
	var doCommit bool
	l.memLock.Lock()
	if l.st.outstanding == 0 {
		panic("EndOp: no operation in progress")
	}
	if l.st.committing {
		panic("EndOp: committing")
	}
	l.st.outstanding -= 1
	if l.st.outstanding == 0 {
		doCommit = true
		l.st.committing = true
	} else {
		// BeginOp may be waiting for log space, and decrementing
		// outstanding has released the space this op reserved.
		l.condOp.Broadcast()
	}
	l.memLock.Unlock()

	if doCommit {
		// committing is set, so nobody else touches st
		l.commit()
		l.memLock.Lock()
		l.st.committing = false
		l.condOp.Broadcast()
		l.memLock.Unlock()
	}
}

// LogWrite records that b was modified by the current operation. The
// caller has already changed b.Data and still holds its reference; the log
// pins b so it stays cached until it is installed.
//
// A block written several times before a commit occupies one log slot.
func (l *Log) LogWrite(b *buf.Buf) {
	l.memLock.Lock()
	defer l.memLock.Unlock()
	if b.Dev != l.dev {
		panic("LogWrite: wrong device")
	}
	if l.st.outstanding < 1 {
		panic("LogWrite: outside of an operation")
	}
	if _, ok := l.st.addrPos[b.Blkno]; ok {
		util.DPrintf(10, "LogWrite: absorb %d\n", b.Blkno)
		return
	}
	n := uint64(len(l.st.hdr.addrs))
	if n >= l.capacity {
		panic("LogWrite: transaction too big")
	}
	l.st.addrPos[b.Blkno] = n
	l.st.hdr.addrs = append(l.st.hdr.addrs, b.Blkno)
	l.cache.Pin(b)
	util.DPrintf(10, "LogWrite: %d at %d\n", b.Blkno, n)
}
