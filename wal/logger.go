package wal

import (
	"github.com/tiqwab/xv6fs/util"
)

// writeLog copies each logged block from the cache into the log region.
//
// Runs with committing set, so no operation is active and the header is
// owned by the committer.
func (l *Log) writeLog() {
	for i, bn := range l.st.hdr.addrs {
		from := l.cache.Read(l.dev, bn)
		to := l.cache.Get(l.dev, l.logBlock(uint64(i)))
		util.DPrintf(5, "writeLog: %d to log block %d\n", bn, i)
		copy(to.Data, from.Data)
		l.cache.Write(to)
		l.cache.Release(from)
		l.cache.Release(to)
	}
}

func (l *Log) commit() {
	h := l.st.hdr
	if len(h.addrs) == 0 {
		return
	}
	util.DPrintf(1, "commit: %d blocks\n", len(h.addrs))
	l.writeLog()
	l.cache.Sync(l.dev)
	l.writeHdr(h)
	l.cache.Sync(l.dev)
	l.installTrans(false)
	l.cache.Sync(l.dev)
	l.st.reset()
	l.writeHdr(l.st.hdr)
	l.cache.Sync(l.dev)
}
