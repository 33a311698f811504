package wal

import (
	"github.com/tiqwab/xv6fs/util"
)

// installTrans copies committed blocks from the log to their home location.
//
// During recovery the home buffers were never pinned; otherwise each one is
// unpinned once it is installed.
func (l *Log) installTrans(recovering bool) {
	for i, bn := range l.st.hdr.addrs {
		lbuf := l.cache.Read(l.dev, l.logBlock(uint64(i)))
		dbuf := l.cache.Get(l.dev, bn)
		util.DPrintf(5, "installTrans: log block %d to %d\n", i, bn)
		copy(dbuf.Data, lbuf.Data)
		l.cache.Write(dbuf)
		if !recovering {
			l.cache.Unpin(dbuf)
		}
		l.cache.Release(lbuf)
		l.cache.Release(dbuf)
	}
}
