package wal

import (
	"fmt"

	"github.com/tchajed/marshal"

	"github.com/tiqwab/xv6fs/common"
	"github.com/tiqwab/xv6fs/disk"
)

type hdr struct {
	addrs []common.Bnum
}

func (h *hdr) encode() disk.Block {
	enc := marshal.NewEnc(common.BSIZE)
	enc.PutInt32(uint32(len(h.addrs)))
	for _, a := range h.addrs {
		enc.PutInt32(a)
	}
	return enc.Finish()
}

func decodeHdr(blk disk.Block, capacity uint64) *hdr {
	dec := marshal.NewDec(blk)
	n := uint64(dec.GetInt32())
	if n > capacity {
		panic(fmt.Errorf("recover: log header count %d exceeds capacity %d", n, capacity))
	}
	addrs := make([]common.Bnum, n)
	for i := range addrs {
		addrs[i] = dec.GetInt32()
	}
	return &hdr{addrs: addrs}
}

func (l *Log) logBlock(i uint64) common.Bnum {
	return l.start + 1 + common.Bnum(i)
}

func (l *Log) readHdr() *hdr {
	b := l.cache.Read(l.dev, l.start)
	h := decodeHdr(b.Data, l.capacity)
	l.cache.Release(b)
	return h
}

// writeHdr writes h to the header block. Writing a header with a non-zero
// count is the commit point of a transaction.
func (l *Log) writeHdr(h *hdr) {
	b := l.cache.Get(l.dev, l.start)
	copy(b.Data, h.encode())
	l.cache.Write(b)
	l.cache.Release(b)
}
