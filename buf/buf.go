// buf is the buffer cache: a fixed number of block-sized buffers shared by
// every layer above the disk.
package buf

import (
	"sync"

	"github.com/tchajed/marshal"

	"github.com/tiqwab/xv6fs/common"
	"github.com/tiqwab/xv6fs/disk"
)

// A Buf caches one disk block, identified by (Dev, Blkno).
//
// The cache does not lock Data. Callers coordinate access to shared blocks
// themselves (inode locks for file data, the lockmap for bitmap and inode
// blocks).
type Buf struct {
	Dev   common.Dev
	Blkno common.Bnum
	Data  disk.Block

	loadMu *sync.Mutex // held while loading from the device
	valid  bool        // Data holds the block's contents
	dirty  bool        // Data differs from the device

	// protected by the cache lock
	refcnt uint64
	pinned bool
	slot   uint64
}

func mkBuf(slot uint64) *Buf {
	return &Buf{
		Data:   make(disk.Block, disk.BlockSize),
		loadMu: new(sync.Mutex),
		slot:   slot,
	}
}

func (b *Buf) IsDirty() bool {
	return b.dirty
}

func (b *Buf) SetDirty() {
	b.dirty = true
}

// Zero clears the buffer contents.
func (b *Buf) Zero() {
	for i := range b.Data {
		b.Data[i] = 0
	}
	b.SetDirty()
}

func (b *Buf) Uint32At(off uint64) uint32 {
	dec := marshal.NewDec(b.Data[off : off+4])
	return dec.GetInt32()
}

func (b *Buf) PutUint32At(off uint64, v uint32) {
	enc := marshal.NewEnc(4)
	enc.PutInt32(v)
	copy(b.Data[off:off+4], enc.Finish())
	b.SetDirty()
}

// BnumGet reads the i-th block number of a block used as an array of them
// (an indirect block).
func (b *Buf) BnumGet(i uint64) common.Bnum {
	return b.Uint32At(i * 4)
}

func (b *Buf) BnumPut(i uint64, v common.Bnum) {
	b.PutUint32At(i*4, v)
}
