package alloc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tiqwab/xv6fs/buf"
	"github.com/tiqwab/xv6fs/common"
	"github.com/tiqwab/xv6fs/disk"
	"github.com/tiqwab/xv6fs/lockmap"
	"github.com/tiqwab/xv6fs/super"
	"github.com/tiqwab/xv6fs/wal"
)

const dev = common.ROOTDEV

func TestPopCnt(t *testing.T) {
	assert.Equal(t, uint64(0), popCnt(0))
	assert.Equal(t, uint64(1), popCnt(1))
	assert.Equal(t, uint64(1), popCnt(2))
	assert.Equal(t, uint64(2), popCnt(3))
	assert.Equal(t, uint64(8), popCnt(255))
}

// mkAlloc lays out a small file system whose metadata blocks
// [0, DataStart) are marked used.
func mkAlloc(t *testing.T, size uint32) (*Alloc, *wal.Log, disk.Disk) {
	sb := &super.Superblock{
		Size:       size,
		Ninodes:    8,
		Nlog:       11,
		LogStart:   2,
		InodeStart: 13,
		BmapStart:  15,
	}
	sb.Nblocks = size - uint32(sb.DataStart())
	require.NoError(t, sb.Validate())
	d := disk.NewMemDisk(uint64(size))
	bitmap := make(disk.Block, disk.BlockSize)
	for bn := uint64(0); bn < uint64(sb.DataStart()); bn++ {
		bitmap[bn/8] |= 1 << (bn % 8)
	}
	require.NoError(t, d.Write(uint64(sb.BmapStart), bitmap))

	c := buf.MkCache(common.NBUF)
	require.NoError(t, c.Attach(dev, d))
	l := wal.MkLog(c, dev, sb, 5)
	return MkAlloc(c, l, sb, lockmap.MkLockMap()), l, d
}

func TestAlloc(t *testing.T) {
	assert := assert.New(t)
	a, l, _ := mkAlloc(t, 100)
	max := uint64(100 - a.sb.DataStart())
	assert.Equal(max, a.NumFree(dev), "all data blocks should be initially free")

	l.BeginOp()
	n := a.Alloc(dev)
	assert.Equal(a.sb.DataStart(), n, "first fit")
	n2 := a.Alloc(dev)
	assert.Equal(n+1, n2)
	l.EndOp()
	assert.Equal(max-2, a.NumFree(dev), "should have used 2 blocks")

	l.BeginOp()
	a.Free(dev, n)
	l.EndOp()
	assert.Equal(max-1, a.NumFree(dev), "should have freed")

	l.BeginOp()
	assert.Equal(n, a.Alloc(dev), "freed block is reused")
	l.EndOp()
}

func TestAllocZeroes(t *testing.T) {
	a, l, d := mkAlloc(t, 100)
	dirty := make(disk.Block, disk.BlockSize)
	dirty[0] = 0xff
	require.NoError(t, d.Write(uint64(a.sb.DataStart()), dirty))

	l.BeginOp()
	bn := a.Alloc(dev)
	l.EndOp()
	blk, err := d.Read(uint64(bn))
	require.NoError(t, err)
	assert.Equal(t, make(disk.Block, disk.BlockSize), blk)
}

func TestAllocExhausted(t *testing.T) {
	a, l, _ := mkAlloc(t, 20)
	free := a.NumFree(dev)
	// each Alloc logs a bitmap block and a data block
	for i := uint64(0); i < free; i++ {
		l.BeginOp()
		a.Alloc(dev)
		l.EndOp()
	}
	assert.Equal(t, uint64(0), a.NumFree(dev))
	l.BeginOp()
	assert.PanicsWithValue(t, "balloc: out of blocks", func() { a.Alloc(dev) })
}

func TestDoubleFree(t *testing.T) {
	a, l, _ := mkAlloc(t, 100)
	l.BeginOp()
	bn := a.Alloc(dev)
	a.Free(dev, bn)
	assert.PanicsWithValue(t, "bfree: freeing free block", func() { a.Free(dev, bn) })
}
