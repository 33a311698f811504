package common

import (
	"github.com/tiqwab/xv6fs/disk"
	"github.com/tiqwab/xv6fs/util"
)

const (
	BSIZE     uint64 = disk.BlockSize
	NBITBLOCK uint64 = BSIZE * 8 // bitmap bits per block

	DINODESZ uint64 = 64 // on-disk size
	IPB      uint64 = BSIZE / DINODESZ

	NDIRECT   uint64 = 12
	NINDIRECT uint64 = BSIZE / 4
	MAXFILE   uint64 = NDIRECT + NINDIRECT

	DIRSIZ    uint64 = 14
	DIRENTSZ  uint64 = 2 + DIRSIZ
	SUPERBNUM Bnum   = 1
)

// Defaults used by mkfs and mount when no configuration overrides them.
const (
	MAXOPBLOCKS uint64 = 10 // max # of blocks any FS op writes
	LOGSIZE     uint64 = MAXOPBLOCKS * 3
	NBUF        uint64 = MAXOPBLOCKS*3 + 10
	NINODE      uint64 = 50
	NFILE       uint64 = 100
	NOFILE      uint64 = 16
	FSSIZE      uint64 = 1000
	NINODES     uint64 = 200
)

// Worst-case logging of a single file system operation.
const (
	// OPMETABLOCKS counts the non-bitmap blocks of mkdir, the largest
	// metadata operation: the inode blocks of the new directory and its
	// parent, a data block of each and the parent's indirect block.
	OPMETABLOCKS uint64 = 5
	// OPALLOCS is the most blocks one metadata operation allocates (mkdir:
	// the new directory's first block and the parent's new data and
	// indirect blocks), hence the most bitmap blocks it can touch.
	OPALLOCS uint64 = 3
	// WRITEMETABLOCKS is what one file write chunk logs besides its data
	// and bitmap blocks: the inode block and the indirect block.
	WRITEMETABLOCKS uint64 = 2
)

// MinOpBlocks is the smallest max-op size every operation fits in on a
// file system with nbitmap bitmap blocks. Freeing a file touches the
// bitmap blocks of all of its blocks, so unlink grows with the bitmap.
func MinOpBlocks(nbitmap uint64) uint64 {
	mkdir := OPMETABLOCKS + util.Min(OPALLOCS, nbitmap)
	// directory data, directory inode, file inode, and the freed blocks'
	// bitmap blocks
	unlink := 3 + util.Min(MAXFILE+1, nbitmap)
	if unlink > mkdir {
		return unlink
	}
	return mkdir
}

// WriteChunkBlocks is how many data blocks one file write operation may
// cover so that it logs at most maxOp blocks.
func WriteChunkBlocks(maxOp uint64, nbitmap uint64) uint64 {
	cost := func(n uint64) uint64 {
		return n + WRITEMETABLOCKS + util.Min(n+1, nbitmap)
	}
	n := uint64(1)
	for cost(n+1) <= maxOp {
		n++
	}
	return n
}

// Inode types
type IType = int16

const (
	T_FREE IType = 0
	T_DIR  IType = 1
	T_FILE IType = 2
	T_DEV  IType = 3
)

type Dev uint32
type Inum = uint32
type Bnum = uint32

const (
	ROOTDEV Dev = 1

	NULLINUM Inum = 0
	ROOTINUM Inum = 1
	NULLBNUM Bnum = 0
)
