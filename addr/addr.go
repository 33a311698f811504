package addr

import (
	"github.com/tiqwab/xv6fs/common"
)

// Addr identifies the start of a disk object.
//
// Blkno is the block number containing the object, and Off is the location of
// the object within the block (expressed as a bit offset). The size of the
// object is determined by the context in which Addr is used: one bit for a
// bitmap entry, DINODESZ bytes for an inode record.
type Addr struct {
	Blkno common.Bnum
	Off   uint64 // offset in bits
}

func (a Addr) Flatid() uint64 {
	return uint64(a.Blkno)*(common.BSIZE*8) + a.Off
}

// ByteOff is the byte containing the start of the object.
func (a Addr) ByteOff() uint64 {
	return a.Off / 8
}

// Mask selects the object's bit within the byte at ByteOff.
func (a Addr) Mask() byte {
	return byte(1) << (a.Off % 8)
}

func MkAddr(blkno common.Bnum, off uint64) Addr {
	return Addr{Blkno: blkno, Off: off}
}

// MkBitAddr locates bit n of a bitmap whose first block is start.
func MkBitAddr(start common.Bnum, n uint64) Addr {
	bit := n % common.NBITBLOCK
	i := n / common.NBITBLOCK
	addr := MkAddr(start+common.Bnum(i), bit)
	return addr
}

// MkInodeAddr locates the record of inode inum in an inode region that starts
// at block start.
func MkInodeAddr(start common.Bnum, inum common.Inum) Addr {
	i := uint64(inum) / common.IPB
	off := (uint64(inum) % common.IPB) * common.DINODESZ * 8
	return MkAddr(start+common.Bnum(i), off)
}
