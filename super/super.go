// super decodes the superblock, which describes the disk layout:
//
//	[ boot | super | log | inodes | bitmap | data ]
//
// It is written once by mkfs and read once at mount.
package super

import (
	"fmt"

	"github.com/tchajed/marshal"

	"github.com/tiqwab/xv6fs/addr"
	"github.com/tiqwab/xv6fs/buf"
	"github.com/tiqwab/xv6fs/common"
	"github.com/tiqwab/xv6fs/disk"
	"github.com/tiqwab/xv6fs/util"
)

const sbFields = 7

type Superblock struct {
	Size       uint32 // size of file system image (blocks)
	Nblocks    uint32 // number of data blocks
	Ninodes    uint32 // number of inodes
	Nlog       uint32 // number of log blocks, including the header
	LogStart   uint32 // block number of first log block
	InodeStart uint32 // block number of first inode block
	BmapStart  uint32 // block number of first free map block
}

func Decode(blk disk.Block) *Superblock {
	dec := marshal.NewDec(blk)
	sb := &Superblock{}
	sb.Size = dec.GetInt32()
	sb.Nblocks = dec.GetInt32()
	sb.Ninodes = dec.GetInt32()
	sb.Nlog = dec.GetInt32()
	sb.LogStart = dec.GetInt32()
	sb.InodeStart = dec.GetInt32()
	sb.BmapStart = dec.GetInt32()
	return sb
}

// Encode returns the superblock as a full disk block.
func (sb *Superblock) Encode() disk.Block {
	enc := marshal.NewEnc(common.BSIZE)
	enc.PutInt32(sb.Size)
	enc.PutInt32(sb.Nblocks)
	enc.PutInt32(sb.Ninodes)
	enc.PutInt32(sb.Nlog)
	enc.PutInt32(sb.LogStart)
	enc.PutInt32(sb.InodeStart)
	enc.PutInt32(sb.BmapStart)
	return enc.Finish()
}

// Read loads and validates the superblock of dev.
func Read(cache *buf.Cache, dev common.Dev) (*Superblock, error) {
	b := cache.Read(dev, common.SUPERBNUM)
	sb := Decode(b.Data)
	cache.Release(b)
	if err := sb.Validate(); err != nil {
		return nil, err
	}
	util.DPrintf(1, "super: %+v\n", *sb)
	return sb, nil
}

func (sb *Superblock) NInodeBlocks() uint32 {
	return sb.Ninodes/uint32(common.IPB) + 1
}

func (sb *Superblock) NBitmap() uint32 {
	return sb.Size/uint32(common.NBITBLOCK) + 1
}

// Validate checks that the regions are ordered and fit inside the image.
func (sb *Superblock) Validate() error {
	bad := func(why string) error {
		return fmt.Errorf("%w: %s", ErrBadSuperblock, why)
	}
	if sb.Size == 0 || sb.Ninodes == 0 {
		return bad("empty file system")
	}
	if sb.Ninodes > uint32(^uint16(0)) {
		return bad("too many inodes for directory entries")
	}
	if sb.LogStart <= uint32(common.SUPERBNUM) {
		return bad("log overlaps superblock")
	}
	if sb.Nlog < 2 {
		return bad("log too small")
	}
	if util.SumOverflows32(sb.LogStart, sb.Nlog) || sb.LogStart+sb.Nlog > sb.InodeStart {
		return bad("log overlaps inodes")
	}
	if util.SumOverflows32(sb.InodeStart, sb.NInodeBlocks()) ||
		sb.InodeStart+sb.NInodeBlocks() > sb.BmapStart {
		return bad("inodes overlap bitmap")
	}
	if util.SumOverflows32(sb.BmapStart, sb.NBitmap()) || sb.BmapStart+sb.NBitmap() > sb.Size {
		return bad("bitmap exceeds image")
	}
	if sb.Nblocks > sb.Size-uint32(sb.DataStart()) {
		return bad("data blocks exceed image")
	}
	return nil
}

// IBlock is the block holding inode inum.
func (sb *Superblock) IBlock(inum common.Inum) common.Bnum {
	return sb.InodeStart + inum/uint32(common.IPB)
}

// BBlock is the bitmap block holding the bit for block bn.
func (sb *Superblock) BBlock(bn common.Bnum) common.Bnum {
	return sb.BmapStart + bn/uint32(common.NBITBLOCK)
}

func (sb *Superblock) InodeAddr(inum common.Inum) addr.Addr {
	return addr.MkInodeAddr(sb.InodeStart, inum)
}

func (sb *Superblock) BitAddr(bn common.Bnum) addr.Addr {
	return addr.MkBitAddr(sb.BmapStart, uint64(bn))
}

// DataStart is the first block after the metadata regions.
func (sb *Superblock) DataStart() common.Bnum {
	return sb.BmapStart + sb.NBitmap()
}

// LogCapacity is the number of data blocks the log can hold: every log
// block but the header, limited by how many block numbers fit in the header.
func (sb *Superblock) LogCapacity() uint64 {
	hdrRoom := (common.BSIZE - 4) / 4
	return util.Min(uint64(sb.Nlog)-1, hdrRoom)
}
