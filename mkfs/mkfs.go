// mkfs lays out an empty file system on a device:
//
//	[ boot | super | log | inodes | bitmap | data ]
//
// It writes straight to the disk; nothing is logged because nothing can be
// mounted until it is done.
package mkfs

import (
	"fmt"

	"github.com/tiqwab/xv6fs/common"
	"github.com/tiqwab/xv6fs/config"
	"github.com/tiqwab/xv6fs/dir"
	"github.com/tiqwab/xv6fs/disk"
	"github.com/tiqwab/xv6fs/inode"
	"github.com/tiqwab/xv6fs/super"
	"github.com/tiqwab/xv6fs/util"
)

// Layout computes the superblock for an image described by cfg.
func Layout(cfg config.Config) (*super.Superblock, error) {
	if cfg.Nlog < 2 {
		return nil, fmt.Errorf("%w: log of %d blocks", ErrTooSmall, cfg.Nlog)
	}
	if cfg.Ninodes < 2 {
		return nil, fmt.Errorf("%w: %d inodes", ErrTooSmall, cfg.Ninodes)
	}
	if cfg.Size > uint64(^uint32(0)) {
		return nil, fmt.Errorf("%w: image of %d blocks", ErrTooLarge, cfg.Size)
	}
	nbitmap := cfg.Size/common.NBITBLOCK + 1
	ninodeblocks := cfg.Ninodes/common.IPB + 1
	nmeta := 2 + cfg.Nlog + ninodeblocks + nbitmap
	// the root directory needs one data block
	if nmeta+1 > cfg.Size {
		return nil, fmt.Errorf("%w: %d metadata blocks in an image of %d",
			ErrTooSmall, nmeta, cfg.Size)
	}
	sb := &super.Superblock{
		Size:       uint32(cfg.Size),
		Nblocks:    uint32(cfg.Size - nmeta),
		Ninodes:    uint32(cfg.Ninodes),
		Nlog:       uint32(cfg.Nlog),
		LogStart:   2,
		InodeStart: uint32(2 + cfg.Nlog),
		BmapStart:  uint32(2 + cfg.Nlog + ninodeblocks),
	}
	if uint64(sb.DataStart()) != nmeta {
		panic("mkfs: layout")
	}
	if err := sb.Validate(); err != nil {
		return nil, err
	}
	return sb, nil
}

type formatter struct {
	d         disk.Disk
	sb        *super.Superblock
	freeBlock common.Bnum // next block to hand out
}

func (f *formatter) wsect(bn common.Bnum, blk disk.Block) error {
	return f.d.Write(uint64(bn), blk)
}

func (f *formatter) rsect(bn common.Bnum) (disk.Block, error) {
	return f.d.Read(uint64(bn))
}

func (f *formatter) winode(inum common.Inum, di *inode.DInode) error {
	a := f.sb.InodeAddr(inum)
	blk, err := f.rsect(a.Blkno)
	if err != nil {
		return err
	}
	copy(blk[a.ByteOff():a.ByteOff()+common.DINODESZ], di.Encode())
	return f.wsect(a.Blkno, blk)
}

// balloc marks blocks [0, used) in use.
func (f *formatter) balloc(used uint64) error {
	if used >= common.NBITBLOCK {
		return fmt.Errorf("%w: %d blocks in use", ErrBitmapTooBig, used)
	}
	blk := make(disk.Block, disk.BlockSize)
	for bn := uint64(0); bn < used; bn++ {
		a := f.sb.BitAddr(common.Bnum(bn))
		blk[a.ByteOff()] |= a.Mask()
	}
	util.DPrintf(1, "mkfs: first %d blocks allocated\n", used)
	return f.wsect(f.sb.BmapStart, blk)
}

// Format writes an empty file system described by cfg to d: a superblock,
// an empty log, a root directory holding "." and "..", and a bitmap with
// every metadata block in use.
func Format(d disk.Disk, cfg config.Config) (*super.Superblock, error) {
	sb, err := Layout(cfg)
	if err != nil {
		return nil, err
	}
	dsize, err := d.Size()
	if err != nil {
		return nil, fmt.Errorf("mkfs: %w", err)
	}
	if dsize < uint64(sb.Size) {
		return nil, fmt.Errorf("%w: device has %d blocks, need %d", ErrTooSmall, dsize, sb.Size)
	}
	util.DPrintf(1, "mkfs: nmeta %d (log %d, inode blocks %d, bitmap %d) blocks %d total %d\n",
		sb.DataStart(), sb.Nlog, sb.NInodeBlocks(), sb.NBitmap(), sb.Nblocks, sb.Size)

	f := &formatter{d: d, sb: sb, freeBlock: sb.DataStart()}
	zeroes := make(disk.Block, disk.BlockSize)
	for bn := uint32(0); bn < sb.Size; bn++ {
		if err := f.wsect(bn, zeroes); err != nil {
			return nil, fmt.Errorf("mkfs: zero block %d: %w", bn, err)
		}
	}
	if err := f.wsect(common.SUPERBNUM, sb.Encode()); err != nil {
		return nil, fmt.Errorf("mkfs: superblock: %w", err)
	}

	// root directory
	rootBlock := f.freeBlock
	f.freeBlock++
	dirblk := make(disk.Block, disk.BlockSize)
	copy(dirblk[0:], dir.DirEnt{Inum: common.ROOTINUM, Name: "."}.Encode())
	copy(dirblk[common.DIRENTSZ:], dir.DirEnt{Inum: common.ROOTINUM, Name: ".."}.Encode())
	if err := f.wsect(rootBlock, dirblk); err != nil {
		return nil, fmt.Errorf("mkfs: root directory: %w", err)
	}
	root := inode.DInode{Type: common.T_DIR, Nlink: 1, Size: uint32(common.BSIZE)}
	root.Addrs[0] = rootBlock
	if err := f.winode(common.ROOTINUM, &root); err != nil {
		return nil, fmt.Errorf("mkfs: root inode: %w", err)
	}

	if err := f.balloc(uint64(f.freeBlock)); err != nil {
		return nil, err
	}
	if err := d.Barrier(); err != nil {
		return nil, fmt.Errorf("mkfs: %w", err)
	}
	return sb, nil
}
