package alloc

import (
	"fmt"

	"github.com/tiqwab/xv6fs/buf"
	"github.com/tiqwab/xv6fs/common"
	"github.com/tiqwab/xv6fs/lockmap"
	"github.com/tiqwab/xv6fs/super"
	"github.com/tiqwab/xv6fs/util"
	"github.com/tiqwab/xv6fs/wal"
)

// Alloc hands out disk blocks using the on-disk free bitmap. Bit n of the
// bitmap is set when block n is in use; every change goes through the log.
//
// Each bitmap block is locked in the lockmap while it is examined, so
// concurrent operations never claim the same bit.
type Alloc struct {
	cache *buf.Cache
	log   *wal.Log
	sb    *super.Superblock
	locks *lockmap.LockMap
}

func MkAlloc(cache *buf.Cache, log *wal.Log, sb *super.Superblock, locks *lockmap.LockMap) *Alloc {
	return &Alloc{
		cache: cache,
		log:   log,
		sb:    sb,
		locks: locks,
	}
}

func (a *Alloc) size() uint64 {
	return uint64(a.sb.Size)
}

// zero clears block bn inside the current operation.
func (a *Alloc) zero(dev common.Dev, bn common.Bnum) {
	b := a.cache.Read(dev, bn)
	b.Zero()
	a.log.LogWrite(b)
	a.cache.Release(b)
}

// Alloc returns a zeroed free block. Must be called inside an operation.
func (a *Alloc) Alloc(dev common.Dev) common.Bnum {
	for base := uint64(0); base < a.size(); base += common.NBITBLOCK {
		bmb := a.sb.BBlock(common.Bnum(base))
		a.locks.AcquireBlock(dev, bmb)
		b := a.cache.Read(dev, bmb)
		for n := base; n < base+common.NBITBLOCK && n < a.size(); n++ {
			ba := a.sb.BitAddr(common.Bnum(n))
			if b.Data[ba.ByteOff()]&ba.Mask() == 0 {
				b.Data[ba.ByteOff()] |= ba.Mask()
				b.SetDirty()
				a.log.LogWrite(b)
				a.cache.Release(b)
				a.locks.ReleaseBlock(dev, bmb)
				util.DPrintf(5, "balloc: %d\n", n)
				a.zero(dev, common.Bnum(n))
				return common.Bnum(n)
			}
		}
		a.cache.Release(b)
		a.locks.ReleaseBlock(dev, bmb)
	}
	panic("balloc: out of blocks")
}

// Free marks bn free. Must be called inside an operation.
func (a *Alloc) Free(dev common.Dev, bn common.Bnum) {
	if uint64(bn) >= a.size() {
		panic(fmt.Errorf("bfree: block %d out of range", bn))
	}
	bmb := a.sb.BBlock(bn)
	a.locks.AcquireBlock(dev, bmb)
	defer a.locks.ReleaseBlock(dev, bmb)
	b := a.cache.Read(dev, bmb)
	defer a.cache.Release(b)
	ba := a.sb.BitAddr(bn)
	if b.Data[ba.ByteOff()]&ba.Mask() == 0 {
		panic("bfree: freeing free block")
	}
	b.Data[ba.ByteOff()] &^= ba.Mask()
	b.SetDirty()
	a.log.LogWrite(b)
	util.DPrintf(5, "bfree: %d\n", bn)
}

func popCnt(b byte) uint64 {
	var count uint64
	var x = b
	for i := uint64(0); i < 8; i++ {
		count += uint64(x & 1)
		x = x >> 1
	}
	return count
}

// NumFree counts the free blocks recorded in the bitmap.
func (a *Alloc) NumFree(dev common.Dev) uint64 {
	var used uint64
	for base := uint64(0); base < a.size(); base += common.NBITBLOCK {
		bmb := a.sb.BBlock(common.Bnum(base))
		a.locks.AcquireBlock(dev, bmb)
		b := a.cache.Read(dev, bmb)
		nbits := util.Min(common.NBITBLOCK, a.size()-base)
		for i := uint64(0); i < nbits/8; i++ {
			used += popCnt(b.Data[i])
		}
		if rem := nbits % 8; rem != 0 {
			last := b.Data[nbits/8] & (byte(1)<<rem - 1)
			used += popCnt(last)
		}
		a.cache.Release(b)
		a.locks.ReleaseBlock(dev, bmb)
	}
	return a.size() - used
}
