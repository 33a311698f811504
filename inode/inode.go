package inode

import (
	"fmt"
	"sync"

	"github.com/tiqwab/xv6fs/common"
	"github.com/tiqwab/xv6fs/util"
)

// Inode is the in-memory copy of an on-disk inode.
//
// ref is protected by the cache lock. Everything else, including the
// embedded DInode, is protected by the inode's own lock and is only
// meaningful once Lock has loaded it (valid).
type Inode struct {
	Dev  common.Dev
	Inum common.Inum

	ic  *Cache
	ref uint64

	mu     *sync.Mutex
	locked bool
	valid  bool
	DInode
}

func mkInode(ic *Cache, dev common.Dev, inum common.Inum) *Inode {
	return &Inode{
		Dev:  dev,
		Inum: inum,
		ic:   ic,
		mu:   new(sync.Mutex),
	}
}

type Stat struct {
	Dev   common.Dev
	Ino   common.Inum
	Type  common.IType
	Nlink int16
	Size  uint64
}

func (ip *Inode) acquire() {
	ip.mu.Lock()
	ip.locked = true
}

// Lock acquires ip exclusively, reading it from disk the first time.
func (ip *Inode) Lock() {
	ip.acquire()
	if ip.valid {
		return
	}
	sb := ip.ic.sb
	ib := sb.IBlock(ip.Inum)
	ip.ic.locks.AcquireBlock(ip.Dev, ib)
	b := ip.ic.bufs.Read(ip.Dev, ib)
	off := sb.InodeAddr(ip.Inum).ByteOff()
	ip.DInode = DecodeDInode(b.Data[off : off+common.DINODESZ])
	ip.ic.bufs.Release(b)
	ip.ic.locks.ReleaseBlock(ip.Dev, ib)
	ip.valid = true
	if ip.Type == common.T_FREE {
		panic(fmt.Errorf("ilock: inode %d has no type", ip.Inum))
	}
}

func (ip *Inode) Unlock() {
	if !ip.locked {
		panic("iunlock: not locked")
	}
	ip.locked = false
	ip.mu.Unlock()
}

// Update writes ip's fields to its on-disk record through the log. It must
// be called after every change to a field that lives on disk, inside an
// operation, with ip locked.
func (ip *Inode) Update() {
	sb := ip.ic.sb
	ib := sb.IBlock(ip.Inum)
	ip.ic.locks.AcquireBlock(ip.Dev, ib)
	defer ip.ic.locks.ReleaseBlock(ip.Dev, ib)
	b := ip.ic.bufs.Read(ip.Dev, ib)
	defer ip.ic.bufs.Release(b)
	off := sb.InodeAddr(ip.Inum).ByteOff()
	copy(b.Data[off:off+common.DINODESZ], ip.DInode.Encode())
	b.SetDirty()
	ip.ic.log.LogWrite(b)
	util.DPrintf(10, "iupdate: %d %+v\n", ip.Inum, ip.DInode)
}

// Trunc discards ip's contents. Caller holds the lock, inside an operation.
func (ip *Inode) Trunc() {
	a := ip.ic.alloc
	for i := uint64(0); i < common.NDIRECT; i++ {
		if ip.Addrs[i] != common.NULLBNUM {
			a.Free(ip.Dev, ip.Addrs[i])
			ip.Addrs[i] = common.NULLBNUM
		}
	}
	if ind := ip.Addrs[common.NDIRECT]; ind != common.NULLBNUM {
		b := ip.ic.bufs.Read(ip.Dev, ind)
		for j := uint64(0); j < common.NINDIRECT; j++ {
			if bn := b.BnumGet(j); bn != common.NULLBNUM {
				a.Free(ip.Dev, bn)
			}
		}
		ip.ic.bufs.Release(b)
		a.Free(ip.Dev, ind)
		ip.Addrs[common.NDIRECT] = common.NULLBNUM
	}
	ip.Size = 0
	ip.Update()
}

func (ip *Inode) Stat() Stat {
	return Stat{
		Dev:   ip.Dev,
		Ino:   ip.Inum,
		Type:  ip.Type,
		Nlink: ip.Nlink,
		Size:  uint64(ip.Size),
	}
}

// Cache is the inode cache ip belongs to.
func (ip *Inode) Cache() *Cache {
	return ip.ic
}

func (ip *Inode) IsDir() bool {
	return ip.Type == common.T_DIR
}

// Read copies up to len(dst) bytes starting at off. Reads stop at the end
// of the file. Caller holds the lock.
func (ip *Inode) Read(dst []byte, off uint64) (uint64, error) {
	if ip.Type == common.T_DEV {
		d, err := ip.ic.devsw.get(ip.Major)
		if err != nil {
			return 0, err
		}
		return d.Read(dst, off)
	}
	n := uint64(len(dst))
	size := uint64(ip.Size)
	if off > size || util.SumOverflows(off, n) {
		return 0, ErrBadOffset
	}
	if off+n > size {
		n = size - off
	}
	var tot uint64
	for tot < n {
		b := ip.ic.bufs.Read(ip.Dev, ip.bmap(off/common.BSIZE))
		boff := off % common.BSIZE
		m := util.Min(n-tot, common.BSIZE-boff)
		copy(dst[tot:tot+m], b.Data[boff:boff+m])
		ip.ic.bufs.Release(b)
		tot += m
		off += m
	}
	return tot, nil
}

// Write copies src into the file at off, growing it if needed. off may be
// at most the current size. Caller holds the lock, inside an operation
// large enough for every block touched.
func (ip *Inode) Write(src []byte, off uint64) (uint64, error) {
	if ip.Type == common.T_DEV {
		d, err := ip.ic.devsw.get(ip.Major)
		if err != nil {
			return 0, err
		}
		return d.Write(src, off)
	}
	n := uint64(len(src))
	if off > uint64(ip.Size) || util.SumOverflows(off, n) {
		return 0, ErrBadOffset
	}
	if off+n > common.MAXFILE*common.BSIZE {
		return 0, ErrFileTooLarge
	}
	var tot uint64
	for tot < n {
		b := ip.ic.bufs.Read(ip.Dev, ip.bmap(off/common.BSIZE))
		boff := off % common.BSIZE
		m := util.Min(n-tot, common.BSIZE-boff)
		copy(b.Data[boff:boff+m], src[tot:tot+m])
		b.SetDirty()
		ip.ic.log.LogWrite(b)
		ip.ic.bufs.Release(b)
		tot += m
		off += m
	}
	if n > 0 && off > uint64(ip.Size) {
		ip.Size = uint32(off)
	}
	// bmap may have changed Addrs even if the size did not grow
	ip.Update()
	return n, nil
}
