package inode

import (
	"fmt"
	"sync"

	"github.com/tiqwab/xv6fs/alloc"
	"github.com/tiqwab/xv6fs/buf"
	"github.com/tiqwab/xv6fs/common"
	"github.com/tiqwab/xv6fs/lockmap"
	"github.com/tiqwab/xv6fs/super"
	"github.com/tiqwab/xv6fs/util"
	"github.com/tiqwab/xv6fs/wal"
)

type ikey struct {
	dev  common.Dev
	inum common.Inum
}

// Cache holds in-memory inodes, at most one per (dev, inum).
//
// The cache lock protects the table and every inode's reference count. An
// entry lives while it is referenced; unreferenced entries stay cached and
// are recycled when the table is full. An inode whose last reference goes
// away while it has no links is freed on disk by Put.
type Cache struct {
	mu      *sync.Mutex
	ninode  uint64
	entries map[ikey]*Inode

	bufs  *buf.Cache
	log   *wal.Log
	sb    *super.Superblock
	alloc *alloc.Alloc
	locks *lockmap.LockMap
	devsw *devsw
}

func MkCache(ninode uint64, bufs *buf.Cache, log *wal.Log, sb *super.Superblock,
	alloc *alloc.Alloc, locks *lockmap.LockMap) *Cache {
	if ninode == 0 {
		panic("MkCache: zero inodes")
	}
	return &Cache{
		mu:      new(sync.Mutex),
		ninode:  ninode,
		entries: make(map[ikey]*Inode),
		bufs:    bufs,
		log:     log,
		sb:      sb,
		alloc:   alloc,
		locks:   locks,
		devsw:   mkDevsw(),
	}
}

func (ic *Cache) Superblock() *super.Superblock {
	return ic.sb
}

// Alloc finds a free on-disk inode, marks it with typ and returns it
// referenced but unlocked. Must be called inside an operation.
func (ic *Cache) Alloc(dev common.Dev, typ common.IType, major int16, minor int16) (*Inode, error) {
	if typ == common.T_FREE {
		panic("ialloc: free type")
	}
	for inum := common.Inum(1); inum < ic.sb.Ninodes; inum++ {
		ib := ic.sb.IBlock(inum)
		ic.locks.AcquireBlock(dev, ib)
		b := ic.bufs.Read(dev, ib)
		off := ic.sb.InodeAddr(inum).ByteOff()
		di := DecodeDInode(b.Data[off : off+common.DINODESZ])
		if di.Type == common.T_FREE {
			di = DInode{Type: typ, Major: major, Minor: minor}
			copy(b.Data[off:off+common.DINODESZ], di.Encode())
			b.SetDirty()
			ic.log.LogWrite(b)
			ic.bufs.Release(b)
			ic.locks.ReleaseBlock(dev, ib)
			util.DPrintf(5, "ialloc: %d type %d\n", inum, typ)
			return ic.Get(dev, inum), nil
		}
		ic.bufs.Release(b)
		ic.locks.ReleaseBlock(dev, ib)
	}
	return nil, ErrNoInodes
}

// Get returns a referenced in-memory inode for (dev, inum). It does not
// lock it or read it from disk.
func (ic *Cache) Get(dev common.Dev, inum common.Inum) *Inode {
	ic.mu.Lock()
	defer ic.mu.Unlock()
	k := ikey{dev: dev, inum: inum}
	if ip, ok := ic.entries[k]; ok {
		ip.ref += 1
		return ip
	}
	if uint64(len(ic.entries)) >= ic.ninode {
		ic.evict()
	}
	ip := mkInode(ic, dev, inum)
	ip.ref = 1
	ic.entries[k] = ip
	return ip
}

// evict drops one unreferenced entry. Assumes caller holds mu.
func (ic *Cache) evict() {
	for k, ip := range ic.entries {
		if ip.ref == 0 {
			util.DPrintf(10, "iget: recycle %d\n", k.inum)
			delete(ic.entries, k)
			return
		}
	}
	panic("iget: no inodes")
}

// Dup adds a reference to ip.
func (ic *Cache) Dup(ip *Inode) *Inode {
	ic.mu.Lock()
	defer ic.mu.Unlock()
	ip.ref += 1
	return ip
}

// Put drops a reference to ip. If that was the last reference and the
// inode has no links left, its contents are freed and the on-disk inode is
// released, so Put must be called inside an operation.
func (ic *Cache) Put(ip *Inode) {
	ip.acquire()
	if ip.valid && ip.Nlink == 0 {
		ic.mu.Lock()
		r := ip.ref
		ic.mu.Unlock()
		if r == 1 {
			// no links and no other references: nobody can reach it
			util.DPrintf(5, "iput: free %d\n", ip.Inum)
			ip.Trunc()
			ip.Type = common.T_FREE
			ip.Update()
			ip.valid = false
		}
	}
	ip.Unlock()

	ic.mu.Lock()
	defer ic.mu.Unlock()
	if ip.ref == 0 {
		panic(fmt.Errorf("iput: inode %d not referenced", ip.Inum))
	}
	ip.ref -= 1
	if ip.ref == 0 && !ip.valid {
		delete(ic.entries, ikey{dev: ip.Dev, inum: ip.Inum})
	}
}

func (ic *Cache) UnlockPut(ip *Inode) {
	ip.Unlock()
	ic.Put(ip)
}

// NumFree counts the free on-disk inodes of dev.
func (ic *Cache) NumFree(dev common.Dev) uint64 {
	var n uint64
	for inum := common.Inum(1); inum < ic.sb.Ninodes; inum++ {
		ib := ic.sb.IBlock(inum)
		ic.locks.AcquireBlock(dev, ib)
		b := ic.bufs.Read(dev, ib)
		off := ic.sb.InodeAddr(inum).ByteOff()
		if DecodeDInode(b.Data[off:off+common.DINODESZ]).Type == common.T_FREE {
			n++
		}
		ic.bufs.Release(b)
		ic.locks.ReleaseBlock(dev, ib)
	}
	return n
}

// Len is the number of cached inodes.
func (ic *Cache) Len() uint64 {
	ic.mu.Lock()
	defer ic.mu.Unlock()
	return uint64(len(ic.entries))
}
