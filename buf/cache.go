package buf

import (
	"fmt"
	"sync"

	"github.com/tiqwab/xv6fs/common"
	"github.com/tiqwab/xv6fs/disk"
	"github.com/tiqwab/xv6fs/util"
)

// Cache is a fixed-capacity buffer cache over one or more attached devices.
//
// There is at most one Buf per (dev, blkno). A buffer is in use while it is
// referenced or pinned by the log; only buffers in neither state sit on the
// free list and may be recycled, least recently released first.
type Cache struct {
	mu   *sync.Mutex
	bufs *bufMap
	devs map[common.Dev]disk.Disk
}

func MkCache(nbuf uint64) *Cache {
	if nbuf == 0 {
		panic("MkCache: zero buffers")
	}
	return &Cache{
		mu:   new(sync.Mutex),
		bufs: mkBufMap(nbuf),
		devs: make(map[common.Dev]disk.Disk),
	}
}

func (c *Cache) Attach(dev common.Dev, d disk.Disk) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.devs[dev]; ok {
		return fmt.Errorf("attach %d: %w", dev, ErrDevBusy)
	}
	c.devs[dev] = d
	return nil
}

// Detach forgets dev and every cached block of it. It fails while any of
// dev's buffers is referenced or pinned.
func (c *Cache) Detach(dev common.Dev) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.devs[dev]; !ok {
		return fmt.Errorf("detach %d: %w", dev, ErrNoDev)
	}
	for i := range c.bufs.slots {
		s := &c.bufs.slots[i]
		if s.keyed && s.key.dev == dev && (s.buf.refcnt > 0 || s.buf.pinned) {
			return fmt.Errorf("detach %d: %w", dev, ErrDevInUse)
		}
	}
	for i := range c.bufs.slots {
		s := &c.bufs.slots[i]
		if s.keyed && s.key.dev == dev {
			c.bufs.forget(uint64(i))
			s.buf.valid = false
			s.buf.dirty = false
		}
	}
	delete(c.devs, dev)
	return nil
}

// Disk returns the device attached as dev.
func (c *Cache) Disk(dev common.Dev) disk.Disk {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.device(dev)
}

func (c *Cache) device(dev common.Dev) disk.Disk {
	d, ok := c.devs[dev]
	if !ok {
		panic(fmt.Errorf("bget: %w: %d", ErrNoDev, dev))
	}
	return d
}

// Get returns a referenced buffer for (dev, blkno) without loading it.
func (c *Cache) Get(dev common.Dev, blkno common.Bnum) *Buf {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.device(dev)
	k := bkey{dev: dev, blkno: blkno}
	if i, ok := c.bufs.lookup(k); ok {
		b := c.bufs.slots[i].buf
		b.refcnt += 1
		c.bufs.remove(i)
		return b
	}
	i, ok := c.bufs.popHead()
	if !ok {
		panic("bget: no buffers")
	}
	c.bufs.rekey(i, k)
	b := c.bufs.slots[i].buf
	b.Dev = dev
	b.Blkno = blkno
	b.valid = false
	b.dirty = false
	b.refcnt = 1
	util.DPrintf(10, "bget: slot %d <- (%d, %d)\n", i, dev, blkno)
	return b
}

// Read returns a referenced buffer holding the contents of (dev, blkno).
func (c *Cache) Read(dev common.Dev, blkno common.Bnum) *Buf {
	b := c.Get(dev, blkno)
	b.loadMu.Lock()
	defer b.loadMu.Unlock()
	if !b.valid {
		d := c.Disk(dev)
		err := d.ReadTo(uint64(blkno), b.Data)
		if err != nil {
			panic(fmt.Errorf("bread %d: %w", blkno, err))
		}
		b.valid = true
		b.dirty = false
	}
	return b
}

// Write writes b through to its device.
func (c *Cache) Write(b *Buf) {
	b.SetDirty()
	d := c.Disk(b.Dev)
	err := d.Write(uint64(b.Blkno), b.Data)
	if err != nil {
		panic(fmt.Errorf("bwrite %d: %w", b.Blkno, err))
	}
	b.valid = true
	b.dirty = false
}

// Release drops a reference obtained from Get or Read.
func (c *Cache) Release(b *Buf) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if b.refcnt == 0 {
		panic("brelse: not referenced")
	}
	b.refcnt -= 1
	if b.refcnt == 0 && !b.pinned {
		c.bufs.pushTail(b.slot)
	}
}

// Pin keeps b resident until Unpin, independent of its references.
func (c *Cache) Pin(b *Buf) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if b.refcnt == 0 && !b.pinned {
		panic("bpin: buffer not held")
	}
	b.pinned = true
}

func (c *Cache) Unpin(b *Buf) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !b.pinned {
		panic("bunpin: not pinned")
	}
	b.pinned = false
	if b.refcnt == 0 {
		c.bufs.pushTail(b.slot)
	}
}

// Sync issues a write barrier on dev.
func (c *Cache) Sync(dev common.Dev) {
	d := c.Disk(dev)
	err := d.Barrier()
	if err != nil {
		panic(fmt.Errorf("barrier: %w", err))
	}
}

// NBuf is the cache capacity.
func (c *Cache) NBuf() uint64 {
	return uint64(len(c.bufs.slots))
}

// NFree is the number of recyclable buffers.
func (c *Cache) NFree() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.bufs.nfree
}
