package disk

import (
	"sync"
)

var _ Disk = (*CrashDisk)(nil)

// CrashDisk wraps a Disk and simulates losing power: once armed with
// CrashAfter, it lets a fixed number of writes through and silently drops
// every write after that. Reads always see the underlying disk.
type CrashDisk struct {
	mu      *sync.Mutex
	d       Disk
	armed   bool
	left    uint64
	crashed bool
	nwrite  uint64
}

func NewCrashDisk(d Disk) *CrashDisk {
	return &CrashDisk{mu: new(sync.Mutex), d: d}
}

// CrashAfter lets n more writes reach the disk and drops the rest.
func (c *CrashDisk) CrashAfter(n uint64) {
	c.mu.Lock()
	c.armed = true
	c.left = n
	c.crashed = n == 0
	c.mu.Unlock()
}

// Crashed reports whether a write has been dropped.
func (c *CrashDisk) Crashed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.crashed
}

// Writes reports how many writes reached the underlying disk.
func (c *CrashDisk) Writes() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.nwrite
}

// Underlying returns the wrapped disk, i.e. what a reboot would find.
func (c *CrashDisk) Underlying() Disk {
	return c.d
}

func (c *CrashDisk) Read(a uint64) (Block, error) {
	return c.d.Read(a)
}

func (c *CrashDisk) ReadTo(a uint64, b Block) error {
	return c.d.ReadTo(a, b)
}

func (c *CrashDisk) Write(a uint64, v Block) error {
	c.mu.Lock()
	if c.armed {
		if c.left == 0 {
			c.crashed = true
			c.mu.Unlock()
			return nil
		}
		c.left--
	}
	c.nwrite++
	c.mu.Unlock()
	return c.d.Write(a, v)
}

func (c *CrashDisk) Size() (uint64, error) {
	return c.d.Size()
}

func (c *CrashDisk) Barrier() error {
	return c.d.Barrier()
}

func (c *CrashDisk) Close() error {
	return nil
}
