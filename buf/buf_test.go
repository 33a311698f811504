package buf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tiqwab/xv6fs/common"
	"github.com/tiqwab/xv6fs/disk"
)

const dev = common.ROOTDEV

func mkTestCache(t *testing.T, nbuf uint64) (*Cache, disk.Disk) {
	d := disk.NewMemDisk(64)
	c := MkCache(nbuf)
	require.NoError(t, c.Attach(dev, d))
	return c, d
}

func TestBufIdentity(t *testing.T) {
	assert := assert.New(t)
	c, _ := mkTestCache(t, 4)
	b1 := c.Read(dev, 7)
	b2 := c.Read(dev, 7)
	assert.Same(b1, b2, "one buffer per block")
	c.Release(b1)
	c.Release(b2)

	b3 := c.Read(dev, 7)
	assert.Same(b1, b3, "released buffer should still be cached")
	c.Release(b3)
}

func TestReadWrite(t *testing.T) {
	assert := assert.New(t)
	c, d := mkTestCache(t, 4)
	b := c.Read(dev, 3)
	b.Data[0] = 42
	b.PutUint32At(4, 0xdeadbeef)
	assert.True(b.IsDirty())
	c.Write(b)
	assert.False(b.IsDirty())
	c.Release(b)

	blk, err := d.Read(3)
	require.NoError(t, err)
	assert.Equal(byte(42), blk[0])
	assert.Equal(byte(0xef), blk[4], "little endian")

	b = c.Read(dev, 3)
	assert.Equal(uint32(0xdeadbeef), b.Uint32At(4))
	assert.Equal(common.Bnum(0xdeadbeef), b.BnumGet(1))
	c.Release(b)
}

func TestLRURecycling(t *testing.T) {
	assert := assert.New(t)
	c, _ := mkTestCache(t, 2)
	b1 := c.Read(dev, 1)
	b2 := c.Read(dev, 2)
	c.Release(b1)
	c.Release(b2)

	// block 1 was released first, so its slot is reused
	b3 := c.Read(dev, 3)
	assert.Same(b1, b3)
	assert.Equal(common.Bnum(3), b3.Blkno)
	c.Release(b3)

	b2again := c.Get(dev, 2)
	assert.Same(b2, b2again, "block 2 should have stayed cached")
	c.Release(b2again)
}

func TestPinPreventsEviction(t *testing.T) {
	assert := assert.New(t)
	c, _ := mkTestCache(t, 2)
	b := c.Read(dev, 5)
	c.Pin(b)
	c.Release(b)
	assert.Equal(uint64(1), c.NFree())

	other := c.Read(dev, 6)
	c.Release(other)
	other = c.Read(dev, 7)
	c.Release(other)

	b2 := c.Get(dev, 5)
	assert.Same(b, b2, "pinned buffer must not be recycled")
	c.Release(b2)
	c.Unpin(b)
	assert.Equal(uint64(2), c.NFree())
}

func TestExhaustion(t *testing.T) {
	c, _ := mkTestCache(t, 2)
	c.Get(dev, 1)
	c.Get(dev, 2)
	assert.Panics(t, func() { c.Get(dev, 3) })
}

func TestReleaseTwicePanics(t *testing.T) {
	c, _ := mkTestCache(t, 2)
	b := c.Get(dev, 1)
	c.Release(b)
	assert.Panics(t, func() { c.Release(b) })
}

func TestAttachDetach(t *testing.T) {
	assert := assert.New(t)
	c, d := mkTestCache(t, 2)
	assert.ErrorIs(c.Attach(dev, d), ErrDevBusy)

	b := c.Read(dev, 1)
	assert.ErrorIs(c.Detach(dev), ErrDevInUse)
	c.Pin(b)
	c.Release(b)
	assert.ErrorIs(c.Detach(dev), ErrDevInUse, "pinned buffers keep the device busy")
	c.Unpin(b)
	assert.NoError(c.Detach(dev))
	assert.ErrorIs(c.Detach(dev), ErrNoDev)
	assert.Panics(func() { c.Get(dev, 1) })
}

func TestSlotFreeList(t *testing.T) {
	assert := assert.New(t)
	m := mkBufMap(3)
	assert.Equal(uint64(3), m.nfree)
	i, ok := m.popHead()
	assert.True(ok)
	assert.Equal(uint64(0), i)
	m.remove(2)
	j, _ := m.popHead()
	assert.Equal(uint64(1), j)
	_, ok = m.popHead()
	assert.False(ok)
	m.pushTail(2)
	m.pushTail(0)
	i, _ = m.popHead()
	assert.Equal(uint64(2), i)
}
