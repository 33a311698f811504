package disk

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func block(b byte) Block {
	v := make(Block, BlockSize)
	for i := range v {
		v[i] = b
	}
	return v
}

func checkReadWrite(t *testing.T, d Disk) {
	assert := assert.New(t)
	sz, err := d.Size()
	require.NoError(t, err)
	assert.Equal(uint64(16), sz)

	require.NoError(t, d.Write(3, block(7)))
	require.NoError(t, d.Write(9, block(9)))
	v, err := d.Read(3)
	require.NoError(t, err)
	assert.Equal(block(7), v)

	buf := make(Block, BlockSize)
	require.NoError(t, d.ReadTo(9, buf))
	assert.Equal(block(9), buf)

	v, err = d.Read(8)
	require.NoError(t, err)
	assert.Equal(block(0), v, "unwritten block should read as zeros")

	assert.NoError(d.Barrier())
	assert.Panics(func() { d.Read(16) })
	assert.Panics(func() { d.Write(0, make(Block, 10)) })
}

func TestMemDisk(t *testing.T) {
	checkReadWrite(t, NewMemDisk(16))
}

func TestFileDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fs.img")
	d, err := NewFileDisk(path, 16)
	require.NoError(t, err)
	checkReadWrite(t, d)
	require.NoError(t, d.Close())

	d, err = OpenFileDisk(path)
	require.NoError(t, err)
	defer d.Close()
	v, err := d.Read(3)
	require.NoError(t, err)
	assert.Equal(t, block(7), v, "writes should persist across open")
}

func TestPagedDisk(t *testing.T) {
	checkReadWrite(t, NewPagedMemDisk(16))
}

func TestPagedDiskSectorsIndependent(t *testing.T) {
	d := NewPagedMemDisk(16)
	for a := uint64(0); a < SectorsPerPage; a++ {
		require.NoError(t, d.Write(a, block(byte(a+1))))
	}
	for a := uint64(0); a < SectorsPerPage; a++ {
		v, err := d.Read(a)
		require.NoError(t, err)
		assert.Equal(t, block(byte(a+1)), v, "sector %d", a)
	}
}

func TestPagedFileDiskMatchesFlatImage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fs.img")
	d, err := NewPagedFileDisk(path, 16)
	require.NoError(t, err)
	require.NoError(t, d.Write(5, block(5)))
	require.NoError(t, d.Close())

	flat, err := OpenFileDisk(path)
	require.NoError(t, err)
	defer flat.Close()
	v, err := flat.Read(5)
	require.NoError(t, err)
	assert.Equal(t, block(5), v)
}

func TestCrashDisk(t *testing.T) {
	assert := assert.New(t)
	c := NewCrashDisk(NewMemDisk(8))
	assert.NoError(c.Write(0, block(1)))
	c.CrashAfter(1)
	assert.False(c.Crashed())
	assert.NoError(c.Write(1, block(2)))
	assert.NoError(c.Write(2, block(3)), "dropped writes do not fail")
	assert.True(c.Crashed())
	assert.Equal(uint64(2), c.Writes())

	v, _ := c.Underlying().Read(1)
	assert.Equal(block(2), v)
	v, _ = c.Underlying().Read(2)
	assert.Equal(block(0), v, "write after crash point should be lost")
}
