package super

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tiqwab/xv6fs/buf"
	"github.com/tiqwab/xv6fs/common"
	"github.com/tiqwab/xv6fs/disk"
)

// layout of the default xv6 image
func defaultSb() *Superblock {
	return &Superblock{
		Size:       1000,
		Nblocks:    1000 - 60,
		Ninodes:    200,
		Nlog:       31,
		LogStart:   2,
		InodeStart: 33,
		BmapStart:  59,
	}
}

func TestEncodeDecode(t *testing.T) {
	sb := defaultSb()
	blk := sb.Encode()
	assert.Equal(t, common.BSIZE, uint64(len(blk)))
	assert.Equal(t, []byte{0xe8, 0x03, 0, 0}, blk[0:4], "size is little endian")
	assert.Equal(t, sb, Decode(blk))
}

func TestRead(t *testing.T) {
	d := disk.NewMemDisk(1000)
	require.NoError(t, d.Write(uint64(common.SUPERBNUM), defaultSb().Encode()))
	c := buf.MkCache(4)
	require.NoError(t, c.Attach(common.ROOTDEV, d))

	sb, err := Read(c, common.ROOTDEV)
	require.NoError(t, err)
	assert.Equal(t, defaultSb(), sb)
	assert.Equal(t, uint64(4), c.NFree(), "superblock buffer released")
}

func TestReadGarbage(t *testing.T) {
	d := disk.NewMemDisk(10)
	c := buf.MkCache(4)
	require.NoError(t, c.Attach(common.ROOTDEV, d))
	_, err := Read(c, common.ROOTDEV)
	assert.ErrorIs(t, err, ErrBadSuperblock)
}

func TestValidate(t *testing.T) {
	assert := assert.New(t)
	assert.NoError(defaultSb().Validate())

	sb := defaultSb()
	sb.InodeStart = 20
	assert.ErrorIs(sb.Validate(), ErrBadSuperblock)

	sb = defaultSb()
	sb.BmapStart = 50
	assert.ErrorIs(sb.Validate(), ErrBadSuperblock)

	sb = defaultSb()
	sb.Size = 59
	assert.ErrorIs(sb.Validate(), ErrBadSuperblock)

	sb = defaultSb()
	sb.Nlog = 1
	assert.ErrorIs(sb.Validate(), ErrBadSuperblock)
}

func TestValidateInodeLimit(t *testing.T) {
	assert := assert.New(t)
	// room for 65536 inodes, but directory entries hold 16-bit numbers
	sb := &Superblock{
		Size:       10000,
		Nblocks:    10000 - 8229,
		Ninodes:    65535,
		Nlog:       31,
		LogStart:   2,
		InodeStart: 33,
		BmapStart:  33 + 65536/8 + 1,
	}
	assert.NoError(sb.Validate())

	sb.Ninodes = 65536
	assert.ErrorIs(sb.Validate(), ErrBadSuperblock)
}

func TestLayout(t *testing.T) {
	assert := assert.New(t)
	sb := defaultSb()
	assert.Equal(common.Bnum(33), sb.IBlock(1))
	assert.Equal(common.Bnum(34), sb.IBlock(8))
	assert.Equal(common.Bnum(59), sb.BBlock(100))
	assert.Equal(common.Bnum(60), sb.DataStart())
	assert.Equal(uint64(30), sb.LogCapacity())
	assert.Equal(sb.IBlock(9), sb.InodeAddr(9).Blkno)
	assert.Equal(sb.BBlock(4100), sb.BitAddr(4100).Blkno)

	sb.Nlog = 200
	assert.Equal(uint64(127), sb.LogCapacity(), "header holds at most 127 entries")
}
