package addr

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tiqwab/xv6fs/common"
)

func TestBitAddr(t *testing.T) {
	assert := assert.New(t)
	a := MkBitAddr(10, 0)
	assert.Equal(common.Bnum(10), a.Blkno)
	assert.Equal(uint64(0), a.ByteOff())
	assert.Equal(byte(1), a.Mask())

	a = MkBitAddr(10, 13)
	assert.Equal(uint64(1), a.ByteOff())
	assert.Equal(byte(1<<5), a.Mask())

	a = MkBitAddr(10, common.NBITBLOCK+2)
	assert.Equal(common.Bnum(11), a.Blkno)
	assert.Equal(uint64(2), a.Off)
}

func TestInodeAddr(t *testing.T) {
	assert := assert.New(t)
	a := MkInodeAddr(32, 1)
	assert.Equal(common.Bnum(32), a.Blkno)
	assert.Equal(common.DINODESZ, a.ByteOff())

	a = MkInodeAddr(32, common.Inum(common.IPB)+3)
	assert.Equal(common.Bnum(33), a.Blkno)
	assert.Equal(3*common.DINODESZ, a.ByteOff())
}

func TestFlatidDistinct(t *testing.T) {
	assert.NotEqual(t, MkBitAddr(5, 0).Flatid(), MkBitAddr(5, 1).Flatid())
	assert.NotEqual(t, MkAddr(5, 0).Flatid(), MkAddr(6, 0).Flatid())
}
