package inode

import (
	"encoding/binary"

	"github.com/tchajed/marshal"

	"github.com/tiqwab/xv6fs/common"
)

// DInode is the on-disk inode record (DINODESZ bytes):
//
//	int16 type, int16 major, int16 minor, int16 nlink,
//	uint32 size, uint32 addrs[NDIRECT+1]
//
// Addrs holds NDIRECT direct block numbers followed by the indirect block.
type DInode struct {
	Type  common.IType
	Major int16
	Minor int16
	Nlink int16
	Size  uint32
	Addrs [common.NDIRECT + 1]common.Bnum
}

const nshort = 4

// marshal has no 16-bit codec, so the leading shorts go through
// encoding/binary and the rest through marshal.
func (di *DInode) Encode() []byte {
	b := make([]byte, common.DINODESZ)
	binary.LittleEndian.PutUint16(b[0:], uint16(di.Type))
	binary.LittleEndian.PutUint16(b[2:], uint16(di.Major))
	binary.LittleEndian.PutUint16(b[4:], uint16(di.Minor))
	binary.LittleEndian.PutUint16(b[6:], uint16(di.Nlink))
	enc := marshal.NewEnc(common.DINODESZ - 2*nshort)
	enc.PutInt32(di.Size)
	for _, a := range di.Addrs {
		enc.PutInt32(a)
	}
	copy(b[2*nshort:], enc.Finish())
	return b
}

func DecodeDInode(b []byte) DInode {
	var di DInode
	di.Type = common.IType(binary.LittleEndian.Uint16(b[0:]))
	di.Major = int16(binary.LittleEndian.Uint16(b[2:]))
	di.Minor = int16(binary.LittleEndian.Uint16(b[4:]))
	di.Nlink = int16(binary.LittleEndian.Uint16(b[6:]))
	dec := marshal.NewDec(b[2*nshort : common.DINODESZ])
	di.Size = dec.GetInt32()
	for i := range di.Addrs {
		di.Addrs[i] = dec.GetInt32()
	}
	return di
}
