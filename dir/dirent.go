package dir

import (
	"encoding/binary"

	"github.com/tiqwab/xv6fs/common"
)

// DirEnt is one directory slot: a 16-bit inode number followed by a
// NUL-padded name of at most DIRSIZ bytes. Inum 0 marks a free slot.
type DirEnt struct {
	Inum common.Inum
	Name string
}

func (de DirEnt) Encode() []byte {
	b := make([]byte, common.DIRENTSZ)
	binary.LittleEndian.PutUint16(b[0:2], uint16(de.Inum))
	copy(b[2:], TruncName(de.Name))
	return b
}

func DecodeDirEnt(b []byte) DirEnt {
	inum := binary.LittleEndian.Uint16(b[0:2])
	nam := b[2:common.DIRENTSZ]
	for i := range nam {
		if nam[i] == 0 {
			nam = nam[:i]
			break
		}
	}
	return DirEnt{Inum: common.Inum(inum), Name: string(nam)}
}

// TruncName cuts name to what a directory slot can hold; names are only
// significant up to DIRSIZ bytes.
func TruncName(name string) string {
	if uint64(len(name)) > common.DIRSIZ {
		return name[:common.DIRSIZ]
	}
	return name
}
