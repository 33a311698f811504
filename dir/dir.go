// dir implements directories on top of inodes: a directory's contents are
// an array of DirEnt slots. All functions expect dp to be locked by the
// caller, and those that modify it to run inside an operation.
package dir

import (
	"fmt"

	"github.com/tiqwab/xv6fs/common"
	"github.com/tiqwab/xv6fs/inode"
	"github.com/tiqwab/xv6fs/util"
)

func readEnt(dp *inode.Inode, off uint64) DirEnt {
	b := make([]byte, common.DIRENTSZ)
	n, err := dp.Read(b, off)
	if err != nil || n != common.DIRENTSZ {
		panic(fmt.Errorf("dir: read %d at %d: %v", dp.Inum, off, err))
	}
	return DecodeDirEnt(b)
}

func writeEnt(dp *inode.Inode, off uint64, de DirEnt) {
	n, err := dp.Write(de.Encode(), off)
	if err != nil || n != common.DIRENTSZ {
		panic(fmt.Errorf("dir: write %d at %d: %v", dp.Inum, off, err))
	}
}

// Entries calls f on every used slot of dp, in order, until f returns false.
func Entries(dp *inode.Inode, f func(de DirEnt, off uint64) bool) error {
	if !dp.IsDir() {
		return ErrNotDir
	}
	for off := uint64(0); off < uint64(dp.Size); off += common.DIRENTSZ {
		de := readEnt(dp, off)
		if de.Inum == common.NULLINUM {
			continue
		}
		if !f(de, off) {
			break
		}
	}
	return nil
}

// Lookup finds name in dp and returns its inode, referenced but unlocked,
// together with the offset of its slot.
func Lookup(dp *inode.Inode, name string) (*inode.Inode, uint64, error) {
	name = TruncName(name)
	var found DirEnt
	var foundOff uint64
	err := Entries(dp, func(de DirEnt, off uint64) bool {
		if de.Name == name {
			found = de
			foundOff = off
			return false
		}
		return true
	})
	if err != nil {
		return nil, 0, err
	}
	if found.Inum == common.NULLINUM {
		return nil, 0, ErrNotFound
	}
	return dp.Cache().Get(dp.Dev, found.Inum), foundOff, nil
}

// LookupInum finds the slot naming inum in dp.
func LookupInum(dp *inode.Inode, inum common.Inum) (string, uint64, error) {
	var name string
	var foundOff uint64
	var ok bool
	err := Entries(dp, func(de DirEnt, off uint64) bool {
		if de.Inum == inum && de.Name != "." && de.Name != ".." {
			name, foundOff, ok = de.Name, off, true
			return false
		}
		return true
	})
	if err != nil {
		return "", 0, err
	}
	if !ok {
		return "", 0, ErrNotFound
	}
	return name, foundOff, nil
}

// Link adds the entry (name, inum) to dp, reusing the first free slot or
// appending one.
func Link(dp *inode.Inode, name string, inum common.Inum) error {
	// scan without Lookup: "." would hand back dp itself, which is locked
	name = TruncName(name)
	exists := false
	err := Entries(dp, func(de DirEnt, off uint64) bool {
		exists = de.Name == name
		return !exists
	})
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("%s: %w", name, ErrExists)
	}
	off := uint64(dp.Size)
	for o := uint64(0); o < uint64(dp.Size); o += common.DIRENTSZ {
		if readEnt(dp, o).Inum == common.NULLINUM {
			off = o
			break
		}
	}
	util.DPrintf(5, "dirlink: %q -> %d in %d at %d\n", name, inum, dp.Inum, off)
	writeEnt(dp, off, DirEnt{Inum: inum, Name: name})
	return nil
}

// Clear frees the slot at off.
func Clear(dp *inode.Inode, off uint64) {
	writeEnt(dp, off, DirEnt{})
}

// IsEmpty reports whether dp holds nothing but "." and "..".
func IsEmpty(dp *inode.Inode) bool {
	for off := 2 * common.DIRENTSZ; off < uint64(dp.Size); off += common.DIRENTSZ {
		if readEnt(dp, off).Inum != common.NULLINUM {
			return false
		}
	}
	return true
}
