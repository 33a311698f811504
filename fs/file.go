package fs

import (
	"sync"

	"github.com/tiqwab/xv6fs/common"
	"github.com/tiqwab/xv6fs/inode"
)

// File is an open file: an inode plus an offset shared by every
// descriptor that refers to it. off is protected by the inode lock.
// Device files have no offset.
type File struct {
	ref      uint64
	readable bool
	writable bool
	device   bool
	ip       *inode.Inode
	off      uint64
}

type fileTable struct {
	mu    *sync.Mutex
	nfile uint64
	files map[*File]struct{}
}

func mkFileTable(nfile uint64) *fileTable {
	return &fileTable{
		mu:    new(sync.Mutex),
		nfile: nfile,
		files: make(map[*File]struct{}),
	}
}

// alloc expects ip locked.
func (ft *fileTable) alloc(ip *inode.Inode, readable bool, writable bool) (*File, error) {
	ft.mu.Lock()
	defer ft.mu.Unlock()
	if uint64(len(ft.files)) >= ft.nfile {
		return nil, ErrTooManyFiles
	}
	f := &File{
		ref:      1,
		readable: readable,
		writable: writable,
		device:   ip.Type == common.T_DEV,
		ip:       ip,
	}
	ft.files[f] = struct{}{}
	return f, nil
}

func (ft *fileTable) dup(f *File) *File {
	ft.mu.Lock()
	defer ft.mu.Unlock()
	if f.ref == 0 {
		panic("filedup")
	}
	f.ref += 1
	return f
}

// drop removes a reference to f and reports whether it was the last one,
// in which case the caller releases f.ip.
func (ft *fileTable) drop(f *File) bool {
	ft.mu.Lock()
	defer ft.mu.Unlock()
	if f.ref == 0 {
		panic("fileclose")
	}
	f.ref -= 1
	if f.ref > 0 {
		return false
	}
	delete(ft.files, f)
	return true
}

func (ft *fileTable) inUse() uint64 {
	ft.mu.Lock()
	defer ft.mu.Unlock()
	return uint64(len(ft.files))
}

func (fs *FileSystem) fileClose(f *File) {
	if !fs.ftable.drop(f) {
		return
	}
	fs.BeginOp()
	fs.ic.Put(f.ip)
	fs.EndOp()
}

// OpenFiles is the number of entries in the open file table.
func (fs *FileSystem) OpenFiles() uint64 {
	return fs.ftable.inUse()
}
