package fs

import (
	"errors"
	"fmt"
	"sync"

	"github.com/tiqwab/xv6fs/common"
	"github.com/tiqwab/xv6fs/dir"
	"github.com/tiqwab/xv6fs/inode"
	"github.com/tiqwab/xv6fs/util"
)

// Open modes.
const (
	O_RDONLY uint64 = 0x000
	O_WRONLY uint64 = 0x001
	O_RDWR   uint64 = 0x002
	O_CREATE uint64 = 0x200
	O_TRUNC  uint64 = 0x400
)

type Fd = uint64

// Proc is one client of the file system: a current directory and a
// table of open file descriptors.
type Proc struct {
	fs     *FileSystem
	mu     *sync.Mutex
	cwd    *inode.Inode
	nofile uint64
	ofile  map[Fd]*File
}

// NewProc returns a Proc whose current directory is the root.
func (fs *FileSystem) NewProc() *Proc {
	return &Proc{
		fs:     fs,
		mu:     new(sync.Mutex),
		cwd:    fs.ic.Get(fs.dev, common.ROOTINUM),
		nofile: common.NOFILE,
		ofile:  make(map[Fd]*File),
	}
}

// Fork returns a Proc sharing p's open files and current directory.
func (p *Proc) Fork() *Proc {
	p.mu.Lock()
	defer p.mu.Unlock()
	np := &Proc{
		fs:     p.fs,
		mu:     new(sync.Mutex),
		cwd:    p.fs.ic.Dup(p.cwd),
		nofile: p.nofile,
		ofile:  make(map[Fd]*File),
	}
	for fd, f := range p.ofile {
		np.ofile[fd] = p.fs.ftable.dup(f)
	}
	return np
}

// Release closes every descriptor and drops the current directory.
func (p *Proc) Release() {
	p.mu.Lock()
	files := p.ofile
	p.ofile = make(map[Fd]*File)
	cwd := p.cwd
	p.cwd = nil
	p.mu.Unlock()
	for _, f := range files {
		p.fs.fileClose(f)
	}
	if cwd != nil {
		p.fs.BeginOp()
		p.fs.ic.Put(cwd)
		p.fs.EndOp()
	}
}

func (p *Proc) fdalloc(f *File) (Fd, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for fd := Fd(0); fd < p.nofile; fd++ {
		if _, ok := p.ofile[fd]; !ok {
			p.ofile[fd] = f
			return fd, nil
		}
	}
	return 0, ErrTooManyFds
}

func (p *Proc) getFile(fd Fd) (*File, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	f, ok := p.ofile[fd]
	if !ok {
		return nil, ErrBadFd
	}
	return f, nil
}

// getCwd returns a reference to the working directory, which a concurrent
// Chdir may replace. Callers are inside an op and Put it when done.
func (p *Proc) getCwd() *inode.Inode {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.fs.ic.Dup(p.cwd)
}

func (p *Proc) resolve(path string) (*inode.Inode, error) {
	cwd := p.getCwd()
	defer p.fs.ic.Put(cwd)
	return p.fs.Resolve(cwd, path)
}

func (p *Proc) resolveParent(path string) (*inode.Inode, string, error) {
	cwd := p.getCwd()
	defer p.fs.ic.Put(cwd)
	return p.fs.ResolveParent(cwd, path)
}

// create makes path with type typ, or returns the existing file when
// opening one with O_CREATE. The result is locked.
func (p *Proc) create(path string, typ common.IType, major int16, minor int16) (*inode.Inode, error) {
	ic := p.fs.ic
	dp, name, err := p.resolveParent(path)
	if err != nil {
		return nil, err
	}
	dp.Lock()
	if ip, _, err := dir.Lookup(dp, name); err == nil {
		ic.UnlockPut(dp)
		ip.Lock()
		if typ == common.T_FILE && (ip.Type == common.T_FILE || ip.Type == common.T_DEV) {
			return ip, nil
		}
		ic.UnlockPut(ip)
		return nil, fmt.Errorf("%s: %w", path, dir.ErrExists)
	} else if !errors.Is(err, dir.ErrNotFound) {
		ic.UnlockPut(dp)
		return nil, err
	}

	ip, err := ic.Alloc(dp.Dev, typ, major, minor)
	if err != nil {
		ic.UnlockPut(dp)
		return nil, err
	}
	ip.Lock()
	ip.Nlink = 1
	ip.Update()

	if typ == common.T_DIR {
		// no ip.Nlink++ for ".": avoid a cyclic count
		if err := dir.Link(ip, ".", ip.Inum); err != nil {
			panic(fmt.Errorf("create dots: %v", err))
		}
		if err := dir.Link(ip, "..", dp.Inum); err != nil {
			panic(fmt.Errorf("create dots: %v", err))
		}
	}
	if err := dir.Link(dp, name, ip.Inum); err != nil {
		// the new inode has no other name; let Put free it
		ip.Nlink = 0
		ip.Update()
		ic.UnlockPut(ip)
		ic.UnlockPut(dp)
		return nil, err
	}
	if typ == common.T_DIR {
		dp.Nlink++ // for ".."
		dp.Update()
	}
	ic.UnlockPut(dp)
	return ip, nil
}

// Open opens path with mode, a combination of the O_ flags, and returns a
// new descriptor.
func (p *Proc) Open(path string, mode uint64) (Fd, error) {
	fs := p.fs
	ic := fs.ic
	fs.BeginOp()
	defer fs.EndOp()

	var ip *inode.Inode
	if mode&O_CREATE != 0 {
		var err error
		ip, err = p.create(path, common.T_FILE, 0, 0)
		if err != nil {
			return 0, err
		}
	} else {
		var err error
		ip, err = p.resolve(path)
		if err != nil {
			return 0, err
		}
		ip.Lock()
		if ip.IsDir() && mode != O_RDONLY {
			ic.UnlockPut(ip)
			return 0, fmt.Errorf("%s: %w", path, ErrIsDir)
		}
	}
	if ip.Type == common.T_DEV {
		if _, err := ic.Device(ip.Major); err != nil {
			ic.UnlockPut(ip)
			return 0, err
		}
	}

	f, err := fs.ftable.alloc(ip, mode&O_WRONLY == 0, mode&(O_WRONLY|O_RDWR) != 0)
	if err != nil {
		ic.UnlockPut(ip)
		return 0, err
	}
	fd, err := p.fdalloc(f)
	if err != nil {
		fs.ftable.drop(f)
		ic.UnlockPut(ip)
		return 0, err
	}
	if mode&O_TRUNC != 0 && ip.Type == common.T_FILE {
		ip.Trunc()
	}
	ip.Unlock()
	util.DPrintf(5, "open: %q -> fd %d inode %d\n", path, fd, ip.Inum)
	return fd, nil
}

func (p *Proc) Close(fd Fd) error {
	p.mu.Lock()
	f, ok := p.ofile[fd]
	if ok {
		delete(p.ofile, fd)
	}
	p.mu.Unlock()
	if !ok {
		return ErrBadFd
	}
	p.fs.fileClose(f)
	return nil
}

// Dup returns a second descriptor for the open file behind fd; both share
// one offset.
func (p *Proc) Dup(fd Fd) (Fd, error) {
	f, err := p.getFile(fd)
	if err != nil {
		return 0, err
	}
	p.fs.ftable.dup(f)
	nfd, err := p.fdalloc(f)
	if err != nil {
		p.fs.fileClose(f)
		return 0, err
	}
	return nfd, nil
}

// Read reads up to len(dst) bytes at the file's offset and advances it.
// It returns 0 at end of file.
func (p *Proc) Read(fd Fd, dst []byte) (uint64, error) {
	f, err := p.getFile(fd)
	if err != nil {
		return 0, err
	}
	if !f.readable {
		return 0, ErrBadFd
	}
	f.ip.Lock()
	defer f.ip.Unlock()
	if f.device {
		return f.ip.Read(dst, 0)
	}
	if f.off >= uint64(f.ip.Size) {
		return 0, nil
	}
	n, err := f.ip.Read(dst, f.off)
	if err != nil {
		return 0, err
	}
	f.off += n
	return n, nil
}

// Write writes src at the file's offset in several operations, each
// small enough to fit in the log. A crash may leave a prefix of src
// written, but never a torn block.
func (p *Proc) Write(fd Fd, src []byte) (uint64, error) {
	f, err := p.getFile(fd)
	if err != nil {
		return 0, err
	}
	if !f.writable {
		return 0, ErrBadFd
	}
	if f.device {
		f.ip.Lock()
		defer f.ip.Unlock()
		return f.ip.Write(src, 0)
	}
	fs := p.fs
	chunk := fs.writeChunk()
	var tot uint64
	n := uint64(len(src))
	for tot < n {
		fs.BeginOp()
		f.ip.Lock()
		// end the chunk on a block boundary so it touches at most
		// chunk/BSIZE data blocks
		m := util.Min(n-tot, chunk-f.off%common.BSIZE)
		r, err := f.ip.Write(src[tot:tot+m], f.off)
		f.off += r
		f.ip.Unlock()
		fs.EndOp()
		tot += r
		if err != nil {
			return tot, err
		}
		if r != m {
			panic("short filewrite")
		}
	}
	return tot, nil
}

func (p *Proc) Fstat(fd Fd) (inode.Stat, error) {
	f, err := p.getFile(fd)
	if err != nil {
		return inode.Stat{}, err
	}
	f.ip.Lock()
	defer f.ip.Unlock()
	return f.ip.Stat(), nil
}

func (p *Proc) Stat(path string) (inode.Stat, error) {
	p.fs.BeginOp()
	defer p.fs.EndOp()
	ip, err := p.resolve(path)
	if err != nil {
		return inode.Stat{}, err
	}
	ip.Lock()
	st := ip.Stat()
	p.fs.ic.UnlockPut(ip)
	return st, nil
}

// Link gives the existing file old the additional name new.
func (p *Proc) Link(old string, new string) error {
	fs := p.fs
	ic := fs.ic
	fs.BeginOp()
	defer fs.EndOp()

	ip, err := p.resolve(old)
	if err != nil {
		return err
	}
	ip.Lock()
	if ip.IsDir() {
		ic.UnlockPut(ip)
		return fmt.Errorf("%s: %w", old, ErrIsDir)
	}
	ip.Nlink++
	ip.Update()
	ip.Unlock()

	dp, name, err := p.resolveParent(new)
	if err == nil {
		dp.Lock()
		err = dir.Link(dp, name, ip.Inum)
		ic.UnlockPut(dp)
	}
	if err != nil {
		ip.Lock()
		ip.Nlink--
		ip.Update()
		ic.UnlockPut(ip)
		return err
	}
	ic.Put(ip)
	return nil
}

// Unlink removes the name path. The file itself is freed once it has no
// names and no open references.
func (p *Proc) Unlink(path string) error {
	fs := p.fs
	ic := fs.ic
	fs.BeginOp()
	defer fs.EndOp()

	dp, name, err := p.resolveParent(path)
	if err != nil {
		return err
	}
	dp.Lock()
	if name == "." || name == ".." {
		ic.UnlockPut(dp)
		return fmt.Errorf("%s: %w", path, ErrBadName)
	}
	ip, off, err := dir.Lookup(dp, name)
	if err != nil {
		ic.UnlockPut(dp)
		return err
	}
	ip.Lock()
	if ip.Nlink < 1 {
		panic("unlink: nlink < 1")
	}
	if ip.IsDir() && !dir.IsEmpty(ip) {
		ic.UnlockPut(ip)
		ic.UnlockPut(dp)
		return fmt.Errorf("%s: %w", path, ErrNotEmpty)
	}
	dir.Clear(dp, off)
	if ip.IsDir() {
		dp.Nlink-- // its ".." is gone
		dp.Update()
	}
	ic.UnlockPut(dp)

	ip.Nlink--
	ip.Update()
	ic.UnlockPut(ip)
	util.DPrintf(5, "unlink: %q inode %d\n", path, ip.Inum)
	return nil
}

func (p *Proc) Mkdir(path string) error {
	p.fs.BeginOp()
	defer p.fs.EndOp()
	ip, err := p.create(path, common.T_DIR, 0, 0)
	if err != nil {
		return err
	}
	p.fs.ic.UnlockPut(ip)
	return nil
}

// Mknod creates a device file served by the device registered as major.
func (p *Proc) Mknod(path string, major int16, minor int16) error {
	p.fs.BeginOp()
	defer p.fs.EndOp()
	ip, err := p.create(path, common.T_DEV, major, minor)
	if err != nil {
		return err
	}
	p.fs.ic.UnlockPut(ip)
	return nil
}

func (p *Proc) Chdir(path string) error {
	fs := p.fs
	fs.BeginOp()
	defer fs.EndOp()
	ip, err := p.resolve(path)
	if err != nil {
		return err
	}
	ip.Lock()
	if !ip.IsDir() {
		fs.ic.UnlockPut(ip)
		return fmt.Errorf("%s: %w", path, dir.ErrNotDir)
	}
	ip.Unlock()
	p.mu.Lock()
	old := p.cwd
	p.cwd = ip
	p.mu.Unlock()
	fs.ic.Put(old)
	return nil
}

// DirEntry is one name in a directory listing.
type DirEntry struct {
	Name string
	inode.Stat
}

// ReadDir lists the directory path, including "." and "..".
func (p *Proc) ReadDir(path string) ([]DirEntry, error) {
	fs := p.fs
	ic := fs.ic
	fs.BeginOp()
	defer fs.EndOp()
	dp, err := p.resolve(path)
	if err != nil {
		return nil, err
	}
	dp.Lock()
	var ents []dir.DirEnt
	err = dir.Entries(dp, func(de dir.DirEnt, off uint64) bool {
		ents = append(ents, de)
		return true
	})
	ic.UnlockPut(dp)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	// entries are stat'ed one at a time with dp unlocked, so "." and ".."
	// lock like any other inode
	out := make([]DirEntry, 0, len(ents))
	for _, de := range ents {
		ip := ic.Get(fs.dev, de.Inum)
		ip.Lock()
		out = append(out, DirEntry{Name: de.Name, Stat: ip.Stat()})
		ic.UnlockPut(ip)
	}
	return out, nil
}
