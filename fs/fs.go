// fs ties the layers together into a mounted file system and implements
// the file-level operations (open, read, write, link, unlink, mkdir, ...)
// on behalf of a Proc.
package fs

import (
	"fmt"
	"os"

	"github.com/tiqwab/xv6fs/alloc"
	"github.com/tiqwab/xv6fs/buf"
	"github.com/tiqwab/xv6fs/common"
	"github.com/tiqwab/xv6fs/config"
	"github.com/tiqwab/xv6fs/dir"
	"github.com/tiqwab/xv6fs/disk"
	"github.com/tiqwab/xv6fs/inode"
	"github.com/tiqwab/xv6fs/lockmap"
	"github.com/tiqwab/xv6fs/super"
	"github.com/tiqwab/xv6fs/util"
	"github.com/tiqwab/xv6fs/wal"
)

// FileSystem owns everything shared by the operations on one mounted
// device.
type FileSystem struct {
	dev    common.Dev
	d      disk.Disk
	cfg    config.Config
	bufs   *buf.Cache
	sb     *super.Superblock
	log    *wal.Log
	locks  *lockmap.LockMap
	alloc  *alloc.Alloc
	ic     *inode.Cache
	ftable *fileTable
}

// Mount reads the superblock of d, recovers its log and returns the
// mounted file system. The caller keeps ownership of d.
func Mount(d disk.Disk, cfg config.Config) (*FileSystem, error) {
	util.Debug = cfg.Debug
	dev := common.ROOTDEV
	bufs := buf.MkCache(cfg.NBuf)
	if err := bufs.Attach(dev, d); err != nil {
		return nil, err
	}
	sb, err := super.Read(bufs, dev)
	if err != nil {
		bufs.Detach(dev)
		return nil, fmt.Errorf("mount: %w", err)
	}
	if cfg.NBuf < sb.LogCapacity()+3 {
		bufs.Detach(dev)
		return nil, fmt.Errorf("mount: %w: %d buffers for a log of %d",
			config.ErrInvalid, cfg.NBuf, sb.LogCapacity())
	}
	if cfg.MaxOpBlocks > sb.LogCapacity() {
		bufs.Detach(dev)
		return nil, fmt.Errorf("mount: %w: op of %d blocks for a log of %d",
			config.ErrInvalid, cfg.MaxOpBlocks, sb.LogCapacity())
	}
	if need := common.MinOpBlocks(uint64(sb.NBitmap())); cfg.MaxOpBlocks < need {
		bufs.Detach(dev)
		return nil, fmt.Errorf("mount: %w: op of %d blocks, operations need %d",
			config.ErrInvalid, cfg.MaxOpBlocks, need)
	}
	log := wal.MkLog(bufs, dev, sb, cfg.MaxOpBlocks)
	locks := lockmap.MkLockMap()
	a := alloc.MkAlloc(bufs, log, sb, locks)
	ic := inode.MkCache(cfg.NInode, bufs, log, sb, a, locks)
	ic.RegisterDevice(inode.CONSOLE, inode.ConsoleDevice{In: os.Stdin, Out: os.Stdout})
	ic.RegisterDevice(inode.NULL, inode.NullDevice{})
	util.DPrintf(1, "mount: %d blocks, %d inodes, log %d\n", sb.Size, sb.Ninodes, log.Capacity())
	return &FileSystem{
		dev:    dev,
		d:      d,
		cfg:    cfg,
		bufs:   bufs,
		sb:     sb,
		log:    log,
		locks:  locks,
		alloc:  a,
		ic:     ic,
		ftable: mkFileTable(cfg.NFile),
	}, nil
}

// Unmount detaches the device. Every file must be closed and every Proc
// released first.
func (fs *FileSystem) Unmount() error {
	if n := fs.ftable.inUse(); n > 0 {
		return fmt.Errorf("unmount: %d open files: %w", n, ErrBusy)
	}
	fs.bufs.Sync(fs.dev)
	if err := fs.bufs.Detach(fs.dev); err != nil {
		return fmt.Errorf("unmount: %w", err)
	}
	return nil
}

// BeginOp and EndOp bracket every operation that may write the disk.
func (fs *FileSystem) BeginOp() {
	fs.log.BeginOp()
}

func (fs *FileSystem) EndOp() {
	fs.log.EndOp()
}

func (fs *FileSystem) Dev() common.Dev               { return fs.dev }
func (fs *FileSystem) Disk() disk.Disk               { return fs.d }
func (fs *FileSystem) Cache() *buf.Cache             { return fs.bufs }
func (fs *FileSystem) Log() *wal.Log                 { return fs.log }
func (fs *FileSystem) Inodes() *inode.Cache          { return fs.ic }
func (fs *FileSystem) Superblock() *super.Superblock { return fs.sb }
func (fs *FileSystem) Alloc() *alloc.Alloc           { return fs.alloc }
func (fs *FileSystem) Config() config.Config         { return fs.cfg }

// Resolve looks up path relative to cwd (nil means the root). Must be
// called inside an operation.
func (fs *FileSystem) Resolve(cwd *inode.Inode, path string) (*inode.Inode, error) {
	return dir.Resolve(fs.ic, fs.dev, cwd, path)
}

func (fs *FileSystem) ResolveParent(cwd *inode.Inode, path string) (*inode.Inode, string, error) {
	return dir.ResolveParent(fs.ic, fs.dev, cwd, path)
}

// writeChunk is the most bytes one operation writes to a file, in whole
// blocks.
func (fs *FileSystem) writeChunk() uint64 {
	nblk := common.WriteChunkBlocks(fs.log.MaxOpBlocks(), uint64(fs.sb.NBitmap()))
	return nblk * common.BSIZE
}
