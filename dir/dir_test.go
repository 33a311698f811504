package dir_test

import (
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/tiqwab/xv6fs/alloc"
	"github.com/tiqwab/xv6fs/buf"
	"github.com/tiqwab/xv6fs/common"
	"github.com/tiqwab/xv6fs/config"
	"github.com/tiqwab/xv6fs/dir"
	"github.com/tiqwab/xv6fs/disk"
	"github.com/tiqwab/xv6fs/inode"
	"github.com/tiqwab/xv6fs/lockmap"
	"github.com/tiqwab/xv6fs/mkfs"
	"github.com/tiqwab/xv6fs/wal"
)

const dev = common.ROOTDEV

type DirSuite struct {
	suite.Suite
	log *wal.Log
	ic  *inode.Cache
}

func (suite *DirSuite) SetupTest() {
	cfg := config.Default()
	d := disk.NewMemDisk(cfg.Size)
	sb, err := mkfs.Format(d, cfg)
	suite.Require().NoError(err)
	bufs := buf.MkCache(cfg.NBuf)
	suite.Require().NoError(bufs.Attach(dev, d))
	suite.log = wal.MkLog(bufs, dev, sb, cfg.MaxOpBlocks)
	locks := lockmap.MkLockMap()
	a := alloc.MkAlloc(bufs, suite.log, sb, locks)
	suite.ic = inode.MkCache(cfg.NInode, bufs, suite.log, sb, a, locks)
}

func TestDir(t *testing.T) {
	suite.Run(t, new(DirSuite))
}

func (suite *DirSuite) root() *inode.Inode {
	return suite.ic.Get(dev, common.ROOTINUM)
}

// mkdir creates a directory name in parent and returns its inode number.
func (suite *DirSuite) mkdir(parent *inode.Inode, name string) common.Inum {
	suite.log.BeginOp()
	defer suite.log.EndOp()
	ip, err := suite.ic.Alloc(dev, common.T_DIR, 0, 0)
	suite.Require().NoError(err)
	ip.Lock()
	ip.Nlink = 1
	ip.Update()
	suite.Require().NoError(dir.Link(ip, ".", ip.Inum))
	suite.Require().NoError(dir.Link(ip, "..", parent.Inum))
	parent.Lock()
	suite.Require().NoError(dir.Link(parent, name, ip.Inum))
	parent.Nlink++
	parent.Update()
	parent.Unlock()
	inum := ip.Inum
	suite.ic.UnlockPut(ip)
	return inum
}

func (suite *DirSuite) mkfile(parent *inode.Inode, name string) common.Inum {
	suite.log.BeginOp()
	defer suite.log.EndOp()
	ip, err := suite.ic.Alloc(dev, common.T_FILE, 0, 0)
	suite.Require().NoError(err)
	ip.Lock()
	ip.Nlink = 1
	ip.Update()
	parent.Lock()
	suite.Require().NoError(dir.Link(parent, name, ip.Inum))
	parent.Unlock()
	inum := ip.Inum
	suite.ic.UnlockPut(ip)
	return inum
}

func (suite *DirSuite) TestLookupDots() {
	root := suite.root()
	root.Lock()
	defer root.Unlock()
	ip, off, err := dir.Lookup(root, ".")
	suite.NoError(err)
	suite.Equal(uint64(0), off)
	suite.Equal(common.ROOTINUM, ip.Inum)
	ip, off, err = dir.Lookup(root, "..")
	suite.NoError(err)
	suite.Equal(common.DIRENTSZ, off)
	suite.Equal(common.ROOTINUM, ip.Inum, "root is its own parent")
	_, _, err = dir.Lookup(root, "missing")
	suite.ErrorIs(err, dir.ErrNotFound)
	suite.True(dir.IsEmpty(root))
}

func (suite *DirSuite) TestLinkLookup() {
	root := suite.root()
	inum := suite.mkfile(root, "a")
	root.Lock()
	ip, off, err := dir.Lookup(root, "a")
	suite.NoError(err)
	suite.Equal(inum, ip.Inum)
	suite.Equal(2*common.DIRENTSZ, off, "first free slot after the dots")
	name, off2, err := dir.LookupInum(root, inum)
	suite.NoError(err)
	suite.Equal("a", name)
	suite.Equal(off, off2)
	suite.False(dir.IsEmpty(root))
	root.Unlock()

	suite.log.BeginOp()
	root.Lock()
	suite.ErrorIs(dir.Link(root, "a", inum), dir.ErrExists)
	root.Unlock()
	suite.log.EndOp()
}

func (suite *DirSuite) TestSlotReuse() {
	root := suite.root()
	suite.mkfile(root, "a")
	suite.mkfile(root, "b")

	suite.log.BeginOp()
	root.Lock()
	_, off, err := dir.Lookup(root, "a")
	suite.Require().NoError(err)
	dir.Clear(root, off)
	size := root.Size
	root.Unlock()
	suite.log.EndOp()

	suite.mkfile(root, "c")
	root.Lock()
	defer root.Unlock()
	_, off2, err := dir.Lookup(root, "c")
	suite.NoError(err)
	suite.Equal(off, off2, "freed slot reused")
	suite.Equal(size, root.Size)
	_, _, err = dir.Lookup(root, "a")
	suite.ErrorIs(err, dir.ErrNotFound)
}

func (suite *DirSuite) TestDirectoryGrows() {
	root := suite.root()
	nslots := int(common.BSIZE / common.DIRENTSZ)
	// the root block has two dots, so this spills into a second block
	for i := 0; i < nslots; i++ {
		suite.mkfile(root, string(rune('a'+i%26))+string(rune('a'+i/26)))
	}
	root.Lock()
	defer root.Unlock()
	suite.Equal(uint32(common.BSIZE+2*common.DIRENTSZ), root.Size)
}

func (suite *DirSuite) TestResolve() {
	root := suite.root()
	a := suite.mkdir(root, "a")
	aip := suite.ic.Get(dev, a)
	b := suite.mkdir(aip, "b")
	f := suite.mkfile(aip, "f")

	suite.log.BeginOp()
	defer suite.log.EndOp()
	for _, p := range []string{"/a/b", "a/b", "//a///b/", "/a/./b", "/a/b/../b"} {
		ip, err := dir.Resolve(suite.ic, dev, root, p)
		if suite.NoError(err, p) {
			suite.Equal(b, ip.Inum, p)
			suite.ic.Put(ip)
		}
	}
	ip, err := dir.Resolve(suite.ic, dev, aip, "f")
	suite.NoError(err)
	suite.Equal(f, ip.Inum, "relative to cwd")
	suite.ic.Put(ip)

	ip, err = dir.Resolve(suite.ic, dev, aip, "/")
	suite.NoError(err)
	suite.Equal(common.ROOTINUM, ip.Inum)
	suite.ic.Put(ip)

	_, err = dir.Resolve(suite.ic, dev, root, "/a/f/x")
	suite.ErrorIs(err, dir.ErrNotFound, "file in the middle of a path")
	_, err = dir.Resolve(suite.ic, dev, root, "/a/nope")
	suite.ErrorIs(err, dir.ErrNotFound)
}

func (suite *DirSuite) TestResolveParent() {
	root := suite.root()
	a := suite.mkdir(root, "a")

	suite.log.BeginOp()
	defer suite.log.EndOp()
	dp, name, err := dir.ResolveParent(suite.ic, dev, root, "/a/new")
	suite.NoError(err)
	suite.Equal(a, dp.Inum)
	suite.Equal("new", name)
	suite.ic.Put(dp)

	dp, name, err = dir.ResolveParent(suite.ic, dev, root, "top")
	suite.NoError(err)
	suite.Equal(common.ROOTINUM, dp.Inum)
	suite.Equal("top", name)
	suite.ic.Put(dp)

	_, _, err = dir.ResolveParent(suite.ic, dev, root, "/")
	suite.ErrorIs(err, dir.ErrNotFound)
}

func (suite *DirSuite) TestNotDir() {
	root := suite.root()
	f := suite.mkfile(root, "f")
	ip := suite.ic.Get(dev, f)
	ip.Lock()
	defer ip.Unlock()
	_, _, err := dir.Lookup(ip, "x")
	suite.ErrorIs(err, dir.ErrNotDir)
}
