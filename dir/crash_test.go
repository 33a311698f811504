package dir_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tiqwab/xv6fs/alloc"
	"github.com/tiqwab/xv6fs/buf"
	"github.com/tiqwab/xv6fs/common"
	"github.com/tiqwab/xv6fs/config"
	"github.com/tiqwab/xv6fs/dir"
	"github.com/tiqwab/xv6fs/disk"
	"github.com/tiqwab/xv6fs/inode"
	"github.com/tiqwab/xv6fs/lockmap"
	"github.com/tiqwab/xv6fs/mkfs"
	"github.com/tiqwab/xv6fs/super"
	"github.com/tiqwab/xv6fs/wal"
)

// The log here holds only 3 blocks, fewer than mount accepts, so the layers
// are assembled by hand.
const crashLogOp = 3

func crashConfig() config.Config {
	cfg := config.Default()
	cfg.Nlog = crashLogOp + 1
	cfg.MaxOpBlocks = crashLogOp
	return cfg
}

func openLayers(t *testing.T, d disk.Disk, cfg config.Config) (*wal.Log, *inode.Cache) {
	bufs := buf.MkCache(cfg.NBuf)
	require.NoError(t, bufs.Attach(dev, d))
	sb, err := super.Read(bufs, dev)
	require.NoError(t, err)
	require.Equal(t, uint64(crashLogOp), sb.LogCapacity())
	log := wal.MkLog(bufs, dev, sb, cfg.MaxOpBlocks)
	locks := lockmap.MkLockMap()
	a := alloc.MkAlloc(bufs, log, sb, locks)
	return log, inode.MkCache(cfg.NInode, bufs, log, sb, a, locks)
}

// crashScenario makes inode 2 a directory named /a in one op and writes 600
// bytes to it in two more. The disk crashes during the final commit after
// crashAfter more writes. It returns the data written and the disk a reboot
// would see.
func crashScenario(t *testing.T, crashAfter func(pending uint64) uint64) ([]byte, disk.Disk) {
	cfg := crashConfig()
	mem := disk.NewMemDisk(cfg.Size)
	_, err := mkfs.Format(mem, cfg)
	require.NoError(t, err)
	cd := disk.NewCrashDisk(mem)
	log, ic := openLayers(t, cd, cfg)

	log.BeginOp()
	ip, err := ic.Alloc(dev, common.T_DIR, 0, 0)
	require.NoError(t, err)
	require.Equal(t, common.Inum(2), ip.Inum)
	ip.Lock()
	ip.Nlink = 1
	ip.Update()
	ip.Unlock()
	root := ic.Get(dev, common.ROOTINUM)
	root.Lock()
	require.NoError(t, dir.Link(root, "a", ip.Inum))
	ic.UnlockPut(root)
	log.EndOp()

	data := make([]byte, 600)
	for i := range data {
		data[i] = byte(i*7 + 1)
	}
	log.BeginOp()
	ip.Lock()
	n, err := ip.Write(data[:common.BSIZE], 0)
	require.NoError(t, err)
	require.Equal(t, common.BSIZE, n)
	ip.Unlock()
	log.EndOp()

	log.BeginOp()
	ip.Lock()
	_, err = ip.Write(data[common.BSIZE:], common.BSIZE)
	require.NoError(t, err)
	ip.Unlock()
	pending := log.Pending()
	require.Equal(t, uint64(3), pending, "bitmap, data and inode blocks")
	cd.CrashAfter(crashAfter(pending))
	log.EndOp()
	require.True(t, cd.Crashed())
	return data, cd.Underlying()
}

func readA(t *testing.T, d disk.Disk) (common.Inum, []byte) {
	log, ic := openLayers(t, d, crashConfig())
	log.BeginOp()
	defer log.EndOp()
	ip, err := dir.Resolve(ic, dev, nil, "/a")
	require.NoError(t, err)
	ip.Lock()
	defer ic.UnlockPut(ip)
	b := make([]byte, ip.Size)
	_, err = ip.Read(b, 0)
	require.NoError(t, err)
	return ip.Inum, b
}

func TestCrashAfterCommitPoint(t *testing.T) {
	// log blocks plus the header
	data, d := crashScenario(t, func(pending uint64) uint64 { return pending + 1 })
	inum, b := readA(t, d)
	assert.Equal(t, common.Inum(2), inum)
	assert.Equal(t, 600, len(b))
	assert.Equal(t, data, b)
}

func TestCrashBeforeCommitPoint(t *testing.T) {
	data, d := crashScenario(t, func(pending uint64) uint64 { return pending })
	inum, b := readA(t, d)
	assert.Equal(t, common.Inum(2), inum)
	assert.Equal(t, data[:common.BSIZE], b, "only the first write survives")
}
