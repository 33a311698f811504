// Package config holds the tunables of a file system instance and loads
// them from env-style files.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"

	"github.com/tiqwab/xv6fs/common"
	"github.com/tiqwab/xv6fs/util"
)

const (
	BackendFile  = "file"  // flat image accessed with pread/pwrite
	BackendPaged = "paged" // image accessed through 4KiB pages
)

// Config describes how to format and mount a file system.
type Config struct {
	Image   string // path of the disk image
	Backend string // BackendFile or BackendPaged

	// format parameters
	Size    uint64 // blocks in the image
	Ninodes uint64 // on-disk inodes
	Nlog    uint64 // log blocks, including the header

	// mount parameters
	NBuf        uint64 // buffer cache capacity
	NInode      uint64 // inode cache capacity
	NFile       uint64 // open file table capacity
	MaxOpBlocks uint64 // most blocks one operation may write

	Debug uint64 // util.Debug level
}

// Default returns the classic xv6 parameters.
func Default() Config {
	return Config{
		Image:       "fs.img",
		Backend:     BackendFile,
		Size:        common.FSSIZE,
		Ninodes:     common.NINODES,
		Nlog:        common.LOGSIZE + 1,
		NBuf:        common.NBUF,
		NInode:      common.NINODE,
		NFile:       common.NFILE,
		MaxOpBlocks: common.MAXOPBLOCKS,
	}
}

// Keys recognized by Load.
const (
	KeyImage       = "XV6FS_IMAGE"
	KeyBackend     = "XV6FS_BACKEND"
	KeySize        = "XV6FS_SIZE"
	KeyNinodes     = "XV6FS_NINODES"
	KeyNlog        = "XV6FS_NLOG"
	KeyNBuf        = "XV6FS_NBUF"
	KeyNInode      = "XV6FS_NINODE"
	KeyNFile       = "XV6FS_NFILE"
	KeyMaxOpBlocks = "XV6FS_MAXOPBLOCKS"
	KeyDebug       = "XV6FS_DEBUG"
)

// Load starts from Default, applies the keys found in filenames (later
// files do not override earlier ones) and then the process environment,
// which wins over files.
func Load(filenames ...string) (Config, error) {
	cfg := Default()
	envMap := make(map[string]string)
	if len(filenames) > 0 {
		data, err := godotenv.Read(filenames...)
		if err != nil {
			return cfg, fmt.Errorf("(config-godotenv) %w", err)
		}
		envMap = data
	}
	for _, key := range []string{KeyImage, KeyBackend, KeySize, KeyNinodes, KeyNlog,
		KeyNBuf, KeyNInode, KeyNFile, KeyMaxOpBlocks, KeyDebug} {
		if v, ok := os.LookupEnv(key); ok {
			envMap[key] = v
		}
	}
	if err := cfg.apply(envMap); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (cfg *Config) apply(envMap map[string]string) error {
	if v, ok := envMap[KeyImage]; ok && v != "" {
		cfg.Image = v
	}
	if v, ok := envMap[KeyBackend]; ok && v != "" {
		cfg.Backend = v
	}
	nums := []struct {
		key string
		dst *uint64
	}{
		{KeySize, &cfg.Size},
		{KeyNinodes, &cfg.Ninodes},
		{KeyNlog, &cfg.Nlog},
		{KeyNBuf, &cfg.NBuf},
		{KeyNInode, &cfg.NInode},
		{KeyNFile, &cfg.NFile},
		{KeyMaxOpBlocks, &cfg.MaxOpBlocks},
		{KeyDebug, &cfg.Debug},
	}
	for _, n := range nums {
		v, ok := envMap[n.key]
		if !ok || v == "" {
			continue
		}
		x, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return fmt.Errorf("%w: %s=%q", ErrBadValue, n.key, v)
		}
		*n.dst = x
	}
	return nil
}

// LogCapacity is the log capacity a file system formatted with cfg has.
func (cfg Config) LogCapacity() uint64 {
	if cfg.Nlog == 0 {
		return 0
	}
	return util.Min(cfg.Nlog-1, (common.BSIZE-4)/4)
}

// Validate rejects combinations that cannot be formatted or mounted.
func (cfg Config) Validate() error {
	switch cfg.Backend {
	case BackendFile, BackendPaged:
	default:
		return fmt.Errorf("%w: backend %q", ErrInvalid, cfg.Backend)
	}
	if cfg.Size == 0 || cfg.Size > uint64(^uint32(0)) {
		return fmt.Errorf("%w: size %d", ErrInvalid, cfg.Size)
	}
	if cfg.Ninodes < 2 || cfg.Ninodes > uint64(^uint16(0)) {
		return fmt.Errorf("%w: %d inodes", ErrInvalid, cfg.Ninodes)
	}
	if cfg.MaxOpBlocks == 0 {
		return fmt.Errorf("%w: zero max op blocks", ErrInvalid)
	}
	if cfg.MaxOpBlocks > cfg.LogCapacity() {
		return fmt.Errorf("%w: op of %d blocks exceeds log of %d",
			ErrInvalid, cfg.MaxOpBlocks, cfg.LogCapacity())
	}
	nbitmap := cfg.Size/common.NBITBLOCK + 1
	if need := common.MinOpBlocks(nbitmap); cfg.MaxOpBlocks < need {
		return fmt.Errorf("%w: op of %d blocks, operations need %d",
			ErrInvalid, cfg.MaxOpBlocks, need)
	}
	if cfg.NBuf < cfg.LogCapacity()+3 {
		return fmt.Errorf("%w: %d buffers cannot hold a full log of %d",
			ErrInvalid, cfg.NBuf, cfg.LogCapacity())
	}
	if cfg.NInode == 0 || cfg.NFile == 0 {
		return fmt.Errorf("%w: empty inode or file table", ErrInvalid)
	}
	return nil
}
