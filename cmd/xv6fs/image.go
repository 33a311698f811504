package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/tiqwab/xv6fs/config"
	"github.com/tiqwab/xv6fs/disk"
	"github.com/tiqwab/xv6fs/fs"
)

// openImage opens cfg.Image with the configured backend. With create set
// the image is (re)sized to cfg.Size blocks.
func openImage(cfg config.Config, create bool) (disk.Disk, error) {
	switch cfg.Backend {
	case config.BackendPaged:
		n := cfg.Size
		if !create {
			st, err := os.Stat(cfg.Image)
			if err != nil {
				return nil, err
			}
			n = uint64(st.Size()) / disk.BlockSize
		}
		return disk.NewPagedFileDisk(cfg.Image, n)
	case config.BackendFile:
		if create {
			return disk.NewFileDisk(cfg.Image, cfg.Size)
		}
		return disk.OpenFileDisk(cfg.Image)
	default:
		return nil, fmt.Errorf("%w: backend %q", config.ErrInvalid, cfg.Backend)
	}
}

// withFS mounts the image, runs fn as a fresh process rooted at "/" and
// unmounts again.
func withFS(cfg config.Config, fn func(fsys *fs.FileSystem, p *fs.Proc) error) error {
	d, err := openImage(cfg, false)
	if err != nil {
		return fmt.Errorf("open %s: %w", cfg.Image, err)
	}
	defer func() {
		if err := d.Close(); err != nil {
			slog.Warn("Failed to close image.",
				"path", cfg.Image,
				"err", err,
			)
		}
	}()

	fsys, err := fs.Mount(d, cfg)
	if err != nil {
		return err
	}
	p := fsys.NewProc()
	err = fn(fsys, p)
	p.Release()
	if uerr := fsys.Unmount(); uerr != nil && err == nil {
		err = uerr
	}
	return err
}
