package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/zeebo/blake3"

	"github.com/tiqwab/xv6fs/common"
	"github.com/tiqwab/xv6fs/config"
	"github.com/tiqwab/xv6fs/fs"
	"github.com/tiqwab/xv6fs/mkfs"
)

var errUsage = errors.New("usage")

type command struct {
	name  string
	args  string
	nargs []int // accepted argument counts
	run   func(cfg config.Config, args []string, out io.Writer) error
}

//nolint:gochecknoglobals
var commands = []command{
	{"mkfs", "", []int{0}, cmdMkfs},
	{"ls", "[path]", []int{0, 1}, cmdLs},
	{"cat", "path", []int{1}, cmdCat},
	{"put", "hostfile path", []int{2}, cmdPut},
	{"get", "path hostfile", []int{2}, cmdGet},
	{"mkdir", "path", []int{1}, cmdMkdir},
	{"mknod", "path major minor", []int{3}, cmdMknod},
	{"ln", "old new", []int{2}, cmdLn},
	{"rm", "path", []int{1}, cmdRm},
	{"stat", "path", []int{1}, cmdStat},
	{"sum", "path", []int{1}, cmdSum},
	{"df", "", []int{0}, cmdDf},
}

func run(cfg config.Config, args []string, out io.Writer) error {
	if len(args) == 0 {
		return errUsage
	}
	for _, c := range commands {
		if c.name != args[0] {
			continue
		}
		for _, n := range c.nargs {
			if len(args)-1 == n {
				return c.run(cfg, args[1:], out)
			}
		}
		return fmt.Errorf("%w: %s %s", errUsage, c.name, c.args)
	}
	return fmt.Errorf("%w: unknown command %q", errUsage, args[0])
}

func typeName(t common.IType) string {
	switch t {
	case common.T_DIR:
		return "dir"
	case common.T_FILE:
		return "file"
	case common.T_DEV:
		return "dev"
	default:
		return "?"
	}
}

func cmdMkfs(cfg config.Config, args []string, out io.Writer) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	d, err := openImage(cfg, true)
	if err != nil {
		return fmt.Errorf("create %s: %w", cfg.Image, err)
	}
	defer d.Close()
	sb, err := mkfs.Format(d, cfg)
	if err != nil {
		return err
	}
	if err := d.Barrier(); err != nil {
		return err
	}
	slog.Info("Formatted image.",
		"path", cfg.Image,
		"size", humanize.IBytes(uint64(sb.Size)*common.BSIZE),
		"inodes", sb.Ninodes,
		"log", sb.Nlog,
		"data", sb.Nblocks,
	)
	return nil
}

func cmdLs(cfg config.Config, args []string, out io.Writer) error {
	path := "/"
	if len(args) == 1 {
		path = args[0]
	}
	return withFS(cfg, func(fsys *fs.FileSystem, p *fs.Proc) error {
		ents, err := p.ReadDir(path)
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		for _, e := range ents {
			fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\n",
				e.Name, typeName(e.Type), e.Ino, e.Nlink, humanize.IBytes(e.Size))
		}
		return w.Flush()
	})
}

func cmdCat(cfg config.Config, args []string, out io.Writer) error {
	return withFS(cfg, func(fsys *fs.FileSystem, p *fs.Proc) error {
		fd, err := p.Open(args[0], fs.O_RDONLY)
		if err != nil {
			return err
		}
		defer p.Close(fd)
		_, err = io.Copy(out, fdReader{p: p, fd: fd})
		return err
	})
}

// cmdPut copies a host file into the image and checks the copy against
// the source digest.
func cmdPut(cfg config.Config, args []string, out io.Writer) error {
	src, dst := args[0], args[1]
	srcFile, err := os.Open(src)
	if err != nil {
		return err
	}
	defer srcFile.Close()

	return withFS(cfg, func(fsys *fs.FileSystem, p *fs.Proc) error {
		fd, err := p.Open(dst, fs.O_CREATE|fs.O_WRONLY|fs.O_TRUNC)
		if err != nil {
			return err
		}
		srcHasher := blake3.New()
		n, err := io.Copy(fdWriter{p: p, fd: fd}, io.TeeReader(srcFile, srcHasher))
		p.Close(fd)
		if err != nil {
			return fmt.Errorf("failed to copy file: %w", err)
		}

		srcChecksum := fmt.Sprintf("%x", srcHasher.Sum(nil))
		dstChecksum, _, err := sumFile(p, dst)
		if err != nil {
			return err
		}
		if srcChecksum != dstChecksum {
			return fmt.Errorf("hash mismatch: %s (src) != %s (dst)", srcChecksum, dstChecksum)
		}
		slog.Info("Copied file into image.",
			"src", src,
			"dst", dst,
			"size", humanize.IBytes(uint64(n)),
		)
		return nil
	})
}

func cmdGet(cfg config.Config, args []string, out io.Writer) error {
	src, dst := args[0], args[1]
	return withFS(cfg, func(fsys *fs.FileSystem, p *fs.Proc) error {
		fd, err := p.Open(src, fs.O_RDONLY)
		if err != nil {
			return err
		}
		defer p.Close(fd)

		dstFile, err := os.Create(dst)
		if err != nil {
			return err
		}
		defer dstFile.Close()

		srcHasher := blake3.New()
		dstHasher := blake3.New()
		teeReader := io.TeeReader(fdReader{p: p, fd: fd}, srcHasher)
		multiWriter := io.MultiWriter(dstFile, dstHasher)
		n, err := io.Copy(multiWriter, teeReader)
		if err != nil {
			return fmt.Errorf("failed to copy file: %w", err)
		}
		if err := dstFile.Sync(); err != nil {
			return fmt.Errorf("failed to sync destination: %w", err)
		}
		if string(srcHasher.Sum(nil)) != string(dstHasher.Sum(nil)) {
			return fmt.Errorf("hash mismatch copying %s", src)
		}
		slog.Info("Copied file out of image.",
			"src", src,
			"dst", dst,
			"size", humanize.IBytes(uint64(n)),
		)
		return nil
	})
}

func cmdMkdir(cfg config.Config, args []string, out io.Writer) error {
	return withFS(cfg, func(fsys *fs.FileSystem, p *fs.Proc) error {
		return p.Mkdir(args[0])
	})
}

func cmdMknod(cfg config.Config, args []string, out io.Writer) error {
	major, err := strconv.ParseInt(args[1], 10, 16)
	if err != nil {
		return fmt.Errorf("%w: major %q", errUsage, args[1])
	}
	minor, err := strconv.ParseInt(args[2], 10, 16)
	if err != nil {
		return fmt.Errorf("%w: minor %q", errUsage, args[2])
	}
	return withFS(cfg, func(fsys *fs.FileSystem, p *fs.Proc) error {
		return p.Mknod(args[0], int16(major), int16(minor))
	})
}

func cmdLn(cfg config.Config, args []string, out io.Writer) error {
	return withFS(cfg, func(fsys *fs.FileSystem, p *fs.Proc) error {
		return p.Link(args[0], args[1])
	})
}

func cmdRm(cfg config.Config, args []string, out io.Writer) error {
	return withFS(cfg, func(fsys *fs.FileSystem, p *fs.Proc) error {
		return p.Unlink(args[0])
	})
}

func cmdStat(cfg config.Config, args []string, out io.Writer) error {
	return withFS(cfg, func(fsys *fs.FileSystem, p *fs.Proc) error {
		st, err := p.Stat(args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s: dev %d inode %d type %s nlink %d size %d (%s)\n",
			args[0], st.Dev, st.Ino, typeName(st.Type), st.Nlink, st.Size,
			humanize.IBytes(st.Size))
		return nil
	})
}

func cmdSum(cfg config.Config, args []string, out io.Writer) error {
	return withFS(cfg, func(fsys *fs.FileSystem, p *fs.Proc) error {
		sum, _, err := sumFile(p, args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s  %s\n", sum, args[0])
		return nil
	})
}

func cmdDf(cfg config.Config, args []string, out io.Writer) error {
	return withFS(cfg, func(fsys *fs.FileSystem, p *fs.Proc) error {
		sb := fsys.Superblock()
		free := fsys.Alloc().NumFree(fsys.Dev())
		ifree := fsys.Inodes().NumFree(fsys.Dev())
		fmt.Fprintf(out, "blocks: %s total, %s free (%s)\n",
			humanize.Comma(int64(sb.Size)), humanize.Comma(int64(free)),
			humanize.IBytes(free*common.BSIZE))
		fmt.Fprintf(out, "inodes: %s total, %s free\n",
			humanize.Comma(int64(sb.Ninodes-1)), humanize.Comma(int64(ifree)))
		fmt.Fprintf(out, "log: %d blocks, %d per op\n",
			fsys.Log().Capacity(), fsys.Log().MaxOpBlocks())
		return nil
	})
}
