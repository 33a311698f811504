package disk

import (
	"fmt"
	"sync"

	gdisk "github.com/tchajed/goose/machine/disk"

	"github.com/tiqwab/xv6fs/util"
)

// SectorsPerPage is the number of 512-byte blocks packed into one goose block.
const SectorsPerPage = gdisk.BlockSize / BlockSize

var _ Disk = (*pagedDisk)(nil)

// pagedDisk exposes a goose disk (4KiB blocks) as a disk of 512-byte blocks.
// Block a lives in page a/SectorsPerPage at byte offset
// (a%SectorsPerPage)*BlockSize, so the byte layout matches a flat image file.
type pagedDisk struct {
	mu *sync.Mutex // serializes read-modify-write of a page
	d  gdisk.Disk
}

func NewPagedDisk(d gdisk.Disk) Disk {
	return &pagedDisk{mu: new(sync.Mutex), d: d}
}

// NewPagedMemDisk backs numBlocks 512-byte blocks with a goose MemDisk.
func NewPagedMemDisk(numBlocks uint64) Disk {
	npages := util.RoundUp(numBlocks, SectorsPerPage)
	return NewPagedDisk(gdisk.NewMemDisk(npages))
}

// NewPagedFileDisk backs numBlocks 512-byte blocks with a goose FileDisk.
func NewPagedFileDisk(path string, numBlocks uint64) (Disk, error) {
	npages := util.RoundUp(numBlocks, SectorsPerPage)
	fd, err := gdisk.NewFileDisk(path, npages)
	if err != nil {
		return nil, fmt.Errorf("paged disk %s: %w", path, err)
	}
	return NewPagedDisk(fd), nil
}

func (p *pagedDisk) locate(a uint64) (uint64, uint64) {
	page := a / SectorsPerPage
	if page >= p.d.Size() {
		panic(fmt.Errorf("out-of-bounds access at %v", a))
	}
	return page, (a % SectorsPerPage) * BlockSize
}

func (p *pagedDisk) ReadTo(a uint64, b Block) error {
	if uint64(len(b)) != BlockSize {
		panic("buffer is not block-sized")
	}
	page, off := p.locate(a)
	p.mu.Lock()
	blk := p.d.Read(page)
	p.mu.Unlock()
	copy(b, blk[off:off+BlockSize])
	return nil
}

func (p *pagedDisk) Read(a uint64) (Block, error) {
	b := make(Block, BlockSize)
	err := p.ReadTo(a, b)
	return b, err
}

func (p *pagedDisk) Write(a uint64, v Block) error {
	if uint64(len(v)) != BlockSize {
		panic(fmt.Errorf("v is not block-sized (%d bytes)", len(v)))
	}
	page, off := p.locate(a)
	p.mu.Lock()
	defer p.mu.Unlock()
	blk := p.d.Read(page)
	copy(blk[off:off+BlockSize], v)
	p.d.Write(page, blk)
	return nil
}

func (p *pagedDisk) Size() (uint64, error) {
	return p.d.Size() * SectorsPerPage, nil
}

func (p *pagedDisk) Barrier() error {
	p.d.Barrier()
	return nil
}

func (p *pagedDisk) Close() error {
	p.d.Close()
	return nil
}
