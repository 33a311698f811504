package inode

import (
	"errors"
	"fmt"
	"io"
	"sync"
)

// Device is a driver for device inodes, selected by the inode's major
// number. Offsets are passed through for drivers that care about them.
type Device interface {
	Read(dst []byte, off uint64) (uint64, error)
	Write(src []byte, off uint64) (uint64, error)
}

// Major numbers of the built-in devices.
const (
	CONSOLE int16 = 1
	NULL    int16 = 2
)

type devsw struct {
	mu   *sync.RWMutex
	devs map[int16]Device
}

func mkDevsw() *devsw {
	return &devsw{mu: new(sync.RWMutex), devs: make(map[int16]Device)}
}

func (sw *devsw) get(major int16) (Device, error) {
	sw.mu.RLock()
	defer sw.mu.RUnlock()
	d, ok := sw.devs[major]
	if !ok {
		return nil, fmt.Errorf("major %d: %w", major, ErrNoDevice)
	}
	return d, nil
}

// Device returns the driver registered as major.
func (ic *Cache) Device(major int16) (Device, error) {
	return ic.devsw.get(major)
}

// RegisterDevice installs d as the driver for major, replacing any
// previous driver.
func (ic *Cache) RegisterDevice(major int16, d Device) {
	ic.devsw.mu.Lock()
	defer ic.devsw.mu.Unlock()
	ic.devsw.devs[major] = d
}

// NullDevice reads as empty and discards writes.
type NullDevice struct{}

func (NullDevice) Read(dst []byte, off uint64) (uint64, error) {
	return 0, nil
}

func (NullDevice) Write(src []byte, off uint64) (uint64, error) {
	return uint64(len(src)), nil
}

// ConsoleDevice connects a device inode to a reader and a writer, e.g. the
// process's stdin and stdout.
type ConsoleDevice struct {
	In  io.Reader
	Out io.Writer
}

func (c ConsoleDevice) Read(dst []byte, off uint64) (uint64, error) {
	if c.In == nil {
		return 0, nil
	}
	n, err := c.In.Read(dst)
	if errors.Is(err, io.EOF) {
		err = nil
	}
	return uint64(n), err
}

func (c ConsoleDevice) Write(src []byte, off uint64) (uint64, error) {
	if c.Out == nil {
		return uint64(len(src)), nil
	}
	n, err := c.Out.Write(src)
	return uint64(n), err
}
