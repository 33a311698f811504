package inode

import "errors"

var (
	// ErrNoInodes is returned by Alloc when every on-disk inode is in use.
	ErrNoInodes = errors.New("no free inodes")

	// ErrBadOffset is returned for reads or writes starting past the end
	// of a file.
	ErrBadOffset = errors.New("offset beyond end of file")

	ErrFileTooLarge = errors.New("file too large")

	// ErrNoDevice is returned for I/O on a device inode whose major number
	// has no registered driver.
	ErrNoDevice = errors.New("no such device")
)
