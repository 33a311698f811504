package fs

import "errors"

var (
	ErrTooManyFiles = errors.New("file table full")
	ErrTooManyFds   = errors.New("too many open files")
	ErrBadFd        = errors.New("bad file descriptor")

	// ErrIsDir is returned when opening a directory for writing or
	// hard-linking one.
	ErrIsDir = errors.New("is a directory")

	ErrNotEmpty = errors.New("directory not empty")

	// ErrBadName is returned for path names that cannot be removed, such
	// as "." and "..".
	ErrBadName = errors.New("invalid name")

	// ErrBusy is returned by Unmount while files are open.
	ErrBusy = errors.New("file system busy")
)
