package dir

import "errors"

var (
	ErrNotFound = errors.New("no such file or directory")
	ErrNotDir   = errors.New("not a directory")
	ErrExists   = errors.New("file exists")
)
