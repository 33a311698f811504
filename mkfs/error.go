package mkfs

import "errors"

var (
	// ErrTooSmall means the image cannot hold the requested layout.
	ErrTooSmall = errors.New("image too small")

	ErrTooLarge = errors.New("image too large")

	// ErrBitmapTooBig means the metadata does not fit in the blocks
	// described by the first bitmap block.
	ErrBitmapTooBig = errors.New("too many blocks in use")
)
