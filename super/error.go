package super

import "errors"

// ErrBadSuperblock means block 1 does not describe a usable layout.
var ErrBadSuperblock = errors.New("bad superblock")
