//  wal implements write-ahead logging of file-system operations
//
//  The layout of the log region:
//  [ header | log block 0 | log block 1 | ... | log block capacity-1 ]
//    ^
//    logstart
//
//  The header holds the number of committed blocks followed by their home
//  block numbers; log block i holds the contents destined for the i-th
//  number. A transaction is committed exactly when a header with a non-zero
//  count reaches the disk. Installing copies each log block home; clearing
//  the header afterwards makes the log empty again.
//
//  Callers bracket every operation with BeginOp/EndOp. Operations that
//  overlap in time commit together when the last of them ends (group
//  commit), and BeginOp waits until the log has room for one more
//  operation's worth of blocks.
package wal

import (
	"github.com/tiqwab/xv6fs/common"
)

const (
	HDRMETA  = uint64(4) // space for the count
	HDRADDRS = (common.BSIZE - HDRMETA) / 4
)
