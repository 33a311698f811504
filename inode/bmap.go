package inode

import (
	"fmt"

	"github.com/tiqwab/xv6fs/common"
)

// bmap returns the disk block holding logical block bn of ip, allocating
// it (and the indirect block) if there is none yet. Caller holds the lock,
// inside an operation.
func (ip *Inode) bmap(bn uint64) common.Bnum {
	if bn < common.NDIRECT {
		addr := ip.Addrs[bn]
		if addr == common.NULLBNUM {
			addr = ip.ic.alloc.Alloc(ip.Dev)
			ip.Addrs[bn] = addr
		}
		return addr
	}
	bn -= common.NDIRECT

	if bn < common.NINDIRECT {
		ind := ip.Addrs[common.NDIRECT]
		if ind == common.NULLBNUM {
			ind = ip.ic.alloc.Alloc(ip.Dev)
			ip.Addrs[common.NDIRECT] = ind
		}
		b := ip.ic.bufs.Read(ip.Dev, ind)
		defer ip.ic.bufs.Release(b)
		addr := b.BnumGet(bn)
		if addr == common.NULLBNUM {
			addr = ip.ic.alloc.Alloc(ip.Dev)
			b.BnumPut(bn, addr)
			ip.ic.log.LogWrite(b)
		}
		return addr
	}
	panic(fmt.Errorf("bmap: block %d out of range", bn+common.NDIRECT))
}
