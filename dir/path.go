package dir

import (
	"github.com/tiqwab/xv6fs/common"
	"github.com/tiqwab/xv6fs/inode"
)

// skipelem splits the first element off path, skipping leading and
// trailing slashes:
//
//	skipelem("a/bb/c") = "a", "bb/c"
//	skipelem("///a//bb") = "a", "bb"
//	skipelem("a") = "a", ""
//	skipelem("") = skipelem("////") = no element
//
// Elements longer than DIRSIZ are truncated.
func skipelem(path string) (string, string, bool) {
	i := 0
	for i < len(path) && path[i] == '/' {
		i++
	}
	if i == len(path) {
		return "", "", false
	}
	start := i
	for i < len(path) && path[i] != '/' {
		i++
	}
	elem := TruncName(path[start:i])
	for i < len(path) && path[i] == '/' {
		i++
	}
	return elem, path[i:], true
}

// namex walks path one element at a time, holding at most one inode lock.
// With parent set it stops one element early and returns the last
// element's name. Concurrent renames or unlinks along the path are not
// excluded.
func namex(ic *inode.Cache, dev common.Dev, cwd *inode.Inode, path string,
	parent bool) (*inode.Inode, string, error) {
	var ip *inode.Inode
	if (len(path) > 0 && path[0] == '/') || cwd == nil {
		ip = ic.Get(dev, common.ROOTINUM)
	} else {
		ip = ic.Dup(cwd)
	}

	var name string
	for {
		elem, rest, ok := skipelem(path)
		if !ok {
			break
		}
		path = rest
		ip.Lock()
		if !ip.IsDir() {
			ic.UnlockPut(ip)
			return nil, "", ErrNotFound
		}
		if parent && path == "" {
			ip.Unlock()
			return ip, elem, nil
		}
		next, _, err := Lookup(ip, elem)
		ic.UnlockPut(ip)
		if err != nil {
			return nil, "", err
		}
		ip = next
		name = elem
	}
	if parent {
		ic.Put(ip)
		return nil, "", ErrNotFound
	}
	return ip, name, nil
}

// Resolve returns the inode named by path, referenced but unlocked.
// Relative paths start at cwd, or at the root when cwd is nil.
func Resolve(ic *inode.Cache, dev common.Dev, cwd *inode.Inode, path string) (*inode.Inode, error) {
	ip, _, err := namex(ic, dev, cwd, path, false)
	return ip, err
}

// ResolveParent returns the directory that would contain path's last
// element, referenced but unlocked, and that element's name.
func ResolveParent(ic *inode.Cache, dev common.Dev, cwd *inode.Inode,
	path string) (*inode.Inode, string, error) {
	return namex(ic, dev, cwd, path, true)
}
