package buf

import (
	"github.com/tiqwab/xv6fs/common"
)

//
// Slot arena for the buffer cache: a fixed array of buffers, a map from
// (dev, blkno) to slot index, and a doubly linked free list of indices.
// The head of the free list is the least recently released slot.
//

const nilSlot = ^uint64(0)

type bkey struct {
	dev   common.Dev
	blkno common.Bnum
}

type slot struct {
	buf    *Buf
	keyed  bool
	key    bkey
	onFree bool
	prev   uint64
	next   uint64
}

type bufMap struct {
	slots []slot
	index map[bkey]uint64
	head  uint64
	tail  uint64
	nfree uint64
}

func mkBufMap(n uint64) *bufMap {
	m := &bufMap{
		slots: make([]slot, n),
		index: make(map[bkey]uint64),
		head:  nilSlot,
		tail:  nilSlot,
	}
	for i := uint64(0); i < n; i++ {
		m.slots[i] = slot{buf: mkBuf(i), prev: nilSlot, next: nilSlot}
		m.pushTail(i)
	}
	return m
}

func (m *bufMap) lookup(k bkey) (uint64, bool) {
	i, ok := m.index[k]
	return i, ok
}

func (m *bufMap) pushTail(i uint64) {
	s := &m.slots[i]
	if s.onFree {
		panic("pushTail: slot already free")
	}
	s.onFree = true
	s.next = nilSlot
	s.prev = m.tail
	if m.tail == nilSlot {
		m.head = i
	} else {
		m.slots[m.tail].next = i
	}
	m.tail = i
	m.nfree += 1
}

func (m *bufMap) remove(i uint64) {
	s := &m.slots[i]
	if !s.onFree {
		return
	}
	if s.prev == nilSlot {
		m.head = s.next
	} else {
		m.slots[s.prev].next = s.next
	}
	if s.next == nilSlot {
		m.tail = s.prev
	} else {
		m.slots[s.next].prev = s.prev
	}
	s.onFree = false
	s.prev = nilSlot
	s.next = nilSlot
	m.nfree -= 1
}

// popHead takes the least recently released slot off the free list.
func (m *bufMap) popHead() (uint64, bool) {
	if m.head == nilSlot {
		return 0, false
	}
	i := m.head
	m.remove(i)
	return i, true
}

// rekey makes slot i hold block k, forgetting whatever it held before.
func (m *bufMap) rekey(i uint64, k bkey) {
	s := &m.slots[i]
	if s.keyed {
		delete(m.index, s.key)
	}
	s.keyed = true
	s.key = k
	m.index[k] = i
}

// forget drops slot i's key so lookups miss it.
func (m *bufMap) forget(i uint64) {
	s := &m.slots[i]
	if s.keyed {
		delete(m.index, s.key)
		s.keyed = false
	}
}
