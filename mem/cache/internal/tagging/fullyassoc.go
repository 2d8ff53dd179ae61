package tagging

import (
	"fmt"

	"github.com/Shihao-Song/Pin-Tools/mem/mem"
)

// FullyAssocTags is a tag store where any block can go to any slot. The tag
// of a block is its aligned address. Valid blocks are found through a map and
// are ordered by recency on an LRU list. Invalid slots sit on a free list.
type FullyAssocTags struct {
	blockSize uint64
	blocks    []Block
	lookup    map[uint64]int
	lru       *lruList
}

// NewFullyAssocTags creates a fully-associative tag store of size bytes.
func NewFullyAssocTags(size, blockSize uint64) *FullyAssocTags {
	if !mem.IsPowerOfTwo(blockSize) {
		panic(fmt.Sprintf("block size %d is not a power of two", blockSize))
	}

	if size == 0 || size%blockSize != 0 {
		panic(fmt.Sprintf("size %d is not a multiple of block size %d",
			size, blockSize))
	}

	t := &FullyAssocTags{
		blockSize: blockSize,
		blocks:    make([]Block, size/blockSize),
	}
	t.ReInitialize()

	return t
}

// NumBlocks returns the capacity in blocks.
func (t *FullyAssocTags) NumBlocks() int {
	return len(t.blocks)
}

// BlockSize returns the number of bytes of a block.
func (t *FullyAssocTags) BlockSize() uint64 {
	return t.blockSize
}

// AccessBlock looks up the address. A hit moves the block to the head of the
// LRU list.
func (t *FullyAssocTags) AccessBlock(
	addr uint64,
	isWrite bool,
	now uint64,
) (bool, uint64) {
	aligned := mem.AlignToBlock(addr, t.blockSize)

	i, found := t.lookup[aligned]
	if !found {
		return false, aligned
	}

	t.touch(i, isWrite, now)
	t.lru.moveToFront(i)

	return true, aligned
}

// InsertBlock takes a free slot if there is one and otherwise evicts the
// least recently used block.
func (t *FullyAssocTags) InsertBlock(
	addr uint64,
	isWrite bool,
	now uint64,
) (bool, uint64) {
	aligned := mem.AlignToBlock(addr, t.blockSize)
	if _, found := t.lookup[aligned]; found {
		panic(fmt.Sprintf("block 0x%x is already resident", aligned))
	}

	writebackRequired := false
	evicted := NoAddr

	i, ok := t.lru.takeFree()
	if !ok {
		i = t.lru.tail
		victim := &t.blocks[i]
		writebackRequired = victim.IsDirty
		evicted = victim.Tag

		t.lru.unlink(i)
		delete(t.lookup, victim.Tag)
		t.clear(i)
	}

	b := &t.blocks[i]
	b.Tag = aligned
	b.IsValid = true
	t.touch(i, isWrite, now)

	t.lru.pushFront(i)
	t.lookup[aligned] = i

	return writebackRequired, evicted
}

// InvalidateBlock drops the block of the address and frees its slot.
func (t *FullyAssocTags) InvalidateBlock(addr uint64) (bool, bool) {
	aligned := mem.AlignToBlock(addr, t.blockSize)

	i, found := t.lookup[aligned]
	if !found {
		return false, false
	}

	wasDirty := t.blocks[i].IsDirty

	t.lru.unlink(i)
	delete(t.lookup, aligned)
	t.clear(i)
	t.lru.release(i)

	return true, wasDirty
}

// Lookup returns the block that holds the address.
func (t *FullyAssocTags) Lookup(addr uint64) (Block, bool) {
	i, found := t.lookup[mem.AlignToBlock(addr, t.blockSize)]
	if !found {
		return Block{}, false
	}

	return t.blocks[i], true
}

// ResidentAddrs returns the addresses of the valid blocks, most recently
// used first.
func (t *FullyAssocTags) ResidentAddrs() []uint64 {
	order := t.lru.order()

	addrs := make([]uint64, 0, len(order))
	for _, i := range order {
		addrs = append(addrs, t.blocks[i].Tag)
	}

	return addrs
}

// ReInitialize marks all the blocks invalid.
func (t *FullyAssocTags) ReInitialize() {
	for i := range t.blocks {
		t.blocks[i] = Block{WayID: i}
	}

	t.lookup = make(map[uint64]int, len(t.blocks))
	t.lru = newLRUList(len(t.blocks))
}

func (t *FullyAssocTags) touch(i int, isWrite bool, now uint64) {
	b := &t.blocks[i]
	b.LastTouch = now

	if isWrite {
		b.IsDirty = true
	}
}

func (t *FullyAssocTags) clear(i int) {
	t.blocks[i] = Block{WayID: i}
}
