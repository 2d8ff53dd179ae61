package tagging

import (
	"fmt"

	"github.com/Shihao-Song/Pin-Tools/mem/mem"
)

// SetAssocTags is a set-associative tag store. An address is split into
// [tag | set | offset].
type SetAssocTags struct {
	numSets   int
	numWays   int
	blockSize uint64
	setShift  uint64
	tagShift  uint64
	setMask   uint64

	victimFinder VictimFinder
	sets         []Set
}

// NewSetAssocTags creates a set-associative tag store of size bytes.
func NewSetAssocTags(
	size, blockSize uint64,
	numWays int,
	victimFinder VictimFinder,
) *SetAssocTags {
	if !mem.IsPowerOfTwo(blockSize) {
		panic(fmt.Sprintf("block size %d is not a power of two", blockSize))
	}

	if numWays <= 0 || size%(blockSize*uint64(numWays)) != 0 {
		panic(fmt.Sprintf("size %d cannot be divided into %d-way sets "+
			"of %d-byte blocks", size, numWays, blockSize))
	}

	numSets := size / blockSize / uint64(numWays)
	if !mem.IsPowerOfTwo(numSets) {
		panic(fmt.Sprintf("number of sets %d is not a power of two", numSets))
	}

	t := &SetAssocTags{
		numSets:      int(numSets),
		numWays:      numWays,
		blockSize:    blockSize,
		setShift:     mem.Log2(blockSize),
		setMask:      numSets - 1,
		victimFinder: victimFinder,
	}
	t.tagShift = t.setShift + mem.Log2(numSets)

	t.ReInitialize()

	return t
}

// NumSets returns the number of sets.
func (t *SetAssocTags) NumSets() int {
	return t.numSets
}

// NumWays returns the associativity.
func (t *SetAssocTags) NumWays() int {
	return t.numWays
}

// NumBlocks returns the capacity in blocks.
func (t *SetAssocTags) NumBlocks() int {
	return t.numSets * t.numWays
}

// BlockSize returns the number of bytes of a block.
func (t *SetAssocTags) BlockSize() uint64 {
	return t.blockSize
}

func (t *SetAssocTags) extractTag(addr uint64) uint64 {
	return addr >> t.tagShift
}

func (t *SetAssocTags) extractSet(addr uint64) int {
	return int((addr >> t.setShift) & t.setMask)
}

func (t *SetAssocTags) regenerateAddr(b *Block) uint64 {
	return b.Tag<<t.tagShift | uint64(b.SetID)<<t.setShift
}

func (t *SetAssocTags) findBlock(addr uint64) *Block {
	tag := t.extractTag(addr)
	set := &t.sets[t.extractSet(addr)]

	for i := range set.Blocks {
		b := &set.Blocks[i]
		if b.IsValid && b.Tag == tag {
			return b
		}
	}

	return nil
}

// AccessBlock looks up the address and updates the replacement state on a
// hit.
func (t *SetAssocTags) AccessBlock(
	addr uint64,
	isWrite bool,
	now uint64,
) (bool, uint64) {
	aligned := mem.AlignToBlock(addr, t.blockSize)

	b := t.findBlock(addr)
	if b == nil {
		return false, aligned
	}

	t.touch(b, isWrite, now)

	return true, aligned
}

// InsertBlock places the block of the address into its set.
func (t *SetAssocTags) InsertBlock(
	addr uint64,
	isWrite bool,
	now uint64,
) (bool, uint64) {
	t.blockMustNotBeResident(addr)

	set := &t.sets[t.extractSet(addr)]
	victim := t.victimFinder.FindVictim(set)

	writebackRequired := false
	evicted := NoAddr

	if victim.IsValid {
		writebackRequired = victim.IsDirty
		evicted = t.regenerateAddr(victim)
		t.invalidate(victim)
	}

	victim.Tag = t.extractTag(addr)
	victim.IsValid = true
	t.touch(victim, isWrite, now)

	return writebackRequired, evicted
}

// InvalidateBlock drops the block of the address.
func (t *SetAssocTags) InvalidateBlock(addr uint64) (bool, bool) {
	b := t.findBlock(addr)
	if b == nil {
		return false, false
	}

	wasDirty := b.IsDirty
	t.invalidate(b)

	return true, wasDirty
}

// Lookup returns the block that holds the address.
func (t *SetAssocTags) Lookup(addr uint64) (Block, bool) {
	b := t.findBlock(addr)
	if b == nil {
		return Block{}, false
	}

	return *b, true
}

// ResidentAddrs returns the addresses of all the valid blocks.
func (t *SetAssocTags) ResidentAddrs() []uint64 {
	var addrs []uint64

	for i := range t.sets {
		for j := range t.sets[i].Blocks {
			b := &t.sets[i].Blocks[j]
			if b.IsValid {
				addrs = append(addrs, t.regenerateAddr(b))
			}
		}
	}

	return addrs
}

// ReInitialize marks all the blocks invalid.
func (t *SetAssocTags) ReInitialize() {
	t.sets = make([]Set, t.numSets)
	for i := 0; i < t.numSets; i++ {
		for j := 0; j < t.numWays; j++ {
			block := Block{
				IsValid: false,
				SetID:   i,
				WayID:   j,
			}

			t.sets[i].Blocks = append(t.sets[i].Blocks, block)
			t.sets[i].LRUQueue = append(t.sets[i].LRUQueue, j)
		}
	}
}

func (t *SetAssocTags) touch(b *Block, isWrite bool, now uint64) {
	b.LastTouch = now
	if isWrite {
		b.IsDirty = true
	}

	t.sets[b.SetID].visit(b.WayID)
}

func (t *SetAssocTags) invalidate(b *Block) {
	b.IsValid = false
	b.IsDirty = false
	b.LastTouch = 0
	t.sets[b.SetID].demote(b.WayID)
}

func (t *SetAssocTags) blockMustNotBeResident(addr uint64) {
	if t.findBlock(addr) != nil {
		panic(fmt.Sprintf("block 0x%x is already resident", addr))
	}
}
