// Package tagging keeps track of which blocks a cache holds.
package tagging

import "math"

// NoAddr is returned when there is no address to report, for example when
// an insertion takes an empty slot.
const NoAddr uint64 = math.MaxUint64

// A Block of a cache is the information that is associated with a cache line.
type Block struct {
	Tag       uint64
	SetID     int
	WayID     int
	IsValid   bool
	IsDirty   bool
	LastTouch uint64
}

// A TagStore records the blocks held by a cache.
type TagStore interface {
	// AccessBlock looks the address up. A hit makes the block the most
	// recently used one and marks it dirty if isWrite is set. A miss changes
	// nothing. The block-aligned address is always returned.
	AccessBlock(addr uint64, isWrite bool, now uint64) (hit bool, aligned uint64)

	// InsertBlock puts the block of the address into the store, evicting a
	// victim if needed. evicted is the address of the evicted block or NoAddr
	// if no valid block is evicted. writebackRequired is set if the evicted
	// block is dirty.
	InsertBlock(addr uint64, isWrite bool, now uint64) (
		writebackRequired bool, evicted uint64)

	// InvalidateBlock drops the block of the address if it is resident.
	InvalidateBlock(addr uint64) (found, wasDirty bool)

	// Lookup returns the block of the address without touching the
	// replacement state.
	Lookup(addr uint64) (Block, bool)

	// ResidentAddrs returns the addresses of all the valid blocks.
	ResidentAddrs() []uint64

	// NumBlocks returns the capacity in blocks.
	NumBlocks() int

	// BlockSize returns the number of bytes of a block.
	BlockSize() uint64

	// ReInitialize invalidates all the blocks and resets the replacement
	// state.
	ReInitialize()
}
