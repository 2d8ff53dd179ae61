package cache

import (
	"fmt"

	"github.com/Shihao-Song/Pin-Tools/mem/cache/internal/tagging"
	"github.com/Shihao-Song/Pin-Tools/mem/datastore"
	"github.com/Shihao-Song/Pin-Tools/mem/mem"
)

// Builder can build cache levels.
type Builder struct {
	blockSize        uint64
	byteSize         uint64
	wayAssociativity int
	fullyAssociative bool
	coreID           int
	store            *datastore.Store
	memory           mem.Memory
}

// MakeBuilder creates a new builder. By default, it builds a shared 32KB
// 8-way cache with 64-byte blocks that does not track data.
func MakeBuilder() Builder {
	return Builder{
		blockSize:        64,
		byteSize:         32 * mem.KB,
		wayAssociativity: 8,
		coreID:           -1,
		memory:           mem.ZeroMemory{},
	}
}

// WithBlockSize sets the number of bytes in a block.
func (b Builder) WithBlockSize(blockSize uint64) Builder {
	b.blockSize = blockSize
	return b
}

// WithByteSize sets the capacity of the cache.
func (b Builder) WithByteSize(byteSize uint64) Builder {
	b.byteSize = byteSize
	return b
}

// WithWayAssociativity sets the number of ways of each set.
func (b Builder) WithWayAssociativity(ways int) Builder {
	b.wayAssociativity = ways
	b.fullyAssociative = false

	return b
}

// FullyAssociative makes the cache a single set with LRU replacement across
// all the blocks.
func (b Builder) FullyAssociative() Builder {
	b.fullyAssociative = true
	return b
}

// WithCoreID makes the cache private to a core.
func (b Builder) WithCoreID(coreID int) Builder {
	b.coreID = coreID
	return b
}

// WithDataStore makes the cache track the content of its blocks in the
// store.
func (b Builder) WithDataStore(store *datastore.Store) Builder {
	b.store = store
	return b
}

// WithMemory sets the memory that a lowest-level cache loads lines from.
func (b Builder) WithMemory(m mem.Memory) Builder {
	b.memory = m
	return b
}

// Build creates a cache level with the given name.
func (b Builder) Build(name string) *Comp {
	b.parametersMustBeValid()

	c := &Comp{
		name:      name,
		coreID:    b.coreID,
		blockSize: b.blockSize,
		store:     b.store,
		memory:    b.memory,
		lines:     make(map[uint64]*datastore.Line),
	}

	if b.fullyAssociative {
		c.tags = tagging.NewFullyAssocTags(b.byteSize, b.blockSize)
	} else {
		c.tags = tagging.NewSetAssocTags(b.byteSize, b.blockSize,
			b.wayAssociativity, tagging.NewLRUVictimFinder())
	}

	return c
}

func (b Builder) parametersMustBeValid() {
	if !mem.IsPowerOfTwo(b.blockSize) {
		panic(fmt.Sprintf("block size %d is not a power of two", b.blockSize))
	}

	if b.byteSize == 0 || b.byteSize%b.blockSize != 0 {
		panic(fmt.Sprintf("cache size %d is not a multiple of block size %d",
			b.byteSize, b.blockSize))
	}

	if !b.fullyAssociative && b.wayAssociativity <= 0 {
		panic("way associativity must be positive")
	}

	if b.store != nil && b.store.BlockSize() != b.blockSize {
		panic("data store and cache block sizes differ")
	}

	if b.memory == nil {
		panic("memory must not be nil")
	}
}
