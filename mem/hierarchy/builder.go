package hierarchy

import (
	"fmt"

	"github.com/Shihao-Song/Pin-Tools/mem/cache"
	"github.com/Shihao-Song/Pin-Tools/mem/datastore"
	"github.com/Shihao-Song/Pin-Tools/mem/mem"
	"github.com/Shihao-Song/Pin-Tools/mem/vm/mmu"
	"github.com/rs/xid"
)

// LevelSpec describes one level of the hierarchy.
type LevelSpec struct {
	Name             string
	ByteSize         uint64
	WayAssociativity int
	FullyAssociative bool
	Shared           bool
}

// Builder can build systems.
type Builder struct {
	numCores    int
	blockSize   uint64
	levels      []LevelSpec
	mmu         mmu.MMU
	memory      mem.Memory
	dataAware   bool
	phaseLength uint64
}

// MakeBuilder creates a new builder for a single core with 64-byte blocks
// and no cache level.
func MakeBuilder() Builder {
	return Builder{
		numCores:  1,
		blockSize: 64,
		memory:    mem.ZeroMemory{},
	}
}

// WithNumCores sets the number of cores.
func (b Builder) WithNumCores(n int) Builder {
	b.numCores = n
	return b
}

// WithBlockSize sets the block size of all the levels.
func (b Builder) WithBlockSize(blockSize uint64) Builder {
	b.blockSize = blockSize
	return b
}

// WithLevel appends a level below the levels added before.
func (b Builder) WithLevel(spec LevelSpec) Builder {
	b.levels = append(append([]LevelSpec(nil), b.levels...), spec)
	return b
}

// WithMMU sets the address translator. By default, every core gets a random
// page mapping.
func (b Builder) WithMMU(m mmu.MMU) Builder {
	b.mmu = m
	return b
}

// WithMemory sets the memory that provides the content of the lines.
func (b Builder) WithMemory(m mem.Memory) Builder {
	b.memory = m
	return b
}

// WithDataAware makes the system track the content of every resident line.
func (b Builder) WithDataAware(dataAware bool) Builder {
	b.dataAware = dataAware
	return b
}

// WithPhaseLength ends a phase every n accesses. Zero means that the whole
// run is one phase.
func (b Builder) WithPhaseLength(n uint64) Builder {
	b.phaseLength = n
	return b
}

// Build creates the system.
func (b Builder) Build(name string) *System {
	b.parametersMustBeValid()

	s := &System{
		id:          xid.New().String(),
		name:        name,
		numCores:    b.numCores,
		blockSize:   b.blockSize,
		mmu:         b.mmu,
		memory:      b.memory,
		phaseLength: b.phaseLength,
	}

	if s.mmu == nil {
		s.mmu = mmu.MakeBuilder().WithNumCores(b.numCores).Build()
	}

	if b.dataAware {
		s.store = datastore.New(b.blockSize)
	}

	b.buildLevels(s)

	return s
}

func (b Builder) buildLevels(s *System) {
	chains := make([][]*cache.Comp, b.numCores)

	for _, spec := range b.levels {
		if spec.Shared {
			l := b.buildLevel(s, spec, spec.Name, -1)
			s.levels = append(s.levels, l)

			for i := range chains {
				chains[i] = append(chains[i], l)
			}

			continue
		}

		for i := range chains {
			l := b.buildLevel(s, spec, fmt.Sprintf("Core-%d-%s", i, spec.Name), i)
			s.levels = append(s.levels, l)
			chains[i] = append(chains[i], l)
		}
	}

	for _, chain := range chains {
		for i := 0; i+1 < len(chain); i++ {
			chain[i].SetNextLevel(chain[i+1])
			chain[i+1].AddPrevLevel(chain[i])
		}

		s.topLevels = append(s.topLevels, chain[0])
	}
}

func (b Builder) buildLevel(
	s *System,
	spec LevelSpec,
	name string,
	coreID int,
) *cache.Comp {
	cb := cache.MakeBuilder().
		WithBlockSize(b.blockSize).
		WithByteSize(spec.ByteSize).
		WithCoreID(coreID).
		WithMemory(b.memory)

	if spec.FullyAssociative {
		cb = cb.FullyAssociative()
	} else {
		cb = cb.WithWayAssociativity(spec.WayAssociativity)
	}

	if s.store != nil {
		cb = cb.WithDataStore(s.store)
	}

	return cb.Build(name)
}

func (b Builder) parametersMustBeValid() {
	if b.numCores <= 0 {
		panic(fmt.Sprintf("number of cores must be positive, got %d",
			b.numCores))
	}

	if !mem.IsPowerOfTwo(b.blockSize) || b.blockSize > 1<<12 {
		panic(fmt.Sprintf("block size %d must be a power of two "+
			"no larger than a page", b.blockSize))
	}

	if len(b.levels) == 0 {
		panic("at least one cache level is required")
	}

	if b.memory == nil {
		panic("memory must not be nil")
	}

	seenShared := false
	for _, spec := range b.levels {
		if spec.Shared {
			seenShared = true
		} else if seenShared {
			panic(fmt.Sprintf("private level %s is below a shared level",
				spec.Name))
		}
	}

	lowest := b.levels[len(b.levels)-1]
	if b.dataAware && b.numCores > 1 && !lowest.Shared {
		panic("tracking data with several cores requires a shared " +
			"lowest level")
	}
}
