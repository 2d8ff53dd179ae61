package mmu

import (
	"fmt"

	"github.com/Shihao-Song/Pin-Tools/mem/vm"
)

// Policy selects how virtual pages are mapped to physical frames.
type Policy string

// Supported policies.
const (
	PolicyRandom Policy = "random"
	PolicyDemand Policy = "demand"
)

// A Builder can build MMUs.
type Builder struct {
	numCores       int
	policy         Policy
	physicalMemory uint64
	seed           uint64
	pageTable      vm.PageTable
}

// MakeBuilder creates a new builder with a single core, the random policy and
// 128 GiB of physical memory.
func MakeBuilder() Builder {
	return Builder{
		numCores:       1,
		policy:         PolicyRandom,
		physicalMemory: 128 << 30,
	}
}

// WithNumCores sets the number of cores that issue requests.
func (b Builder) WithNumCores(n int) Builder {
	b.numCores = n
	return b
}

// WithPolicy sets the page mapping policy.
func (b Builder) WithPolicy(p Policy) Builder {
	b.policy = p
	return b
}

// WithPhysicalMemorySize sets the number of bytes of physical memory that the
// demand-paged policy can allocate.
func (b Builder) WithPhysicalMemorySize(bytes uint64) Builder {
	b.physicalMemory = bytes
	return b
}

// WithSeed sets the seed that shuffles the free frames of the demand-paged
// policy.
func (b Builder) WithSeed(seed uint64) Builder {
	b.seed = seed
	return b
}

// WithPageTable sets the page table used by the demand-paged policy.
func (b Builder) WithPageTable(pageTable vm.PageTable) Builder {
	b.pageTable = pageTable
	return b
}

// Build creates the MMU.
func (b Builder) Build() MMU {
	b.parametersMustBeValid()

	recorder := pageRecorder{
		numCores:  b.numCores,
		pageStats: vm.NewPageStats(),
	}

	switch b.policy {
	case PolicyRandom:
		m := &RandomMMU{pageRecorder: recorder}
		for i := 0; i < b.numCores; i++ {
			m.mappers = append(m.mappers, vm.NewMapper(i))
		}

		return m
	case PolicyDemand:
		m := &DemandPagedMMU{
			pageRecorder: recorder,
			log2PageSize: vm.Log2PageSize,
			pageTable:    b.pageTable,
			frames: vm.NewFramePool(
				b.physicalMemory>>vm.Log2PageSize, b.seed),
		}

		if m.pageTable == nil {
			m.pageTable = vm.NewPageTable(vm.Log2PageSize)
		}

		return m
	}

	panic("unreachable")
}

func (b Builder) parametersMustBeValid() {
	if b.numCores <= 0 {
		panic(fmt.Sprintf("number of cores must be positive, got %d",
			b.numCores))
	}

	switch b.policy {
	case PolicyRandom:
	case PolicyDemand:
		if b.physicalMemory < vm.PageSize {
			panic("physical memory must hold at least one page")
		}
	default:
		panic(fmt.Sprintf("unknown page mapping policy %q", b.policy))
	}
}
