package mem

// Memory provides the content of memory blocks when a line is brought into
// the cache hierarchy for the first time.
type Memory interface {
	// ReadBlock returns size bytes starting from the virtual address.
	ReadBlock(vAddr, size uint64) []byte
}

// A MemoryWriter is a memory whose content follows committed stores.
type MemoryWriter interface {
	Write(vAddr uint64, data []byte)
}

// ZeroMemory is a memory where every byte reads as zero.
type ZeroMemory struct{}

// ReadBlock returns size zero bytes.
func (ZeroMemory) ReadBlock(_, size uint64) []byte {
	return make([]byte, size)
}

// SparseMemory is a memory image that only stores the blocks that have been
// written. Unwritten bytes read as zero.
type SparseMemory struct {
	blockSize uint64
	blocks    map[uint64][]byte
}

// NewSparseMemory creates a SparseMemory that stores data in blocks of the
// given size.
func NewSparseMemory(blockSize uint64) *SparseMemory {
	if !IsPowerOfTwo(blockSize) {
		panic("block size must be a power of two")
	}

	return &SparseMemory{
		blockSize: blockSize,
		blocks:    make(map[uint64][]byte),
	}
}

// ReadBlock returns a copy of size bytes starting from vAddr.
func (m *SparseMemory) ReadBlock(vAddr, size uint64) []byte {
	out := make([]byte, size)

	for _, c := range SplitAccess(vAddr, size, m.blockSize) {
		block, ok := m.blocks[AlignToBlock(c.Addr, m.blockSize)]
		if !ok {
			continue
		}

		start := c.Addr & (m.blockSize - 1)
		copy(out[c.Offset:c.Offset+c.Size], block[start:start+c.Size])
	}

	return out
}

// Write stores the data starting from vAddr.
func (m *SparseMemory) Write(vAddr uint64, data []byte) {
	for _, c := range SplitAccess(vAddr, uint64(len(data)), m.blockSize) {
		base := AlignToBlock(c.Addr, m.blockSize)

		block, ok := m.blocks[base]
		if !ok {
			block = make([]byte, m.blockSize)
			m.blocks[base] = block
		}

		start := c.Addr & (m.blockSize - 1)
		copy(block[start:start+c.Size], data[c.Offset:c.Offset+c.Size])
	}
}

// NumBlocks returns the number of blocks that have been written.
func (m *SparseMemory) NumBlocks() int {
	return len(m.blocks)
}
