package mem

import "fmt"

// IsPowerOfTwo returns true if n is a positive power of two.
func IsPowerOfTwo(n uint64) bool {
	return n != 0 && n&(n-1) == 0
}

// Log2 returns the base-2 logarithm of a power of two.
func Log2(n uint64) uint64 {
	if !IsPowerOfTwo(n) {
		panic(fmt.Sprintf("%d is not a power of two", n))
	}

	var l uint64
	for n > 1 {
		n >>= 1
		l++
	}

	return l
}

// AlignToBlock returns the address of the first byte of the block that
// contains addr.
func AlignToBlock(addr, blockSize uint64) uint64 {
	return addr &^ (blockSize - 1)
}

// Chunk is the part of an access that falls into one block.
type Chunk struct {
	Addr   uint64
	Size   uint64
	Offset uint64 // Offset of the chunk within the original access.
}

// SplitAccess breaks the byte range [addr, addr+size) into chunks that never
// cross a block boundary. The first chunk runs up to the end of its block,
// the middle chunks are whole blocks, and the last chunk holds the remainder.
// An access of unknown size (zero) yields a single zero-sized chunk.
func SplitAccess(addr, size, blockSize uint64) []Chunk {
	if !IsPowerOfTwo(blockSize) {
		panic(fmt.Sprintf("block size %d is not a power of two", blockSize))
	}

	if size == 0 {
		return []Chunk{{Addr: addr}}
	}

	chunks := make([]Chunk, 0, size/blockSize+2)
	offset := uint64(0)

	for offset < size {
		curr := addr + offset
		room := blockSize - (curr & (blockSize - 1))

		n := size - offset
		if n > room {
			n = room
		}

		chunks = append(chunks, Chunk{Addr: curr, Size: n, Offset: offset})
		offset += n
	}

	return chunks
}

// Byte size units.
const (
	KB uint64 = 1 << 10
	MB uint64 = 1 << 20
	GB uint64 = 1 << 30
)

// MaxAccessSize is the largest number of bytes a single access can touch.
const MaxAccessSize = 4 * KB
