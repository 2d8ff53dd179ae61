// Package datastore keeps the content of every line that is resident in the
// cache hierarchy, both as it was when the line was loaded and as it is now.
package datastore

import (
	"errors"
	"fmt"
	"sort"

	"github.com/Shihao-Song/Pin-Tools/mem/mem"
)

// Errors returned by Store operations.
var (
	ErrLineExists   = errors.New("line already loaded")
	ErrLineNotFound = errors.New("line not found")
	ErrUnaligned    = errors.New("address not block aligned")
	ErrOutOfBlock   = errors.New("access crosses the block boundary")
)

// Range is a contiguous byte range inside a line.
type Range struct {
	Offset uint64
	Size   uint64
}

// A Line is the data of one cache block.
type Line struct {
	Addr     uint64
	Original []byte
	Current  []byte
}

// Modified returns true if any byte differs from the loaded content.
func (l *Line) Modified() bool {
	return len(l.ChangedRanges()) > 0
}

// ChangedRanges returns the byte ranges whose current content differs from
// the original content, in ascending order.
func (l *Line) ChangedRanges() []Range {
	var ranges []Range

	start := -1
	for i := range l.Current {
		if l.Current[i] != l.Original[i] {
			if start < 0 {
				start = i
			}

			continue
		}

		if start >= 0 {
			ranges = append(ranges, Range{
				Offset: uint64(start),
				Size:   uint64(i - start),
			})
			start = -1
		}
	}

	if start >= 0 {
		ranges = append(ranges, Range{
			Offset: uint64(start),
			Size:   uint64(len(l.Current) - start),
		})
	}

	return ranges
}

// Clone returns a deep copy of the line.
func (l *Line) Clone() Line {
	return Line{
		Addr:     l.Addr,
		Original: append([]byte(nil), l.Original...),
		Current:  append([]byte(nil), l.Current...),
	}
}

// Store maps block-aligned physical addresses to lines.
type Store struct {
	blockSize uint64
	lines     map[uint64]*Line
	numLoads  uint64
}

// New creates an empty Store for blocks of the given size.
func New(blockSize uint64) *Store {
	if !mem.IsPowerOfTwo(blockSize) {
		panic(fmt.Sprintf("block size %d is not a power of two", blockSize))
	}

	return &Store{
		blockSize: blockSize,
		lines:     make(map[uint64]*Line),
	}
}

// BlockSize returns the size of each line.
func (s *Store) BlockSize() uint64 {
	return s.blockSize
}

// Load inserts a line. The data is the content of the whole block and becomes
// both the original and the current content.
func (s *Store) Load(addr uint64, data []byte) (*Line, error) {
	if err := s.mustBeAligned(addr); err != nil {
		return nil, err
	}

	if _, found := s.lines[addr]; found {
		return nil, fmt.Errorf("%w: 0x%x", ErrLineExists, addr)
	}

	if uint64(len(data)) != s.blockSize {
		return nil, fmt.Errorf("%w: loading %d bytes into a %d-byte line",
			ErrOutOfBlock, len(data), s.blockSize)
	}

	line := &Line{
		Addr:     addr,
		Original: append([]byte(nil), data...),
		Current:  append([]byte(nil), data...),
	}
	s.lines[addr] = line
	s.numLoads++

	return line, nil
}

// Modify overwrites the current content of the line that holds addr, starting
// at the offset of addr inside the block.
func (s *Store) Modify(addr uint64, data []byte) (*Line, error) {
	base := mem.AlignToBlock(addr, s.blockSize)
	offset := addr - base

	if offset+uint64(len(data)) > s.blockSize {
		return nil, fmt.Errorf("%w: 0x%x, %d bytes",
			ErrOutOfBlock, addr, len(data))
	}

	line, found := s.lines[base]
	if !found {
		return nil, fmt.Errorf("%w: 0x%x", ErrLineNotFound, base)
	}

	copy(line.Current[offset:], data)

	return line, nil
}

// Get returns the line at the aligned address.
func (s *Store) Get(addr uint64) (*Line, error) {
	if err := s.mustBeAligned(addr); err != nil {
		return nil, err
	}

	line, found := s.lines[addr]
	if !found {
		return nil, fmt.Errorf("%w: 0x%x", ErrLineNotFound, addr)
	}

	return line, nil
}

// Delete removes the line at the aligned address and returns it.
func (s *Store) Delete(addr uint64) (*Line, error) {
	line, err := s.Get(addr)
	if err != nil {
		return nil, err
	}

	delete(s.lines, addr)

	return line, nil
}

// Len returns the number of lines in the store.
func (s *Store) Len() int {
	return len(s.lines)
}

// NumLoads returns how many lines have been loaded since the last reset.
func (s *Store) NumLoads() uint64 {
	return s.numLoads
}

// Lines returns all the lines, ordered by address.
func (s *Store) Lines() []*Line {
	lines := make([]*Line, 0, len(s.lines))
	for _, l := range s.lines {
		lines = append(lines, l)
	}

	sort.Slice(lines, func(i, j int) bool {
		return lines[i].Addr < lines[j].Addr
	})

	return lines
}

// Reset drops all the lines.
func (s *Store) Reset() {
	s.lines = make(map[uint64]*Line)
	s.numLoads = 0
}

func (s *Store) mustBeAligned(addr uint64) error {
	if addr&(s.blockSize-1) != 0 {
		return fmt.Errorf("%w: 0x%x", ErrUnaligned, addr)
	}

	return nil
}
