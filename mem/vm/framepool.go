package vm

import (
	"math/rand/v2"
)

// A FramePool hands out physical frames in a random order. Every frame is
// given out at most once.
//
// The pool behaves like a shuffled list of all the frames that is consumed
// from the front, but only remembers the positions that the shuffle has
// touched, so a large physical memory costs nothing up front.
type FramePool struct {
	numFrames uint64
	remaining uint64
	swapped   map[uint64]uint64
	used      map[uint64]struct{}
	rng       *rand.Rand
}

// NewFramePool creates a pool of numFrames frames, shuffled with the seed.
func NewFramePool(numFrames uint64, seed uint64) *FramePool {
	return &FramePool{
		numFrames: numFrames,
		remaining: numFrames,
		swapped:   make(map[uint64]uint64),
		used:      make(map[uint64]struct{}),
		rng:       rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}
}

// NumFrames returns the total number of frames.
func (p *FramePool) NumFrames() uint64 {
	return p.numFrames
}

// NumFree returns the number of frames that have not been handed out.
func (p *FramePool) NumFree() uint64 {
	return p.remaining
}

// IsUsed tells if a frame has been handed out.
func (p *FramePool) IsUsed(frame uint64) bool {
	_, found := p.used[frame]
	return found
}

// Pop hands out a frame. The bool return value is false when the pool is
// exhausted.
func (p *FramePool) Pop() (uint64, bool) {
	if p.remaining == 0 {
		return 0, false
	}

	last := p.remaining - 1
	i := p.rng.Uint64N(p.remaining)

	frame := p.at(i)
	p.swapped[i] = p.at(last)
	delete(p.swapped, last)
	p.remaining--

	p.frameMustBeFree(frame)
	p.used[frame] = struct{}{}

	return frame, true
}

func (p *FramePool) at(i uint64) uint64 {
	if v, found := p.swapped[i]; found {
		return v
	}

	return i
}

func (p *FramePool) frameMustBeFree(frame uint64) {
	if _, found := p.used[frame]; found {
		panic("frame handed out twice")
	}
}
