package tagging

// A Set is a list of blocks where a certain piece memory can be stored at.
// LRUQueue lists the way ids from the least recently used to the most
// recently used.
type Set struct {
	Blocks   []Block
	LRUQueue []int
}

// A VictimFinder decides which block of a set should be evicted.
type VictimFinder interface {
	FindVictim(set *Set) *Block
}

// LRUVictimFinder evicts the least recently used block to evict.
type LRUVictimFinder struct{}

// NewLRUVictimFinder returns a newly constructed lru evictor.
func NewLRUVictimFinder() *LRUVictimFinder {
	return &LRUVictimFinder{}
}

// FindVictim returns an invalid block if there is one in the set. Otherwise,
// it returns the least recently used block.
func (e *LRUVictimFinder) FindVictim(set *Set) *Block {
	for _, wayID := range set.LRUQueue {
		if !set.Blocks[wayID].IsValid {
			return &set.Blocks[wayID]
		}
	}

	return &set.Blocks[set.LRUQueue[0]]
}

// visit moves the way to the most recently used end of the queue.
func (s *Set) visit(wayID int) {
	s.moveTo(wayID, true)
}

// demote moves the way to the least recently used end of the queue.
func (s *Set) demote(wayID int) {
	s.moveTo(wayID, false)
}

// moveTo rotates the queue in place.
func (s *Set) moveTo(wayID int, back bool) {
	q := s.LRUQueue

	pos := -1
	for i, w := range q {
		if w == wayID {
			pos = i
			break
		}
	}

	if pos < 0 {
		return
	}

	if back {
		copy(q[pos:], q[pos+1:])
		q[len(q)-1] = wayID
	} else {
		copy(q[1:pos+1], q[:pos])
		q[0] = wayID
	}
}
