package tagging

const nilIndex = -1

type lruLink struct {
	prev, next int
}

// lruList is a doubly linked list over block indexes. The head is the most
// recently used block and the tail is the least recently used one. Indexes
// that are not on the list are kept on a free list.
type lruList struct {
	links      []lruLink
	head, tail int
	free       []int
	length     int
}

func newLRUList(n int) *lruList {
	l := &lruList{}
	l.reset(n)

	return l
}

func (l *lruList) reset(n int) {
	l.links = make([]lruLink, n)
	l.head = nilIndex
	l.tail = nilIndex
	l.length = 0

	l.free = make([]int, 0, n)
	for i := n - 1; i >= 0; i-- {
		l.links[i] = lruLink{prev: nilIndex, next: nilIndex}
		l.free = append(l.free, i)
	}
}

// takeFree removes an index from the free list.
func (l *lruList) takeFree() (int, bool) {
	if len(l.free) == 0 {
		return nilIndex, false
	}

	i := l.free[len(l.free)-1]
	l.free = l.free[:len(l.free)-1]

	return i, true
}

func (l *lruList) release(i int) {
	l.free = append(l.free, i)
}

func (l *lruList) pushFront(i int) {
	l.links[i] = lruLink{prev: nilIndex, next: l.head}

	if l.head != nilIndex {
		l.links[l.head].prev = i
	}

	l.head = i

	if l.tail == nilIndex {
		l.tail = i
	}

	l.length++
}

func (l *lruList) unlink(i int) {
	link := l.links[i]

	if link.prev != nilIndex {
		l.links[link.prev].next = link.next
	} else {
		l.head = link.next
	}

	if link.next != nilIndex {
		l.links[link.next].prev = link.prev
	} else {
		l.tail = link.prev
	}

	l.links[i] = lruLink{prev: nilIndex, next: nilIndex}
	l.length--
}

func (l *lruList) moveToFront(i int) {
	if l.head == i {
		return
	}

	l.unlink(i)
	l.pushFront(i)
}

// order returns the indexes from the head to the tail.
func (l *lruList) order() []int {
	out := make([]int, 0, l.length)
	for i := l.head; i != nilIndex; i = l.links[i].next {
		out = append(out, i)
	}

	return out
}
