package vm

import (
	"sort"

	"github.com/google/btree"
)

// PageInfo is the access record of one physical page.
type PageInfo struct {
	PageID        uint64
	FirstTouchEIP uint64
	Accesses      uint64
}

// PageStats is a histogram of page accesses, indexed by physical page id.
type PageStats struct {
	tree *btree.BTreeG[*PageInfo]
}

// NewPageStats creates an empty histogram.
func NewPageStats() *PageStats {
	return &PageStats{
		tree: btree.NewG(32, func(a, b *PageInfo) bool {
			return a.PageID < b.PageID
		}),
	}
}

// Touch counts an access to a page. The first access to a page records the
// instruction that made it.
func (s *PageStats) Touch(pageID, eip uint64) {
	info, found := s.tree.Get(&PageInfo{PageID: pageID})
	if !found {
		info = &PageInfo{PageID: pageID, FirstTouchEIP: eip}
		s.tree.ReplaceOrInsert(info)
	}

	info.Accesses++
}

// Len returns the number of pages ever touched.
func (s *PageStats) Len() int {
	return s.tree.Len()
}

// Get returns the record of a page.
func (s *PageStats) Get(pageID uint64) (PageInfo, bool) {
	info, found := s.tree.Get(&PageInfo{PageID: pageID})
	if !found {
		return PageInfo{}, false
	}

	return *info, true
}

// ResetCounts sets the access counts back to zero. The pages and their first
// touching instruction are kept.
func (s *PageStats) ResetCounts() {
	s.tree.Ascend(func(info *PageInfo) bool {
		info.Accesses = 0
		return true
	})
}

// Pages returns all the records ordered by page id.
func (s *PageStats) Pages() []PageInfo {
	pages := make([]PageInfo, 0, s.tree.Len())
	s.tree.Ascend(func(info *PageInfo) bool {
		pages = append(pages, *info)
		return true
	})

	return pages
}

// MostFrequent returns the pages that have been accessed, most accessed
// first. Ties are ordered by page id.
func (s *PageStats) MostFrequent() []PageInfo {
	pages := make([]PageInfo, 0, s.tree.Len())
	s.tree.Ascend(func(info *PageInfo) bool {
		if info.Accesses > 0 {
			pages = append(pages, *info)
		}

		return true
	})

	sort.SliceStable(pages, func(i, j int) bool {
		return pages[i].Accesses > pages[j].Accesses
	})

	return pages
}
