package vm

import (
	"container/list"
	"fmt"
	"sync"
)

// A Page is an entry in the page table, maintaining the information about how
// to translate a virtual address to a physical address.
type Page struct {
	CoreID   int
	VAddr    uint64
	PAddr    uint64
	PageSize uint64
	Valid    bool
}

// A PageTable holds the pages of all the cores. Each core has its own address
// space.
type PageTable interface {
	Insert(page Page)
	Remove(coreID int, vAddr uint64)
	Find(coreID int, vAddr uint64) (Page, bool)
	Pages(coreID int) []Page
	NumPages() int
}

// NewPageTable creates a new PageTable.
func NewPageTable(log2PageSize uint64) PageTable {
	return &pageTableImpl{
		log2PageSize: log2PageSize,
		tables:       make(map[int]*coreTable),
	}
}

type pageTableImpl struct {
	sync.Mutex
	log2PageSize uint64
	tables       map[int]*coreTable
}

func (pt *pageTableImpl) getTable(coreID int) *coreTable {
	pt.Lock()
	defer pt.Unlock()

	table, found := pt.tables[coreID]
	if !found {
		table = &coreTable{
			entries:      list.New(),
			entriesTable: make(map[uint64]*list.Element),
		}
		pt.tables[coreID] = table
	}

	return table
}

func (pt *pageTableImpl) alignToPage(addr uint64) uint64 {
	return (addr >> pt.log2PageSize) << pt.log2PageSize
}

// Insert put a new page into the PageTable. A mapping never changes once it
// is made, so inserting an existing page panics.
func (pt *pageTableImpl) Insert(page Page) {
	table := pt.getTable(page.CoreID)
	page.VAddr = pt.alignToPage(page.VAddr)
	table.insert(page)
}

// Remove removes the entry in the page table that contains the target
// address.
func (pt *pageTableImpl) Remove(coreID int, vAddr uint64) {
	table := pt.getTable(coreID)
	table.remove(pt.alignToPage(vAddr))
}

// Find returns the page that contains the given virtual address. The bool
// return value indicates if the page is found or not.
func (pt *pageTableImpl) Find(coreID int, vAddr uint64) (Page, bool) {
	table := pt.getTable(coreID)
	return table.find(pt.alignToPage(vAddr))
}

// Pages returns the pages of a core in the order that they are inserted.
func (pt *pageTableImpl) Pages(coreID int) []Page {
	table := pt.getTable(coreID)
	return table.pages()
}

// NumPages returns the number of pages of all the cores.
func (pt *pageTableImpl) NumPages() int {
	pt.Lock()
	defer pt.Unlock()

	n := 0
	for _, t := range pt.tables {
		n += t.entries.Len()
	}

	return n
}

type coreTable struct {
	sync.Mutex
	entries      *list.List
	entriesTable map[uint64]*list.Element
}

func (t *coreTable) insert(page Page) {
	t.Lock()
	defer t.Unlock()

	t.pageMustNotExist(page.VAddr)

	elem := t.entries.PushBack(page)
	t.entriesTable[page.VAddr] = elem
}

func (t *coreTable) remove(vAddr uint64) {
	t.Lock()
	defer t.Unlock()

	t.pageMustExist(vAddr)

	elem := t.entriesTable[vAddr]
	t.entries.Remove(elem)
	delete(t.entriesTable, vAddr)
}

func (t *coreTable) find(vAddr uint64) (Page, bool) {
	t.Lock()
	defer t.Unlock()

	elem, found := t.entriesTable[vAddr]
	if found {
		return elem.Value.(Page), true
	}

	return Page{}, false
}

func (t *coreTable) pages() []Page {
	t.Lock()
	defer t.Unlock()

	pages := make([]Page, 0, t.entries.Len())
	for e := t.entries.Front(); e != nil; e = e.Next() {
		pages = append(pages, e.Value.(Page))
	}

	return pages
}

func (t *coreTable) pageMustExist(vAddr uint64) {
	_, found := t.entriesTable[vAddr]
	if !found {
		panic(fmt.Sprintf("page 0x%x does not exist", vAddr))
	}
}

func (t *coreTable) pageMustNotExist(vAddr uint64) {
	_, found := t.entriesTable[vAddr]
	if found {
		panic(fmt.Sprintf("page 0x%x exists", vAddr))
	}
}
