// Package mmu translates the virtual addresses of memory requests into
// physical addresses.
package mmu

import (
	"fmt"
	"log"

	"github.com/Shihao-Song/Pin-Tools/mem/mem"
	"github.com/Shihao-Song/Pin-Tools/mem/vm"
)

// An MMU rewrites the address of a request from virtual to physical and keeps
// a histogram of the physical pages that are accessed.
type MMU interface {
	// Translate rewrites req.Addr in place. req.VAddr is not touched.
	Translate(req *mem.Request)

	// ReInitialize clears the page access counts. Translations are kept.
	ReInitialize()

	// NumPages returns the number of physical pages ever accessed.
	NumPages() int

	// Pages returns the access records ordered by page id.
	Pages() []vm.PageInfo

	// MostFrequentPages returns the accessed pages, most accessed first.
	MostFrequentPages() []vm.PageInfo
}

type pageRecorder struct {
	numCores  int
	pageStats *vm.PageStats
}

func (r *pageRecorder) record(req *mem.Request) {
	r.pageStats.Touch(req.Addr>>vm.Log2PageSize, req.EIP)
}

func (r *pageRecorder) coreMustBeValid(req *mem.Request) {
	if req.CoreID < 0 || req.CoreID >= r.numCores {
		panic(fmt.Sprintf("core %d out of range [0, %d)",
			req.CoreID, r.numCores))
	}
}

// ReInitialize clears the page access counts.
func (r *pageRecorder) ReInitialize() {
	r.pageStats.ResetCounts()
}

// NumPages returns the number of physical pages ever accessed.
func (r *pageRecorder) NumPages() int {
	return r.pageStats.Len()
}

// Pages returns the access records ordered by page id.
func (r *pageRecorder) Pages() []vm.PageInfo {
	return r.pageStats.Pages()
}

// MostFrequentPages returns the accessed pages, most accessed first.
func (r *pageRecorder) MostFrequentPages() []vm.PageInfo {
	return r.pageStats.MostFrequent()
}

// RandomMMU maps every core's address space with the core's fixed random
// permutation.
type RandomMMU struct {
	pageRecorder
	mappers []*vm.Mapper
}

// Translate rewrites req.Addr to its physical address.
func (m *RandomMMU) Translate(req *mem.Request) {
	m.coreMustBeValid(req)

	req.Addr = m.mappers[req.CoreID].Translate(req.Addr)
	m.record(req)
}

// DemandPagedMMU allocates a random free frame the first time a core touches
// a virtual page. The mapping stays for the rest of the run.
type DemandPagedMMU struct {
	pageRecorder
	log2PageSize uint64
	pageTable    vm.PageTable
	frames       *vm.FramePool
}

// Translate rewrites req.Addr to its physical address, allocating a frame if
// the page has never been touched by the core.
func (m *DemandPagedMMU) Translate(req *mem.Request) {
	m.coreMustBeValid(req)

	page, found := m.pageTable.Find(req.CoreID, req.Addr)
	if !found {
		page = m.allocatePage(req)
	}

	offsetMask := uint64(1)<<m.log2PageSize - 1
	req.Addr = page.PAddr | req.Addr&offsetMask
	m.record(req)
}

func (m *DemandPagedMMU) allocatePage(req *mem.Request) vm.Page {
	frame, ok := m.frames.Pop()
	if !ok {
		log.Panicf("out of physical memory: core %d, vaddr 0x%x",
			req.CoreID, req.Addr)
	}

	page := vm.Page{
		CoreID:   req.CoreID,
		VAddr:    req.Addr,
		PAddr:    frame << m.log2PageSize,
		PageSize: 1 << m.log2PageSize,
		Valid:    true,
	}
	m.pageTable.Insert(page)

	return page
}

// PageTable returns the page table that holds the mappings.
func (m *DemandPagedMMU) PageTable() vm.PageTable {
	return m.pageTable
}

// NumFreeFrames returns the number of frames that can still be allocated.
func (m *DemandPagedMMU) NumFreeFrames() uint64 {
	return m.frames.NumFree()
}
