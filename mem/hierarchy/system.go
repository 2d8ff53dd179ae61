// Package hierarchy assembles the MMU, the cache levels and the data store
// into a system that processes memory access events.
package hierarchy

import (
	"fmt"
	"log"
	"sync"

	"github.com/Shihao-Song/Pin-Tools/mem/cache"
	"github.com/Shihao-Song/Pin-Tools/mem/datastore"
	"github.com/Shihao-Song/Pin-Tools/mem/mem"
	"github.com/Shihao-Song/Pin-Tools/mem/vm"
	"github.com/Shihao-Song/Pin-Tools/mem/vm/mmu"
	"github.com/Shihao-Song/Pin-Tools/sim/hooking"
	"github.com/Shihao-Song/Pin-Tools/stats"
)

// Hook positions of a System.
var (
	// HookPosStoreCommit triggers after the data of a write is applied. Item
	// is a StoreCommit.
	HookPosStoreCommit = &hooking.HookPos{Name: "StoreCommit"}

	// HookPosPhaseEnd triggers at the end of every phase, after the lines of
	// the phase are released. Item is a PhaseReport.
	HookPosPhaseEnd = &hooking.HookPos{Name: "PhaseEnd"}
)

// A StoreCommit is the record of the bytes written by one store. Original
// holds the bytes of the range as they were when the line was loaded. It is
// nil when the system does not track data.
type StoreCommit struct {
	CoreID   int
	EIP      uint64
	VAddr    uint64
	PAddr    uint64
	Size     uint64
	Original []byte
	New      []byte
}

// A PhaseReport summarizes a phase.
type PhaseReport struct {
	Phase       int
	NumAccesses uint64
	Stats       *stats.Registry
	Pages       []vm.PageInfo
}

// System is the simulation context. All the events go through one lock, so
// the translation, the access to every level, the eviction cascade and the
// data store update of an event happen as one step.
type System struct {
	sync.Mutex
	hooking.HookableBase

	id        string
	name      string
	numCores  int
	blockSize uint64

	mmu       mmu.MMU
	store     *datastore.Store
	memory    mem.Memory
	topLevels []*cache.Comp
	levels    []*cache.Comp

	phaseLength   uint64
	phase         int
	numAccesses   uint64
	totalAccesses uint64
}

// ID returns the unique id of the system.
func (s *System) ID() string {
	return s.id
}

// Name returns the name of the system.
func (s *System) Name() string {
	return s.name
}

// NumCores returns the number of cores.
func (s *System) NumCores() int {
	return s.numCores
}

// BlockSize returns the block size shared by all the levels.
func (s *System) BlockSize() uint64 {
	return s.blockSize
}

// MMU returns the address translator.
func (s *System) MMU() mmu.MMU {
	return s.mmu
}

// Store returns the data store. It is nil when the system does not track
// data.
func (s *System) Store() *datastore.Store {
	return s.store
}

// Levels returns every cache level once, from the top to the bottom.
func (s *System) Levels() []*cache.Comp {
	return s.levels
}

// TopLevel returns the first level of a core.
func (s *System) TopLevel(coreID int) *cache.Comp {
	return s.topLevels[coreID]
}

// Phase returns the index of the current phase.
func (s *System) Phase() int {
	s.Lock()
	defer s.Unlock()

	return s.phase
}

// TotalAccesses returns the number of events processed since the start.
func (s *System) TotalAccesses() uint64 {
	s.Lock()
	defer s.Unlock()

	return s.totalAccesses
}

// AcceptHook registers the hook with the system and all the cache levels.
func (s *System) AcceptHook(hook hooking.Hook) {
	s.HookableBase.AcceptHook(hook)

	for _, l := range s.levels {
		l.AcceptHook(hook)
	}
}

// Access processes one memory access event. An access that crosses block
// boundaries is split into one access per block. The data of a write, if
// any, is committed right after the access. Access returns true if every
// part of the access hits in the first level of the core.
func (s *System) Access(req *mem.Request) bool {
	s.Lock()
	defer s.Unlock()

	s.requestMustBeValid(req)

	hit := true
	for _, c := range mem.SplitAccess(req.VAddr, req.Size, s.blockSize) {
		chunk := &mem.Request{
			CoreID:       req.CoreID,
			EIP:          req.EIP,
			Addr:         c.Addr,
			VAddr:        c.Addr,
			Size:         c.Size,
			Kind:         req.Kind,
			InstrLoading: req.InstrLoading,
		}

		if req.Data != nil {
			chunk.Data = req.Data[c.Offset : c.Offset+c.Size]
		}

		if !s.accessBlock(chunk) {
			hit = false
		}
	}

	s.numAccesses++
	s.totalAccesses++

	if s.phaseLength > 0 && s.numAccesses >= s.phaseLength {
		s.endPhase()
	}

	return hit
}

func (s *System) requestMustBeValid(req *mem.Request) {
	if req.CoreID < 0 || req.CoreID >= s.numCores {
		panic(fmt.Sprintf("core %d out of range [0, %d)",
			req.CoreID, s.numCores))
	}

	if req.Kind == mem.AccessKindWriteBack {
		panic("write-back requests cannot be issued by cores")
	}

	if req.Size > mem.MaxAccessSize {
		panic(fmt.Sprintf("%s: size %d exceeds the maximum of %d bytes",
			req, req.Size, mem.MaxAccessSize))
	}

	if req.Data != nil && uint64(len(req.Data)) != req.Size {
		panic(fmt.Sprintf("request of %d bytes carries %d bytes of data",
			req.Size, len(req.Data)))
	}
}

func (s *System) accessBlock(req *mem.Request) bool {
	s.mmu.Translate(req)

	top := s.topLevels[req.CoreID]
	hit := top.Contains(req.Addr)
	top.Send(req)

	if req.Kind == mem.AccessKindWrite && req.Data != nil {
		s.commit(req)
	}

	return hit
}

func (s *System) commit(req *mem.Request) {
	commit := StoreCommit{
		CoreID: req.CoreID,
		EIP:    req.EIP,
		VAddr:  req.VAddr,
		PAddr:  req.Addr,
		Size:   req.Size,
		New:    append([]byte(nil), req.Data...),
	}

	if s.store != nil {
		line, err := s.store.Modify(req.Addr, req.Data)
		if err != nil {
			log.Panicf("commit of %s: %v", req, err)
		}

		offset := req.Addr - line.Addr
		commit.Original = append([]byte(nil),
			line.Original[offset:offset+req.Size]...)
	}

	if w, ok := s.memory.(mem.MemoryWriter); ok {
		w.Write(req.VAddr, req.Data)
	}

	if s.NumHooks() > 0 {
		s.InvokeHook(hooking.HookCtx{
			Domain: s,
			Pos:    HookPosStoreCommit,
			Item:   commit,
		})
	}
}

// Stats returns a snapshot of the counters of all the levels and the MMU.
func (s *System) Stats() *stats.Registry {
	s.Lock()
	defer s.Unlock()

	return s.collectStats()
}

func (s *System) collectStats() *stats.Registry {
	r := stats.NewRegistry()

	for _, l := range s.levels {
		l.RegisterStats(r)
	}

	r.Register("MMU", "Number of pages", float64(s.mmu.NumPages()))

	if s.store != nil {
		r.Register("DataStore", "Number of lines", float64(s.store.Len()))
		r.Register("DataStore", "Number of loads",
			float64(s.store.NumLoads()))
	}

	return r
}

// EndPhase reports the current phase and starts a new one with empty caches.
// Address translations are kept.
func (s *System) EndPhase() {
	s.Lock()
	defer s.Unlock()

	s.endPhase()
}

// Finish reports the last phase if it has seen any access, and releases all
// the lines.
func (s *System) Finish() {
	s.Lock()
	defer s.Unlock()

	if s.numAccesses == 0 && s.phase > 0 {
		return
	}

	s.endPhase()
}

func (s *System) endPhase() {
	report := PhaseReport{
		Phase:       s.phase,
		NumAccesses: s.numAccesses,
		Stats:       s.collectStats(),
		Pages:       s.mmu.MostFrequentPages(),
	}

	s.releaseLines()

	if s.NumHooks() > 0 {
		s.InvokeHook(hooking.HookCtx{
			Domain: s,
			Pos:    HookPosPhaseEnd,
			Item:   report,
		})
	}

	s.reInitialize()
	s.phase++
}

// ReInitialize releases all the lines, empties all the caches and clears the
// counters. Address translations are kept.
func (s *System) ReInitialize() {
	s.Lock()
	defer s.Unlock()

	s.reInitialize()
}

func (s *System) reInitialize() {
	s.releaseLines()

	for _, l := range s.levels {
		l.ReInitialize()
	}

	s.mmu.ReInitialize()
	s.numAccesses = 0
}

// releaseLines reports every line of the store and empties it.
func (s *System) releaseLines() {
	if s.store == nil {
		return
	}

	if s.NumHooks() > 0 {
		for _, line := range s.store.Lines() {
			s.InvokeHook(hooking.HookCtx{
				Domain: s,
				Pos:    cache.HookPosLineRelease,
				Item:   line.Clone(),
			})
		}
	}

	s.store.Reset()
}
