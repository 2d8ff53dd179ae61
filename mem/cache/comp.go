package cache

import (
	"fmt"
	"log"

	"github.com/Shihao-Song/Pin-Tools/mem/cache/internal/tagging"
	"github.com/Shihao-Song/Pin-Tools/mem/datastore"
	"github.com/Shihao-Song/Pin-Tools/mem/mem"
	"github.com/Shihao-Song/Pin-Tools/sim/hooking"
)

// Comp is one level of an inclusive, write-back cache hierarchy.
//
// A block that is valid in a level is also valid in every level below it.
// When a level evicts a block, it invalidates the block in all the levels
// above. Dirty victims are written back to the next level.
//
// When the level has a data store, every resident block also has a line that
// holds its content. The lowest level loads lines from the backing memory and
// releases them when they are evicted. The other levels share the line of the
// level below.
type Comp struct {
	hooking.HookableBase

	name      string
	coreID    int
	blockSize uint64
	tags      tagging.TagStore

	nextLevel  Level
	prevLevels []Level

	store  *datastore.Store
	memory mem.Memory
	lines  map[uint64]*datastore.Line

	clock uint64
	stats Statistics
}

// Name returns the name of the level.
func (c *Comp) Name() string {
	return c.name
}

// CoreID returns the core that owns a private level, or -1 for a shared one.
func (c *Comp) CoreID() int {
	return c.coreID
}

// IsShared tells if the level is shared by all the cores.
func (c *Comp) IsShared() bool {
	return c.coreID < 0
}

// BlockSize returns the number of bytes of a block.
func (c *Comp) BlockSize() uint64 {
	return c.blockSize
}

// NumBlocks returns the capacity of the level in blocks.
func (c *Comp) NumBlocks() int {
	return c.tags.NumBlocks()
}

// IsDataAware tells if the level tracks the content of its blocks.
func (c *Comp) IsDataAware() bool {
	return c.store != nil
}

// SetNextLevel sets the level below.
func (c *Comp) SetNextLevel(l Level) {
	c.nextLevel = l
}

// NextLevel returns the level below, or nil for the lowest level.
func (c *Comp) NextLevel() Level {
	return c.nextLevel
}

// AddPrevLevel adds a level above. Adding the same level twice has no effect.
func (c *Comp) AddPrevLevel(l Level) {
	for _, p := range c.prevLevels {
		if p == l {
			return
		}
	}

	c.prevLevels = append(c.prevLevels, l)
}

// PrevLevels returns the levels above.
func (c *Comp) PrevLevels() []Level {
	return c.prevLevels
}

// Send processes a request.
//
// For a read or a write, a hit returns true. On a miss, the block is fetched
// from the next level and inserted. The return value is then the result of
// the next level, or true for the lowest level, which always gets the block
// from the backing memory.
//
// A write-back only marks the block dirty, inserting it if it is missing.
func (c *Comp) Send(req *mem.Request) bool {
	c.clock++

	if req.Kind == mem.AccessKindWriteBack {
		c.receiveWriteBack(req)
		return true
	}

	c.countAccess(req)

	hit, aligned := c.tags.AccessBlock(req.Addr, req.IsWrite(), c.clock)
	if hit {
		c.stats.Hits++
		c.traceAccess(req, true)

		return true
	}

	c.stats.Misses++
	c.stats.Loads++

	lowerHit := true
	if c.nextLevel != nil {
		lowerHit = c.nextLevel.Send(c.fetchReq(req, aligned))
	}

	c.allocate(aligned, req.IsWrite())

	if c.store != nil && lowerHit {
		c.fill(aligned, req)
	}

	c.traceAccess(req, false)

	return lowerHit
}

func (c *Comp) countAccess(req *mem.Request) {
	c.stats.Accesses++

	if req.Kind == mem.AccessKindWrite {
		c.stats.WriteAccesses++
	} else {
		c.stats.ReadAccesses++
	}
}

func (c *Comp) fetchReq(req *mem.Request, aligned uint64) *mem.Request {
	return &mem.Request{
		CoreID:       req.CoreID,
		EIP:          req.EIP,
		Addr:         aligned,
		VAddr:        mem.AlignToBlock(req.VAddr, c.blockSize),
		Size:         c.blockSize,
		Kind:         mem.AccessKindRead,
		InstrLoading: req.InstrLoading,
	}
}

func (c *Comp) receiveWriteBack(req *mem.Request) {
	c.stats.WriteBacks++
	c.traceWriteBack(req)

	hit, aligned := c.tags.AccessBlock(req.Addr, true, c.clock)
	if hit {
		return
	}

	c.allocate(aligned, true)

	if c.store != nil {
		line, err := c.store.Get(aligned)
		if err != nil {
			log.Panicf("%s: write-back of a block without data: %v",
				c.name, err)
		}

		c.attachLine(aligned, line)
	}
}

// allocate inserts the block and handles the victim.
func (c *Comp) allocate(aligned uint64, dirty bool) {
	writebackRequired, victim := c.tags.InsertBlock(aligned, dirty, c.clock)
	if victim == tagging.NoAddr {
		return
	}

	c.traceEvict(victim, writebackRequired)

	if writebackRequired {
		c.stats.Evictions++

		if c.nextLevel != nil {
			c.nextLevel.Send(&mem.Request{
				Addr: victim,
				Size: c.blockSize,
				Kind: mem.AccessKindWriteBack,
			})
		}
	}

	for _, p := range c.prevLevels {
		p.Invalidate(victim)
	}

	c.dropLine(victim)
}

// fill attaches the data of a block that has just been inserted.
func (c *Comp) fill(aligned uint64, req *mem.Request) {
	if c.nextLevel != nil {
		c.attachLine(aligned, c.nextLevel.GetBlock(aligned))
		return
	}

	vAddr := mem.AlignToBlock(req.VAddr, c.blockSize)
	data := c.memory.ReadBlock(vAddr, c.blockSize)

	line, err := c.store.Load(aligned, data)
	if err != nil {
		log.Panicf("%s: cannot load block 0x%x: %v", c.name, aligned, err)
	}

	c.attachLine(aligned, line)
}

func (c *Comp) attachLine(aligned uint64, line *datastore.Line) {
	if _, found := c.lines[aligned]; found {
		panic(fmt.Sprintf("%s: block 0x%x already has data", c.name, aligned))
	}

	c.lines[aligned] = line
}

// dropLine detaches the data of an evicted block. The lowest level also
// removes the line from the store.
func (c *Comp) dropLine(addr uint64) {
	if c.store == nil {
		return
	}

	delete(c.lines, addr)

	if c.nextLevel != nil {
		return
	}

	line, err := c.store.Delete(addr)
	if err != nil {
		log.Panicf("%s: cannot release block 0x%x: %v", c.name, addr, err)
	}

	c.traceLineRelease(line)
}

// Invalidate drops the block from this level and all the levels above.
func (c *Comp) Invalidate(addr uint64) {
	found, _ := c.tags.InvalidateBlock(addr)
	if found {
		c.stats.Invalidations++
		c.traceInvalidate(addr)
	}

	if c.store != nil {
		delete(c.lines, mem.AlignToBlock(addr, c.blockSize))
	}

	for _, p := range c.prevLevels {
		p.Invalidate(addr)
	}
}

// GetBlock returns the data of a resident block. It panics if the level does
// not have the data.
func (c *Comp) GetBlock(addr uint64) *datastore.Line {
	line, found := c.lines[mem.AlignToBlock(addr, c.blockSize)]
	if !found {
		log.Panicf("%s: no data for block 0x%x", c.name, addr)
	}

	return line
}

// Contains tells if the block of the address is resident.
func (c *Comp) Contains(addr uint64) bool {
	_, found := c.tags.Lookup(addr)
	return found
}

// IsDirty tells if the block of the address is resident and dirty.
func (c *Comp) IsDirty(addr uint64) bool {
	b, found := c.tags.Lookup(addr)
	return found && b.IsDirty
}

// ResidentAddrs returns the addresses of all the resident blocks.
func (c *Comp) ResidentAddrs() []uint64 {
	return c.tags.ResidentAddrs()
}

// Stats returns the counters of the level.
func (c *Comp) Stats() Statistics {
	return c.stats
}

// ReInitialize empties the level and clears its counters. The levels around
// are not touched.
func (c *Comp) ReInitialize() {
	c.clock = 0
	c.stats = Statistics{}
	c.tags.ReInitialize()
	c.lines = make(map[uint64]*datastore.Line)
}

func (c *Comp) traceAccess(req *mem.Request, hit bool) {
	if c.NumHooks() == 0 {
		return
	}

	c.InvokeHook(hooking.HookCtx{
		Domain: c,
		Pos:    HookPosAccess,
		Item:   req,
		Detail: AccessDetail{Hit: hit},
	})
}

func (c *Comp) traceEvict(addr uint64, dirty bool) {
	if c.NumHooks() == 0 {
		return
	}

	c.InvokeHook(hooking.HookCtx{
		Domain: c,
		Pos:    HookPosEvict,
		Item:   Eviction{Addr: addr, Dirty: dirty},
	})
}

func (c *Comp) traceWriteBack(req *mem.Request) {
	if c.NumHooks() == 0 {
		return
	}

	c.InvokeHook(hooking.HookCtx{
		Domain: c,
		Pos:    HookPosWriteBack,
		Item:   req,
	})
}

func (c *Comp) traceInvalidate(addr uint64) {
	if c.NumHooks() == 0 {
		return
	}

	c.InvokeHook(hooking.HookCtx{
		Domain: c,
		Pos:    HookPosInvalidate,
		Item:   addr,
	})
}

func (c *Comp) traceLineRelease(line *datastore.Line) {
	if c.NumHooks() == 0 {
		return
	}

	c.InvokeHook(hooking.HookCtx{
		Domain: c,
		Pos:    HookPosLineRelease,
		Item:   line.Clone(),
	})
}
