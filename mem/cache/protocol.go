package cache

import (
	"github.com/Shihao-Song/Pin-Tools/mem/datastore"
	"github.com/Shihao-Song/Pin-Tools/mem/mem"
	"github.com/Shihao-Song/Pin-Tools/sim/hooking"
)

// Hook positions of a cache level.
var (
	// HookPosAccess triggers after a read or write request is looked up.
	// Item is the *mem.Request and Detail is an AccessDetail.
	HookPosAccess = &hooking.HookPos{Name: "CacheAccess"}

	// HookPosEvict triggers when a valid block is evicted. Item is an
	// Eviction.
	HookPosEvict = &hooking.HookPos{Name: "CacheEvict"}

	// HookPosWriteBack triggers when a write-back arrives from an upper
	// level. Item is the *mem.Request.
	HookPosWriteBack = &hooking.HookPos{Name: "CacheWriteBack"}

	// HookPosInvalidate triggers when a resident block is invalidated by a
	// lower level. Item is the block address.
	HookPosInvalidate = &hooking.HookPos{Name: "CacheInvalidate"}

	// HookPosLineRelease triggers when a line leaves the hierarchy. Item is a
	// copy of the datastore.Line.
	HookPosLineRelease = &hooking.HookPos{Name: "LineRelease"}
)

// AccessDetail tells how a request is served.
type AccessDetail struct {
	Hit bool
}

// An Eviction describes a block that is pushed out of a level.
type Eviction struct {
	Addr  uint64
	Dirty bool
}

// Level is a level of the cache hierarchy as seen by its neighbours.
type Level interface {
	// Name returns the name of the level.
	Name() string

	// Send processes a request and returns true if the block is supplied
	// by this level or a level below.
	Send(req *mem.Request) bool

	// Invalidate drops the block from this level and all the levels above.
	Invalidate(addr uint64)

	// GetBlock returns the data of a resident block.
	GetBlock(addr uint64) *datastore.Line
}
