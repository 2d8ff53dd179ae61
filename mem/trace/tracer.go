// Package trace provides hooks that record the activity of a cache
// hierarchy.
package trace

import (
	"log"

	"github.com/Shihao-Song/Pin-Tools/mem/cache"
	"github.com/Shihao-Song/Pin-Tools/mem/datastore"
	"github.com/Shihao-Song/Pin-Tools/mem/hierarchy"
	"github.com/Shihao-Song/Pin-Tools/mem/mem"
	"github.com/Shihao-Song/Pin-Tools/sim/hooking"
)

type named interface {
	Name() string
}

func domainName(ctx hooking.HookCtx) string {
	if n, ok := ctx.Domain.(named); ok {
		return n.Name()
	}

	return "unknown"
}

// A LogTracer is a hook that prints the activity of a hierarchy to a logger.
type LogTracer struct {
	hooking.LogHookBase

	logAccesses bool
}

// NewLogTracer creates a LogTracer. Accesses are not logged unless
// WithAccesses is called.
func NewLogTracer(logger *log.Logger) *LogTracer {
	return &LogTracer{LogHookBase: hooking.LogHookBase{Logger: logger}}
}

// WithAccesses makes the tracer also log every cache access.
func (t *LogTracer) WithAccesses() *LogTracer {
	t.logAccesses = true
	return t
}

// Func prints one line per event.
func (t *LogTracer) Func(ctx hooking.HookCtx) {
	switch ctx.Pos {
	case cache.HookPosAccess:
		t.logAccess(ctx)
	case cache.HookPosEvict:
		ev := ctx.Item.(cache.Eviction)
		t.Printf("evict, %s, 0x%x, dirty=%t\n",
			domainName(ctx), ev.Addr, ev.Dirty)
	case cache.HookPosLineRelease:
		line := ctx.Item.(datastore.Line)
		t.Printf("release, %s, 0x%x, %d ranges changed\n",
			domainName(ctx), line.Addr, len(line.ChangedRanges()))
	case hierarchy.HookPosStoreCommit:
		c := ctx.Item.(hierarchy.StoreCommit)
		t.Printf("commit, core %d, eip 0x%x, 0x%x -> 0x%x, %x -> %x\n",
			c.CoreID, c.EIP, c.VAddr, c.PAddr, c.Original, c.New)
	case hierarchy.HookPosPhaseEnd:
		r := ctx.Item.(hierarchy.PhaseReport)
		t.Printf("phase %d end, %d accesses, %d pages\n",
			r.Phase, r.NumAccesses, len(r.Pages))
	}
}

func (t *LogTracer) logAccess(ctx hooking.HookCtx) {
	if !t.logAccesses {
		return
	}

	req := ctx.Item.(*mem.Request)

	result := "miss"
	if ctx.Detail.(cache.AccessDetail).Hit {
		result = "hit"
	}

	t.Printf("access, %s, %s, %s\n", domainName(ctx), req, result)
}
