package trace

import (
	"encoding/hex"
	"fmt"
	"strings"
	"sync"

	"github.com/Shihao-Song/Pin-Tools/datarecording"
	"github.com/Shihao-Song/Pin-Tools/mem/cache"
	"github.com/Shihao-Song/Pin-Tools/mem/datastore"
	"github.com/Shihao-Song/Pin-Tools/mem/hierarchy"
	"github.com/Shihao-Song/Pin-Tools/sim/hooking"
	"github.com/rs/xid"
)

// Names of the tables written by a DBTracer.
const (
	TableStoreCommits = "store_commits"
	TableLineReleases = "line_releases"
	TablePhaseStats   = "phase_stats"
	TablePhasePages   = "phase_pages"
)

// CommitEntry is the record of a StoreCommit. Data are hex encoded.
type CommitEntry struct {
	ID       string
	Phase    int
	CoreID   int
	EIP      uint64
	VAddr    uint64
	PAddr    uint64
	Size     uint64
	Original string
	New      string
}

// ReleaseEntry is the record of a modified line that leaves the hierarchy.
// Ranges lists the changed byte ranges as offset+size pairs.
type ReleaseEntry struct {
	ID         string
	Phase      int
	Location   string
	Addr       uint64
	NumChanged uint64
	Ranges     string
	Original   string
	Current    string
}

// StatEntry is one counter at the end of a phase.
type StatEntry struct {
	Phase    int
	Location string
	What     string
	Value    float64
	Unit     string
}

// PageEntry is one page of the access histogram at the end of a phase. Rank
// 0 is the most frequently accessed page.
type PageEntry struct {
	Phase         int
	Rank          int
	PageID        uint64
	FirstTouchEIP uint64
	Accesses      uint64
}

type record struct {
	table string
	entry any
}

// A DBTracer is a hook that records store commits, modified line releases,
// and phase reports into a DataRecorder. The hook only queues records. A
// separate goroutine writes them.
type DBTracer struct {
	recorder datarecording.DataRecorder
	records  chan record
	done     sync.WaitGroup
	once     sync.Once

	phase       int
	numCommits  uint64
	numReleases uint64
	allReleases bool
}

// NewDBTracer creates a DBTracer and the tables it writes. The tracer must be
// closed after the last event.
func NewDBTracer(recorder datarecording.DataRecorder) *DBTracer {
	t := &DBTracer{
		recorder: recorder,
		records:  make(chan record, 4096),
	}

	recorder.CreateTable(TableStoreCommits, CommitEntry{})
	recorder.CreateTable(TableLineReleases, ReleaseEntry{})
	recorder.CreateTable(TablePhaseStats, StatEntry{})
	recorder.CreateTable(TablePhasePages, PageEntry{})

	t.done.Add(1)

	go t.write()

	return t
}

// RecordUnmodifiedReleases makes the tracer record every released line, not
// only the modified ones.
func (t *DBTracer) RecordUnmodifiedReleases() *DBTracer {
	t.allReleases = true
	return t
}

// NumCommits returns the number of store commits queued.
func (t *DBTracer) NumCommits() uint64 {
	return t.numCommits
}

// NumReleases returns the number of line releases queued.
func (t *DBTracer) NumReleases() uint64 {
	return t.numReleases
}

func (t *DBTracer) write() {
	defer t.done.Done()

	for r := range t.records {
		t.recorder.InsertData(r.table, r.entry)
	}
}

// Func turns an event into records.
func (t *DBTracer) Func(ctx hooking.HookCtx) {
	switch ctx.Pos {
	case hierarchy.HookPosStoreCommit:
		t.recordCommit(ctx.Item.(hierarchy.StoreCommit))
	case cache.HookPosLineRelease:
		t.recordRelease(domainName(ctx), ctx.Item.(datastore.Line))
	case hierarchy.HookPosPhaseEnd:
		t.recordPhase(ctx.Item.(hierarchy.PhaseReport))
	}
}

func (t *DBTracer) recordCommit(c hierarchy.StoreCommit) {
	t.numCommits++

	t.records <- record{TableStoreCommits, CommitEntry{
		ID:       xid.New().String(),
		Phase:    t.phase,
		CoreID:   c.CoreID,
		EIP:      c.EIP,
		VAddr:    c.VAddr,
		PAddr:    c.PAddr,
		Size:     c.Size,
		Original: hex.EncodeToString(c.Original),
		New:      hex.EncodeToString(c.New),
	}}
}

func (t *DBTracer) recordRelease(location string, line datastore.Line) {
	ranges := line.ChangedRanges()
	if len(ranges) == 0 && !t.allReleases {
		return
	}

	t.numReleases++

	changed := uint64(0)
	parts := make([]string, 0, len(ranges))

	for _, r := range ranges {
		changed += r.Size
		parts = append(parts, fmt.Sprintf("%d+%d", r.Offset, r.Size))
	}

	t.records <- record{TableLineReleases, ReleaseEntry{
		ID:         xid.New().String(),
		Phase:      t.phase,
		Location:   location,
		Addr:       line.Addr,
		NumChanged: changed,
		Ranges:     strings.Join(parts, ","),
		Original:   hex.EncodeToString(line.Original),
		Current:    hex.EncodeToString(line.Current),
	}}
}

func (t *DBTracer) recordPhase(r hierarchy.PhaseReport) {
	for _, e := range r.Stats.Entries() {
		t.records <- record{TablePhaseStats, StatEntry{
			Phase:    r.Phase,
			Location: e.Location,
			What:     e.What,
			Value:    e.Value,
			Unit:     e.Unit,
		}}
	}

	for i, p := range r.Pages {
		t.records <- record{TablePhasePages, PageEntry{
			Phase:         r.Phase,
			Rank:          i,
			PageID:        p.PageID,
			FirstTouchEIP: p.FirstTouchEIP,
			Accesses:      p.Accesses,
		}}
	}

	t.phase = r.Phase + 1
}

// Close waits for all the queued records to be written and flushes the
// recorder. The hook must not be triggered after Close.
func (t *DBTracer) Close() {
	t.once.Do(func() {
		close(t.records)
		t.done.Wait()
		t.recorder.Flush()
	})
}
