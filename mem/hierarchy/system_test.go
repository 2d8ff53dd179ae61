package hierarchy

import (
	"math/rand"

	"github.com/Shihao-Song/Pin-Tools/mem/cache"
	"github.com/Shihao-Song/Pin-Tools/mem/datastore"
	"github.com/Shihao-Song/Pin-Tools/mem/mem"
	"github.com/Shihao-Song/Pin-Tools/mem/vm/mmu"
	"github.com/Shihao-Song/Pin-Tools/sim/hooking"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

type funcHook struct {
	f func(ctx hooking.HookCtx)
}

func (h *funcHook) Func(ctx hooking.HookCtx) {
	h.f(ctx)
}

func access(
	coreID int,
	kind mem.AccessKind,
	addr, size uint64,
	data []byte,
) *mem.Request {
	b := mem.RequestBuilder{}.
		WithCoreID(coreID).
		WithEIP(0x400000 + addr&0xff).
		WithAddress(addr).
		WithByteSize(size).
		WithKind(kind)

	if data != nil {
		b = b.WithData(data)
	}

	return b.Build()
}

func threeLevelBuilder(numCores int) Builder {
	return MakeBuilder().
		WithNumCores(numCores).
		WithBlockSize(64).
		WithLevel(LevelSpec{
			Name: "L1D", ByteSize: 512, WayAssociativity: 2,
		}).
		WithLevel(LevelSpec{
			Name: "L2", ByteSize: 2048, WayAssociativity: 4, Shared: true,
		}).
		WithLevel(LevelSpec{
			Name: "L3", ByteSize: 4096, FullyAssociative: true, Shared: true,
		})
}

func chainOf(s *System, coreID int) []*cache.Comp {
	var chain []*cache.Comp

	var l cache.Level = s.TopLevel(coreID)
	for l != nil {
		c := l.(*cache.Comp)
		chain = append(chain, c)
		l = c.NextLevel()
	}

	return chain
}

func inclusionMustHold(s *System) {
	for core := 0; core < s.NumCores(); core++ {
		chain := chainOf(s, core)
		for i := 0; i+1 < len(chain); i++ {
			for _, addr := range chain[i].ResidentAddrs() {
				Expect(chain[i+1].Contains(addr)).To(BeTrue(),
					"block 0x%x in %s but not in %s",
					addr, chain[i].Name(), chain[i+1].Name())
			}
		}
	}
}

var _ = Describe("System", func() {
	Context("when building", func() {
		It("should name private and shared levels", func() {
			s := threeLevelBuilder(2).Build("Sys")

			var names []string
			for _, l := range s.Levels() {
				names = append(names, l.Name())
			}

			Expect(names).To(Equal([]string{
				"Core-0-L1D", "Core-1-L1D", "L2", "L3"}))
			Expect(s.TopLevel(1).NextLevel()).
				To(BeIdenticalTo(s.TopLevel(0).NextLevel()))
			Expect(s.Levels()[2].PrevLevels()).To(HaveLen(2))
			Expect(s.ID()).NotTo(BeEmpty())
		})

		It("should reject a private level below a shared one", func() {
			b := MakeBuilder().
				WithLevel(LevelSpec{Name: "L2", ByteSize: 1024,
					WayAssociativity: 2, Shared: true}).
				WithLevel(LevelSpec{Name: "L3", ByteSize: 4096,
					WayAssociativity: 4})

			Expect(func() { b.Build("Sys") }).To(Panic())
		})

		It("should reject a system without levels", func() {
			Expect(func() { MakeBuilder().Build("Sys") }).To(Panic())
		})

		It("should reject tracking data with private lowest levels", func() {
			b := MakeBuilder().
				WithNumCores(2).
				WithDataAware(true).
				WithLevel(LevelSpec{Name: "L1D", ByteSize: 1024,
					WayAssociativity: 2})

			Expect(func() { b.Build("Sys") }).To(Panic())
		})
	})

	Context("when processing accesses", func() {
		var s *System

		BeforeEach(func() {
			s = threeLevelBuilder(2).WithDataAware(true).Build("Sys")
		})

		It("should miss first and hit after", func() {
			Expect(s.Access(access(0, mem.AccessKindRead, 0x1000, 8, nil))).
				To(BeFalse())
			Expect(s.Access(access(0, mem.AccessKindRead, 0x1008, 8, nil))).
				To(BeTrue())
			Expect(s.TotalAccesses()).To(Equal(uint64(2)))
		})

		It("should panic on an unknown core", func() {
			Expect(func() {
				s.Access(access(2, mem.AccessKindRead, 0, 4, nil))
			}).To(Panic())
		})

		It("should panic on an access larger than a page", func() {
			Expect(func() {
				s.Access(access(0, mem.AccessKindRead, 0, 1<<62, nil))
			}).To(PanicWith(ContainSubstring("exceeds the maximum")))
		})

		It("should panic on a write-back from a core", func() {
			Expect(func() {
				s.Access(access(0, mem.AccessKindWriteBack, 0, 4, nil))
			}).To(Panic())
		})

		It("should split an access across blocks", func() {
			var commits []StoreCommit
			s.AcceptHook(&funcHook{f: func(ctx hooking.HookCtx) {
				if ctx.Pos == HookPosStoreCommit {
					commits = append(commits, ctx.Item.(StoreCommit))
				}
			}})

			s.Access(access(0, mem.AccessKindWrite, 0x103e, 4,
				[]byte{1, 2, 3, 4}))

			Expect(commits).To(HaveLen(2))
			Expect(commits[0].VAddr).To(Equal(uint64(0x103e)))
			Expect(commits[0].New).To(Equal([]byte{1, 2}))
			Expect(commits[0].Original).To(Equal([]byte{0, 0}))
			Expect(commits[1].VAddr).To(Equal(uint64(0x1040)))
			Expect(commits[1].New).To(Equal([]byte{3, 4}))
			Expect(s.TopLevel(0).Stats().Accesses).To(Equal(uint64(2)))
		})

		It("should keep every level a subset of the level below", func() {
			rng := rand.New(rand.NewSource(42))

			for i := 0; i < 3000; i++ {
				core := rng.Intn(2)
				addr := uint64(rng.Intn(256)) * 64
				kind := mem.AccessKindRead
				var data []byte

				if rng.Intn(4) == 0 {
					kind = mem.AccessKindWrite
					data = []byte{byte(i)}
				}

				s.Access(access(core, kind, addr, 1, data))
				inclusionMustHold(s)
			}

			l3 := s.Levels()[3]
			Expect(s.Store().Len()).To(Equal(len(l3.ResidentAddrs())))
		})

		It("should remove evicted blocks from every level", func() {
			l3 := s.Levels()[3]

			var victims []uint64
			l3.AcceptHook(&funcHook{f: func(ctx hooking.HookCtx) {
				if ctx.Pos == cache.HookPosEvict {
					victims = append(victims, ctx.Item.(cache.Eviction).Addr)
				}
			}})

			rng := rand.New(rand.NewSource(7))
			for i := 0; i < 2000; i++ {
				victims = victims[:0]
				addr := uint64(rng.Intn(512)) * 64
				s.Access(access(rng.Intn(2), mem.AccessKindRead, addr, 4, nil))

				for _, v := range victims {
					for _, l := range s.Levels() {
						Expect(l.Contains(v)).To(BeFalse())
					}

					_, err := s.Store().Get(v)
					Expect(err).To(MatchError(datastore.ErrLineNotFound))
				}
			}
		})
	})

	Context("when tracking data", func() {
		var (
			s      *System
			memory *mem.SparseMemory
		)

		BeforeEach(func() {
			memory = mem.NewSparseMemory(64)
			memory.Write(0x2000, []byte{0xa, 0xb, 0xc, 0xd})

			s = MakeBuilder().
				WithMemory(memory).
				WithDataAware(true).
				WithMMU(mmu.MakeBuilder().
					WithPolicy(mmu.PolicyDemand).
					WithPhysicalMemorySize(1 << 24).
					Build()).
				WithLevel(LevelSpec{Name: "L1D", ByteSize: 256,
					WayAssociativity: 2}).
				WithLevel(LevelSpec{Name: "L2", ByteSize: 1024,
					FullyAssociative: true, Shared: true}).
				Build("Sys")
		})

		It("should load lines from memory", func() {
			var commit StoreCommit
			s.AcceptHook(&funcHook{f: func(ctx hooking.HookCtx) {
				if ctx.Pos == HookPosStoreCommit {
					commit = ctx.Item.(StoreCommit)
				}
			}})

			s.Access(access(0, mem.AccessKindWrite, 0x2001, 2,
				[]byte{0xee, 0xff}))

			Expect(commit.Original).To(Equal([]byte{0xb, 0xc}))
			Expect(commit.PAddr & 0xfff).To(Equal(uint64(0x001)))

			line := s.TopLevel(0).GetBlock(commit.PAddr)
			Expect(line.Current[:4]).To(Equal([]byte{0xa, 0xee, 0xff, 0xd}))
			Expect(line.Original[:4]).To(Equal([]byte{0xa, 0xb, 0xc, 0xd}))
		})

		It("should reconstruct every store from released lines", func() {
			model := make(map[uint64]byte)
			var released []datastore.Line

			s.AcceptHook(&funcHook{f: func(ctx hooking.HookCtx) {
				switch ctx.Pos {
				case HookPosStoreCommit:
					c := ctx.Item.(StoreCommit)
					for i, b := range c.New {
						model[c.PAddr+uint64(i)] = b
					}
				case cache.HookPosLineRelease:
					released = append(released, ctx.Item.(datastore.Line))
				}
			}})

			rng := rand.New(rand.NewSource(3))
			for i := 0; i < 2000; i++ {
				addr := uint64(rng.Intn(64*64)) &^ 3
				if rng.Intn(2) == 0 {
					s.Access(access(0, mem.AccessKindWrite, addr, 4,
						[]byte{byte(i), byte(i >> 8), 1, 2}))
				} else {
					s.Access(access(0, mem.AccessKindRead, addr, 4, nil))
				}
			}

			s.ReInitialize()
			Expect(s.Store().Len()).To(BeZero())
			Expect(released).NotTo(BeEmpty())

			latest := make(map[uint64]datastore.Line)
			for _, l := range released {
				latest[l.Addr] = l
			}

			for pa, b := range model {
				line, found := latest[mem.AlignToBlock(pa, 64)]
				Expect(found).To(BeTrue())
				Expect(line.Current[pa-line.Addr]).To(Equal(b))
			}
		})

		It("should see earlier stores after a line is reloaded", func() {
			s.Access(access(0, mem.AccessKindWrite, 0x3000, 1, []byte{0x5a}))

			s.ReInitialize()

			var commit StoreCommit
			s.AcceptHook(&funcHook{f: func(ctx hooking.HookCtx) {
				if ctx.Pos == HookPosStoreCommit {
					commit = ctx.Item.(StoreCommit)
				}
			}})
			s.Access(access(0, mem.AccessKindWrite, 0x3000, 1, []byte{0x6b}))

			Expect(commit.Original).To(Equal([]byte{0x5a}))
		})
	})

	Context("when a dirty block leaves the first level", func() {
		It("should write it back to the second level once", func() {
			s := MakeBuilder().
				WithLevel(LevelSpec{Name: "L1D", ByteSize: 128,
					FullyAssociative: true}).
				WithLevel(LevelSpec{Name: "L2", ByteSize: 4096,
					WayAssociativity: 4, Shared: true}).
				Build("Sys")
			l2 := s.Levels()[1]

			writeBacks := 0
			l2.AcceptHook(&funcHook{f: func(ctx hooking.HookCtx) {
				if ctx.Pos == cache.HookPosWriteBack {
					writeBacks++
				}
			}})

			s.Access(access(0, mem.AccessKindWrite, 0x0, 4, nil))
			s.Access(access(0, mem.AccessKindRead, 0x1000, 4, nil))
			before := l2.Stats()

			s.Access(access(0, mem.AccessKindRead, 0x2000, 4, nil))

			after := l2.Stats()
			Expect(writeBacks).To(Equal(1))
			Expect(after.Hits).To(Equal(before.Hits))
			Expect(after.Evictions).To(Equal(before.Evictions))
		})
	})

	Context("when running in phases", func() {
		It("should report and reset after every phase", func() {
			demand := mmu.MakeBuilder().
				WithPolicy(mmu.PolicyDemand).
				WithPhysicalMemorySize(64 * mem.MB).
				Build()
			s := threeLevelBuilder(1).
				WithMMU(demand).
				WithDataAware(true).
				WithPhaseLength(3).
				Build("Sys")

			var reports []PhaseReport
			var pAddrs []uint64
			s.AcceptHook(&funcHook{f: func(ctx hooking.HookCtx) {
				switch ctx.Pos {
				case HookPosPhaseEnd:
					reports = append(reports, ctx.Item.(PhaseReport))
				case cache.HookPosAccess:
					if ctx.Domain == s.TopLevel(0) {
						pAddrs = append(pAddrs, ctx.Item.(*mem.Request).Addr)
					}
				}
			}})

			first := access(0, mem.AccessKindRead, 0x1000, 4, nil)
			s.Access(first)
			s.Access(access(0, mem.AccessKindRead, 0x1000, 4, nil))
			s.Access(access(0, mem.AccessKindRead, 0x2000, 4, nil))

			Expect(reports).To(HaveLen(1))
			Expect(reports[0].Phase).To(Equal(0))
			Expect(reports[0].NumAccesses).To(Equal(uint64(3)))
			hits, _ := reports[0].Stats.Find("Core-0-L1D", "Number of hits")
			Expect(hits.Value).To(Equal(1.0))
			Expect(reports[0].Pages).To(HaveLen(2))
			Expect(reports[0].Pages[0].Accesses).To(Equal(uint64(2)))

			Expect(s.Phase()).To(Equal(1))
			Expect(s.Store().Len()).To(BeZero())
			for _, l := range s.Levels() {
				Expect(l.ResidentAddrs()).To(BeEmpty())
			}

			again := access(0, mem.AccessKindRead, 0x1000, 4, nil)
			Expect(s.Access(again)).To(BeFalse())
			Expect(pAddrs).To(HaveLen(4))
			Expect(pAddrs[3]).To(Equal(pAddrs[0]))

			s.Finish()
			Expect(reports).To(HaveLen(2))
			Expect(reports[1].NumAccesses).To(Equal(uint64(1)))
		})

		It("should not report an empty last phase", func() {
			s := threeLevelBuilder(1).WithPhaseLength(1).Build("Sys")

			count := 0
			s.AcceptHook(&funcHook{f: func(ctx hooking.HookCtx) {
				if ctx.Pos == HookPosPhaseEnd {
					count++
				}
			}})

			s.Access(access(0, mem.AccessKindRead, 0, 4, nil))
			s.Finish()

			Expect(count).To(Equal(1))
		})
	})
})
