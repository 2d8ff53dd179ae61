package replay

import (
	"context"
	"strings"

	"github.com/Shihao-Song/Pin-Tools/mem/hierarchy"
	"github.com/Shihao-Song/Pin-Tools/mem/mem"
	"go.uber.org/mock/gomock"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Run", func() {
	var (
		mockCtrl *gomock.Controller
		sys      *MockSystem
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		sys = NewMockSystem(mockCtrl)
		sys.EXPECT().NumCores().Return(2).AnyTimes()
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	run := func(text string, opt Options) (Summary, error) {
		return Run(context.Background(),
			NewReader(strings.NewReader(text)), sys, opt)
	}

	It("should send every access", func() {
		gomock.InOrder(
			sys.EXPECT().Access(gomock.Any()).
				DoAndReturn(func(req *mem.Request) bool {
					Expect(req.VAddr).To(Equal(uint64(0x10)))
					return false
				}),
			sys.EXPECT().Access(gomock.Any()).Return(true),
		)

		sum, err := run("0 1 R 0x10 4\n1 2 W 0x20 1 ff\n", Options{})

		Expect(err).NotTo(HaveOccurred())
		Expect(sum.Accesses).To(Equal(uint64(2)))
		Expect(sum.Hits).To(Equal(uint64(1)))
		Expect(sum.Reads).To(Equal(uint64(1)))
		Expect(sum.Writes).To(Equal(uint64(1)))
		Expect(sum.Lines).To(Equal(2))
	})

	It("should skip lines with oversized accesses", func() {
		sys.EXPECT().Access(gomock.Any()).
			DoAndReturn(func(req *mem.Request) bool {
				Expect(req.Size).To(Equal(mem.MaxAccessSize))
				return false
			})

		sum, err := run("0 0x400 R 0x1000 0x4000000000000000\n"+
			"0 0x400 R 0x1000 4096\n", Options{SkipMalformed: true})

		Expect(err).NotTo(HaveOccurred())
		Expect(sum.Malformed).To(Equal(uint64(1)))
		Expect(sum.Accesses).To(Equal(uint64(1)))
	})

	It("should skip accesses of unknown cores", func() {
		sys.EXPECT().Access(gomock.Any()).Return(true)

		sum, err := run("5 1 R 0 4\n1 1 R 0 4\n", Options{})

		Expect(err).NotTo(HaveOccurred())
		Expect(sum.Skipped).To(Equal(uint64(1)))
		Expect(sum.Accesses).To(Equal(uint64(1)))
	})

	It("should only replay the region of interest", func() {
		sys.EXPECT().Access(gomock.Any()).
			DoAndReturn(func(req *mem.Request) bool {
				Expect(req.VAddr).To(Equal(uint64(0x200)))
				return true
			})

		sum, err := run(`0 1 R 0x100 4
roi_begin
0 1 R 0x200 4
roi_end
0 1 R 0x300 4
`, Options{RespectROI: true})

		Expect(err).NotTo(HaveOccurred())
		Expect(sum.Skipped).To(Equal(uint64(2)))
		Expect(sum.ROIRegions).To(Equal(1))
	})

	It("should ignore markers by default", func() {
		sys.EXPECT().Access(gomock.Any()).Return(true).Times(2)

		sum, err := run("0 1 R 0 4\nroi_end\n0 1 R 0 4\n", Options{})

		Expect(err).NotTo(HaveOccurred())
		Expect(sum.Accesses).To(Equal(uint64(2)))
	})

	It("should stop at a malformed line", func() {
		sys.EXPECT().Access(gomock.Any()).Return(true)

		sum, err := run("0 1 R 0 4\n0 1 Q 0 4\n0 1 R 0 4\n", Options{})

		Expect(err).To(MatchError(ErrBadKind))
		Expect(sum.Accesses).To(Equal(uint64(1)))
	})

	It("should skip malformed lines if asked", func() {
		sys.EXPECT().Access(gomock.Any()).Return(true).Times(2)

		sum, err := run("0 1 R 0 4\n0 1 Q 0 4\n0 1 R 0 4\n",
			Options{SkipMalformed: true})

		Expect(err).NotTo(HaveOccurred())
		Expect(sum.Malformed).To(Equal(uint64(1)))
		Expect(sum.Lines).To(Equal(3))
	})

	It("should stop after the maximum number of accesses", func() {
		sys.EXPECT().Access(gomock.Any()).Return(true).Times(2)

		sum, err := run("0 1 R 0 4\n0 1 R 0 4\n0 1 R 0 4\n",
			Options{MaxEvents: 2})

		Expect(err).NotTo(HaveOccurred())
		Expect(sum.Accesses).To(Equal(uint64(2)))
	})

	It("should report progress", func() {
		progress := NewMockProgressReporter(mockCtrl)
		progress.EXPECT().IncrementFinished(uint64(1)).Times(2)
		sys.EXPECT().Access(gomock.Any()).Return(true).Times(2)

		_, err := run("0 1 R 0 4\n0 1 R 0 4\n", Options{Progress: progress})

		Expect(err).NotTo(HaveOccurred())
	})

	It("should stop when the context is cancelled", func() {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := Run(ctx, NewReader(strings.NewReader("0 1 R 0 4\n")),
			sys, Options{})

		Expect(err).To(MatchError(context.Canceled))
	})

	It("should drive a real hierarchy", func() {
		s := hierarchy.MakeBuilder().
			WithDataAware(true).
			WithLevel(hierarchy.LevelSpec{
				Name: "L1D", ByteSize: 1024, WayAssociativity: 2,
			}).
			WithLevel(hierarchy.LevelSpec{
				Name: "L2", ByteSize: 4096, WayAssociativity: 4, Shared: true,
			}).
			Build("Sys")

		sum, err := Run(context.Background(), NewReader(strings.NewReader(
			"0 1 W 0x1000 4 01020304\n0 2 R 0x1002 2\n0 3 R 0x103f 2\n")),
			s, Options{})

		Expect(err).NotTo(HaveOccurred())
		Expect(sum.Accesses).To(Equal(uint64(3)))
		Expect(sum.Hits).To(Equal(uint64(1)))
		Expect(s.Store().Len()).To(Equal(2))
	})
})
