package replay

import (
	"errors"
	"io"
	"strings"

	"github.com/Shihao-Song/Pin-Tools/mem/mem"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func readAll(text string) ([]Event, error) {
	r := NewReader(strings.NewReader(text))

	var events []Event
	for {
		evt, err := r.Next()
		if errors.Is(err, io.EOF) {
			return events, nil
		}

		if err != nil {
			return events, err
		}

		events = append(events, evt)
	}
}

var _ = Describe("Reader", func() {
	It("should parse accesses", func() {
		events, err := readAll(`
# a comment
0 0x400100 R 0x7ffe1000 8
1 4194560 W 4096 2 aabb

2 0x400200 I 0x400200 4
`)

		Expect(err).NotTo(HaveOccurred())
		Expect(events).To(HaveLen(3))

		read := events[0].Req
		Expect(events[0].Kind).To(Equal(EventAccess))
		Expect(events[0].Line).To(Equal(3))
		Expect(read.CoreID).To(Equal(0))
		Expect(read.EIP).To(Equal(uint64(0x400100)))
		Expect(read.VAddr).To(Equal(uint64(0x7ffe1000)))
		Expect(read.Size).To(Equal(uint64(8)))
		Expect(read.Kind).To(Equal(mem.AccessKindRead))
		Expect(read.Data).To(BeNil())

		write := events[1].Req
		Expect(write.CoreID).To(Equal(1))
		Expect(write.EIP).To(Equal(uint64(0x400100)))
		Expect(write.Kind).To(Equal(mem.AccessKindWrite))
		Expect(write.Data).To(Equal([]byte{0xaa, 0xbb}))

		fetch := events[2].Req
		Expect(fetch.InstrLoading).To(BeTrue())
		Expect(fetch.Kind).To(Equal(mem.AccessKindRead))
		Expect(events[2].Line).To(Equal(6))
	})

	It("should parse region markers", func() {
		events, err := readAll("roi_begin\n0 1 R 2 4\nroi_end\n")

		Expect(err).NotTo(HaveOccurred())
		Expect(events).To(HaveLen(3))
		Expect(events[0].Kind).To(Equal(EventROIBegin))
		Expect(events[2].Kind).To(Equal(EventROIEnd))
	})

	DescribeTable("malformed lines",
		func(line string, want error) {
			_, err := readAll("0 1 R 2 4\n" + line + "\n")

			var perr *ParseError
			Expect(errors.As(err, &perr)).To(BeTrue())
			Expect(perr.Line).To(Equal(2))
			Expect(err).To(MatchError(want))
		},
		Entry("too few fields", "0 1 R 2", ErrFieldCount),
		Entry("bad kind", "0 1 X 2 4", ErrBadKind),
		Entry("bad address", "0 1 R zz 4", ErrBadNumber),
		Entry("bad core", "-1 1 R 2 4", ErrBadNumber),
		Entry("bad hex", "0 1 W 2 2 zzzz", ErrBadData),
		Entry("data size mismatch", "0 1 W 2 4 aabb", ErrBadData),
		Entry("read with data", "0 1 R 2 1 aa", ErrBadData),
		Entry("size over a page", "0 1 R 2 4097", ErrBadSize),
		Entry("huge size", "0 0x400 R 0x1000 0x4000000000000000", ErrBadSize),
	)

	It("should continue after a malformed line", func() {
		r := NewReader(strings.NewReader("bad\n0 1 R 2 4\n"))

		_, err := r.Next()
		Expect(err).To(HaveOccurred())

		evt, err := r.Next()
		Expect(err).NotTo(HaveOccurred())
		Expect(evt.Line).To(Equal(2))
	})
})
