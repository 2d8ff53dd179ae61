package simulation

import (
	"bytes"
	"context"
	"log"
	"path/filepath"
	"strings"

	"github.com/Shihao-Song/Pin-Tools/datarecording"
	"github.com/Shihao-Song/Pin-Tools/mem/cache"
	"github.com/Shihao-Song/Pin-Tools/mem/hierarchy"
	"github.com/Shihao-Song/Pin-Tools/mem/trace"
	"github.com/Shihao-Song/Pin-Tools/replay"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func buildSystem() *hierarchy.System {
	return hierarchy.MakeBuilder().
		WithDataAware(true).
		WithLevel(hierarchy.LevelSpec{
			Name: "L1D", ByteSize: 1024, WayAssociativity: 2,
		}).
		WithLevel(hierarchy.LevelSpec{
			Name: "L2", ByteSize: 4096, WayAssociativity: 4, Shared: true,
		}).
		Build("Sys")
}

const sampleTrace = `0 0x400100 W 0x1000 4 01020304
0 0x400104 R 0x1000 4
0 0x400108 R 0x2000 8
`

var _ = Describe("Simulation", func() {
	var (
		simulation *Simulation
		output     string
	)

	BeforeEach(func() {
		output = filepath.Join(GinkgoT().TempDir(), "out")
	})

	AfterEach(func() {
		if simulation != nil {
			simulation.Terminate()
			simulation = nil
		}
	})

	It("should require a system", func() {
		Expect(func() { MakeBuilder().Build() }).To(Panic())
	})

	It("should not allow a port without monitoring", func() {
		b := MakeBuilder().
			WithSystem(buildSystem()).
			WithoutMonitoring().
			WithMonitorPort(8080)

		Expect(func() { b.Build() }).To(Panic())
	})

	It("should not allow an output file without recording", func() {
		b := MakeBuilder().
			WithSystem(buildSystem()).
			WithoutRecording().
			WithOutputFileName(output)

		Expect(func() { b.Build() }).To(Panic())
	})

	It("should replay a trace and record it", func() {
		simulation = MakeBuilder().
			WithSystem(buildSystem()).
			WithoutMonitoring().
			WithOutputFileName(output).
			Build()

		Expect(simulation.ID()).NotTo(BeEmpty())
		Expect(simulation.GetMonitor()).To(BeNil())

		sum, err := simulation.Replay(context.Background(),
			replay.NewReader(strings.NewReader(sampleTrace)),
			replay.Options{}, 0)

		Expect(err).NotTo(HaveOccurred())
		Expect(sum.Accesses).To(Equal(uint64(3)))
		Expect(sum.Hits).To(Equal(uint64(1)))

		counter := simulation.GetPosCounter()
		Expect(counter.Count(hierarchy.HookPosStoreCommit)).
			To(Equal(uint64(1)))
		Expect(counter.Count(hierarchy.HookPosPhaseEnd)).To(Equal(uint64(1)))
		Expect(counter.Count(cache.HookPosLineRelease)).To(Equal(uint64(2)))
		Expect(simulation.GetTracer().NumReleases()).To(Equal(uint64(1)))

		simulation.Terminate()

		r, err := datarecording.NewReader(output + ".sqlite3")
		Expect(err).NotTo(HaveOccurred())
		defer r.Close()

		r.MapTable(trace.TableStoreCommits, trace.CommitEntry{})
		commits, _, err := r.Query(context.Background(),
			trace.TableStoreCommits, datarecording.QueryParams{})
		Expect(err).NotTo(HaveOccurred())
		Expect(commits).To(HaveLen(1))
		Expect(commits[0].(*trace.CommitEntry).New).To(Equal("01020304"))
	})

	It("should log the activity", func() {
		buf := new(bytes.Buffer)

		simulation = MakeBuilder().
			WithSystem(buildSystem()).
			WithoutMonitoring().
			WithoutRecording().
			WithLogger(log.New(buf, "", 0), true).
			Build()

		Expect(simulation.GetDataRecorder()).To(BeNil())

		_, err := simulation.Replay(context.Background(),
			replay.NewReader(strings.NewReader(sampleTrace)),
			replay.Options{}, 0)

		Expect(err).NotTo(HaveOccurred())
		Expect(buf.String()).To(ContainSubstring("commit, core 0"))
		Expect(buf.String()).To(ContainSubstring("access, Core-0-L1D"))
	})

	It("should monitor the system", func() {
		simulation = MakeBuilder().
			WithSystem(buildSystem()).
			WithoutRecording().
			Build()

		m := simulation.GetMonitor()
		Expect(m).NotTo(BeNil())
		Expect(m.URL()).To(HavePrefix("http://localhost:"))

		_, err := simulation.Replay(context.Background(),
			replay.NewReader(strings.NewReader(sampleTrace)),
			replay.Options{}, 3)
		Expect(err).NotTo(HaveOccurred())
	})
})
