package monitoring

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"

	"github.com/Shihao-Song/Pin-Tools/stats"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

type countingLocker struct {
	sync.Mutex
	locks int
}

func (l *countingLocker) Lock() {
	l.Mutex.Lock()
	l.locks++
}

type fixedStats struct {
	r *stats.Registry
}

func (s fixedStats) Stats() *stats.Registry {
	return s.r
}

var _ = Describe("Monitor server", func() {
	var (
		m      *Monitor
		lock   *countingLocker
		server *httptest.Server
	)

	get := func(path string) (int, []byte) {
		rsp, err := http.Get(server.URL + path)
		Expect(err).NotTo(HaveOccurred())
		defer rsp.Body.Close()

		body, err := io.ReadAll(rsp.Body)
		Expect(err).NotTo(HaveOccurred())

		return rsp.StatusCode, body
	}

	BeforeEach(func() {
		m = NewMonitor()
		lock = &countingLocker{}
		m.RegisterLock(lock)
		m.RegisterComponent(&sampleComponent{name: "L1D", count: 3})
		m.RegisterComponent(&sampleComponent{name: "L2"})

		r := stats.NewRegistry()
		r.Register("L1D", "Number of hits", 7)
		m.RegisterStatsSource(fixedStats{r})

		server = httptest.NewServer(m.Router())
	})

	AfterEach(func() {
		server.Close()
	})

	It("should list components", func() {
		code, body := get("/api/list_components")

		Expect(code).To(Equal(http.StatusOK))
		Expect(string(body)).To(MatchJSON(`["L1D","L2"]`))
	})

	It("should serialize a component under the lock", func() {
		code, body := get("/api/component/L1D")

		Expect(code).To(Equal(http.StatusOK))
		Expect(body).NotTo(BeEmpty())
		Expect(lock.locks).To(Equal(1))
	})

	It("should answer 404 for unknown components", func() {
		code, _ := get("/api/component/L9")

		Expect(code).To(Equal(http.StatusNotFound))
	})

	It("should reject a bad field path", func() {
		q := url.PathEscape(`{"comp_name":"L1D","field_name":"nothing"}`)
		code, _ := get("/api/field/" + q)

		Expect(code).To(Equal(http.StatusBadRequest))
	})

	It("should list statistics", func() {
		code, body := get("/api/stats")

		Expect(code).To(Equal(http.StatusOK))
		Expect(string(body)).To(MatchJSON(
			`[{"location":"L1D","what":"Number of hits","value":7,"unit":""}]`))
	})

	It("should list progress bars", func() {
		bar := m.CreateProgressBar("Replay", 10)
		bar.IncrementFinished(4)

		_, body := get("/api/progress")

		var bars []map[string]any
		Expect(json.Unmarshal(body, &bars)).To(Succeed())
		Expect(bars).To(HaveLen(1))
		Expect(bars[0]["name"]).To(Equal("Replay"))
		Expect(bars[0]["finished"]).To(Equal(4.0))
		Expect(bars[0]["id"]).NotTo(BeEmpty())

		m.CompleteProgressBar(bar)

		_, body = get("/api/progress")
		Expect(string(body)).To(MatchJSON(`[]`))
	})

	It("should report resource usage", func() {
		code, body := get("/api/resource")

		Expect(code).To(Equal(http.StatusOK))

		var rsp resourceRsp
		Expect(json.Unmarshal(body, &rsp)).To(Succeed())
		Expect(rsp.MemorySize).To(BeNumerically(">", 0))
	})

	It("should serve the page", func() {
		code, body := get("/")

		Expect(code).To(Equal(http.StatusOK))
		Expect(string(body)).To(ContainSubstring("<!DOCTYPE html>"))
	})

	It("should not have a URL before starting", func() {
		Expect(m.URL()).To(BeEmpty())
		Expect(m.OpenBrowser()).To(HaveOccurred())
	})
})
