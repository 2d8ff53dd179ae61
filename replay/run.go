package replay

import (
	"context"
	"errors"
	"io"
	"log"

	"github.com/Shihao-Song/Pin-Tools/mem/mem"
)

// A System processes access events.
type System interface {
	NumCores() int
	Access(req *mem.Request) bool
}

// A ProgressReporter is notified about the progress of a replay.
type ProgressReporter interface {
	IncrementFinished(amount uint64)
}

// Options controls a replay.
type Options struct {
	// RespectROI only replays the events between roi_begin and roi_end.
	// Events before the first roi_begin are skipped.
	RespectROI bool

	// SkipMalformed logs and skips malformed lines instead of stopping.
	SkipMalformed bool

	// MaxEvents stops the replay after that many accesses. Zero means no
	// limit.
	MaxEvents uint64

	Progress ProgressReporter
	Logger   *log.Logger
}

// Summary counts what happened during a replay.
type Summary struct {
	Lines      int
	Accesses   uint64
	Hits       uint64
	Reads      uint64
	Writes     uint64
	Skipped    uint64
	Malformed  uint64
	ROIRegions int
}

// Run replays the events of the reader until the end of the trace, an error
// or the cancellation of the context. The context is checked between events.
func Run(
	ctx context.Context,
	r *Reader,
	sys System,
	opt Options,
) (Summary, error) {
	var sum Summary

	inROI := !opt.RespectROI

	for {
		if err := ctx.Err(); err != nil {
			return sum, err
		}

		if opt.MaxEvents > 0 && sum.Accesses >= opt.MaxEvents {
			return sum, nil
		}

		evt, err := r.Next()
		if errors.Is(err, io.EOF) {
			return sum, nil
		}

		var perr *ParseError
		if errors.As(err, &perr) && opt.SkipMalformed {
			sum.Malformed++
			sum.Lines = perr.Line

			if opt.Logger != nil {
				opt.Logger.Printf("skipping %v", perr)
			}

			continue
		}

		if err != nil {
			return sum, err
		}

		sum.Lines = evt.Line

		switch evt.Kind {
		case EventROIBegin:
			inROI = true
			sum.ROIRegions++
		case EventROIEnd:
			inROI = !opt.RespectROI
		case EventAccess:
			if !inROI || evt.Req.CoreID >= sys.NumCores() {
				sum.Skipped++
				continue
			}

			sum.count(evt.Req, sys.Access(evt.Req))

			if opt.Progress != nil {
				opt.Progress.IncrementFinished(1)
			}
		}
	}
}

func (s *Summary) count(req *mem.Request, hit bool) {
	s.Accesses++

	if hit {
		s.Hits++
	}

	if req.Kind == mem.AccessKindWrite {
		s.Writes++
	} else {
		s.Reads++
	}
}
