// Package simulation bundles a cache hierarchy with the services around it:
// recording, monitoring and progress tracking.
package simulation

import (
	"context"
	"time"

	"github.com/Shihao-Song/Pin-Tools/datarecording"
	"github.com/Shihao-Song/Pin-Tools/mem/hierarchy"
	"github.com/Shihao-Song/Pin-Tools/mem/trace"
	"github.com/Shihao-Song/Pin-Tools/monitoring"
	"github.com/Shihao-Song/Pin-Tools/replay"
	"github.com/Shihao-Song/Pin-Tools/sim/hooking"
)

// A Simulation provides the services required to run a trace through a
// system.
type Simulation struct {
	id     string
	system *hierarchy.System

	dataRecorder datarecording.DataRecorder
	dbTracer     *trace.DBTracer
	monitor      *monitoring.Monitor
	posCounter   *hooking.PosCounter
	terminated   bool
}

// ID returns the unique id of the simulation.
func (s *Simulation) ID() string {
	return s.id
}

// System returns the simulated system.
func (s *Simulation) System() *hierarchy.System {
	return s.system
}

// GetDataRecorder returns the data recorder used in the simulation. It is nil
// when recording is disabled.
func (s *Simulation) GetDataRecorder() datarecording.DataRecorder {
	return s.dataRecorder
}

// GetMonitor returns the monitor used in the simulation. It is nil when
// monitoring is disabled.
func (s *Simulation) GetMonitor() *monitoring.Monitor {
	return s.monitor
}

// GetTracer returns the tracer that records into the data recorder.
func (s *Simulation) GetTracer() *trace.DBTracer {
	return s.dbTracer
}

// GetPosCounter returns the hook that counts the events of the system.
func (s *Simulation) GetPosCounter() *hooking.PosCounter {
	return s.posCounter
}

// Replay runs a trace through the system and finishes the last phase.
// totalHint sizes the progress bar. It can be zero if unknown.
func (s *Simulation) Replay(
	ctx context.Context,
	r *replay.Reader,
	opt replay.Options,
	totalHint uint64,
) (replay.Summary, error) {
	if s.monitor != nil && opt.Progress == nil {
		bar := s.monitor.CreateProgressBar("Replay", totalHint)
		defer s.monitor.CompleteProgressBar(bar)

		opt.Progress = bar
	}

	sum, err := replay.Run(ctx, r, s.system, opt)

	s.system.Finish()

	return sum, err
}

// Terminate flushes the records and stops the services. It can be called
// more than once.
func (s *Simulation) Terminate() {
	if s.terminated {
		return
	}

	s.terminated = true

	if s.dbTracer != nil {
		s.dbTracer.Close()
	}

	if s.dataRecorder != nil {
		err := s.dataRecorder.Close()
		dieOnErr(err)
	}

	if s.monitor != nil {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()

		_ = s.monitor.StopServer(ctx)
	}
}
