package simulation

import (
	"log"

	"github.com/Shihao-Song/Pin-Tools/datarecording"
	"github.com/Shihao-Song/Pin-Tools/mem/hierarchy"
	"github.com/Shihao-Song/Pin-Tools/mem/trace"
	"github.com/Shihao-Song/Pin-Tools/monitoring"
	"github.com/Shihao-Song/Pin-Tools/sim/hooking"
	"github.com/rs/xid"
)

// Builder can be used to build a simulation.
type Builder struct {
	system           *hierarchy.System
	recordingOn      bool
	recordUnmodified bool
	monitorOn        bool
	monitorPort      int
	outputFileName   string
	logger           *log.Logger
	logAccesses      bool
}

// MakeBuilder creates a new builder.
func MakeBuilder() Builder {
	return Builder{
		recordingOn: true,
		monitorOn:   true,
	}
}

// WithSystem sets the system to simulate.
func (b Builder) WithSystem(s *hierarchy.System) Builder {
	b.system = s
	return b
}

// WithoutMonitoring sets the simulation to not use monitoring.
func (b Builder) WithoutMonitoring() Builder {
	b.monitorOn = false
	return b
}

// WithoutRecording sets the simulation to not write a database.
func (b Builder) WithoutRecording() Builder {
	b.recordingOn = false
	return b
}

// WithUnmodifiedLineRecords makes the simulation record every released line.
func (b Builder) WithUnmodifiedLineRecords() Builder {
	b.recordUnmodified = true
	return b
}

// WithOutputFileName sets the custom output file name for the data recorder.
func (b Builder) WithOutputFileName(filename string) Builder {
	b.outputFileName = filename
	return b
}

// WithMonitorPort sets the port number for the monitoring server.
func (b Builder) WithMonitorPort(port int) Builder {
	b.monitorPort = port
	return b
}

// WithLogger prints the activity of the system to the logger.
func (b Builder) WithLogger(logger *log.Logger, logAccesses bool) Builder {
	b.logger = logger
	b.logAccesses = logAccesses

	return b
}

func (b Builder) parametersMustBeValid() {
	if b.system == nil {
		panic("system is not set")
	}

	if !b.monitorOn && b.monitorPort != 0 {
		panic("monitor port cannot be set when monitoring is disabled")
	}

	if !b.recordingOn && b.outputFileName != "" {
		panic("output file cannot be set when recording is disabled")
	}
}

// Build builds the simulation.
func (b Builder) Build() *Simulation {
	b.parametersMustBeValid()

	s := &Simulation{
		id:         xid.New().String(),
		system:     b.system,
		posCounter: hooking.NewPosCounter(),
	}

	s.system.AcceptHook(s.posCounter)

	if b.recordingOn {
		outputPath := b.outputFileName
		if outputPath == "" {
			outputPath = "datatrace_" + s.id
		}

		s.dataRecorder = datarecording.New(outputPath)
		s.dbTracer = trace.NewDBTracer(s.dataRecorder)

		if b.recordUnmodified {
			s.dbTracer.RecordUnmodifiedReleases()
		}

		s.system.AcceptHook(s.dbTracer)
	}

	if b.logger != nil {
		t := trace.NewLogTracer(b.logger)
		if b.logAccesses {
			t.WithAccesses()
		}

		s.system.AcceptHook(t)
	}

	if b.monitorOn {
		s.monitor = monitoring.NewMonitor()
		if b.monitorPort > 0 {
			s.monitor.WithPortNumber(b.monitorPort)
		}

		s.monitor.RegisterLock(s.system)
		s.monitor.RegisterStatsSource(s.system)
		s.monitor.RegisterComponent(s.system)

		for _, l := range s.system.Levels() {
			s.monitor.RegisterComponent(l)
		}

		s.monitor.StartServer()
	}

	return s
}

func dieOnErr(err error) {
	if err != nil {
		log.Panic(err)
	}
}
