package cmd

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"time"

	"github.com/Shihao-Song/Pin-Tools/mem/hierarchy"
	"github.com/Shihao-Song/Pin-Tools/mem/vm"
	"github.com/Shihao-Song/Pin-Tools/replay"
	"github.com/Shihao-Song/Pin-Tools/sim/hooking"
	"github.com/Shihao-Song/Pin-Tools/simulation"
	"github.com/Shihao-Song/Pin-Tools/stats"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// phaseCollector keeps the reports of all the phases.
type phaseCollector struct {
	reports []hierarchy.PhaseReport
}

func (c *phaseCollector) Func(ctx hooking.HookCtx) {
	if ctx.Pos != hierarchy.HookPosPhaseEnd {
		return
	}

	c.reports = append(c.reports, ctx.Item.(hierarchy.PhaseReport))
}

var runCmd = &cobra.Command{
	Use:   "run [trace file]",
	Short: "Replay a trace. The trace is read from stdin if no file is given.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		name := ""
		if len(args) > 0 {
			name = args[0]
		}

		in, err := openInput(name)
		if err != nil {
			return err
		}
		defer in.Close()

		system := c.HierarchyBuilder().Build("System")

		collector := &phaseCollector{}
		system.AcceptHook(collector)

		sim := buildSimulation(cmd, system)
		defer sim.Terminate()

		if open, _ := cmd.Flags().GetBool("open-browser"); open &&
			sim.GetMonitor() != nil {
			if err := sim.GetMonitor().OpenBrowser(); err != nil {
				log.Printf("cannot open browser: %v", err)
			}
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		opt := replayOptions(cmd)
		total, _ := cmd.Flags().GetUint64("expected-events")

		start := time.Now()
		sum, runErr := sim.Replay(ctx, replay.NewReader(in), opt, total)
		elapsed := time.Since(start)

		noColor, _ := cmd.Flags().GetBool("no-color")
		topPages, _ := cmd.Flags().GetInt("pages")
		out := cmd.OutOrStdout()

		printPhases(out, collector.reports, topPages, noColor)
		printSummary(out, sum, elapsed, sim.GetPosCounter())

		if rec := sim.GetDataRecorder(); rec != nil {
			fmt.Fprintf(out, "Recorded %d stores and %d lines\n",
				sim.GetTracer().NumCommits(), sim.GetTracer().NumReleases())
		}

		return runErr
	},
}

func buildSimulation(
	cmd *cobra.Command,
	system *hierarchy.System,
) *simulation.Simulation {
	b := simulation.MakeBuilder().WithSystem(system)

	if noRecord, _ := cmd.Flags().GetBool("no-record"); noRecord {
		b = b.WithoutRecording()
	} else if output, _ := cmd.Flags().GetString("output"); output != "" {
		b = b.WithOutputFileName(output)
	}

	if all, _ := cmd.Flags().GetBool("record-all-lines"); all {
		b = b.WithUnmodifiedLineRecords()
	}

	if monitor, _ := cmd.Flags().GetBool("monitor"); !monitor {
		b = b.WithoutMonitoring()
	} else if port, _ := cmd.Flags().GetInt("monitor-port"); port != 0 {
		b = b.WithMonitorPort(port)
	}

	if trace, _ := cmd.Flags().GetBool("log"); trace {
		accesses, _ := cmd.Flags().GetBool("log-accesses")
		b = b.WithLogger(log.New(os.Stderr, "", 0), accesses)
	}

	return b.Build()
}

func replayOptions(cmd *cobra.Command) replay.Options {
	roi, _ := cmd.Flags().GetBool("roi")
	skip, _ := cmd.Flags().GetBool("skip-malformed")
	maxEvents, _ := cmd.Flags().GetUint64("max-events")

	return replay.Options{
		RespectROI:    roi,
		SkipMalformed: skip,
		MaxEvents:     maxEvents,
		Logger:        log.New(os.Stderr, "", 0),
	}
}

func printPhases(
	w io.Writer,
	reports []hierarchy.PhaseReport,
	topPages int,
	noColor bool,
) {
	printer := stats.NewPrinter()
	if noColor {
		printer.NoColor()
	}

	header := color.New(color.FgGreen, color.Bold)
	if noColor {
		header.DisableColor()
	}

	for _, r := range reports {
		if len(reports) > 1 {
			header.Fprintf(w, "Phase %d (%d accesses)\n", r.Phase, r.NumAccesses)
		}

		dieOnErr(printer.Print(w, r.Stats))

		if topPages > 0 {
			printPages(w, r.Pages, topPages)
		}
	}
}

func printPages(w io.Writer, pages []vm.PageInfo, top int) {
	if len(pages) > top {
		pages = pages[:top]
	}

	fmt.Fprintln(w, "Page ID, First Touch EIP, Accesses")

	for _, p := range pages {
		fmt.Fprintf(w, "0x%x, 0x%x, %d\n", p.PageID, p.FirstTouchEIP, p.Accesses)
	}
}

func printSummary(
	w io.Writer,
	sum replay.Summary,
	elapsed time.Duration,
	counter *hooking.PosCounter,
) {
	fmt.Fprintf(w, "Replayed %d accesses (%d reads, %d writes) "+
		"from %d lines in %s\n",
		sum.Accesses, sum.Reads, sum.Writes, sum.Lines,
		elapsed.Round(time.Millisecond))

	if sum.Skipped > 0 || sum.Malformed > 0 {
		fmt.Fprintf(w, "Skipped %d accesses and %d malformed lines\n",
			sum.Skipped, sum.Malformed)
	}

	counts := counter.Counts()
	for _, name := range counter.PosNames() {
		fmt.Fprintf(w, "%s events: %d\n", name, counts[name])
	}
}

func dieOnErr(err error) {
	if err != nil {
		log.Panic(err)
	}
}

func init() {
	rootCmd.AddCommand(runCmd)

	f := runCmd.Flags()
	f.StringP("output", "o", "", "Database file to record into")
	f.Bool("no-record", false, "Do not write a database")
	f.Bool("record-all-lines", false,
		"Record released lines even if they are not modified")
	f.Bool("monitor", false, "Serve the monitoring page")
	f.Int("monitor-port", 0, "Port of the monitoring page")
	f.Bool("open-browser", false, "Open the monitoring page in a browser")
	f.Bool("roi", false, "Only replay the region of interest")
	f.Bool("skip-malformed", false, "Skip malformed trace lines")
	f.Uint64("max-events", 0, "Stop after this many accesses")
	f.Uint64("expected-events", 0, "Number of accesses shown as the "+
		"total of the progress bar")
	f.Bool("log", false, "Print stores, evictions and releases to stderr")
	f.Bool("log-accesses", false, "Also print every cache access")
	f.Bool("no-color", false, "Disable colors")
	f.Int("pages", 10, "Number of most accessed pages to print per phase")
}
