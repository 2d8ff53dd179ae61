package cmd

import (
	"context"
	"fmt"

	"github.com/Shihao-Song/Pin-Tools/datarecording"
	"github.com/Shihao-Song/Pin-Tools/mem/trace"
	"github.com/Shihao-Song/Pin-Tools/mem/vm"
	"github.com/Shihao-Song/Pin-Tools/stats"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var reportCmd = &cobra.Command{
	Use:   "report <database>",
	Short: "Print the statistics recorded by a run.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := datarecording.NewReader(args[0])
		if err != nil {
			return err
		}
		defer r.Close()

		r.MapTable(trace.TablePhaseStats, trace.StatEntry{})
		r.MapTable(trace.TablePhasePages, trace.PageEntry{})
		r.MapTable(trace.TableStoreCommits, trace.CommitEntry{})
		r.MapTable(trace.TableLineReleases, trace.ReleaseEntry{})

		phase, _ := cmd.Flags().GetInt("phase")
		top, _ := cmd.Flags().GetInt("pages")
		noColor, _ := cmd.Flags().GetBool("no-color")

		return printReport(cmd, r, phase, top, noColor)
	},
}

func printReport(
	cmd *cobra.Command,
	r datarecording.DataReader,
	phase, top int,
	noColor bool,
) error {
	ctx := context.Background()
	out := cmd.OutOrStdout()

	where := datarecording.QueryParams{}
	if phase >= 0 {
		where = datarecording.QueryParams{Where: "Phase = ?", Args: []any{phase}}
	}

	entries, _, err := r.Query(ctx, trace.TablePhaseStats, where)
	if err != nil {
		return err
	}

	header := color.New(color.FgGreen, color.Bold)
	printer := stats.NewPrinter()

	if noColor {
		header.DisableColor()
		printer.NoColor()
	}

	registries := make(map[int]*stats.Registry)
	var phases []int

	for _, e := range entries {
		st := e.(*trace.StatEntry)

		reg, found := registries[st.Phase]
		if !found {
			reg = stats.NewRegistry()
			registries[st.Phase] = reg
			phases = append(phases, st.Phase)
		}

		reg.RegisterWithUnit(st.Location, st.What, st.Value, st.Unit)
	}

	for _, p := range phases {
		header.Fprintf(out, "Phase %d\n", p)

		if err := printer.Print(out, registries[p]); err != nil {
			return err
		}

		if err := printRecordedPages(ctx, cmd, r, p, top); err != nil {
			return err
		}
	}

	for _, table := range []string{
		trace.TableStoreCommits, trace.TableLineReleases,
	} {
		_, n, err := r.Query(ctx, table, datarecording.QueryParams{
			Where: where.Where, Args: where.Args, Limit: 1,
		})
		if err != nil {
			return err
		}

		fmt.Fprintf(out, "%s: %d records\n", table, n)
	}

	return nil
}

func printRecordedPages(
	ctx context.Context,
	cmd *cobra.Command,
	r datarecording.DataReader,
	phase, top int,
) error {
	if top <= 0 {
		return nil
	}

	rows, _, err := r.Query(ctx, trace.TablePhasePages,
		datarecording.QueryParams{
			Where:   "Phase = ?",
			Args:    []any{phase},
			OrderBy: "Rank",
			Limit:   top,
		})
	if err != nil {
		return err
	}

	pages := make([]vm.PageInfo, 0, len(rows))
	for _, row := range rows {
		p := row.(*trace.PageEntry)
		pages = append(pages, vm.PageInfo{
			PageID:        p.PageID,
			FirstTouchEIP: p.FirstTouchEIP,
			Accesses:      p.Accesses,
		})
	}

	printPages(cmd.OutOrStdout(), pages, top)

	return nil
}

func init() {
	rootCmd.AddCommand(reportCmd)

	f := reportCmd.Flags()
	f.Int("phase", -1, "Only report this phase")
	f.Int("pages", 10, "Number of most accessed pages to print per phase")
	f.Bool("no-color", false, "Disable colors")
}
