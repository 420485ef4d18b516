package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/kozaktomas/face-attendance/internal/constants"
	"github.com/kozaktomas/face-attendance/internal/ledger"
	"github.com/spf13/cobra"
)

var attendanceCmd = &cobra.Command{
	Use:   "attendance",
	Short: "Query and export the attendance ledger",
}

var attendanceListCmd = &cobra.Command{
	Use:   "list",
	Short: "List attendance events in a date range",
	Long: `List attendance events whose timestamp falls within the given dates,
inclusive of the whole end day. Both bounds are optional.

Examples:
  face-attendance attendance list
  face-attendance attendance list --start 2024-03-01 --end 2024-03-31
  face-attendance attendance list --start 2024-03-05 --json`,
	Args: cobra.NoArgs,
	RunE: runAttendanceList,
}

var attendanceExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export attendance events to a CSV report",
	Long: `Export attendance events in a date range to a CSV report with a
Name,Timestamp,Type header. Use --output - to write to stdout.`,
	Args: cobra.NoArgs,
	RunE: runAttendanceExport,
}

func init() {
	rootCmd.AddCommand(attendanceCmd)
	attendanceCmd.AddCommand(attendanceListCmd, attendanceExportCmd)

	for _, c := range []*cobra.Command{attendanceListCmd, attendanceExportCmd} {
		c.Flags().String("start", "", "First day to include (YYYY-MM-DD)")
		c.Flags().String("end", "", "Last day to include (YYYY-MM-DD)")
	}
	attendanceListCmd.Flags().Bool("json", false, "Output as JSON")
	attendanceExportCmd.Flags().StringP("output", "o", constants.ExportFilename, "Output file")
}

// queryAttendance opens the ledger and returns the events within the --start
// and --end flags.
func queryAttendance(cmd *cobra.Command) ([]ledger.Event, error) {
	ctx := context.Background()

	start, end, err := ledger.ParseDayRange(mustGetString(cmd, "start"), mustGetString(cmd, "end"), time.Local)
	if err != nil {
		return nil, err
	}

	a, err := newApp(ctx, appOptions{ledger: true})
	if err != nil {
		return nil, err
	}
	defer a.Close()

	events, err := ledger.Query(ctx, a.ledger, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to query attendance: %w", err)
	}
	return events, nil
}

func runAttendanceList(cmd *cobra.Command, args []string) error {
	jsonOutput := mustGetBool(cmd, "json")

	events, err := queryAttendance(cmd)
	if err != nil {
		return err
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(events)
	}

	if len(events) == 0 {
		fmt.Println("No attendance events")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tTIMESTAMP\tTYPE")
	for _, e := range events {
		fmt.Fprintf(w, "%s\t%s\t%s\n", e.Name, e.Timestamp.Format(ledger.TimestampLayout), e.Type.Label())
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Printf("\nTotal: %d\n", len(events))
	return nil
}

func runAttendanceExport(cmd *cobra.Command, args []string) error {
	output := mustGetString(cmd, "output")

	events, err := queryAttendance(cmd)
	if err != nil {
		return err
	}

	if output == "-" {
		return ledger.WriteCSV(os.Stdout, events)
	}

	f, err := os.Create(output)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", output, err)
	}
	if err := ledger.WriteCSV(f, events); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to write %s: %w", output, err)
	}
	fmt.Printf("Exported %d events to %s\n", len(events), output)
	return nil
}
