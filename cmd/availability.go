package cmd

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sautiksau/bookingsync/internal/availability"
)

func newAvailabilityCmd() *cobra.Command {
	var (
		duration int
		days     int
		output   string
	)

	cmd := &cobra.Command{
		Use:   "availability",
		Short: "Print free appointment slots",
		Long: `Print the free slots for an appointment of the given duration over the
next days, computed from business hours and the active bookings in the
ledger.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if output != "text" && output != "json" {
				return fmt.Errorf("invalid output format %q (must be text or json)", output)
			}
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			a, err := newApp(cmd.Context(), cfg, false)
			if err != nil {
				return err
			}
			defer a.close(context.WithoutCancel(cmd.Context()))

			seq, err := a.calculator.Compute(cmd.Context(), duration, days)
			if err != nil {
				return err
			}
			result := availability.Collect(seq)
			if output == "json" {
				return printJSON(cmd.OutOrStdout(), result)
			}
			return printAvailability(cmd.OutOrStdout(), result)
		},
	}

	cmd.Flags().IntVar(&duration, "duration", 30, "Appointment duration in minutes")
	cmd.Flags().IntVar(&days, "days", 7, "Number of days to look ahead, starting today")
	cmd.Flags().StringVarP(&output, "output", "o", "text", "Output format: text or json")

	return cmd
}

// printAvailability writes one line per day with its free start times.
func printAvailability(w io.Writer, days []availability.DayAvailability) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, day := range days {
		if len(day.Slots) == 0 {
			fmt.Fprintf(tw, "%s\t%d\t-\n", day.Date, 0)
			continue
		}
		starts := ""
		for i, slot := range day.Slots {
			if i > 0 {
				starts += " "
			}
			starts += slot.StartTime
		}
		fmt.Fprintf(tw, "%s\t%d\t%s\n", day.Date, len(day.Slots), starts)
	}
	return tw.Flush()
}
