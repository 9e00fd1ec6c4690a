package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/sautiksau/bookingsync/internal/calsync"
	"github.com/sautiksau/bookingsync/internal/instrumentation"
)

func newImportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import the Google Calendar into the booking ledger once",
		Long: `Run one import of the configured Google Calendar.

Events inside the sync window are created, updated or removed in the booking
ledger so that it mirrors the calendar. The statistics of the run are printed
as JSON. A successful connected run also records the last sync time used by
the periodic import of the serve command.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			a, err := newApp(cmd.Context(), cfg, false)
			if err != nil {
				return err
			}
			defer a.close(context.WithoutCancel(cmd.Context()))
			return runImport(cmd.Context(), a, cmd.OutOrStdout())
		},
	}
	return cmd
}

func runImport(ctx context.Context, a *app, out io.Writer) error {
	ctx = calsync.WithTrigger(ctx, instrumentation.TriggerManual)
	started := time.Now()
	stats, err := a.reconciler.Import(ctx)
	if printErr := printJSON(out, stats); printErr != nil {
		return printErr
	}
	if err != nil {
		return fmt.Errorf("import failed: %w", err)
	}
	if !stats.Connected {
		a.logger.Warn("calendar not connected; nothing imported")
		return nil
	}
	if err := a.lastSync.SetLastSync(ctx, started); err != nil {
		return fmt.Errorf("failed to record last sync: %w", err)
	}
	return nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
