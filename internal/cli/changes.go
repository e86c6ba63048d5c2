package cli

import (
	"context"
	"time"

	"github.com/jthake/odrv/internal/api"
	"github.com/jthake/odrv/internal/changes"
	"github.com/jthake/odrv/internal/types"
	"github.com/spf13/cobra"
)

var changesCmd = &cobra.Command{
	Use:   "changes",
	Short: "Change feed operations",
	Long:  "Walk the drive change feed and obtain sync tokens",
}

var changesDeltaCmd = &cobra.Command{
	Use:   "delta",
	Short: "Walk the change feed",
	Long: `Walk the drive change feed and print every change.

Without --token, the feed enumerates the whole drive and the returned
sync token marks that point in time. With --token from a previous walk,
only the changes since that walk are returned.

Examples:
  # First enumeration
  odrv changes delta

  # Incremental follow-up
  odrv changes delta --token "aTE09NjM2O..."`,
	RunE: runChangesDelta,
}

var (
	deltaToken    string
	deltaMaxPages int
	deltaUTC      bool
)

func init() {
	changesDeltaCmd.Flags().StringVar(&deltaToken, "token", "", "Sync token from a previous walk (default: full enumeration)")
	changesDeltaCmd.Flags().IntVar(&deltaMaxPages, "max-pages", 0, "Page limit for a single walk (default: from config)")
	changesDeltaCmd.Flags().BoolVar(&deltaUTC, "utc", false, "Render change timestamps in UTC instead of local time")

	changesCmd.AddCommand(changesDeltaCmd)
	rootCmd.AddCommand(changesCmd)
}

func runChangesDelta(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	out := NewOutputWriter(globalFlags.OutputFormat, globalFlags.Quiet, globalFlags.Verbose)
	reqCtx := api.NewRequestContext(globalFlags.Profile, "", types.RequestTypeDelta)

	client, err := newGraphClient(ctx, globalFlags)
	if err != nil {
		return finishWithError(out, "changes delta", reqCtx, err)
	}

	mgr := changes.NewManager(client)
	if deltaUTC {
		mgr = mgr.WithLocation(time.UTC)
	}

	maxPages := deltaMaxPages
	if maxPages == 0 {
		maxPages = appConfig.MaxDeltaPages
	}

	result, err := api.ExecuteWithRetry(ctx, client, reqCtx, func() (*types.DeltaResult, error) {
		return mgr.Delta(ctx, reqCtx, deltaToken, types.DeltaOptions{MaxPages: maxPages})
	})
	if err != nil {
		return finishWithError(out, "changes delta", reqCtx, err)
	}

	if globalFlags.OutputFormat == types.OutputFormatTable {
		out.Log("Sync token: %s", result.SyncToken)
	}
	return out.WriteSuccess("changes delta", result)
}
