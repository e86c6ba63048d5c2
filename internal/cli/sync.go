package cli

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/jthake/odrv/internal/api"
	"github.com/jthake/odrv/internal/changes"
	"github.com/jthake/odrv/internal/syncstate"
	"github.com/jthake/odrv/internal/types"
	"github.com/spf13/cobra"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Tracked change synchronization",
	Long: `Track drive changes across invocations.

'sync run' walks the change feed from the last stored sync token,
records the changes in a local database, and stores the new token.
Each profile has its own token and change log.`,
}

var syncRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Fetch changes since the last sync",
	RunE:  runSyncRun,
}

var syncStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the stored sync state",
	RunE:  runSyncStatus,
}

var syncLogCmd = &cobra.Command{
	Use:   "log",
	Short: "Show recorded changes, newest first",
	RunE:  runSyncLog,
}

var syncResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Discard the sync token and change log",
	RunE:  runSyncReset,
}

var (
	syncLogLimit int
	syncFull     bool
)

func init() {
	syncRunCmd.Flags().BoolVar(&syncFull, "full", false, "Ignore the stored token and re-enumerate the whole drive")
	syncLogCmd.Flags().IntVar(&syncLogLimit, "limit", 50, "Maximum entries to show (0 for all)")

	syncCmd.AddCommand(syncRunCmd)
	syncCmd.AddCommand(syncStatusCmd)
	syncCmd.AddCommand(syncLogCmd)
	syncCmd.AddCommand(syncResetCmd)
	rootCmd.AddCommand(syncCmd)
}

func openSyncDB() (*syncstate.DB, error) {
	return syncstate.Open(filepath.Join(getConfigDir(), "sync.db"))
}

func runSyncRun(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	out := NewOutputWriter(globalFlags.OutputFormat, globalFlags.Quiet, globalFlags.Verbose)
	reqCtx := api.NewRequestContext(globalFlags.Profile, "", types.RequestTypeDelta)

	db, err := openSyncDB()
	if err != nil {
		return fmt.Errorf("failed to open sync database: %w", err)
	}
	defer db.Close()

	token := ""
	if !syncFull {
		state, err := db.GetState(ctx, globalFlags.Profile)
		if err != nil {
			return fmt.Errorf("failed to read sync state: %w", err)
		}
		if state != nil {
			token = state.SyncToken
		}
	}

	client, err := newGraphClient(ctx, globalFlags)
	if err != nil {
		return finishWithError(out, "sync run", reqCtx, err)
	}

	mgr := changes.NewManager(client)
	result, err := api.ExecuteWithRetry(ctx, client, reqCtx, func() (*types.DeltaResult, error) {
		return mgr.Delta(ctx, reqCtx, token, types.DeltaOptions{MaxPages: appConfig.MaxDeltaPages})
	})
	if err != nil {
		return finishWithError(out, "sync run", reqCtx, err)
	}

	if err := db.RecordSync(ctx, globalFlags.Profile, result.SyncToken, result.Items); err != nil {
		return fmt.Errorf("failed to record sync: %w", err)
	}

	return out.WriteSuccess("sync run", map[string]interface{}{
		"profile":   globalFlags.Profile,
		"changes":   len(result.Items),
		"full":      token == "",
		"syncToken": result.SyncToken,
	})
}

func runSyncStatus(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	out := NewOutputWriter(globalFlags.OutputFormat, globalFlags.Quiet, globalFlags.Verbose)

	db, err := openSyncDB()
	if err != nil {
		return fmt.Errorf("failed to open sync database: %w", err)
	}
	defer db.Close()

	state, err := db.GetState(ctx, globalFlags.Profile)
	if err != nil {
		return fmt.Errorf("failed to read sync state: %w", err)
	}
	if state == nil {
		return out.WriteSuccess("sync status", map[string]interface{}{
			"profile": globalFlags.Profile,
			"synced":  false,
		})
	}

	return out.WriteSuccess("sync status", map[string]interface{}{
		"profile":      state.Profile,
		"synced":       true,
		"lastSyncTime": state.LastSyncTime,
		"totalChanges": state.TotalChanges,
	})
}

func runSyncLog(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	out := NewOutputWriter(globalFlags.OutputFormat, globalFlags.Quiet, globalFlags.Verbose)

	db, err := openSyncDB()
	if err != nil {
		return fmt.Errorf("failed to open sync database: %w", err)
	}
	defer db.Close()

	items, err := db.ListChanges(ctx, globalFlags.Profile, syncLogLimit)
	if err != nil {
		return fmt.Errorf("failed to read change log: %w", err)
	}

	return out.WriteSuccess("sync log", &types.DeltaResult{Items: items})
}

func runSyncReset(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	out := NewOutputWriter(globalFlags.OutputFormat, globalFlags.Quiet, globalFlags.Verbose)

	if !globalFlags.Yes {
		out.Log("This discards the sync token and change log for profile %q.", globalFlags.Profile)
		out.Log("Re-run with --yes to confirm.")
		return nil
	}

	db, err := openSyncDB()
	if err != nil {
		return fmt.Errorf("failed to open sync database: %w", err)
	}
	defer db.Close()

	if err := db.Reset(ctx, globalFlags.Profile); err != nil {
		return fmt.Errorf("failed to reset sync state: %w", err)
	}

	return out.WriteSuccess("sync reset", map[string]string{
		"profile": globalFlags.Profile,
		"status":  "reset",
	})
}
