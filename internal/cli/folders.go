package cli

import (
	"context"

	"github.com/jthake/odrv/internal/api"
	"github.com/jthake/odrv/internal/folders"
	"github.com/jthake/odrv/internal/types"
	"github.com/spf13/cobra"
)

var foldersCmd = &cobra.Command{
	Use:   "folders",
	Short: "Folder operations",
	Long:  "Inspect the app folder and manage folders inside it",
}

var foldersApprootCmd = &cobra.Command{
	Use:   "approot",
	Short: "Show the application folder",
	Long: `Resolve the application's special folder on the drive.

Returns RESOURCE_NOT_FOUND when the app folder has never been
provisioned for this account.`,
	RunE: runFoldersApproot,
}

var foldersCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a folder inside the app folder",
	Args:  cobra.ExactArgs(1),
	RunE:  runFoldersCreate,
}

var foldersListCmd = &cobra.Command{
	Use:   "list [folder-id]",
	Short: "List a folder's children",
	Long: `List the children of a folder. Without an argument, lists the
children of the app folder itself.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runFoldersList,
}

func init() {
	foldersCmd.AddCommand(foldersApprootCmd)
	foldersCmd.AddCommand(foldersCreateCmd)
	foldersCmd.AddCommand(foldersListCmd)
	rootCmd.AddCommand(foldersCmd)
}

func runFoldersApproot(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	out := NewOutputWriter(globalFlags.OutputFormat, globalFlags.Quiet, globalFlags.Verbose)
	reqCtx := api.NewRequestContext(globalFlags.Profile, "", types.RequestTypeItemLookup)

	client, err := newGraphClient(ctx, globalFlags)
	if err != nil {
		return finishWithError(out, "folders approot", reqCtx, err)
	}

	mgr := folders.NewManager(client)
	item, err := api.ExecuteWithRetry(ctx, client, reqCtx, func() (*types.DriveItem, error) {
		return mgr.GetAppFolder(ctx, reqCtx)
	})
	if err != nil {
		return finishWithError(out, "folders approot", reqCtx, err)
	}

	return out.WriteSuccess("folders approot", item)
}

func runFoldersCreate(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	out := NewOutputWriter(globalFlags.OutputFormat, globalFlags.Quiet, globalFlags.Verbose)
	reqCtx := api.NewRequestContext(globalFlags.Profile, "", types.RequestTypeFolderCreate)

	client, err := newGraphClient(ctx, globalFlags)
	if err != nil {
		return finishWithError(out, "folders create", reqCtx, err)
	}

	mgr := folders.NewManager(client)
	item, err := api.ExecuteWithRetry(ctx, client, reqCtx, func() (*types.DriveItem, error) {
		return mgr.Create(ctx, reqCtx, args[0])
	})
	if err != nil {
		return finishWithError(out, "folders create", reqCtx, err)
	}

	return out.WriteSuccess("folders create", item)
}

func runFoldersList(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	out := NewOutputWriter(globalFlags.OutputFormat, globalFlags.Quiet, globalFlags.Verbose)
	reqCtx := api.NewRequestContext(globalFlags.Profile, "", types.RequestTypeListOrSearch)

	client, err := newGraphClient(ctx, globalFlags)
	if err != nil {
		return finishWithError(out, "folders list", reqCtx, err)
	}

	mgr := folders.NewManager(client)

	folderID := ""
	if len(args) > 0 {
		folderID = args[0]
	} else {
		approot, err := api.ExecuteWithRetry(ctx, client, reqCtx, func() (*types.DriveItem, error) {
			return mgr.GetAppFolder(ctx, reqCtx)
		})
		if err != nil {
			return finishWithError(out, "folders list", reqCtx, err)
		}
		folderID = approot.ID
	}

	list, err := api.ExecuteWithRetry(ctx, client, reqCtx, func() (*types.DriveItemList, error) {
		return mgr.ListChildren(ctx, reqCtx, folderID)
	})
	if err != nil {
		return finishWithError(out, "folders list", reqCtx, err)
	}

	return out.WriteSuccess("folders list", list)
}
