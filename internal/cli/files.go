package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/jthake/odrv/internal/api"
	"github.com/jthake/odrv/internal/files"
	"github.com/jthake/odrv/internal/resolver"
	"github.com/jthake/odrv/internal/types"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var filesCmd = &cobra.Command{
	Use:   "files",
	Short: "File operations",
	Long:  "Upload files to the app folder and inspect uploaded items",
}

var filesUploadCmd = &cobra.Command{
	Use:   "upload <local-path>",
	Short: "Upload a file to the app folder",
	Long: `Upload a local file to the OneDrive app folder.

Small files go up in a single request. Larger files use a chunked
upload session that resumes from the offset the server reports after
each chunk.

Examples:
  # Upload with the local file name
  odrv files upload ./report.pdf

  # Upload under a different remote name and share it
  odrv files upload ./report.pdf --name "Q3 report.pdf" --link`,
	Args: cobra.ExactArgs(1),
	RunE: runFilesUpload,
}

var filesGetCmd = &cobra.Command{
	Use:   "get [item-id]",
	Short: "Show metadata for an item",
	Long: `Show metadata for an item by ID, or by app-folder-relative path
with --path.

Examples:
  odrv files get 0123456789abc
  odrv files get --path "reports/q3 report.pdf"`,
	Args: cobra.MaximumNArgs(1),
	RunE: runFilesGet,
}

var filesLinkCmd = &cobra.Command{
	Use:   "link <item-id>",
	Short: "Create a sharing link for an item",
	Args:  cobra.ExactArgs(1),
	RunE:  runFilesLink,
}

var (
	uploadName         string
	uploadChunkSize    int64
	uploadForceSession bool
	uploadCreateLink   bool
	getPath            string
	linkType           string
	linkScope          string
)

func init() {
	filesUploadCmd.Flags().StringVar(&uploadName, "name", "", "Remote file name (default: local base name)")
	filesUploadCmd.Flags().Int64Var(&uploadChunkSize, "chunk-size", 0, "Session upload chunk size in bytes (default: from config)")
	filesUploadCmd.Flags().BoolVar(&uploadForceSession, "force-session", false, "Use a chunked session even for small files")
	filesUploadCmd.Flags().BoolVar(&uploadCreateLink, "link", false, "Create a sharing link after upload")

	filesLinkCmd.Flags().StringVar(&linkType, "type", "view", "Link type (view, edit)")
	filesGetCmd.Flags().StringVar(&getPath, "path", "", "Look up by app-folder-relative path instead of ID")

	filesLinkCmd.Flags().StringVar(&linkScope, "scope", "anonymous", "Link scope (anonymous, organization)")

	filesCmd.AddCommand(filesUploadCmd)
	filesCmd.AddCommand(filesGetCmd)
	filesCmd.AddCommand(filesLinkCmd)
	rootCmd.AddCommand(filesCmd)
}

func runFilesUpload(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	out := NewOutputWriter(globalFlags.OutputFormat, globalFlags.Quiet, globalFlags.Verbose)
	reqCtx := api.NewRequestContext(globalFlags.Profile, "", types.RequestTypeUpload)

	client, err := newGraphClient(ctx, globalFlags)
	if err != nil {
		return finishWithError(out, "files upload", reqCtx, err)
	}

	chunkSize := uploadChunkSize
	if chunkSize == 0 {
		chunkSize = appConfig.ChunkSize
	}

	opts := files.UploadOptions{
		Name:         uploadName,
		ChunkSize:    chunkSize,
		ForceSession: uploadForceSession,
	}

	// Progress bar only for interactive table output; JSON consumers get a
	// clean stream.
	if globalFlags.OutputFormat == types.OutputFormatTable && !globalFlags.Quiet {
		var bar *progressbar.ProgressBar
		opts.Progress = func(sent, total int64) {
			if bar == nil {
				bar = progressbar.DefaultBytes(total, "uploading")
			}
			_ = bar.Set64(sent)
		}
	}

	mgr := files.NewManager(client)
	result, err := api.ExecuteWithRetry(ctx, client, reqCtx, func() (*types.UploadResult, error) {
		return mgr.Upload(ctx, reqCtx, args[0], opts)
	})
	if err != nil {
		return finishWithError(out, "files upload", reqCtx, err)
	}

	data := map[string]interface{}{
		"id":     result.RemoteID,
		"webUrl": result.WebURL,
	}

	if uploadCreateLink {
		link, err := mgr.CreateSharingLink(ctx, reqCtx, result.RemoteID, "", "")
		if err != nil {
			return finishWithError(out, "files upload", reqCtx, err)
		}
		data["shareUrl"] = link.WebURL
	}

	return out.WriteSuccess("files upload", data)
}

func runFilesGet(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	out := NewOutputWriter(globalFlags.OutputFormat, globalFlags.Quiet, globalFlags.Verbose)
	reqCtx := api.NewRequestContext(globalFlags.Profile, "", types.RequestTypeItemLookup)

	if (len(args) == 0) == (getPath == "") {
		return fmt.Errorf("provide exactly one of an item ID or --path")
	}

	client, err := newGraphClient(ctx, globalFlags)
	if err != nil {
		return finishWithError(out, "files get", reqCtx, err)
	}

	if getPath != "" {
		res := resolver.NewPathResolver(client, time.Minute)
		result, err := api.ExecuteWithRetry(ctx, client, reqCtx, func() (*resolver.ResolveResult, error) {
			return res.Resolve(ctx, reqCtx, getPath)
		})
		if err != nil {
			return finishWithError(out, "files get", reqCtx, err)
		}
		return out.WriteSuccess("files get", result.Item)
	}

	mgr := files.NewManager(client)
	item, err := api.ExecuteWithRetry(ctx, client, reqCtx, func() (*types.DriveItem, error) {
		return mgr.Get(ctx, reqCtx, args[0])
	})
	if err != nil {
		return finishWithError(out, "files get", reqCtx, err)
	}

	return out.WriteSuccess("files get", item)
}

func runFilesLink(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	out := NewOutputWriter(globalFlags.OutputFormat, globalFlags.Quiet, globalFlags.Verbose)
	reqCtx := api.NewRequestContext(globalFlags.Profile, "", types.RequestTypeSharingLink)

	client, err := newGraphClient(ctx, globalFlags)
	if err != nil {
		return finishWithError(out, "files link", reqCtx, err)
	}

	mgr := files.NewManager(client)
	link, err := api.ExecuteWithRetry(ctx, client, reqCtx, func() (*types.SharingLink, error) {
		return mgr.CreateSharingLink(ctx, reqCtx, args[0], linkType, linkScope)
	})
	if err != nil {
		return finishWithError(out, "files link", reqCtx, err)
	}

	return out.WriteSuccess("files link", link)
}
