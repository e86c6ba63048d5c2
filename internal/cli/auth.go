package cli

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"

	"github.com/jthake/odrv/internal/auth"
	"github.com/jthake/odrv/internal/types"
	"github.com/jthake/odrv/internal/utils"
	"github.com/spf13/cobra"
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Authentication operations",
	Long:  "Manage Microsoft identity authentication profiles and tokens",
}

var authLoginCmd = &cobra.Command{
	Use:   "login",
	Short: "Authenticate with Microsoft",
	Long: `Authenticate with the Microsoft identity platform and store tokens
for the selected profile.

The default flow opens a browser for interactive sign-in with PKCE.
Use --device for the device-code flow on headless machines.

Examples:
  # Browser sign-in for the default profile
  odrv auth login --client-id <app-client-id>

  # Device code flow for a headless box
  odrv auth login --client-id <app-client-id> --device

  # Request whole-drive scopes for delta sync
  odrv auth login --client-id <app-client-id> --full-drive`,
	RunE: runAuthLogin,
}

var authLogoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Remove stored credentials",
	RunE:  runAuthLogout,
}

var authStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show authentication status for the active profile",
	RunE:  runAuthStatus,
}

var authListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored authentication profiles",
	RunE:  runAuthList,
}

var (
	authClientID      string
	authTenant        string
	authDevice        bool
	authNoBrowser     bool
	authFullDrive     bool
	authEncryptedFile bool
	authPlainFile     bool
)

func init() {
	authLoginCmd.Flags().StringVar(&authClientID, "client-id", "", "Application (client) ID registered in Azure (required)")
	authLoginCmd.Flags().StringVar(&authTenant, "tenant", "common", "Directory tenant (common, consumers, organizations, or a tenant ID)")
	authLoginCmd.Flags().BoolVar(&authDevice, "device", false, "Use the device code flow")
	authLoginCmd.Flags().BoolVar(&authNoBrowser, "no-browser", false, "Do not open a browser; use manual code entry")
	authLoginCmd.Flags().BoolVar(&authFullDrive, "full-drive", false, "Request whole-drive scopes instead of app-folder scopes")
	authLoginCmd.Flags().BoolVar(&authEncryptedFile, "use-encrypted-file", false, "Force encrypted file storage instead of the system keyring")
	authLoginCmd.Flags().BoolVar(&authPlainFile, "use-plain-file", false, "Force plain file storage (insecure, development only)")
	authLoginCmd.MarkFlagRequired("client-id")

	authCmd.AddCommand(authLoginCmd)
	authCmd.AddCommand(authLogoutCmd)
	authCmd.AddCommand(authStatusCmd)
	authCmd.AddCommand(authListCmd)
	rootCmd.AddCommand(authCmd)
}

func loginAuthManager() *auth.Manager {
	return auth.NewManagerWithOptions(getConfigDir(), auth.ManagerOptions{
		ForceEncryptedFile: authEncryptedFile,
		ForcePlainFile:     authPlainFile,
		Tenant:             authTenant,
	})
}

func runAuthLogin(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	out := NewOutputWriter(globalFlags.OutputFormat, globalFlags.Quiet, globalFlags.Verbose)

	authMgr := loginAuthManager()
	if warning := authMgr.GetStorageWarning(); warning != "" {
		out.Log("%s", warning)
	}

	scopes := utils.ScopesAppFolder
	if authFullDrive {
		scopes = utils.ScopesFullDrive
	}
	authMgr.SetOAuthConfig(authClientID, scopes)

	var creds *types.Credentials
	var err error
	if authDevice {
		creds, err = authMgr.AuthenticateWithDeviceCode(ctx, globalFlags.Profile)
	} else {
		creds, err = authMgr.Authenticate(ctx, globalFlags.Profile, openBrowser, auth.OAuthAuthOptions{NoBrowser: authNoBrowser})
	}
	if err != nil {
		return err
	}

	return out.WriteSuccess("auth login", map[string]interface{}{
		"profile": globalFlags.Profile,
		"tenant":  authMgr.Tenant(),
		"scopes":  creds.Scopes,
		"expiry":  creds.Expiry,
		"storage": authMgr.GetStorageBackend(),
	})
}

func runAuthLogout(cmd *cobra.Command, args []string) error {
	out := NewOutputWriter(globalFlags.OutputFormat, globalFlags.Quiet, globalFlags.Verbose)

	authMgr := newAuthManager()
	if err := authMgr.DeleteCredentials(globalFlags.Profile); err != nil {
		return fmt.Errorf("failed to remove credentials: %w", err)
	}

	return out.WriteSuccess("auth logout", map[string]string{
		"profile": globalFlags.Profile,
		"status":  "logged out",
	})
}

func runAuthStatus(cmd *cobra.Command, args []string) error {
	out := NewOutputWriter(globalFlags.OutputFormat, globalFlags.Quiet, globalFlags.Verbose)

	authMgr := newAuthManager()
	creds, err := authMgr.LoadCredentials(globalFlags.Profile)
	if err != nil {
		return out.WriteSuccess("auth status", map[string]interface{}{
			"profile":       globalFlags.Profile,
			"authenticated": false,
		})
	}

	return out.WriteSuccess("auth status", map[string]interface{}{
		"profile":       globalFlags.Profile,
		"authenticated": true,
		"expired":       authMgr.NeedsRefresh(creds),
		"expiry":        creds.Expiry,
		"scopes":        creds.Scopes,
		"tenant":        creds.Tenant,
		"storage":       authMgr.GetStorageBackend(),
	})
}

func runAuthList(cmd *cobra.Command, args []string) error {
	out := NewOutputWriter(globalFlags.OutputFormat, globalFlags.Quiet, globalFlags.Verbose)

	authMgr := newAuthManager()
	profiles, err := authMgr.ListProfiles()
	if err != nil {
		return fmt.Errorf("failed to list profiles: %w", err)
	}

	return out.WriteSuccess("auth list", map[string]interface{}{
		"profiles": profiles,
		"count":    len(profiles),
	})
}

func openBrowser(url string) error {
	switch runtime.GOOS {
	case "darwin":
		return exec.Command("open", url).Start()
	case "windows":
		return exec.Command("rundll32", "url.dll,FileProtocolHandler", url).Start()
	default:
		return exec.Command("xdg-open", url).Start()
	}
}
