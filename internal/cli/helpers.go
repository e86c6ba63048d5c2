package cli

import (
	"context"
	"errors"
	"os"

	"github.com/jthake/odrv/internal/api"
	"github.com/jthake/odrv/internal/auth"
	"github.com/jthake/odrv/internal/config"
	odrverrors "github.com/jthake/odrv/internal/errors"
	"github.com/jthake/odrv/internal/types"
	"github.com/jthake/odrv/internal/utils"
)

func getConfigDir() string {
	if globalFlags.Config != "" {
		return globalFlags.Config
	}
	dir, err := config.GetConfigDir()
	if err != nil {
		return "."
	}
	return dir
}

func newAuthManager() *auth.Manager {
	return auth.NewManager(getConfigDir())
}

// newGraphClient builds an authenticated Graph client for the active profile.
// Tokens are refreshed here, before the client exists, so the client's token
// is stable for the life of the command.
func newGraphClient(ctx context.Context, flags types.GlobalFlags) (*api.Client, error) {
	authMgr := newAuthManager()
	authMgr.SetOAuthConfig(os.Getenv("ODRV_CLIENT_ID"), utils.ScopesAppFolder)

	creds, err := authMgr.GetValidCredentials(ctx, flags.Profile)
	if err != nil {
		return nil, err
	}

	return api.NewClient(creds.AccessToken, api.ClientOptions{
		MaxRetries:   appConfig.MaxRetries,
		RetryDelayMs: appConfig.RetryBaseDelay,
		Logger:       GetLogger(),
	})
}

// finishWithError classifies an error, writes the error envelope, and exits
// with the mapped code
func finishWithError(out *OutputWriter, command string, reqCtx *types.RequestContext, err error) error {
	classified := odrverrors.ClassifyGraphError(err, reqCtx, GetLogger())

	var appErr *utils.AppError
	if errors.As(classified, &appErr) {
		_ = out.WriteError(command, appErr.CLIError)
		os.Exit(utils.GetExitCode(appErr.CLIError.Code))
	}

	return classified
}
