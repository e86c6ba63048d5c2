package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/jthake/odrv/internal/types"
	"github.com/jthake/odrv/internal/utils"
	"github.com/zalando/go-keyring"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/microsoft"
)

const (
	serviceName        = "odrv-cli"
	tokenRefreshBuffer = 5 * time.Minute
)

// Manager handles authentication operations
type Manager struct {
	configDir      string
	tenant         string
	useKeyring     bool
	useEncryption  bool
	storage        StorageBackend
	oauthConfig    *oauth2.Config
	storageWarning string
}

// NewManager creates a new auth manager
func NewManager(configDir string) *Manager {
	return NewManagerWithOptions(configDir, ManagerOptions{})
}

// ManagerOptions configures the auth manager
type ManagerOptions struct {
	ForceEncryptedFile bool // Force use of encrypted file storage
	ForcePlainFile     bool // Force use of plain file storage (insecure, dev only)
	Tenant             string
}

// NewManagerWithOptions creates a new auth manager with specific options
func NewManagerWithOptions(configDir string, opts ManagerOptions) *Manager {
	tenant := opts.Tenant
	if tenant == "" {
		tenant = "common"
	}

	mgr := &Manager{
		configDir: configDir,
		tenant:    tenant,
	}

	if opts.ForcePlainFile {
		mgr.storage = NewPlainFileStorage(configDir)
		mgr.useKeyring = false
		mgr.useEncryption = false
		mgr.storageWarning = "WARNING: Using unencrypted file storage. Credentials are stored in plain text."
	} else if opts.ForceEncryptedFile || !checkKeyringAvailable() {
		storage, err := NewEncryptedFileStorage(configDir)
		if err != nil {
			// Fallback to plain file if encryption setup fails
			mgr.storage = NewPlainFileStorage(configDir)
			mgr.useEncryption = false
			mgr.storageWarning = fmt.Sprintf("WARNING: Encryption setup failed (%v). Using plain file storage.", err)
		} else {
			mgr.storage = storage
			mgr.useEncryption = true
			if !opts.ForceEncryptedFile {
				mgr.storageWarning = "INFO: System keyring not available. Using encrypted file storage."
			}
		}
		mgr.useKeyring = false
	} else {
		mgr.storage = NewKeyringStorage(serviceName)
		mgr.useKeyring = true
		mgr.useEncryption = false
	}

	return mgr
}

// checkKeyringAvailable tests if the system keyring is available
func checkKeyringAvailable() bool {
	testKey := "odrv-cli-test"
	err := keyring.Set(serviceName, testKey, "test")
	if err != nil {
		return false
	}
	_ = keyring.Delete(serviceName, testKey)
	return true
}

// SetOAuthConfig sets the OAuth2 configuration against the Microsoft identity
// platform for the manager's tenant
func (m *Manager) SetOAuthConfig(clientID string, scopes []string) {
	m.oauthConfig = &oauth2.Config{
		ClientID:    clientID,
		Scopes:      scopes,
		Endpoint:    microsoft.AzureADEndpoint(m.tenant),
		RedirectURL: "http://localhost:8085/callback",
	}
}

// GetOAuthConfig returns the current OAuth2 configuration
func (m *Manager) GetOAuthConfig() *oauth2.Config {
	return m.oauthConfig
}

// Tenant returns the directory tenant the manager authenticates against
func (m *Manager) Tenant() string {
	return m.tenant
}

// LoadCredentials loads stored credentials for a profile
func (m *Manager) LoadCredentials(profile string) (*types.Credentials, error) {
	data, err := m.storage.Load(profile)
	if err != nil {
		return nil, err
	}

	var creds types.Credentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return nil, fmt.Errorf("failed to parse credentials: %w", err)
	}

	return &creds, nil
}

// SaveCredentials saves credentials for a profile
func (m *Manager) SaveCredentials(profile string, creds *types.Credentials) error {
	data, err := json.Marshal(creds)
	if err != nil {
		return fmt.Errorf("failed to marshal credentials: %w", err)
	}

	if err := m.storage.Save(profile, data); err != nil {
		return err
	}

	if err := m.addProfileToList(profile); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to update profile list: %v\n", err)
	}

	return nil
}

// DeleteCredentials removes credentials for a profile
func (m *Manager) DeleteCredentials(profile string) error {
	if err := m.storage.Delete(profile); err != nil {
		return err
	}

	if err := m.removeProfileFromList(profile); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to update profile list: %v\n", err)
	}

	return nil
}

// NeedsRefresh checks if credentials need refreshing
func (m *Manager) NeedsRefresh(creds *types.Credentials) bool {
	return creds.Expired(tokenRefreshBuffer)
}

// RefreshCredentials refreshes OAuth2 tokens
func (m *Manager) RefreshCredentials(ctx context.Context, creds *types.Credentials) (*types.Credentials, error) {
	if m.oauthConfig == nil {
		return nil, fmt.Errorf("OAuth config not set")
	}
	if creds.RefreshToken == "" {
		return nil, fmt.Errorf("no refresh token available")
	}

	token := &oauth2.Token{
		AccessToken:  creds.AccessToken,
		RefreshToken: creds.RefreshToken,
		TokenType:    creds.TokenType,
		Expiry:       creds.Expiry,
	}

	tokenSource := m.oauthConfig.TokenSource(ctx, token)
	newToken, err := tokenSource.Token()
	if err != nil {
		return nil, fmt.Errorf("failed to refresh token: %w", err)
	}

	refreshToken := newToken.RefreshToken
	if refreshToken == "" {
		refreshToken = creds.RefreshToken
	}

	return &types.Credentials{
		AccessToken:  newToken.AccessToken,
		RefreshToken: refreshToken,
		TokenType:    newToken.TokenType,
		Expiry:       newToken.Expiry,
		Scopes:       creds.Scopes,
		Tenant:       m.tenant,
	}, nil
}

// GetValidCredentials returns valid credentials, refreshing if necessary
func (m *Manager) GetValidCredentials(ctx context.Context, profile string) (*types.Credentials, error) {
	creds, err := m.LoadCredentials(profile)
	if err != nil {
		return nil, utils.NewAppError(utils.NewCLIError(utils.ErrCodeAuthRequired,
			"No credentials found. Run 'odrv auth login' first.").Build())
	}

	if m.NeedsRefresh(creds) {
		newCreds, err := m.RefreshCredentials(ctx, creds)
		if err != nil {
			return nil, utils.NewAppError(utils.NewCLIError(utils.ErrCodeAuthExpired,
				"Token refresh failed. Run 'odrv auth login' to re-authenticate.").Build())
		}
		if err := m.SaveCredentials(profile, newCreds); err != nil {
			return nil, fmt.Errorf("failed to save refreshed credentials: %w", err)
		}
		return newCreds, nil
	}

	return creds, nil
}

// ValidateScopes checks if credentials have required scopes
func (m *Manager) ValidateScopes(creds *types.Credentials, required []string) error {
	scopeSet := make(map[string]bool)
	for _, s := range creds.Scopes {
		scopeSet[s] = true
	}
	for _, req := range required {
		if !scopeSet[req] {
			return utils.NewAppError(utils.NewCLIError(utils.ErrCodeAuthRequired,
				fmt.Sprintf("Missing required scope: %s. Re-authenticate with 'odrv auth login --scopes %s'", req, req)).Build())
		}
	}
	return nil
}

// UseKeyring returns whether the manager is using the system keyring
func (m *Manager) UseKeyring() bool {
	return m.useKeyring
}

// ConfigDir returns the configuration directory
func (m *Manager) ConfigDir() string {
	return m.configDir
}

// GetStorageBackend returns the name of the storage backend being used
func (m *Manager) GetStorageBackend() string {
	return m.storage.Name()
}

// GetStorageWarning returns any warning message about the storage backend
func (m *Manager) GetStorageWarning() string {
	return m.storageWarning
}
