package utils

// Upload thresholds (binary units)
const (
	// UploadChunkAlignment is the byte alignment the service requires for
	// every non-final chunk of a session upload
	UploadChunkAlignment = 327680 // 320 KiB
	// DefaultUploadChunkSize is the default chunk size for session uploads
	DefaultUploadChunkSize = UploadChunkAlignment
	// UploadSimpleMaxBytes is the largest payload sent as a single PUT;
	// anything bigger goes through an upload session
	UploadSimpleMaxBytes = 4 * 1024 * 1024 // 4 MiB
)

// Microsoft Graph base URL
const GraphAPIBase = "https://graph.microsoft.com/v1.0"

// OAuth scopes
const (
	ScopeUserRead      = "https://graph.microsoft.com/User.Read"
	ScopeFilesRW       = "https://graph.microsoft.com/Files.ReadWrite"
	ScopeAppFolder     = "https://graph.microsoft.com/Files.ReadWrite.AppFolder"
	ScopeOfflineAccess = "offline_access"
)

var (
	// ScopesAppFolder covers the app-folder demo flows
	ScopesAppFolder = []string{
		ScopeUserRead,
		ScopeAppFolder,
		ScopeOfflineAccess,
	}
	// ScopesFullDrive covers delta sync over the whole drive
	ScopesFullDrive = []string{
		ScopeUserRead,
		ScopeFilesRW,
		ScopeOfflineAccess,
	}
)

// Retry configuration
const (
	DefaultMaxRetries   = 3
	DefaultRetryDelayMs = 1000
	MaxRetryDelayMs     = 32000
)

// Delta sync bounds
const (
	// DefaultMaxDeltaPages bounds one delta walk against runaway feeds
	DefaultMaxDeltaPages = 1000
)

// Request pacing
const (
	// DefaultRequestsPerSecond limits outbound request rate per client
	DefaultRequestsPerSecond = 10
	// DefaultRequestBurst is the pacing burst size
	DefaultRequestBurst = 5
)

// Schema version of the CLI output envelope
const SchemaVersion = "1.0"
