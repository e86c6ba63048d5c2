package types

// DriveItem represents a OneDrive file or folder as returned by Microsoft Graph
type DriveItem struct {
	ID               string   `json:"id"`
	Name             string   `json:"name,omitempty"`
	Size             int64    `json:"size,omitempty"`
	WebURL           string   `json:"webUrl,omitempty"`
	CreatedDateTime  string   `json:"createdDateTime,omitempty"`
	ModifiedDateTime string   `json:"lastModifiedDateTime,omitempty"`
	ParentID         string   `json:"parentId,omitempty"`
	IsFolder         bool     `json:"isFolder"`
	ChildCount       int64    `json:"childCount,omitempty"`
	DownloadURL      string   `json:"downloadUrl,omitempty"`
	SharingLinks     []string `json:"sharingLinks,omitempty"`
}

// DriveItemList represents a paginated children listing
type DriveItemList struct {
	Items    []*DriveItem `json:"items"`
	NextLink string       `json:"nextLink,omitempty"`
}

// UploadSession represents an active chunked upload session.
// uploadUrl is pre-authenticated by the service and is used verbatim for
// every chunk PUT.
type UploadSession struct {
	UploadURL          string   `json:"uploadUrl"`
	ExpirationDateTime string   `json:"expirationDateTime,omitempty"`
	NextExpectedRanges []string `json:"nextExpectedRanges,omitempty"`
}

// UploadResult is the terminal outcome of a chunked upload: the service
// stops returning expected ranges and instead returns the finished item.
type UploadResult struct {
	WebURL   string `json:"webUrl"`
	RemoteID string `json:"id,omitempty"`
}

// SharingLink represents a sharing link created for a drive item
type SharingLink struct {
	ID     string `json:"id,omitempty"`
	Type   string `json:"type,omitempty"`  // view, edit, embed
	Scope  string `json:"scope,omitempty"` // anonymous, organization
	WebURL string `json:"webUrl"`
}
