package types

// RequestType categorizes an API operation for logging and error context
type RequestType string

const (
	RequestTypeListOrSearch  RequestType = "list_or_search"
	RequestTypeItemLookup    RequestType = "item_lookup"
	RequestTypeFolderCreate  RequestType = "folder_create"
	RequestTypeUpload        RequestType = "upload"
	RequestTypeUploadSession RequestType = "upload_session"
	RequestTypeDelta         RequestType = "delta"
	RequestTypeSharingLink   RequestType = "sharing_link"
)

// RequestContext carries per-operation metadata through the API layer
type RequestContext struct {
	Profile           string
	DriveID           string
	InvolvedItemIDs   []string
	InvolvedParentIDs []string
	RequestType       RequestType
	TraceID           string
}
