package files

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/jthake/odrv/internal/api"
	"github.com/jthake/odrv/internal/logging"
	"github.com/jthake/odrv/internal/types"
	"github.com/jthake/odrv/internal/utils"
)

// Manager handles file operations against the app folder
type Manager struct {
	client *api.Client
}

// NewManager creates a new file manager
func NewManager(client *api.Client) *Manager {
	return &Manager{client: client}
}

// UploadOptions configures file upload
type UploadOptions struct {
	// Name is the remote file name; defaults to the local base name
	Name string
	// ContentType is sent for simple uploads; defaults to application/octet-stream
	ContentType string
	// ChunkSize is the session-upload chunk size in bytes. Must be a positive
	// multiple of utils.UploadChunkAlignment. Zero uses the default.
	ChunkSize int64
	// ForceSession forces a session upload regardless of size
	ForceSession bool
	// Progress, if set, is invoked after each acknowledged chunk with the
	// number of bytes covered so far and the total size
	Progress func(sent, total int64)
}

// Upload uploads a local file, choosing simple or session upload by size
func (m *Manager) Upload(ctx context.Context, reqCtx *types.RequestContext, localPath string, opts UploadOptions) (*types.UploadResult, error) {
	data, err := os.ReadFile(localPath)
	if err != nil {
		return nil, utils.NewAppError(utils.NewCLIError(utils.ErrCodeInvalidArgument,
			fmt.Sprintf("Failed to read file: %s", err)).Build())
	}

	name := opts.Name
	if name == "" {
		name = filepath.Base(localPath)
	}

	if !opts.ForceSession && int64(len(data)) <= utils.UploadSimpleMaxBytes {
		item, err := m.PutContent(ctx, reqCtx, name, opts.ContentType, data)
		if err != nil {
			return nil, err
		}
		if opts.Progress != nil {
			opts.Progress(int64(len(data)), int64(len(data)))
		}
		return &types.UploadResult{WebURL: item.WebURL, RemoteID: item.ID}, nil
	}

	session, err := m.CreateUploadSession(ctx, reqCtx, name)
	if err != nil {
		return nil, err
	}
	return m.UploadBytes(ctx, reqCtx, session.UploadURL, data, opts)
}

// PutContent uploads a small payload in a single PUT to the app folder
func (m *Manager) PutContent(ctx context.Context, reqCtx *types.RequestContext, name, contentType string, data []byte) (*types.DriveItem, error) {
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	reqURL := fmt.Sprintf("%s/me/drive/special/approot:/%s:/content", m.client.BaseURL(), url.PathEscape(name))
	headers := map[string]string{"Content-Type": contentType}

	resp, err := m.client.Do(ctx, "PUT", reqURL, headers, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 && resp.StatusCode != 201 {
		return nil, api.ParseErrorResponse(resp)
	}

	var parsed struct {
		ID     string `json:"id"`
		Name   string `json:"name"`
		Size   int64  `json:"size"`
		WebURL string `json:"webUrl"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, &api.MalformedResponseError{Reason: "invalid JSON body", Err: err}
	}
	if parsed.WebURL == "" {
		return nil, &api.MalformedResponseError{Reason: "upload response missing webUrl"}
	}

	return &types.DriveItem{
		ID:     parsed.ID,
		Name:   parsed.Name,
		Size:   parsed.Size,
		WebURL: parsed.WebURL,
	}, nil
}

// CreateUploadSession opens a chunked upload session for a file in the app
// folder. Name conflicts are resolved by renaming, matching the service's
// conflictBehavior option.
func (m *Manager) CreateUploadSession(ctx context.Context, reqCtx *types.RequestContext, name string) (*types.UploadSession, error) {
	reqURL := fmt.Sprintf("%s/me/drive/special/approot:/%s:/createUploadSession", m.client.BaseURL(), url.PathEscape(name))

	reqBody := map[string]interface{}{
		"item": map[string]interface{}{
			"@microsoft.graph.conflictBehavior": "rename",
			"name":                              name,
		},
	}

	var session types.UploadSession
	if err := m.client.DoJSON(ctx, "POST", reqURL, nil, reqBody, &session, 200, 201); err != nil {
		return nil, err
	}
	if session.UploadURL == "" {
		return nil, &api.MalformedResponseError{Reason: "session response missing uploadUrl"}
	}

	m.client.Logger().WithTraceID(reqCtx.TraceID).Debug("Upload session created",
		logging.F("expires", session.ExpirationDateTime),
	)
	return &session, nil
}

// chunkResponse is the body of a chunk PUT: either a continuation carrying
// the next expected ranges, or the finished item carrying webUrl.
type chunkResponse struct {
	WebURL             *string  `json:"webUrl"`
	ID                 string   `json:"id"`
	NextExpectedRanges []string `json:"nextExpectedRanges"`
}

// UploadBytes drives a chunked session upload. Chunks are sent strictly one
// at a time: the next range always starts at the offset the server reports,
// not at a locally computed position, so a chunk the server already holds is
// never resent after a partial failure. There is no per-chunk retry; any
// failure ends the operation and the caller owns restart policy.
func (m *Manager) UploadBytes(ctx context.Context, reqCtx *types.RequestContext, uploadURL string, data []byte, opts UploadOptions) (*types.UploadResult, error) {
	total := int64(len(data))
	if total == 0 {
		return nil, utils.NewAppError(utils.NewCLIError(utils.ErrCodeInvalidArgument,
			"Cannot session-upload an empty payload; a zero-length Content-Range is not expressible").Build())
	}

	chunkSize := opts.ChunkSize
	if chunkSize == 0 {
		chunkSize = utils.DefaultUploadChunkSize
	}
	if chunkSize <= 0 || chunkSize%utils.UploadChunkAlignment != 0 {
		return nil, utils.NewAppError(utils.NewCLIError(utils.ErrCodeInvalidArgument,
			fmt.Sprintf("Chunk size must be a positive multiple of %d bytes", utils.UploadChunkAlignment)).Build())
	}

	logger := m.client.Logger().WithTraceID(reqCtx.TraceID)

	var offset int64
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		end := offset + chunkSize - 1
		if end > total-1 {
			end = total - 1
		}

		headers := map[string]string{
			"Content-Type":  "application/octet-stream",
			"Content-Range": fmt.Sprintf("bytes %d-%d/%d", offset, end, total),
		}

		resp, err := m.client.Do(ctx, "PUT", uploadURL, headers, bytes.NewReader(data[offset:end+1]))
		if err != nil {
			return nil, err
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			defer resp.Body.Close()
			return nil, api.ParseErrorResponse(resp)
		}

		var parsed chunkResponse
		decodeErr := json.NewDecoder(resp.Body).Decode(&parsed)
		resp.Body.Close()
		if decodeErr != nil {
			return nil, &api.MalformedResponseError{Reason: "invalid JSON body", Err: decodeErr}
		}

		if opts.Progress != nil {
			opts.Progress(end+1, total)
		}

		if parsed.WebURL != nil {
			logger.Debug("Upload complete",
				logging.F("bytes", total),
				logging.F("itemId", parsed.ID),
			)
			return &types.UploadResult{WebURL: *parsed.WebURL, RemoteID: parsed.ID}, nil
		}

		next, err := nextOffsetFromRanges(parsed.NextExpectedRanges)
		if err != nil {
			return nil, err
		}
		if next < 0 || next >= total {
			return nil, &api.MalformedResponseError{
				Reason: fmt.Sprintf("server requested offset %d outside payload of %d bytes", next, total),
			}
		}

		if next != end+1 {
			logger.Debug("Server adjusted resume offset",
				logging.F("expected", end+1),
				logging.F("reported", next),
			)
		}
		offset = next
	}
}

// nextOffsetFromRanges extracts the resume offset from the first expected
// range, whose textual prefix before the first '-' is the next byte offset.
func nextOffsetFromRanges(ranges []string) (int64, error) {
	if len(ranges) == 0 {
		return 0, &api.MalformedResponseError{Reason: "chunk response has neither webUrl nor nextExpectedRanges"}
	}
	prefix, _, _ := strings.Cut(ranges[0], "-")
	next, err := strconv.ParseInt(prefix, 10, 64)
	if err != nil {
		return 0, &api.MalformedResponseError{Reason: fmt.Sprintf("unparseable expected range %q", ranges[0]), Err: err}
	}
	return next, nil
}

// CreateSharingLink creates a sharing link for an uploaded item
func (m *Manager) CreateSharingLink(ctx context.Context, reqCtx *types.RequestContext, itemID, linkType, scope string) (*types.SharingLink, error) {
	if linkType == "" {
		linkType = "view"
	}
	if scope == "" {
		scope = "anonymous"
	}
	reqCtx.InvolvedItemIDs = append(reqCtx.InvolvedItemIDs, itemID)

	reqURL := fmt.Sprintf("%s/me/drive/items/%s/createLink", m.client.BaseURL(), url.PathEscape(itemID))
	reqBody := map[string]string{"type": linkType, "scope": scope}

	var parsed struct {
		ID   string `json:"id"`
		Link struct {
			Type   string `json:"type"`
			Scope  string `json:"scope"`
			WebURL string `json:"webUrl"`
		} `json:"link"`
	}
	if err := m.client.DoJSON(ctx, "POST", reqURL, nil, reqBody, &parsed, 200, 201); err != nil {
		return nil, err
	}
	if parsed.Link.WebURL == "" {
		return nil, &api.MalformedResponseError{Reason: "link response missing link.webUrl"}
	}

	return &types.SharingLink{
		ID:     parsed.ID,
		Type:   parsed.Link.Type,
		Scope:  parsed.Link.Scope,
		WebURL: parsed.Link.WebURL,
	}, nil
}

// Get fetches metadata for a single item
func (m *Manager) Get(ctx context.Context, reqCtx *types.RequestContext, itemID string) (*types.DriveItem, error) {
	reqCtx.InvolvedItemIDs = append(reqCtx.InvolvedItemIDs, itemID)

	reqURL := fmt.Sprintf("%s/me/drive/items/%s", m.client.BaseURL(), url.PathEscape(itemID))

	var parsed itemResource
	if err := m.client.DoJSON(ctx, "GET", reqURL, nil, nil, &parsed, 200); err != nil {
		return nil, err
	}
	if parsed.ID == "" {
		return nil, &api.MalformedResponseError{Reason: "item response missing id"}
	}
	return parsed.toDriveItem(), nil
}

// itemResource mirrors the driveItem wire shape at the field level this tool
// consumes
type itemResource struct {
	ID                   string `json:"id"`
	Name                 string `json:"name"`
	Size                 int64  `json:"size"`
	WebURL               string `json:"webUrl"`
	CreatedDateTime      string `json:"createdDateTime"`
	LastModifiedDateTime string `json:"lastModifiedDateTime"`
	Folder               *struct {
		ChildCount int64 `json:"childCount"`
	} `json:"folder"`
	ParentReference *struct {
		ID string `json:"id"`
	} `json:"parentReference"`
}

func (r *itemResource) toDriveItem() *types.DriveItem {
	item := &types.DriveItem{
		ID:               r.ID,
		Name:             r.Name,
		Size:             r.Size,
		WebURL:           r.WebURL,
		CreatedDateTime:  r.CreatedDateTime,
		ModifiedDateTime: r.LastModifiedDateTime,
	}
	if r.Folder != nil {
		item.IsFolder = true
		item.ChildCount = r.Folder.ChildCount
	}
	if r.ParentReference != nil {
		item.ParentID = r.ParentReference.ID
	}
	return item
}
