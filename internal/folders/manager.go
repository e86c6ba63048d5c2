package folders

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/jthake/odrv/internal/api"
	"github.com/jthake/odrv/internal/types"
)

// Manager handles folder operations
type Manager struct {
	client *api.Client
}

// NewManager creates a new folder manager
func NewManager(client *api.Client) *Manager {
	return &Manager{client: client}
}

// GetAppFolder resolves the application's special folder. A 404 means the
// app folder has never been provisioned and maps to ErrResourceNotFound,
// distinct from every other non-success status.
func (m *Manager) GetAppFolder(ctx context.Context, reqCtx *types.RequestContext) (*types.DriveItem, error) {
	reqURL := fmt.Sprintf("%s/me/drive/special/approot:/", m.client.BaseURL())
	headers := map[string]string{"Accept": "application/json, text/plain, */*"}

	var parsed itemResource
	err := m.client.DoJSON(ctx, "GET", reqURL, headers, nil, &parsed, 200)
	if err != nil {
		var statusErr *api.UnexpectedStatusError
		if errors.As(err, &statusErr) && statusErr.StatusCode == 404 {
			return nil, api.ErrResourceNotFound
		}
		return nil, err
	}
	if parsed.ID == "" {
		return nil, &api.MalformedResponseError{Reason: "app folder response missing id"}
	}
	return parsed.toDriveItem(), nil
}

// Create creates a folder inside the app folder. Name conflicts are resolved
// by renaming.
func (m *Manager) Create(ctx context.Context, reqCtx *types.RequestContext, name string) (*types.DriveItem, error) {
	reqURL := fmt.Sprintf("%s/me/drive/special/approot:/%s", m.client.BaseURL(), url.PathEscape(name))

	reqBody := map[string]interface{}{
		"name":                   name,
		"folder":                 map[string]string{},
		"@name.conflictBehavior": "rename",
	}

	var parsed itemResource
	if err := m.client.DoJSON(ctx, "PUT", reqURL, nil, reqBody, &parsed, 200, 201); err != nil {
		return nil, err
	}
	if parsed.ID == "" {
		return nil, &api.MalformedResponseError{Reason: "folder response missing id"}
	}
	return parsed.toDriveItem(), nil
}

// ListChildren lists a folder's children, following @odata.nextLink pages
func (m *Manager) ListChildren(ctx context.Context, reqCtx *types.RequestContext, folderID string) (*types.DriveItemList, error) {
	reqCtx.InvolvedParentIDs = append(reqCtx.InvolvedParentIDs, folderID)

	nextURL := fmt.Sprintf("%s/me/drive/items/%s/children", m.client.BaseURL(), url.PathEscape(folderID))
	result := &types.DriveItemList{}

	for nextURL != "" {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		var page struct {
			Value    []itemResource `json:"value"`
			NextLink string         `json:"@odata.nextLink"`
		}
		if err := m.client.DoJSON(ctx, "GET", nextURL, map[string]string{"Accept": "application/json"}, nil, &page, 200); err != nil {
			return nil, err
		}

		for i := range page.Value {
			if page.Value[i].ID == "" {
				return nil, &api.MalformedResponseError{Reason: "child entry missing id"}
			}
			result.Items = append(result.Items, page.Value[i].toDriveItem())
		}
		// Next-link is opaque; replayed verbatim
		nextURL = page.NextLink
	}

	return result, nil
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
