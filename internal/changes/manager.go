package changes

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/jthake/odrv/internal/api"
	"github.com/jthake/odrv/internal/logging"
	"github.com/jthake/odrv/internal/types"
	"github.com/jthake/odrv/internal/utils"
)

// Manager walks the drive change feed
type Manager struct {
	client   *api.Client
	location *time.Location
}

// NewManager creates a new change-feed manager. Timestamps are rendered in the
// process-local zone.
func NewManager(client *api.Client) *Manager {
	return &Manager{client: client, location: time.Local}
}

// WithLocation overrides the zone used to render change timestamps
func (m *Manager) WithLocation(loc *time.Location) *Manager {
	m.location = loc
	return m
}

// deltaPage is one page of the change feed. Folder and Deleted are pointers
// because only key presence carries meaning, not the facet contents.
type deltaPage struct {
	Value []struct {
		ID                   string  `json:"id"`
		Name                 *string `json:"name"`
		LastModifiedDateTime string  `json:"lastModifiedDateTime"`
		Folder               *struct {
			ChildCount int64 `json:"childCount"`
		} `json:"folder"`
		Deleted *struct {
			State string `json:"state"`
		} `json:"deleted"`
		ParentReference *struct {
			ID string `json:"id"`
		} `json:"parentReference"`
	} `json:"value"`
	NextLink   string  `json:"@odata.nextLink"`
	DeltaToken *string `json:"@delta.token"`
}

// Delta walks the change feed from syncToken (empty for a full enumeration)
// until the service stops returning a next link. Items accumulate in arrival
// order across pages, and the returned sync token is the one carried by the
// last page. Pagination is bounded by opts.MaxPages so a misbehaving feed
// cannot loop forever.
func (m *Manager) Delta(ctx context.Context, reqCtx *types.RequestContext, syncToken string, opts types.DeltaOptions) (*types.DeltaResult, error) {
	maxPages := opts.MaxPages
	if maxPages <= 0 {
		maxPages = utils.DefaultMaxDeltaPages
	}

	logger := m.client.Logger().WithTraceID(reqCtx.TraceID)

	reqURL := fmt.Sprintf("%s/me/drive/root/view.delta", m.client.BaseURL())
	if syncToken != "" {
		reqURL += "?token=" + url.QueryEscape(syncToken)
	}

	result := &types.DeltaResult{Items: []types.DeltaItem{}}
	pages := 0

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if pages >= maxPages {
			return nil, utils.NewAppError(utils.NewCLIError(utils.ErrCodeResourceLimit,
				fmt.Sprintf("Change feed exceeded %d pages without completing", maxPages)).
				WithContext("traceId", reqCtx.TraceID).
				WithContext("suggestedAction", "raise max_delta_pages in config or reset the sync token").
				Build())
		}

		var page deltaPage
		headers := map[string]string{"Accept": "application/json, text/plain, */*"}
		if err := m.client.DoJSON(ctx, "GET", reqURL, headers, nil, &page, 200); err != nil {
			return nil, err
		}
		pages++

		// Every page must carry a token, even mid-chain; its absence means
		// the feed cannot be resumed and the whole walk is unusable.
		if page.DeltaToken == nil || *page.DeltaToken == "" {
			return nil, &api.MalformedResponseError{Reason: "delta page missing @delta.token"}
		}
		result.SyncToken = *page.DeltaToken

		for _, entry := range page.Value {
			if entry.ID == "" {
				return nil, &api.MalformedResponseError{Reason: "delta entry missing id"}
			}
			if entry.LastModifiedDateTime == "" {
				return nil, &api.MalformedResponseError{Reason: "delta entry missing lastModifiedDateTime"}
			}

			modified, err := FormatChangeTime(entry.LastModifiedDateTime, m.location)
			if err != nil {
				return nil, &api.MalformedResponseError{
					Reason: fmt.Sprintf("unparseable lastModifiedDateTime %q", entry.LastModifiedDateTime),
					Err:    err,
				}
			}

			item := types.DeltaItem{
				ID:           entry.ID,
				Name:         entry.Name,
				IsFolder:     entry.Folder != nil,
				IsDelete:     entry.Deleted != nil,
				LastModified: modified,
			}
			if entry.ParentReference != nil {
				item.ParentID = &entry.ParentReference.ID
			}
			result.Items = append(result.Items, item)
		}

		logger.Debug("Delta page processed",
			logging.F("page", pages),
			logging.F("entries", len(page.Value)),
			logging.F("hasNext", page.NextLink != ""),
		)

		if page.NextLink == "" {
			break
		}
		// The next link is opaque and pre-signed; follow it verbatim
		reqURL = page.NextLink
	}

	logger.Info("Change feed walked",
		logging.F("pages", pages),
		logging.F("items", len(result.Items)),
	)
	return result, nil
}

// FormatChangeTime converts a service timestamp (UTC, "2006-01-02T15:04:05Z")
// to a civil local time string in loc
func FormatChangeTime(value string, loc *time.Location) (string, error) {
	t, err := time.Parse("2006-01-02T15:04:05Z", value)
	if err != nil {
		return "", err
	}
	return t.In(loc).Format("2006-01-02 15:04:05"), nil
}
