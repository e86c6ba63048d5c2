package resolver

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/jthake/odrv/internal/api"
	"github.com/jthake/odrv/internal/types"
)

// PathResolver resolves app-folder-relative paths to item IDs. The service
// resolves paths itself, so this is a single lookup per path plus a small
// TTL cache for repeated invocations.
type PathResolver struct {
	client   *api.Client
	cache    *pathCache
	cacheTTL time.Duration
}

type pathCache struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry
}

type cacheEntry struct {
	itemID    string
	timestamp time.Time
}

// NewPathResolver creates a new path resolver
func NewPathResolver(client *api.Client, cacheTTL time.Duration) *PathResolver {
	return &PathResolver{
		client:   client,
		cacheTTL: cacheTTL,
		cache: &pathCache{
			entries: make(map[string]cacheEntry),
		},
	}
}

// ResolveResult contains path resolution results
type ResolveResult struct {
	ItemID string
	Item   *types.DriveItem
	Cached bool
}

// Resolve resolves an app-folder-relative path like "reports/q3.pdf" to an
// item. An empty path resolves to the app folder itself. A 404 surfaces as
// api.ErrResourceNotFound.
func (r *PathResolver) Resolve(ctx context.Context, reqCtx *types.RequestContext, path string) (*ResolveResult, error) {
	path = normalizePath(path)

	if cached, ok := r.checkCache(path); ok {
		return &ResolveResult{ItemID: cached, Cached: true}, nil
	}

	reqURL := fmt.Sprintf("%s/me/drive/special/approot:/", r.client.BaseURL())
	if path != "" {
		reqURL = fmt.Sprintf("%s/me/drive/special/approot:/%s", r.client.BaseURL(), escapePath(path))
	}

	var parsed struct {
		ID                   string `json:"id"`
		Name                 string `json:"name"`
		Size                 int64  `json:"size"`
		WebURL               string `json:"webUrl"`
		LastModifiedDateTime string `json:"lastModifiedDateTime"`
		Folder               *struct {
			ChildCount int64 `json:"childCount"`
		} `json:"folder"`
	}
	err := r.client.DoJSON(ctx, "GET", reqURL, nil, nil, &parsed, 200)
	if err != nil {
		var statusErr *api.UnexpectedStatusError
		if errors.As(err, &statusErr) && statusErr.StatusCode == 404 {
			return nil, api.ErrResourceNotFound
		}
		return nil, err
	}
	if parsed.ID == "" {
		return nil, &api.MalformedResponseError{Reason: "path lookup response missing id"}
	}

	item := &types.DriveItem{
		ID:               parsed.ID,
		Name:             parsed.Name,
		Size:             parsed.Size,
		WebURL:           parsed.WebURL,
		ModifiedDateTime: parsed.LastModifiedDateTime,
	}
	if parsed.Folder != nil {
		item.IsFolder = true
		item.ChildCount = parsed.Folder.ChildCount
	}

	r.updateCache(path, parsed.ID)
	return &ResolveResult{ItemID: parsed.ID, Item: item}, nil
}

func (r *PathResolver) checkCache(path string) (string, bool) {
	r.cache.mu.RLock()
	defer r.cache.mu.RUnlock()

	entry, ok := r.cache.entries[path]
	if !ok {
		return "", false
	}
	if time.Since(entry.timestamp) > r.cacheTTL {
		return "", false
	}
	return entry.itemID, true
}

func (r *PathResolver) updateCache(path, itemID string) {
	r.cache.mu.Lock()
	defer r.cache.mu.Unlock()

	r.cache.entries[path] = cacheEntry{
		itemID:    itemID,
		timestamp: time.Now(),
	}
}

// InvalidateCache removes a path from the cache
func (r *PathResolver) InvalidateCache(path string) {
	r.cache.mu.Lock()
	defer r.cache.mu.Unlock()

	delete(r.cache.entries, normalizePath(path))
}

// ClearCache removes all cached entries
func (r *PathResolver) ClearCache() {
	r.cache.mu.Lock()
	defer r.cache.mu.Unlock()

	r.cache.entries = make(map[string]cacheEntry)
}

func normalizePath(path string) string {
	path = strings.TrimPrefix(path, "/")
	path = strings.TrimSuffix(path, "/")
	return path
}

// escapePath escapes each segment while keeping separators intact
func escapePath(path string) string {
	segments := strings.Split(path, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return strings.Join(segments, "/")
}
