package folders

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jthake/odrv/internal/api"
	"github.com/jthake/odrv/internal/types"
)

func newTestClient(t *testing.T, baseURL string) *api.Client {
	t.Helper()
	client, err := api.NewClient("test-token", api.ClientOptions{
		BaseURL:           baseURL,
		RequestsPerSecond: 1000,
		RequestBurst:      1000,
	})
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	return client
}

func lookupRequestContext() *types.RequestContext {
	return api.NewRequestContext("default", "", types.RequestTypeItemLookup)
}

func TestGetAppFolder(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/me/drive/special/approot:/" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		fmt.Fprint(w, `{"id": "approot-1", "name": "MyApp", "folder": {"childCount": 3}, "webUrl": "https://contoso-my.sharepoint.com/approot"}`)
	}))
	defer server.Close()

	manager := NewManager(newTestClient(t, server.URL))
	item, err := manager.GetAppFolder(context.Background(), lookupRequestContext())
	if err != nil {
		t.Fatalf("GetAppFolder failed: %v", err)
	}

	if item.ID != "approot-1" {
		t.Errorf("unexpected ID %q", item.ID)
	}
	if !item.IsFolder {
		t.Error("app folder should be marked as a folder")
	}
	if item.ChildCount != 3 {
		t.Errorf("ChildCount = %d, want 3", item.ChildCount)
	}
}

func TestGetAppFolder_404MapsToResourceNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"error": {"code": "itemNotFound", "message": "The resource could not be found."}}`)
	}))
	defer server.Close()

	manager := NewManager(newTestClient(t, server.URL))
	_, err := manager.GetAppFolder(context.Background(), lookupRequestContext())

	if !errors.Is(err, api.ErrResourceNotFound) {
		t.Fatalf("expected ErrResourceNotFound, got %v", err)
	}
}

func TestGetAppFolder_OtherStatusesStayUnexpected(t *testing.T) {
	for _, status := range []int{401, 403, 500} {
		t.Run(fmt.Sprintf("status %d", status), func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(status)
			}))
			defer server.Close()

			manager := NewManager(newTestClient(t, server.URL))
			_, err := manager.GetAppFolder(context.Background(), lookupRequestContext())

			if errors.Is(err, api.ErrResourceNotFound) {
				t.Fatalf("status %d must not map to ErrResourceNotFound", status)
			}
			var statusErr *api.UnexpectedStatusError
			if !errors.As(err, &statusErr) {
				t.Fatalf("expected UnexpectedStatusError, got %v", err)
			}
			if statusErr.StatusCode != status {
				t.Errorf("StatusCode = %d, want %d", statusErr.StatusCode, status)
			}
		})
	}
}

func TestCreate(t *testing.T) {
	var gotMethod, gotPath string
	var gotBody []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusCreated)
		fmt.Fprint(w, `{"id": "folder-1", "name": "Reports", "folder": {"childCount": 0}, "parentReference": {"id": "approot-1"}}`)
	}))
	defer server.Close()

	manager := NewManager(newTestClient(t, server.URL))
	item, err := manager.Create(context.Background(), lookupRequestContext(), "Reports")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if gotMethod != "PUT" {
		t.Errorf("method = %q, want PUT", gotMethod)
	}
	if gotPath != "/me/drive/special/approot:/Reports" {
		t.Errorf("unexpected path %q", gotPath)
	}
	for _, fragment := range []string{`"name":"Reports"`, `"folder":{}`, `"@name.conflictBehavior":"rename"`} {
		if !bytes.Contains(gotBody, []byte(fragment)) {
			t.Errorf("request body missing %s: %s", fragment, gotBody)
		}
	}
	if item.ParentID != "approot-1" {
		t.Errorf("ParentID = %q, want approot-1", item.ParentID)
	}
}

func TestListChildren_FollowsPages(t *testing.T) {
	var requests []string
	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests = append(requests, r.URL.String())
		if len(requests) == 1 {
			fmt.Fprintf(w, `{
				"value": [{"id": "c1", "name": "one"}, {"id": "c2", "name": "two", "folder": {}}],
				"@odata.nextLink": "%s/children?skip=2"
			}`, server.URL)
			return
		}
		fmt.Fprint(w, `{"value": [{"id": "c3", "name": "three"}]}`)
	}))
	defer server.Close()

	manager := NewManager(newTestClient(t, server.URL))
	list, err := manager.ListChildren(context.Background(), lookupRequestContext(), "folder-1")
	if err != nil {
		t.Fatalf("ListChildren failed: %v", err)
	}

	if len(requests) != 2 {
		t.Fatalf("expected 2 requests, got %d", len(requests))
	}
	if requests[1] != "/children?skip=2" {
		t.Errorf("next link not followed verbatim, got %q", requests[1])
	}
	if len(list.Items) != 3 {
		t.Fatalf("expected 3 children, got %d", len(list.Items))
	}
	if list.Items[0].ID != "c1" || list.Items[2].ID != "c3" {
		t.Errorf("children out of order: %v", list.Items)
	}
	if !list.Items[1].IsFolder {
		t.Error("second child should be a folder")
	}
}

func TestListChildren_EntryWithoutIDIsMalformed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"value": [{"name": "nameless"}]}`)
	}))
	defer server.Close()

	manager := NewManager(newTestClient(t, server.URL))
	_, err := manager.ListChildren(context.Background(), lookupRequestContext(), "folder-1")

	var malformed *api.MalformedResponseError
	if !errors.As(err, &malformed) {
		t.Fatalf("expected MalformedResponseError, got %v", err)
	}
}
