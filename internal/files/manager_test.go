package files

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
	"github.com/jthake/odrv/internal/utils"
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

func uploadRequestContext() *types.RequestContext {
	return api.NewRequestContext("default", "", types.RequestTypeUploadSession)
}

// chunkRecord captures one chunk PUT as seen by the server
type chunkRecord struct {
	contentRange string
	body         []byte
}

// sessionServer acks each chunk with the next expected offset and finishes
// with a driveItem once all bytes have arrived. nextOffset lets tests override
// the offset the server reports after a given request.
func sessionServer(t *testing.T, total int64, records *[]chunkRecord, nextOffset func(requestNum int, received int64) int64) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			t.Errorf("read chunk body: %v", err)
		}
		*records = append(*records, chunkRecord{
			contentRange: r.Header.Get("Content-Range"),
			body:         body,
		})

		var start, end, rangeTotal int64
		if _, err := fmt.Sscanf(r.Header.Get("Content-Range"), "bytes %d-%d/%d", &start, &end, &rangeTotal); err != nil {
			t.Errorf("unparseable Content-Range %q: %v", r.Header.Get("Content-Range"), err)
		}
		if rangeTotal != total {
			t.Errorf("Content-Range total = %d, want %d", rangeTotal, total)
		}

		received := end + 1
		if nextOffset != nil {
			received = nextOffset(len(*records), received)
		}

		w.Header().Set("Content-Type", "application/json")
		if received >= total {
			fmt.Fprint(w, `{"id": "item-1", "name": "big.bin", "webUrl": "https://contoso-my.sharepoint.com/f/item-1"}`)
			return
		}
		w.WriteHeader(http.StatusAccepted)
		fmt.Fprintf(w, `{"nextExpectedRanges": ["%d-%d"]}`, received, total-1)
	}))
}

func TestUploadBytes_ChunksTileThePayload(t *testing.T) {
	chunkSize := int64(utils.UploadChunkAlignment)
	total := chunkSize*2 + chunkSize/2

	data := make([]byte, total)
	for i := range data {
		data[i] = byte(i % 251)
	}

	var records []chunkRecord
	server := sessionServer(t, total, &records, nil)
	defer server.Close()

	manager := NewManager(newTestClient(t, server.URL))
	result, err := manager.UploadBytes(context.Background(), uploadRequestContext(), server.URL+"/session", data, UploadOptions{ChunkSize: chunkSize})
	if err != nil {
		t.Fatalf("UploadBytes failed: %v", err)
	}

	// ceil(total/chunkSize) requests, no more
	if len(records) != 3 {
		t.Fatalf("expected 3 chunk requests, got %d", len(records))
	}

	wantRanges := []string{
		fmt.Sprintf("bytes 0-%d/%d", chunkSize-1, total),
		fmt.Sprintf("bytes %d-%d/%d", chunkSize, 2*chunkSize-1, total),
		fmt.Sprintf("bytes %d-%d/%d", 2*chunkSize, total-1, total),
	}
	var reassembled []byte
	for i, rec := range records {
		if rec.contentRange != wantRanges[i] {
			t.Errorf("chunk %d: Content-Range = %q, want %q", i, rec.contentRange, wantRanges[i])
		}
		reassembled = append(reassembled, rec.body...)
	}
	if !bytes.Equal(reassembled, data) {
		t.Error("reassembled chunks do not equal the original payload")
	}

	if result.WebURL != "https://contoso-my.sharepoint.com/f/item-1" {
		t.Errorf("unexpected webUrl %q", result.WebURL)
	}
	if result.RemoteID != "item-1" {
		t.Errorf("unexpected remote ID %q", result.RemoteID)
	}
}

func TestUploadBytes_ExactMultipleTerminates(t *testing.T) {
	chunkSize := int64(utils.UploadChunkAlignment)
	total := chunkSize * 4
	data := make([]byte, total)

	var records []chunkRecord
	server := sessionServer(t, total, &records, nil)
	defer server.Close()

	manager := NewManager(newTestClient(t, server.URL))
	_, err := manager.UploadBytes(context.Background(), uploadRequestContext(), server.URL+"/session", data, UploadOptions{ChunkSize: chunkSize})
	if err != nil {
		t.Fatalf("UploadBytes failed: %v", err)
	}
	if len(records) != 4 {
		t.Errorf("expected 4 chunk requests, got %d", len(records))
	}

	last := records[len(records)-1].contentRange
	want := fmt.Sprintf("bytes %d-%d/%d", total-chunkSize, total-1, total)
	if last != want {
		t.Errorf("final Content-Range = %q, want %q", last, want)
	}
}

func TestUploadBytes_SinglePayloadSmallerThanChunk(t *testing.T) {
	chunkSize := int64(utils.UploadChunkAlignment)
	total := int64(1000)
	data := make([]byte, total)

	var records []chunkRecord
	server := sessionServer(t, total, &records, nil)
	defer server.Close()

	manager := NewManager(newTestClient(t, server.URL))
	_, err := manager.UploadBytes(context.Background(), uploadRequestContext(), server.URL+"/session", data, UploadOptions{ChunkSize: chunkSize})
	if err != nil {
		t.Fatalf("UploadBytes failed: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 chunk request, got %d", len(records))
	}
	if records[0].contentRange != fmt.Sprintf("bytes 0-999/%d", total) {
		t.Errorf("Content-Range = %q", records[0].contentRange)
	}
}

func TestUploadBytes_ServerOffsetWins(t *testing.T) {
	chunkSize := int64(utils.UploadChunkAlignment)
	total := chunkSize * 3
	data := make([]byte, total)
	for i := range data {
		data[i] = byte(i % 127)
	}

	// After the second chunk the server claims it only holds the first chunk,
	// so the engine must re-send from chunkSize rather than advancing.
	var records []chunkRecord
	server := sessionServer(t, total, &records, func(requestNum int, received int64) int64 {
		if requestNum == 2 {
			return chunkSize
		}
		return received
	})
	defer server.Close()

	manager := NewManager(newTestClient(t, server.URL))
	_, err := manager.UploadBytes(context.Background(), uploadRequestContext(), server.URL+"/session", data, UploadOptions{ChunkSize: chunkSize})
	if err != nil {
		t.Fatalf("UploadBytes failed: %v", err)
	}

	if len(records) != 4 {
		t.Fatalf("expected 4 chunk requests, got %d", len(records))
	}
	wantThird := fmt.Sprintf("bytes %d-%d/%d", chunkSize, 2*chunkSize-1, total)
	if records[2].contentRange != wantThird {
		t.Errorf("chunk after rollback: Content-Range = %q, want %q", records[2].contentRange, wantThird)
	}
	if !bytes.Equal(records[2].body, data[chunkSize:2*chunkSize]) {
		t.Error("re-sent chunk does not carry the bytes at the server-reported offset")
	}
}

func TestUploadBytes_RejectsEmptyPayload(t *testing.T) {
	manager := NewManager(newTestClient(t, "https://example.invalid"))
	_, err := manager.UploadBytes(context.Background(), uploadRequestContext(), "https://example.invalid/session", nil, UploadOptions{})

	var appErr *utils.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("expected AppError, got %v", err)
	}
	if appErr.CLIError.Code != utils.ErrCodeInvalidArgument {
		t.Errorf("expected code %s, got %s", utils.ErrCodeInvalidArgument, appErr.CLIError.Code)
	}
}

func TestUploadBytes_RejectsMisalignedChunkSize(t *testing.T) {
	tests := []struct {
		name      string
		chunkSize int64
	}{
		{"negative", -1},
		{"not a multiple", utils.UploadChunkAlignment + 1},
		{"below alignment", utils.UploadChunkAlignment / 2},
	}

	manager := NewManager(newTestClient(t, "https://example.invalid"))
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := manager.UploadBytes(context.Background(), uploadRequestContext(), "https://example.invalid/session", []byte("x"), UploadOptions{ChunkSize: tt.chunkSize})

			var appErr *utils.AppError
			if !errors.As(err, &appErr) {
				t.Fatalf("expected AppError, got %v", err)
			}
			if appErr.CLIError.Code != utils.ErrCodeInvalidArgument {
				t.Errorf("expected code %s, got %s", utils.ErrCodeInvalidArgument, appErr.CLIError.Code)
			}
		})
	}
}

func TestUploadBytes_MalformedChunkResponses(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"neither webUrl nor ranges", `{"id": "item-1"}`},
		{"empty ranges", `{"nextExpectedRanges": []}`},
		{"garbage range", `{"nextExpectedRanges": ["soon-ish"]}`},
		{"offset past payload", `{"nextExpectedRanges": ["99999999-"]}`},
		{"not JSON", `<html>busy</html>`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusAccepted)
				fmt.Fprint(w, tt.body)
			}))
			defer server.Close()

			manager := NewManager(newTestClient(t, server.URL))
			data := make([]byte, utils.UploadChunkAlignment)
			_, err := manager.UploadBytes(context.Background(), uploadRequestContext(), server.URL+"/session", data, UploadOptions{})

			var malformed *api.MalformedResponseError
			if !errors.As(err, &malformed) {
				t.Fatalf("expected MalformedResponseError, got %v", err)
			}
		})
	}
}

func TestUploadBytes_ErrorStatusEndsUpload(t *testing.T) {
	requests := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		w.WriteHeader(http.StatusServiceUnavailable)
		fmt.Fprint(w, `{"error": {"code": "serviceNotAvailable", "message": "try later"}}`)
	}))
	defer server.Close()

	manager := NewManager(newTestClient(t, server.URL))
	data := make([]byte, utils.UploadChunkAlignment)
	_, err := manager.UploadBytes(context.Background(), uploadRequestContext(), server.URL+"/session", data, UploadOptions{})

	var statusErr *api.UnexpectedStatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("expected UnexpectedStatusError, got %v", err)
	}
	if statusErr.StatusCode != 503 {
		t.Errorf("expected status 503, got %d", statusErr.StatusCode)
	}
	// No chunk-level retry inside the engine
	if requests != 1 {
		t.Errorf("expected exactly 1 request, got %d", requests)
	}
}

func TestUploadBytes_ProgressReportsCoveredBytes(t *testing.T) {
	chunkSize := int64(utils.UploadChunkAlignment)
	total := chunkSize + 100
	data := make([]byte, total)

	var records []chunkRecord
	server := sessionServer(t, total, &records, nil)
	defer server.Close()

	var progress []int64
	manager := NewManager(newTestClient(t, server.URL))
	_, err := manager.UploadBytes(context.Background(), uploadRequestContext(), server.URL+"/session", data, UploadOptions{
		ChunkSize: chunkSize,
		Progress: func(sent, reportedTotal int64) {
			if reportedTotal != total {
				t.Errorf("progress total = %d, want %d", reportedTotal, total)
			}
			progress = append(progress, sent)
		},
	})
	if err != nil {
		t.Fatalf("UploadBytes failed: %v", err)
	}

	if len(progress) != 2 || progress[0] != chunkSize || progress[1] != total {
		t.Errorf("unexpected progress sequence %v", progress)
	}
}

func TestCreateUploadSession(t *testing.T) {
	var gotPath string
	var gotBody []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.EscapedPath()
		gotBody, _ = io.ReadAll(r.Body)
		fmt.Fprint(w, `{"uploadUrl": "https://upload.example/session/abc", "expirationDateTime": "2026-09-02T00:00:00Z"}`)
	}))
	defer server.Close()

	manager := NewManager(newTestClient(t, server.URL))
	session, err := manager.CreateUploadSession(context.Background(), uploadRequestContext(), "big file.bin")
	if err != nil {
		t.Fatalf("CreateUploadSession failed: %v", err)
	}

	if gotPath != "/me/drive/special/approot:/big%20file.bin:/createUploadSession" {
		t.Errorf("unexpected path %q", gotPath)
	}
	if !bytes.Contains(gotBody, []byte(`"@microsoft.graph.conflictBehavior":"rename"`)) {
		t.Errorf("request body missing conflict behavior: %s", gotBody)
	}
	if session.UploadURL != "https://upload.example/session/abc" {
		t.Errorf("unexpected upload URL %q", session.UploadURL)
	}
}

func TestCreateUploadSession_MissingUploadURL(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"expirationDateTime": "2026-09-02T00:00:00Z"}`)
	}))
	defer server.Close()

	manager := NewManager(newTestClient(t, server.URL))
	_, err := manager.CreateUploadSession(context.Background(), uploadRequestContext(), "big.bin")

	var malformed *api.MalformedResponseError
	if !errors.As(err, &malformed) {
		t.Fatalf("expected MalformedResponseError, got %v", err)
	}
}

func TestPutContent(t *testing.T) {
	var gotPath, gotContentType string
	var gotBody []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotContentType = r.Header.Get("Content-Type")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusCreated)
		fmt.Fprint(w, `{"id": "item-9", "name": "note.txt", "size": 5, "webUrl": "https://contoso-my.sharepoint.com/f/item-9"}`)
	}))
	defer server.Close()

	manager := NewManager(newTestClient(t, server.URL))
	item, err := manager.PutContent(context.Background(), uploadRequestContext(), "note.txt", "text/plain", []byte("hello"))
	if err != nil {
		t.Fatalf("PutContent failed: %v", err)
	}

	if gotPath != "/me/drive/special/approot:/note.txt:/content" {
		t.Errorf("unexpected path %q", gotPath)
	}
	if gotContentType != "text/plain" {
		t.Errorf("unexpected content type %q", gotContentType)
	}
	if string(gotBody) != "hello" {
		t.Errorf("unexpected body %q", gotBody)
	}
	if item.WebURL != "https://contoso-my.sharepoint.com/f/item-9" {
		t.Errorf("unexpected webUrl %q", item.WebURL)
	}
}

func TestPutContent_MissingWebURLIsMalformed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"id": "item-9", "name": "note.txt"}`)
	}))
	defer server.Close()

	manager := NewManager(newTestClient(t, server.URL))
	_, err := manager.PutContent(context.Background(), uploadRequestContext(), "note.txt", "", []byte("hello"))

	var malformed *api.MalformedResponseError
	if !errors.As(err, &malformed) {
		t.Fatalf("expected MalformedResponseError, got %v", err)
	}
}

func TestCreateSharingLink(t *testing.T) {
	var gotBody []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		fmt.Fprint(w, `{"id": "perm-1", "link": {"type": "view", "scope": "anonymous", "webUrl": "https://1drv.ms/u/s!abc"}}`)
	}))
	defer server.Close()

	manager := NewManager(newTestClient(t, server.URL))
	link, err := manager.CreateSharingLink(context.Background(), uploadRequestContext(), "item-1", "", "")
	if err != nil {
		t.Fatalf("CreateSharingLink failed: %v", err)
	}

	if !bytes.Contains(gotBody, []byte(`"type":"view"`)) || !bytes.Contains(gotBody, []byte(`"scope":"anonymous"`)) {
		t.Errorf("defaults not applied in request body: %s", gotBody)
	}
	if link.WebURL != "https://1drv.ms/u/s!abc" {
		t.Errorf("unexpected link URL %q", link.WebURL)
	}
}

func TestNextOffsetFromRanges(t *testing.T) {
	tests := []struct {
		name      string
		ranges    []string
		want      int64
		shouldErr bool
	}{
		{"open-ended range", []string{"327680-"}, 327680, false},
		{"bounded range", []string{"0-655359"}, 0, false},
		{"multiple ranges uses first", []string{"1000-1999", "3000-"}, 1000, false},
		{"empty", nil, 0, true},
		{"non-numeric", []string{"abc-def"}, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := nextOffsetFromRanges(tt.ranges)
			if (err != nil) != tt.shouldErr {
				t.Fatalf("nextOffsetFromRanges(%v) error = %v, shouldErr %v", tt.ranges, err, tt.shouldErr)
			}
			if !tt.shouldErr && got != tt.want {
				t.Errorf("nextOffsetFromRanges(%v) = %d, want %d", tt.ranges, got, tt.want)
			}
		})
	}
}
