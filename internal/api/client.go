package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/jthake/odrv/internal/logging"
	"github.com/jthake/odrv/internal/types"
	"github.com/jthake/odrv/internal/utils"
	"golang.org/x/time/rate"
)

// ErrEmptyAccessToken is returned when a client is built without a token.
var ErrEmptyAccessToken = errors.New("access token is required")

const defaultTimeout = 60 * time.Second

// Client is a Microsoft Graph REST client. The access token is fixed for the
// client's lifetime; token refresh happens before a client is built, never
// mid-operation.
type Client struct {
	baseURL     string
	accessToken string
	httpClient  *http.Client
	limiter     *rate.Limiter
	maxRetries  int
	retryDelay  time.Duration
	logger      logging.Logger
}

// ClientOptions configures a Graph client
type ClientOptions struct {
	BaseURL           string
	HTTPClient        *http.Client
	MaxRetries        int
	RetryDelayMs      int
	RequestsPerSecond int
	RequestBurst      int
	Logger            logging.Logger
}

// NewClient creates a new Graph API client
func NewClient(accessToken string, opts ClientOptions) (*Client, error) {
	if accessToken == "" {
		return nil, ErrEmptyAccessToken
	}
	if opts.BaseURL == "" {
		opts.BaseURL = utils.GraphAPIBase
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: defaultTimeout}
	}
	if opts.MaxRetries == 0 {
		opts.MaxRetries = utils.DefaultMaxRetries
	}
	if opts.RetryDelayMs == 0 {
		opts.RetryDelayMs = utils.DefaultRetryDelayMs
	}
	if opts.RequestsPerSecond == 0 {
		opts.RequestsPerSecond = utils.DefaultRequestsPerSecond
	}
	if opts.RequestBurst == 0 {
		opts.RequestBurst = utils.DefaultRequestBurst
	}
	if opts.Logger == nil {
		opts.Logger = logging.NewNoOpLogger()
	}

	return &Client{
		baseURL:     opts.BaseURL,
		accessToken: accessToken,
		httpClient:  opts.HTTPClient,
		limiter:     rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), opts.RequestBurst),
		maxRetries:  opts.MaxRetries,
		retryDelay:  time.Duration(opts.RetryDelayMs) * time.Millisecond,
		logger:      opts.Logger,
	}, nil
}

// BaseURL returns the Graph API base URL
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Logger returns the client's logger
func (c *Client) Logger() logging.Logger {
	return c.logger
}

// MaxRetries returns the configured retry budget for whole-operation retries
func (c *Client) MaxRetries() int {
	return c.maxRetries
}

// Do issues a single HTTP request with the bearer token attached. Exactly one
// attempt: the status code is returned as-is and retry is the caller's
// decision. A connection-level failure comes back as *TransportError.
func (c *Client) Do(ctx context.Context, method, url string, headers map[string]string, body io.Reader) (*http.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("create request failed: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.accessToken)
	for header, value := range headers {
		req.Header.Set(header, value)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	return resp, nil
}

// DoJSON issues a request with an optional JSON body and decodes the JSON
// response into out. A status outside okStatuses yields
// *UnexpectedStatusError; an undecodable success body yields
// *MalformedResponseError.
func (c *Client) DoJSON(ctx context.Context, method, url string, headers map[string]string, reqBody, out interface{}, okStatuses ...int) error {
	var bodyReader io.Reader
	if reqBody != nil {
		data, err := json.Marshal(reqBody)
		if err != nil {
			return fmt.Errorf("marshal request failed: %w", err)
		}
		bodyReader = bytes.NewReader(data)
		if headers == nil {
			headers = map[string]string{}
		}
		if _, ok := headers["Content-Type"]; !ok {
			headers["Content-Type"] = "application/json"
		}
	}

	resp, err := c.Do(ctx, method, url, headers, bodyReader)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if !statusExpected(resp.StatusCode, okStatuses) {
		return ParseErrorResponse(resp)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &MalformedResponseError{Reason: "invalid JSON body", Err: err}
	}
	return nil
}

func statusExpected(status int, okStatuses []int) bool {
	for _, ok := range okStatuses {
		if status == ok {
			return true
		}
	}
	return false
}

// ParseErrorResponse builds an *UnexpectedStatusError from a non-success
// response, picking up the Graph error code and message when the body carries
// the standard error shape.
func ParseErrorResponse(resp *http.Response) error {
	var graphErr struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err == nil {
		_ = json.Unmarshal(body, &graphErr)
	}

	return &UnexpectedStatusError{
		StatusCode: resp.StatusCode,
		GraphCode:  graphErr.Error.Code,
		Message:    graphErr.Error.Message,
	}
}

// NewRequestContext creates a new request context with trace ID
func NewRequestContext(profile string, driveID string, requestType types.RequestType) *types.RequestContext {
	return &types.RequestContext{
		Profile:           profile,
		DriveID:           driveID,
		InvolvedItemIDs:   []string{},
		InvolvedParentIDs: []string{},
		RequestType:       requestType,
		TraceID:           uuid.New().String(),
	}
}

// ExecuteWithRetry executes a whole operation with retry logic. Engines never
// retry individual chunks or pages; this wrapper restarts the complete
// operation on retryable failures (429, 5xx, transport).
func ExecuteWithRetry[T any](ctx context.Context, client *Client, reqCtx *types.RequestContext, fn func() (T, error)) (T, error) {
	var result T
	var lastErr error

	logger := client.logger.WithTraceID(reqCtx.TraceID)
	logger.Info("API operation starting",
		logging.F("requestType", reqCtx.RequestType),
		logging.F("traceId", reqCtx.TraceID),
		logging.F("profile", reqCtx.Profile),
	)

	start := time.Now()

	for attempt := 0; attempt <= client.maxRetries; attempt++ {
		if attempt > 0 {
			logger.Warn("Retrying API operation",
				logging.F("attempt", attempt),
				logging.F("maxRetries", client.maxRetries),
			)
		}

		result, lastErr = fn()
		if lastErr == nil {
			duration := time.Since(start)
			logger.Info("API operation completed",
				logging.F("duration_ms", duration.Milliseconds()),
				logging.F("attempts", attempt+1),
			)
			return result, nil
		}

		if !IsRetryable(lastErr) {
			duration := time.Since(start)
			logger.Error("API operation failed (non-retryable)",
				logging.F("duration_ms", duration.Milliseconds()),
				logging.F("error", lastErr.Error()),
				logging.F("attempts", attempt+1),
			)
			return result, lastErr
		}

		if attempt < client.maxRetries {
			delay := calculateBackoff(client.retryDelay, attempt)
			logger.Warn("API operation failed (retryable)",
				logging.F("attempt", attempt+1),
				logging.F("delay_ms", delay.Milliseconds()),
				logging.F("error", lastErr.Error()),
			)
			select {
			case <-ctx.Done():
				return result, ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	duration := time.Since(start)
	logger.Error("API operation failed after max retries",
		logging.F("duration_ms", duration.Milliseconds()),
		logging.F("attempts", client.maxRetries+1),
		logging.F("error", lastErr.Error()),
	)

	return result, lastErr
}

// IsRetryable checks if an error is worth retrying the whole operation for
func IsRetryable(err error) bool {
	var transportErr *TransportError
	if errors.As(err, &transportErr) {
		return true
	}
	var statusErr *UnexpectedStatusError
	if errors.As(err, &statusErr) {
		switch statusErr.StatusCode {
		case 429, 500, 502, 503, 504:
			return true
		}
	}
	return false
}

// calculateBackoff calculates the retry delay with exponential backoff
func calculateBackoff(baseDelay time.Duration, attempt int) time.Duration {
	delay := baseDelay * time.Duration(math.Pow(2, float64(attempt)))

	if delay > time.Duration(utils.MaxRetryDelayMs)*time.Millisecond {
		delay = time.Duration(utils.MaxRetryDelayMs) * time.Millisecond
	}

	// Add jitter (±25% of delay)
	jitterRange := delay / 4
	jitter := time.Duration(rand.Int63n(int64(jitterRange*2))) - jitterRange
	delay = delay + jitter

	if delay < 0 {
		delay = baseDelay
	}

	return delay
}
