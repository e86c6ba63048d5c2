package errors

import (
	"context"
	"errors"

	"github.com/jthake/odrv/internal/api"
	"github.com/jthake/odrv/internal/logging"
	"github.com/jthake/odrv/internal/types"
	"github.com/jthake/odrv/internal/utils"
)

// ClassifyGraphError converts API-layer errors into stable CLI errors
func ClassifyGraphError(err error, reqCtx *types.RequestContext, logger logging.Logger) error {
	var appErr *utils.AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return utils.NewAppError(utils.NewCLIError(utils.ErrCodeCancelled, err.Error()).
			WithContext("traceId", reqCtx.TraceID).
			Build())
	}

	if errors.Is(err, api.ErrResourceNotFound) {
		return utils.NewAppError(utils.NewCLIError(utils.ErrCodeResourceNotFound,
			"Remote item not found").
			WithHTTPStatus(404).
			WithContext("traceId", reqCtx.TraceID).
			WithContext("suggestedAction", "verify the item exists and the app has access to it").
			Build())
	}

	var malformedErr *api.MalformedResponseError
	if errors.As(err, &malformedErr) {
		logger.Error("Malformed API response",
			logging.F("reason", malformedErr.Reason),
			logging.F("traceId", reqCtx.TraceID),
		)
		return utils.NewAppError(utils.NewCLIError(utils.ErrCodeMalformedResponse, malformedErr.Error()).
			WithContext("traceId", reqCtx.TraceID).
			WithContext("requestType", string(reqCtx.RequestType)).
			Build())
	}

	var statusErr *api.UnexpectedStatusError
	if errors.As(err, &statusErr) {
		return classifyStatus(statusErr, reqCtx, logger)
	}

	var transportErr *api.TransportError
	if errors.As(err, &transportErr) {
		logger.Error("Transport error",
			logging.F("error", transportErr.Error()),
			logging.F("traceId", reqCtx.TraceID),
		)
		return utils.NewAppError(utils.NewCLIError(utils.ErrCodeNetworkError, transportErr.Error()).
			WithRetryable(true).
			WithContext("traceId", reqCtx.TraceID).
			WithContext("suggestedAction", "check network connectivity and retry").
			Build())
	}

	logger.Error("Unclassified error",
		logging.F("error", err.Error()),
		logging.F("traceId", reqCtx.TraceID),
	)
	return utils.NewAppError(utils.NewCLIError(utils.ErrCodeUnknown, err.Error()).
		WithContext("traceId", reqCtx.TraceID).
		Build())
}

func classifyStatus(statusErr *api.UnexpectedStatusError, reqCtx *types.RequestContext, logger logging.Logger) error {
	var code string
	var retryable bool

	switch statusErr.StatusCode {
	case 400:
		code = utils.ErrCodeInvalidArgument
	case 401:
		code = utils.ErrCodeAuthExpired
	case 403:
		code = utils.ErrCodePermissionDenied
	case 404:
		code = utils.ErrCodeUnexpectedStatus
	case 409:
		code = utils.ErrCodeInvalidArgument
	case 429:
		code = utils.ErrCodeRateLimited
		retryable = true
	case 500, 502, 503, 504:
		code = utils.ErrCodeNetworkError
		retryable = true
	case 507:
		code = utils.ErrCodeQuotaExceeded
	default:
		code = utils.ErrCodeUnexpectedStatus
		retryable = statusErr.StatusCode >= 500
	}

	logger.Error("API error classified",
		logging.F("httpStatus", statusErr.StatusCode),
		logging.F("errorCode", code),
		logging.F("retryable", retryable),
		logging.F("graphCode", statusErr.GraphCode),
		logging.F("traceId", reqCtx.TraceID),
	)

	builder := utils.NewCLIError(code, statusErr.Error()).
		WithHTTPStatus(statusErr.StatusCode).
		WithRetryable(retryable).
		WithContext("traceId", reqCtx.TraceID).
		WithContext("requestType", string(reqCtx.RequestType))

	if statusErr.GraphCode != "" {
		builder.WithGraphCode(statusErr.GraphCode)
	}

	switch code {
	case utils.ErrCodeAuthExpired:
		builder.WithContext("suggestedAction", "run 'odrv auth login' to re-authenticate")
	case utils.ErrCodeRateLimited:
		builder.WithContext("suggestedAction", "rate limit exceeded, retry with backoff")
	case utils.ErrCodeQuotaExceeded:
		builder.WithContext("suggestedAction", "free up space in OneDrive or upgrade storage")
	}

	if statusErr.StatusCode >= 500 && statusErr.StatusCode <= 504 {
		builder.WithContext("serverError", true).
			WithContext("suggestedAction", "temporary server error, retrying")
	}

	return utils.NewAppError(builder.Build())
}
