package httpclient

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"net/http"
	"slices"

	apperrors "github.com/utafrali/catalog-search/pkg/errors"
	"github.com/utafrali/catalog-search/pkg/httputil"
)

// ParseResponseError reads a non-2xx response and translates it into an
// AppError. Bodies in the standard envelope keep their code, message and
// field errors. The body is consumed and closed.
func ParseResponseError(resp *http.Response, serviceName string) error {
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20)) // 1 MB limit
	if err != nil {
		return fmt.Errorf("%s returned status %d (failed to read body: %w)", serviceName, resp.StatusCode, err)
	}

	var envelope httputil.Response
	if json.Unmarshal(body, &envelope) == nil && envelope.Error != nil {
		return mapDownstreamError(resp.StatusCode, envelope.Error, serviceName)
	}
	return fmt.Errorf("%s returned status %d: %s", serviceName, resp.StatusCode, string(body))
}

func mapDownstreamError(status int, e *httputil.ErrorResponse, serviceName string) error {
	msg := fmt.Sprintf("%s: %s", serviceName, e.Message)
	for _, field := range slices.Sorted(maps.Keys(e.Fields)) {
		msg += fmt.Sprintf("; %s: %s", field, e.Fields[field])
	}

	var sentinel error
	switch {
	case status == http.StatusNotFound:
		sentinel = apperrors.ErrNotFound
	case status == http.StatusBadRequest:
		sentinel = apperrors.ErrInvalidInput
	case status == http.StatusServiceUnavailable:
		sentinel = apperrors.ErrServiceUnavail
	case status == http.StatusMultiStatus:
		sentinel = apperrors.ErrPartialFailure
	case status >= 500:
		sentinel = apperrors.ErrInternal
	default:
		sentinel = errors.New(e.Code)
	}

	return &apperrors.AppError{Code: e.Code, Message: msg, Status: status, Err: sentinel}
}

// IsRetryableStatus reports whether a failed call may succeed if repeated.
func IsRetryableStatus(status int) bool {
	return status == http.StatusServiceUnavailable || status == http.StatusTooManyRequests || status == http.StatusBadGateway
}
