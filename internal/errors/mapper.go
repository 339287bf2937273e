package errors

import (
	"context"
	"errors"
	"net/http"

	"gorm.io/gorm"
)

// HTTPStatus converts domain and infra errors into an HTTP status code.
// Keeps the handler layer clean by centralizing error mapping.
func HTTPStatus(err error) int {
	if err == nil {
		return http.StatusOK
	}

	switch KindOf(err) {
	case KindValidation:
		return http.StatusBadRequest
	case KindConflict:
		return http.StatusConflict
	case KindState:
		return http.StatusPreconditionFailed
	case KindTransientStore:
		return http.StatusServiceUnavailable
	}

	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return http.StatusNotFound

	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout

	case errors.Is(err, context.Canceled):
		return http.StatusRequestTimeout

	default:
		return http.StatusInternalServerError
	}
}

// Payload builds the JSON error body served by the HTTP layer. The code is
// stable across releases; the message is for humans.
func Payload(err error) map[string]any {
	body := map[string]any{"error": err.Error()}
	if code := CodeOf(err); code != "" {
		body["code"] = code
	}
	return body
}
