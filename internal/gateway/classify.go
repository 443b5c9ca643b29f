package gateway

import (
	"fmt"
	"net/http"

	"github.com/mlaakso/clusterdash/internal/auth"
)

// classify turns a non-retryable HTTP failure into an AuthError with a
// user-facing message. The original status and body stay on the error for
// callers that need them.
func classify(status int, body []byte) *auth.AuthError {
	var e *auth.AuthError
	switch {
	case status == http.StatusBadRequest:
		e = auth.NewError(auth.KindUnknown, "bad_request", "The request was rejected as invalid")
	case status == http.StatusUnauthorized:
		e = auth.NewError(auth.KindUnauthorized, "unauthorized", "Your session is no longer valid, please sign in again")
	case status == http.StatusForbidden:
		e = auth.NewError(auth.KindUnauthorized, "forbidden", "You don't have permission to access this resource")
	case status == http.StatusNotFound:
		e = auth.NewError(auth.KindUnknown, "not_found", "The requested resource was not found")
	case status == http.StatusRequestTimeout:
		e = auth.NewError(auth.KindNetwork, "request_timeout", "The server took too long to respond, please try again")
	case status == http.StatusTooManyRequests:
		e = auth.NewError(auth.KindNetwork, "rate_limited", "Too many requests, please slow down")
	case status >= http.StatusInternalServerError && status < 600:
		e = auth.NewError(auth.KindNetwork, "server_error", "The server encountered an error, please try again later")
	default:
		e = auth.NewError(auth.KindUnknown, fmt.Sprintf("http_%d", status),
			fmt.Sprintf("Request failed with status %d", status))
	}
	e.Status = status
	e.Body = string(body)
	return e
}
