package client

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	// ErrUnauthorized matches 401 and 403 responses.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrNotFound matches 404 responses.
	ErrNotFound = errors.New("endpoint not found")

	// ErrServer matches 5xx responses.
	ErrServer = errors.New("server error")
)

// APIError is a non-2xx response. Message is the text shown to users.
type APIError struct {
	StatusCode int
	Message    string
	Body       string
}

func (e *APIError) Error() string {
	return e.Message
}

// Is maps the status code onto the package sentinels.
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrUnauthorized:
		return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
	case ErrNotFound:
		return e.StatusCode == http.StatusNotFound
	case ErrServer:
		return e.StatusCode >= http.StatusInternalServerError
	}
	return false
}

func newAPIError(status int, body []byte) *APIError {
	text := strings.TrimSpace(string(body))
	statusText := http.StatusText(status)

	var msg string
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		msg = "Invalid token. Configure it in Settings."
	case status == http.StatusNotFound:
		msg = "Endpoint not found. Check backend routes or update API prefix."
	case status >= http.StatusInternalServerError:
		if text == "" {
			text = statusText
		}
		msg = fmt.Sprintf("Server error: %s", text)
	case text != "":
		msg = text
	default:
		msg = fmt.Sprintf("Request failed: %s", statusText)
	}

	return &APIError{StatusCode: status, Message: msg, Body: text}
}

func retryableStatus(status int) bool {
	switch status {
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}
