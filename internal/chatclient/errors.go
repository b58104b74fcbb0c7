package chatclient

import (
	"context"
	"errors"
	"fmt"
	"net/url"
)

// ErrConversationNotFound is returned by Session.Open when the contract has
// no conversation yet; the caller decides whether to create one.
var ErrConversationNotFound = errors.New("conversation not found")

// ErrSessionClosed is returned when operating on a released session.
var ErrSessionClosed = errors.New("session closed")

// User-facing error texts for failed sends.
const (
	msgNetworkError = "Network error - please check your connection"
	msgServerError  = "Server error"
	msgSendFailed   = "Message send failed"
)

// APIError is a non-2xx response from the chat API, carrying whatever detail
// the server put in the body.
type APIError struct {
	StatusCode int
	Detail     string
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("chat api: %d: %s", e.StatusCode, e.Detail)
	}
	return fmt.Sprintf("chat api: %d", e.StatusCode)
}

// sendErrorText converts a failed dispatch into the text shown to the user:
// the server-provided detail when the server answered, a connectivity hint
// when nothing answered, and a generic fallback for everything else.
func sendErrorText(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		if apiErr.Detail != "" {
			return apiErr.Detail
		}
		return msgServerError
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) || errors.Is(err, context.DeadlineExceeded) {
		return msgNetworkError
	}
	return msgSendFailed
}
