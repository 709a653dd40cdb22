package nav

import (
	"fmt"
	"net/http"
)

// Error is the structured failure returned by Lookup. It is written to
// clients as {status, error, details}.
type Error struct {
	Status  int    `json:"status"`
	Message string `json:"error"`
	Details string `json:"details,omitempty"`
}

func (e *Error) Error() string {
	if e.Details == "" {
		return fmt.Sprintf("nav: %s (%d)", e.Message, e.Status)
	}
	return fmt.Sprintf("nav: %s (%d): %s", e.Message, e.Status, e.Details)
}

func transportError(err error) *Error {
	return &Error{Status: http.StatusBadGateway, Message: "NAV request failed", Details: err.Error()}
}

func upstreamError(status int, body string) *Error {
	return &Error{Status: status, Message: "NAV returned an error", Details: body}
}

func parseError(err error) *Error {
	return &Error{Status: http.StatusBadGateway, Message: "NAV response could not be parsed", Details: err.Error()}
}

func badRequest(msg string) *Error {
	return &Error{Status: http.StatusBadRequest, Message: msg}
}
