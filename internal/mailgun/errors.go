package mailgun

import (
	"errors"
	"fmt"
)

// AuthError indicates the API key was rejected (HTTP 401).
type AuthError struct {
	Host    string
	Message string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("auth error (%s): %s", e.Host, e.Message)
}

// IsAuthError reports whether err (or any error in its chain) is an AuthError.
func IsAuthError(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr)
}

// UnexpectedResponseError is returned when an API call answers with a
// status for which no fallback policy exists.
type UnexpectedResponseError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
}

func (e *UnexpectedResponseError) Error() string {
	return fmt.Sprintf(
		"unexpected status %d on %s %s: %s",
		e.StatusCode, e.Method, e.URL, truncate(e.Body, 512),
	)
}

// IsUnexpectedResponse reports whether err (or any error in its chain) is
// an UnexpectedResponseError.
func IsUnexpectedResponse(err error) bool {
	var respErr *UnexpectedResponseError
	return errors.As(err, &respErr)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
