package backend

import (
	"errors"
	"fmt"
	"strings"
)

// HTTPError is a non-2xx answer from a backend. Body is the response body as text.
type HTTPError struct {
	Backend    string
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	body := strings.TrimSpace(e.Body)
	if body == "" {
		return fmt.Sprintf("%s error %d", e.Backend, e.StatusCode)
	}

	return fmt.Sprintf("%s error %d: %s", e.Backend, e.StatusCode, body)
}

// EmptyResponseError is a 2xx answer that carries no text.
type EmptyResponseError struct {
	Backend    string
	StatusCode int
}

func (e *EmptyResponseError) Error() string {
	return fmt.Sprintf("%s returned an empty response (status %d)", e.Backend, e.StatusCode)
}

// NetworkError is a transport level failure: the backend was never heard from.
type NetworkError struct {
	Backend string
	URL     string
	Err     error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error when calling %s: %v", e.Backend, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

func AsHTTPError(err error) (*HTTPError, bool) {
	var he *HTTPError
	if errors.As(err, &he) {
		return he, true
	}

	return nil, false
}

func IsNetworkError(err error) bool {
	var ne *NetworkError
	return errors.As(err, &ne)
}
