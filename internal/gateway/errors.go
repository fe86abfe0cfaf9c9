package gateway

import (
	"fmt"
	"strings"
)

// NetworkError is a transport failure: the request never produced a response.
type NetworkError struct {
	Method string
	URL    string
	Err    error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Method, e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// HTTPError is a non-2xx response. Message carries the backend's "detail"
// or "message" field when the body is JSON, otherwise the trimmed body.
type HTTPError struct {
	Method  string
	URL     string
	Status  int
	Body    string
	Message string
}

func (e *HTTPError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = strings.TrimSpace(e.Body)
	}
	if msg == "" {
		return fmt.Sprintf("%s %s: http %d", e.Method, e.URL, e.Status)
	}
	return fmt.Sprintf("%s %s: http %d: %s", e.Method, e.URL, e.Status, msg)
}

// NotFound reports whether the backend answered 404.
func (e *HTTPError) NotFound() bool { return e.Status == 404 }
