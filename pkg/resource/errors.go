package resource

import (
	"errors"
	"fmt"
)

// ErrNotRoot is returned when a resource root is created for a class that
// does not own its connection.
var ErrNotRoot = errors.New("class is not a resource root")

// ErrNotDescendant is returned when a resource is derived for a class that
// does not extend the parent resource's class.
var ErrNotDescendant = errors.New("class does not extend the parent resource's class")

// HTTPError is returned for responses outside the 2xx range.
type HTTPError struct {
	// Method and URL identify the failed request.
	Method string
	URL    string

	// StatusCode is the HTTP status code.
	StatusCode int

	// Body holds the start of the response body.
	Body string
}

// Error implements the error interface.
func (e *HTTPError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s %s: status %d", e.Method, e.URL, e.StatusCode)
	}
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.URL, e.StatusCode, e.Body)
}

// NotFound reports whether the server answered 404.
func (e *HTTPError) NotFound() bool {
	return e.StatusCode == 404
}
