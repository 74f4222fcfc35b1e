package util

import "fmt"

// RequestError is an error object used when a server responds with an unexpected return code
type RequestError struct {
	URL        string
	Status     string
	StatusCode int
}

func (e RequestError) Error() string {
	return fmt.Sprintf("%q responded with status %q", e.URL, e.Status)
}

// ShapeMismatchError is an error object used when an upstream response
// does not decode into the expected schema
type ShapeMismatchError struct {
	URL    string
	Reason string
}

func (e ShapeMismatchError) Error() string {
	return fmt.Sprintf("%q returned an unexpected payload: %s", e.URL, e.Reason)
}

// RouteNotFoundError is an error object used when the resolver cannot
// match a route key or number against the loaded catalog
type RouteNotFoundError struct {
	Key string
}

func (e RouteNotFoundError) Error() string {
	return fmt.Sprintf("no route matches %q", e.Key)
}

// CatalogUnavailableError is an error object used when neither a cached
// catalog nor a fresh download is available
type CatalogUnavailableError struct {
	Reason string
}

func (e CatalogUnavailableError) Error() string {
	return "route catalog unavailable: " + e.Reason
}
