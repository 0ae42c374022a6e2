package fetcher

import (
	"fmt"
)

// Reason classifies why a fetch failed.
type Reason string

const (
	ReasonTimeout     Reason = "timeout"
	ReasonConnection  Reason = "connection"
	ReasonNoSuchHost  Reason = "no_such_host"
	ReasonStatus      Reason = "status"
	ReasonTooLarge    Reason = "too_large"
	ReasonContentType Reason = "content_type"
	ReasonRedirects   Reason = "redirects"
	ReasonInvalidURL  Reason = "invalid_url"
)

// FetchError is the failure outcome of a single fetch.
type FetchError struct {
	URL        string
	Reason     Reason
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	switch {
	case e.Reason == ReasonStatus:
		return fmt.Sprintf("fetch %s: unexpected status %d", e.URL, e.StatusCode)
	case e.Err != nil:
		return fmt.Sprintf("fetch %s: %s: %v", e.URL, e.Reason, e.Err)
	default:
		return fmt.Sprintf("fetch %s: %s", e.URL, e.Reason)
	}
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Transient reports whether another URL on the same site may still succeed.
// Status, unknown host, size, content-type and redirect failures are permanent.
func (e *FetchError) Transient() bool {
	return e.Reason == ReasonTimeout || e.Reason == ReasonConnection
}
