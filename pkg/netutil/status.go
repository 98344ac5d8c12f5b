package netutil

import (
	"fmt"
	"net/http"
)

// ValidateResponseStatus reports whether status is one of the two
// statuses a successful document request can produce: 200 OK for a
// whole resource, 206 Partial Content for a byte range.
func ValidateResponseStatus(status int) bool {
	return status == http.StatusOK || status == http.StatusPartialContent
}

// MissingPDFError reports that the requested document does not exist:
// an HTTP 404, or status 0 for a local resource (e.g. a file:// URL)
// that could not be opened.
type MissingPDFError struct {
	URL string
}

func (e *MissingPDFError) Error() string {
	return fmt.Sprintf("Missing PDF %q.", e.URL)
}

// UnexpectedResponseError reports a response status that is neither a
// success nor a missing document.
type UnexpectedResponseError struct {
	Status int
	URL    string
}

func (e *UnexpectedResponseError) Error() string {
	return fmt.Sprintf("Unexpected server response (%d) while retrieving PDF %q.", e.Status, e.URL)
}

// CreateResponseStatusError turns a failed response status into a
// typed error: *MissingPDFError for 404 and 0, *UnexpectedResponseError
// for everything else. Callers are expected to have checked
// ValidateResponseStatus first; a passing status is not meaningful
// here.
func CreateResponseStatusError(status int, url string) error {
	if status == http.StatusNotFound || status == 0 {
		return &MissingPDFError{URL: url}
	}
	return &UnexpectedResponseError{Status: status, URL: url}
}
