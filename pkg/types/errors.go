package types

import (
	"errors"
	"fmt"
	"net/http"
)

// VenueError is a non-success response from a venue API.
type VenueError struct {
	Venue      Venue
	StatusCode int
	Path       string
	Message    string
}

func (e *VenueError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s API error on %s: %d - %s", e.Venue, e.Path, e.StatusCode, e.Message)
	}

	return fmt.Sprintf("%s API error on %s: %d", e.Venue, e.Path, e.StatusCode)
}

// IsRateLimited reports whether err is a venue 429. Only these responses
// are retried; everything else degrades to an absent datum.
func IsRateLimited(err error) bool {
	var ve *VenueError
	if errors.As(err, &ve) {
		return ve.StatusCode == http.StatusTooManyRequests
	}
	return false
}
