package feed

import (
	"errors"
	"fmt"
	"net/http"
)

var ErrInvalidInput = errors.New("invalid input")

// TransportError reports a failed feed request: the request never completed
// (StatusCode is 0) or the server answered with an error status.
type TransportError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch feed (URL = %s): unexpected status: %d", e.URL, e.StatusCode)
	}

	return fmt.Sprintf("fetch feed (URL = %s): %v", e.URL, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Retryable is true for network failures, 429 and 5xx answers.
func (e *TransportError) Retryable() bool {
	switch {
	case e.StatusCode == 0:
		return true
	case e.StatusCode == http.StatusTooManyRequests:
		return true
	case e.StatusCode >= http.StatusInternalServerError:
		return true
	default:
		return false
	}
}
