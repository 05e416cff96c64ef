package remote

import (
	"errors"
	"fmt"
)

var (
	ErrInferenceUnavailable = errors.New("inference service unavailable")
	ErrInvalidResponse      = errors.New("invalid response from inference service")
	ErrNoOutput             = errors.New("no output tensor in inference response")
)

// StatusError is a non-2xx reply from the inference server.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("inference server returned status %d: %s", e.StatusCode, e.Body)
}

// isClientError reports 4xx replies, which are never retried.
func isClientError(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode >= 400 && se.StatusCode < 500
	}
	return false
}
