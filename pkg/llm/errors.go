package llm

import (
	"errors"
	"fmt"
)

var (
	// ErrStreamCompleted is returned when a stream that has already been
	// drained is consumed again.
	ErrStreamCompleted = errors.New("streaming is completed")

	// ErrJSONModeStream is returned before any request is sent when JSON
	// mode and streaming are requested together.
	ErrJSONModeStream = errors.New("JSON mode does not support streaming")
)

// APIError is a non-2xx answer from a provider endpoint. Body holds the raw
// response body for diagnostics.
type APIError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s api status %d\n\nResponse:\n%s", e.Provider, e.StatusCode, e.Body)
}
