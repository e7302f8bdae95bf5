package airforce

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingAPIKey indicates that the client was configured without credentials.
	ErrMissingAPIKey = errors.New("airforce: api key is required")

	// ErrCancelled is returned when the user cancelled an in-flight
	// generation. It is informational, not a failure.
	ErrCancelled = errors.New("airforce: generation cancelled")

	// ErrNoPayload is returned when the stream finished and the whole-body
	// fallback still produced no media payload. It indicates a protocol
	// shape mismatch and is deliberately distinct from transport errors.
	ErrNoPayload = errors.New("airforce: no image or video data received")

	// ErrRequestInFlight is returned when Generate is called on a client
	// that already owns a running request.
	ErrRequestInFlight = errors.New("airforce: a generation is already in flight")
)

// ProviderError reports a non-2xx response from the Airforce API.
type ProviderError struct {
	Status int
	Body   string
}

func (e *ProviderError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("airforce: provider returned status %d", e.Status)
	}
	return fmt.Sprintf("airforce: provider returned status %d: %s", e.Status, e.Body)
}
