package ai

import (
	"errors"
	"fmt"
	"net/http"
)

const unknownErrorMessage = "Unknown error"

// MissingCredentialError is returned by the credential gate when a required
// provider secret is absent or blank.
type MissingCredentialError struct {
	Field string
}

func (e *MissingCredentialError) Error() string {
	return fmt.Sprintf("%s API Key not found", e.Field)
}

// InvalidMessageError reports a conversation that cannot be sent upstream.
type InvalidMessageError struct {
	Reason string
	// Index is the position of the offending raw message, -1 when the whole
	// request is at fault.
	Index int
}

func (e *InvalidMessageError) Error() string {
	return e.Reason
}

func invalidMessage(index int, reason string) *InvalidMessageError {
	return &InvalidMessageError{Reason: reason, Index: index}
}

// ProviderError is an upstream rejection or fault, rewritten for the caller.
type ProviderError struct {
	Provider   string
	StatusCode int
	Message    string
	Err        error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s API error: %s", e.Provider, e.Message)
}

func (e *ProviderError) Unwrap() error { return e.Err }

func newProviderError(provider string, status int, message string, cause error) *ProviderError {
	if status == 0 {
		status = http.StatusInternalServerError
	}
	if message == "" {
		message = unknownErrorMessage
	}
	return &ProviderError{Provider: provider, StatusCode: status, Message: message, Err: cause}
}

// StreamDecodeError marks one upstream chunk that could not be decoded.
// It is logged and the chunk skipped; it never ends a stream.
type StreamDecodeError struct {
	Provider string
	Chunk    []byte
	Err      error
}

func (e *StreamDecodeError) Error() string {
	return fmt.Sprintf("%s: decode stream chunk (%d bytes): %v", e.Provider, len(e.Chunk), e.Err)
}

func (e *StreamDecodeError) Unwrap() error { return e.Err }

// ErrStreamConsumed is yielded when a Stream is ranged over a second time.
var ErrStreamConsumed = errors.New("ai: stream already consumed")

// AsProviderError reports whether err carries a *ProviderError.
func AsProviderError(err error) (*ProviderError, bool) {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}
