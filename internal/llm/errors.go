package llm

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidRequest marks malformed or incomplete generation requests.
	// No upstream call is made.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrConfiguration marks a missing or unusable upstream credential.
	ErrConfiguration = errors.New("API key not configured")

	// ErrUpstream marks network or provider failures while generating.
	ErrUpstream = errors.New("upstream generation failed")
)

// UpstreamError carries whatever diagnostics the provider returned.
type UpstreamError struct {
	StatusCode int
	Message    string
	Details    string
	Err        error
}

func (e *UpstreamError) Error() string {
	msg := e.Message
	if e.Err != nil {
		if msg == "" {
			msg = e.Err.Error()
		} else {
			msg = msg + ": " + e.Err.Error()
		}
	}
	if msg == "" {
		msg = ErrUpstream.Error()
	}
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.StatusCode)
	}
	if e.Details != "" {
		msg = msg + ": " + e.Details
	}
	return msg
}

func (e *UpstreamError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrUpstream, e.Err}
	}
	return []error{ErrUpstream}
}

// NewUpstreamError wraps err as an upstream failure. Errors that are already
// upstream failures are returned unchanged.
func NewUpstreamError(provider string, err error) error {
	var ue *UpstreamError
	if errors.As(err, &ue) {
		return err
	}
	return &UpstreamError{Message: provider + " stream error", Err: err}
}
