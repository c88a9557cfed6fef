package llm

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel failures shared by the adapters.
var (
	// ErrNoChoices marks a well-formed response that carried no completion
	// choices. Treated as transient.
	ErrNoChoices = errors.New("llm: response contained no choices")

	// ErrSafetyBlocked marks a response refused by the backend's safety
	// layer. Never retried.
	ErrSafetyBlocked = errors.New("llm: request blocked by safety filter")
)

// TransientError wraps a failure worth retrying: HTTP 5xx, HTTP 429,
// network-level errors and empty-choice responses.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string { return e.Err.Error() }
func (e *TransientError) Unwrap() error { return e.Err }

// Transient wraps err as retryable.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &TransientError{Err: err}
}

// IsTransient reports whether err should be retried.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// StatusError classifies a non-2xx HTTP status: 5xx and 429 are transient,
// everything else is fatal.
func StatusError(provider string, status int, body string) error {
	err := fmt.Errorf("%s API error: %d - %s", provider, status, body)
	if status >= 500 || status == http.StatusTooManyRequests {
		return Transient(err)
	}
	return err
}
