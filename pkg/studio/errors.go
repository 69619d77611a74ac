package studio

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/googleapis/gax-go/v2/apierror"
	"google.golang.org/genai"
)

var (
	// ErrMissingInput is returned when a capability's required input is
	// absent, e.g. image editing without an attachment.
	ErrMissingInput = errors.New("studio: missing input")

	// ErrEmptyResult is returned when the remote call succeeds but carries
	// no usable payload.
	ErrEmptyResult = errors.New("studio: empty result")

	// ErrUnknownCapability is returned for tasks naming a capability outside
	// Capabilities().
	ErrUnknownCapability = errors.New("studio: unknown capability")

	// ErrPollTimeout is returned when a long-running operation does not
	// complete within the configured number of polls.
	ErrPollTimeout = errors.New("studio: operation poll timeout")

	// ErrTurnInFlight is returned when a session already has a running turn.
	ErrTurnInFlight = errors.New("studio: turn already in flight")

	// ErrCredentialRequired is returned while the API credential is marked
	// invalid and has not been replaced.
	ErrCredentialRequired = errors.New("studio: api credential required")
)

// ErrorKind classifies task failures.
type ErrorKind int

const (
	// KindTransport covers network, API and credential failures.
	KindTransport ErrorKind = iota
	KindMissingInput
	KindEmptyResult
	KindUnknownCapability
	KindCanceled
)

func (k ErrorKind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindMissingInput:
		return "missing_input"
	case KindEmptyResult:
		return "empty_result"
	case KindUnknownCapability:
		return "unknown_capability"
	case KindCanceled:
		return "canceled"
	}
	return fmt.Sprintf("ErrorKind(%d)", int(k))
}

// Error is a failed task.
type Error struct {
	Kind       ErrorKind
	Capability Capability
	Err        error
}

func (e *Error) Error() string {
	return fmt.Sprintf("studio: %s: %v", strings.ToLower(string(e.Capability)), e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// CredentialInvalid reports whether the failure means the API key must be
// re-acquired before another turn can run.
func (e *Error) CredentialInvalid() bool {
	return e.Kind == KindTransport && IsCredentialError(e.Err)
}

// AsError extracts *Error from an error.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// taskError wraps err as a *Error for capability c, deriving the kind from
// the sentinel it wraps.
func taskError(c Capability, err error) error {
	if err == nil {
		return nil
	}
	if e, ok := AsError(err); ok {
		return e
	}
	return &Error{Kind: kindOf(err), Capability: c, Err: err}
}

func kindOf(err error) ErrorKind {
	switch {
	case errors.Is(err, ErrMissingInput):
		return KindMissingInput
	case errors.Is(err, ErrEmptyResult), errors.Is(err, ErrPollTimeout):
		return KindEmptyResult
	case errors.Is(err, ErrUnknownCapability):
		return KindUnknownCapability
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return KindCanceled
	}
	return KindTransport
}

var credentialMessages = []string{
	"Requested entity was not found.",
	"API Key must be set",
	"API key not valid",
}

// IsCredentialError reports whether err indicates a missing, invalid or
// unauthorized API key.
func IsCredentialError(err error) bool {
	if err == nil {
		return false
	}
	if ae, ok := err.(*apierror.APIError); ok {
		err = ae.Unwrap()
	}
	var code int
	var ge genai.APIError
	var gep *genai.APIError
	switch {
	case errors.As(err, &ge):
		code = ge.Code
	case errors.As(err, &gep):
		code = gep.Code
	}
	if code == http.StatusUnauthorized || code == http.StatusForbidden {
		return true
	}
	msg := err.Error()
	for _, m := range credentialMessages {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}
