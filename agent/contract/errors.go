package contract

import (
	"context"
	"errors"
)

var (
	ErrModelInvoke     = errors.New("model invoke failed")
	ErrSchemaViolation = errors.New("model response violates schema")
	ErrPromptMissing   = errors.New("required prompt is missing")
	ErrValidation      = errors.New("validation failed")

	ErrNoPeer                = errors.New("no remote peer attached")
	ErrTimeout               = errors.New("remote call timed out")
	ErrEmptyResponse         = errors.New("remote returned an empty response")
	ErrRemote                = errors.New("remote call failed")
	ErrInvalidProductType    = errors.New("invalid product type")
	ErrMissingPendingProduct = errors.New("no pending product selected")
	ErrToolNotAllowed        = errors.New("tool is not available in the active role")
	ErrSessionTerminated     = errors.New("session is terminated")
)

// ErrorKind is the machine-readable failure reason handed to the LLM driver.
type ErrorKind string

const (
	KindNone                  ErrorKind = ""
	KindNoPeer                ErrorKind = "no_peer"
	KindTimeout               ErrorKind = "timeout"
	KindEmptyResponse         ErrorKind = "empty_response"
	KindRemoteError           ErrorKind = "remote_error"
	KindInvalidProductType    ErrorKind = "invalid_product_type"
	KindMissingPendingProduct ErrorKind = "missing_pending_product"
	KindToolNotAllowed        ErrorKind = "tool_not_allowed"
	KindValidation            ErrorKind = "validation"
	KindInternal              ErrorKind = "internal"
)

var kindBySentinel = []struct {
	err  error
	kind ErrorKind
}{
	{ErrNoPeer, KindNoPeer},
	{ErrTimeout, KindTimeout},
	{context.DeadlineExceeded, KindTimeout},
	{ErrEmptyResponse, KindEmptyResponse},
	{ErrRemote, KindRemoteError},
	{ErrInvalidProductType, KindInvalidProductType},
	{ErrMissingPendingProduct, KindMissingPendingProduct},
	{ErrToolNotAllowed, KindToolNotAllowed},
	{ErrValidation, KindValidation},
}

// KindOf maps an error onto the failure taxonomy. Unknown errors are internal.
func KindOf(err error) ErrorKind {
	if err == nil {
		return KindNone
	}
	for _, entry := range kindBySentinel {
		if errors.Is(err, entry.err) {
			return entry.kind
		}
	}
	return KindInternal
}

// Retryable reports whether the user may simply ask again.
func (k ErrorKind) Retryable() bool {
	switch k {
	case KindTimeout, KindEmptyResponse, KindRemoteError:
		return true
	default:
		return false
	}
}
