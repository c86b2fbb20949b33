package errors

import "fmt"

// Common error creators for frequent use cases

// NewStoreError wraps a durable-store failure. Store failures are always
// retryable for the caller: a failed lookup must read as "cannot relay right
// now", never as "channel not connected".
func NewStoreError(operation string, err error) *AppError {
	return WrapRetryable(err, ErrCodeStoreUnavailable, fmt.Sprintf("store %s failed", operation)).
		WithContext("operation", operation)
}

// NewCacheError wraps a cache failure as retryable.
func NewCacheError(operation string, err error) *AppError {
	return WrapRetryable(err, ErrCodeCacheUnavailable, fmt.Sprintf("cache %s failed", operation)).
		WithContext("operation", operation)
}

// NewNotFoundError creates a not found error with resource context
func NewNotFoundError(resource, identifier string) *AppError {
	return New(ErrCodeNotFound, fmt.Sprintf("%s not found", resource)).
		WithContext("resource", resource).
		WithContext("identifier", identifier)
}

// NewUnknownMessageError reports a mutation replay against a message the
// network no longer tracks.
func NewUnknownMessageError(messageID string) *AppError {
	return New(ErrCodeNotFound, "unknown network message").
		WithContext("message_id", messageID)
}

// NewDeleteInProgressError reports a mutation rejected because the original
// message is being deleted network-wide.
func NewDeleteInProgressError(originalID string) *AppError {
	return New(ErrCodeDeleteInProgress, "message deletion in progress").
		WithContext("original_id", originalID)
}
