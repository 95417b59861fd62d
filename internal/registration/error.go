package registration

import (
	"errors"
	"fmt"
)

type ErrorReason string

const (
	REASON_FAILED_TO_FETCH_ROWS ErrorReason = "FAILED_TO_FETCH_ROWS"
	REASON_FAILED_TO_GENERATE   ErrorReason = "FAILED_TO_GENERATE"
	REASON_FAILED_TO_DISPATCH   ErrorReason = "FAILED_TO_DISPATCH"
	REASON_FAILED_TO_STORE      ErrorReason = "FAILED_TO_STORE"
)

type Error struct {
	Reason  ErrorReason
	Message string
	Cause   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s. Cause: %s", e.Reason, e.Message, e.Cause)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func newRegistrationError(reason ErrorReason, message string, cause error) *Error {
	return &Error{
		Reason:  reason,
		Message: message,
		Cause:   cause,
	}
}

func NewFailedToFetchRowsError(cause error) *Error {
	return newRegistrationError(REASON_FAILED_TO_FETCH_ROWS, "Failed to fetch registrant rows", cause)
}

func NewFailedToGenerateError(cause error) *Error {
	return newRegistrationError(REASON_FAILED_TO_GENERATE, "Failed to generate pass", cause)
}

func NewFailedToDispatchError(email string, cause error) *Error {
	return newRegistrationError(REASON_FAILED_TO_DISPATCH, fmt.Sprintf("Failed to email pass to %s", email), cause)
}

func NewFailedToStoreError(message string, cause error) *Error {
	return newRegistrationError(REASON_FAILED_TO_STORE, message, cause)
}

// IsReason reports whether err is a registration error with the given reason.
func IsReason(err error, reason ErrorReason) bool {
	var regErr *Error
	return errors.As(err, &regErr) && regErr.Reason == reason
}
