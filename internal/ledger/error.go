package ledger

import (
	"errors"
	"fmt"
)

type ErrorReason string

const (
	REASON_PASS_NOT_FOUND      ErrorReason = "PASS_NOT_FOUND"
	REASON_PASS_ALREADY_EXISTS ErrorReason = "PASS_ALREADY_EXISTS"
	REASON_ALREADY_CHECKED_IN  ErrorReason = "ALREADY_CHECKED_IN"
	REASON_INVALID_PAYLOAD     ErrorReason = "INVALID_PAYLOAD"
	REASON_FAILED_TO_FETCH     ErrorReason = "FAILED_TO_FETCH"
	REASON_FAILED_TO_WRITE     ErrorReason = "FAILED_TO_WRITE"
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

func newLedgerError(reason ErrorReason, message string, cause error) *Error {
	return &Error{
		Reason:  reason,
		Message: message,
		Cause:   cause,
	}
}

func NewPassNotFoundError(id string) *Error {
	return newLedgerError(REASON_PASS_NOT_FOUND, fmt.Sprintf("No pass with ID %q", id), nil)
}

func NewPassAlreadyExistsError(id string) *Error {
	return newLedgerError(REASON_PASS_ALREADY_EXISTS, fmt.Sprintf("Pass with ID %q already exists", id), nil)
}

func NewAlreadyCheckedInError(id string) *Error {
	return newLedgerError(REASON_ALREADY_CHECKED_IN, fmt.Sprintf("Pass %q is already checked in", id), nil)
}

func NewInvalidPayloadError(message string, cause error) *Error {
	return newLedgerError(REASON_INVALID_PAYLOAD, message, cause)
}

func NewFailedToFetchError(message string, cause error) *Error {
	return newLedgerError(REASON_FAILED_TO_FETCH, message, cause)
}

func NewFailedToWriteError(message string, cause error) *Error {
	return newLedgerError(REASON_FAILED_TO_WRITE, message, cause)
}

// IsReason reports whether err is a ledger error with the given reason.
func IsReason(err error, reason ErrorReason) bool {
	var ledgerErr *Error
	if !errors.As(err, &ledgerErr) {
		return false
	}
	return ledgerErr.Reason == reason
}
