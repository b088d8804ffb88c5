// Package domainerrors carries a stable, transport-free code on every error
// a service returns. Handlers map the code to a status; stores never see it.
package domainerrors

import "errors"

// Code names a failure class. The string is also the wire value clients see
// unless the HTTP layer renames it.
type Code string

const (
	CodeNotFound     Code = "not_found"
	CodeBadRequest   Code = "bad_request"
	CodeInvalidInput Code = "invalid_input"
	CodeValidation   Code = "validation_failed"
	CodeInternal     Code = "internal_error"
	CodeConflict     Code = "conflict"
	CodeUnauthorized Code = "unauthorized"
	CodeForbidden    Code = "forbidden"
	CodeTimeout      Code = "timeout"

	// Credential lifecycle conflicts. Terminal for the caller, never retried.
	CodeDuplicateFingerprint Code = "duplicate_fingerprint"
	CodeAlreadyAnchored      Code = "already_anchored"
	CodeAnchorInProgress     Code = "anchor_in_progress"
	CodeCannotDeleteAnchored Code = "cannot_delete_anchored"

	// Ledger infrastructure and configuration.
	CodeLedgerUnavailable     Code = "ledger_unavailable"
	CodeContractNotConfigured Code = "contract_not_configured"
	CodeSignerNotConfigured   Code = "signer_not_configured"

	// Ledger-side rejections. Require operator or issuer intervention.
	CodeInsufficientFunds   Code = "insufficient_funds"
	CodeTransactionReverted Code = "transaction_reverted"

	CodePersistence        Code = "persistence_error"
	CodeMalformedReference Code = "malformed_reference"
)

// Error is a coded failure with an optional cause.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Code)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is makes errors.Is compare domain errors by code alone.
func (e *Error) Is(target error) bool {
	other, ok := target.(*Error)
	return ok && other.Code == e.Code
}

func New(code Code, msg string) error {
	return &Error{Code: code, Message: msg}
}

// Wrap attaches msg to err. A cause that already carries a domain code keeps
// it; code applies only to foreign errors.
func Wrap(err error, code Code, msg string) error {
	if inner, ok := asError(err); ok {
		code = inner.Code
	}
	return &Error{Code: code, Message: msg, Err: err}
}

func HasCode(err error, code Code) bool {
	e, ok := asError(err)
	return ok && e.Code == code
}

// CodeOf returns err's code, CodeInternal for errors from outside the domain.
func CodeOf(err error) Code {
	if e, ok := asError(err); ok {
		return e.Code
	}
	return CodeInternal
}

func asError(err error) (*Error, bool) {
	var e *Error
	ok := errors.As(err, &e)
	return e, ok
}

// IsConflict reports the codes that reject a request against current state.
func IsConflict(err error) bool {
	switch CodeOf(err) {
	case CodeConflict, CodeDuplicateFingerprint, CodeAlreadyAnchored,
		CodeAnchorInProgress, CodeCannotDeleteAnchored:
		return true
	}
	return false
}
