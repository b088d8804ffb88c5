package models

import (
	"time"

	"github.com/google/uuid"

	credmodels "certledger/internal/credential/models"
	dErrors "certledger/pkg/domain-errors"
)

// Result is the recorded outcome of one verification attempt.
type Result string

const (
	ResultValid         Result = "valid"
	ResultInvalid       Result = "invalid"
	ResultNotFound      Result = "not_found"
	ResultInvalidFormat Result = "invalid_format"
	// ResultLookupFailed marks a well-formed request the credential store
	// could not answer.
	ResultLookupFailed Result = "lookup_failed"
)

func (r Result) IsValid() bool {
	switch r {
	case ResultValid, ResultInvalid, ResultNotFound, ResultInvalidFormat, ResultLookupFailed:
		return true
	}
	return false
}

// CrossCheck is the outcome of comparing the local record with the ledger.
type CrossCheck string

const (
	CrossCheckMatched       CrossCheck = "matched"
	CrossCheckMismatched    CrossCheck = "mismatched"
	CrossCheckUnavailable   CrossCheck = "unavailable"
	CrossCheckNotApplicable CrossCheck = "not_applicable"
)

// Status is the verifier-facing label of a verification answer.
type Status string

const (
	StatusVerified          Status = "verified"
	StatusVerifiedLocalOnly Status = "verified_local_only"
	StatusNotAnchored       Status = "not_anchored"
	StatusMismatched        Status = "mismatched"
	StatusNotFound          Status = "not_found"
)

// MaxRecordedFingerprintLength bounds the raw input stored for malformed
// fingerprints.
const MaxRecordedFingerprintLength = 128

// Attempt is one immutable row of the verification history.
type Attempt struct {
	ID              uuid.UUID
	Fingerprint     string
	Result          Result
	CrossCheck      CrossCheck
	LocalOnly       bool
	CallerSubject   string
	SourceIP        string
	UserAgent       string
	UserAgentFamily string
	RequestID       string
	CheckedAt       time.Time
}

// VerificationResult is the answer returned to the verifier.
type VerificationResult struct {
	Verified   bool
	Status     Status
	Credential *credmodels.Summary
	CrossCheck CrossCheck
	// LocalOnly is set when the answer rests on the local record alone
	// because the ledger could not be consulted.
	LocalOnly bool
	CheckedAt time.Time
}

const (
	DefaultListLimit = 50
	MaxListLimit     = 500
)

// Filter selects verification attempts. Zero values mean "any".
type Filter struct {
	Fingerprint string
	Result      Result
	From        *time.Time
	To          *time.Time
	Limit       int
	Offset      int
}

// Normalize applies pagination defaults and checks the filter.
func (f Filter) Normalize() (Filter, error) {
	if f.Result != "" && !f.Result.IsValid() {
		return f, dErrors.New(dErrors.CodeInvalidInput, "result must be one of valid, invalid, not_found, invalid_format, lookup_failed")
	}
	if f.From != nil && f.To != nil && f.To.Before(*f.From) {
		return f, dErrors.New(dErrors.CodeInvalidInput, "to must not be before from")
	}
	if f.Offset < 0 {
		return f, dErrors.New(dErrors.CodeInvalidInput, "offset must not be negative")
	}
	switch {
	case f.Limit < 0:
		return f, dErrors.New(dErrors.CodeInvalidInput, "limit must not be negative")
	case f.Limit == 0:
		f.Limit = DefaultListLimit
	case f.Limit > MaxListLimit:
		f.Limit = MaxListLimit
	}
	return f, nil
}

// Matches reports whether a satisfies the filter, ignoring pagination.
func (f Filter) Matches(a *Attempt) bool {
	if f.Fingerprint != "" && a.Fingerprint != f.Fingerprint {
		return false
	}
	if f.Result != "" && a.Result != f.Result {
		return false
	}
	if f.From != nil && a.CheckedAt.Before(*f.From) {
		return false
	}
	if f.To != nil && !a.CheckedAt.Before(*f.To) {
		return false
	}
	return true
}
