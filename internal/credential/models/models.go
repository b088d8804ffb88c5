package models

import (
	"strings"
	"time"

	dErrors "certledger/pkg/domain-errors"
	"certledger/pkg/validation"
)

// FingerprintLength is the length of a hex-encoded 256-bit digest.
const FingerprintLength = 64

// Fingerprint is the content hash that identifies a credential locally and on
// the ledger. Always 64 lowercase hex characters.
type Fingerprint string

// ParseFingerprint checks length and alphabet exactly. Uppercase hex is
// rejected rather than folded so that one credential has one spelling.
func ParseFingerprint(value string) (Fingerprint, error) {
	if len(value) != FingerprintLength {
		return "", dErrors.New(dErrors.CodeInvalidInput, "fingerprint must be 64 hex characters")
	}
	for i := 0; i < len(value); i++ {
		c := value[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return "", dErrors.New(dErrors.CodeInvalidInput, "fingerprint must be lowercase hexadecimal")
		}
	}
	return Fingerprint(value), nil
}

// String returns the fingerprint as a string.
func (f Fingerprint) String() string {
	return string(f)
}

// Short returns a log-friendly prefix.
func (f Fingerprint) Short() string {
	if len(f) <= 12 {
		return string(f)
	}
	return string(f[:12])
}

// Status is the anchoring state of a credential.
type Status string

const (
	StatusUnanchored Status = "unanchored"
	StatusPending    Status = "pending"
	StatusAnchored   Status = "anchored"
	StatusFailed     Status = "failed"
)

// IsValid reports whether s is a known status.
func (s Status) IsValid() bool {
	switch s {
	case StatusUnanchored, StatusPending, StatusAnchored, StatusFailed:
		return true
	}
	return false
}

// CanTransitionTo encodes the anchoring state machine.
// unanchored -> pending -> {anchored, failed}; failed -> pending (re-anchor).
func (s Status) CanTransitionTo(next Status) bool {
	switch s {
	case StatusUnanchored:
		return next == StatusPending
	case StatusPending:
		return next == StatusAnchored || next == StatusFailed
	case StatusFailed:
		return next == StatusPending
	default:
		return false
	}
}

// Fields is the descriptive content of a diploma. Every field takes part in the
// fingerprint; dates use validation.DateLayout once normalized.
type Fields struct {
	IssuerID        string `json:"issuer_id" validate:"required,notblank,max=128"`
	Title           string `json:"title" validate:"required,notblank,max=256"`
	Category        string `json:"category" validate:"required,notblank,max=128"`
	IssuerName      string `json:"issuer_name" validate:"required,notblank,max=256"`
	IssueDate       string `json:"issue_date" validate:"required,calendardate"`
	Distinction     string `json:"distinction" validate:"required,notblank,max=128"`
	SerialNumber    string `json:"serial_number" validate:"required,notblank,max=128"`
	HolderName      string `json:"holder_name" validate:"required,notblank,max=256"`
	HolderBirthDate string `json:"holder_birth_date" validate:"required,calendardate"`
	HolderContact   string `json:"holder_contact" validate:"required,email|e164"`
}

// IssueTime returns the issue date at midnight UTC.
func (f Fields) IssueTime() (time.Time, error) {
	return ParseDate(f.IssueDate)
}

// HolderBirthTime returns the holder birth date at midnight UTC.
func (f Fields) HolderBirthTime() (time.Time, error) {
	return ParseDate(f.HolderBirthDate)
}

// ParseDate parses a calendar date in validation.DateLayout as UTC midnight.
func ParseDate(value string) (time.Time, error) {
	t, err := time.ParseInLocation(validation.DateLayout, strings.TrimSpace(value), time.UTC)
	if err != nil {
		return time.Time{}, dErrors.New(dErrors.CodeInvalidInput, "date must be in YYYY-MM-DD form")
	}
	return t, nil
}

// Credential is an issued diploma. It is an immutable value: anchoring state
// changes produce a new value through the store, field edits require a new
// credential with a new fingerprint.
type Credential struct {
	Fingerprint     Fingerprint
	Fields          Fields
	Status          Status
	TxReference     string
	AnchoredAt      *time.Time
	PendingSince    *time.Time
	FailureReason   string
	VerificationURL string
	CreatedAt       time.Time
}

// IsAnchored reports whether the credential has a confirmed ledger anchor.
func (c Credential) IsAnchored() bool {
	return c.Status == StatusAnchored
}

// Summary returns the public projection of the credential. Holder contact is
// intentionally left out.
func (c Credential) Summary() Summary {
	return Summary{
		Fingerprint:  c.Fingerprint,
		Title:        c.Fields.Title,
		Category:     c.Fields.Category,
		IssuerName:   c.Fields.IssuerName,
		IssueDate:    c.Fields.IssueDate,
		Distinction:  c.Fields.Distinction,
		SerialNumber: c.Fields.SerialNumber,
		HolderName:   c.Fields.HolderName,
		Status:       c.Status,
		TxReference:  c.TxReference,
		AnchoredAt:   c.AnchoredAt,
	}
}

// Summary is the credential view returned to verifiers.
type Summary struct {
	Fingerprint  Fingerprint `json:"fingerprint"`
	Title        string      `json:"title"`
	Category     string      `json:"category"`
	IssuerName   string      `json:"issuer_name"`
	IssueDate    string      `json:"issue_date"`
	Distinction  string      `json:"distinction"`
	SerialNumber string      `json:"serial_number"`
	HolderName   string      `json:"holder_name"`
	Status       Status      `json:"anchoring_status"`
	TxReference  string      `json:"ledger_tx_reference,omitempty"`
	AnchoredAt   *time.Time  `json:"anchored_at,omitempty"`
}

// IssueRequest captures the data required to issue a credential.
type IssueRequest struct {
	Fields Fields
}

// AnchorResult reports the outcome of an anchoring request.
type AnchorResult struct {
	Credential  Credential
	BlockNumber uint64
	GasUsed     uint64
	// Pending is set when the transaction was (or may have been) submitted but
	// not yet confirmed; the credential stays pending until reconciled.
	Pending bool
}
