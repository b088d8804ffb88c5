// Package fingerprint derives the content hash that identifies a credential.
//
// Canonical form v1 joins, in this order, the escaped values of:
//
//	"v1", issuer id, title, category, issuer name, issue date, distinction,
//	serial number, holder name, holder birth date, holder contact
//
// with "|" as the separator. Inside a value "\" becomes "\\" and "|" becomes
// "\|", so no value can forge a separator. Dates are YYYY-MM-DD in UTC. The
// digest is SHA-256 rendered as 64 lowercase hex characters.
//
// The order, separator, escaping and digest are a compatibility contract:
// any change must ship under a new version prefix.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"certledger/internal/credential/models"
	dErrors "certledger/pkg/domain-errors"
	"certledger/pkg/validation"
)

// Version prefixes the canonical form.
const Version = "v1"

const separator = "|"

var escaper = strings.NewReplacer(`\`, `\\`, `|`, `\|`)

// Normalize trims every field, validates it and rewrites both dates into the
// canonical calendar form.
func Normalize(fields models.Fields) (models.Fields, error) {
	f := models.Fields{
		IssuerID:        strings.TrimSpace(fields.IssuerID),
		Title:           strings.TrimSpace(fields.Title),
		Category:        strings.TrimSpace(fields.Category),
		IssuerName:      strings.TrimSpace(fields.IssuerName),
		IssueDate:       strings.TrimSpace(fields.IssueDate),
		Distinction:     strings.TrimSpace(fields.Distinction),
		SerialNumber:    strings.TrimSpace(fields.SerialNumber),
		HolderName:      strings.TrimSpace(fields.HolderName),
		HolderBirthDate: strings.TrimSpace(fields.HolderBirthDate),
		HolderContact:   strings.TrimSpace(fields.HolderContact),
	}
	if err := validation.Validate(f); err != nil {
		return models.Fields{}, err
	}

	issued, err := f.IssueTime()
	if err != nil {
		return models.Fields{}, dErrors.New(dErrors.CodeInvalidInput, "issue_date must be a date in YYYY-MM-DD form")
	}
	born, err := f.HolderBirthTime()
	if err != nil {
		return models.Fields{}, dErrors.New(dErrors.CodeInvalidInput, "holder_birth_date must be a date in YYYY-MM-DD form")
	}
	if born.After(issued) {
		return models.Fields{}, dErrors.New(dErrors.CodeInvalidInput, "holder_birth_date must not be after issue_date")
	}
	f.IssueDate = issued.Format(validation.DateLayout)
	f.HolderBirthDate = born.Format(validation.DateLayout)
	return f, nil
}

// Compute returns the fingerprint of fields. It is a pure function of the
// normalized field values.
func Compute(fields models.Fields) (models.Fingerprint, error) {
	f, err := Normalize(fields)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256([]byte(Canonical(f)))
	return models.Fingerprint(hex.EncodeToString(sum[:])), nil
}

// Canonical renders already-normalized fields in the v1 canonical form.
func Canonical(f models.Fields) string {
	parts := []string{
		Version,
		f.IssuerID,
		f.Title,
		f.Category,
		f.IssuerName,
		f.IssueDate,
		f.Distinction,
		f.SerialNumber,
		f.HolderName,
		f.HolderBirthDate,
		f.HolderContact,
	}
	for i := 1; i < len(parts); i++ {
		parts[i] = escaper.Replace(parts[i])
	}
	return strings.Join(parts, separator)
}

// Matches recomputes the fingerprint from fields and compares it with want.
// Fields that fail validation never match.
func Matches(want models.Fingerprint, fields models.Fields) bool {
	got, err := Compute(fields)
	if err != nil {
		return false
	}
	return got == want
}
