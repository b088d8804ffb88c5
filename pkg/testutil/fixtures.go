package testutil

import (
	"fmt"
	"time"

	"certledger/internal/credential/fingerprint"
	"certledger/internal/credential/models"
)

// TestIssuer is the issuer id used by fixture credentials.
const TestIssuer = "issuer-test-1"

// FieldsBuilder provides a fluent interface for building credential fields.
type FieldsBuilder struct {
	fields models.Fields
}

// NewFieldsBuilder creates a FieldsBuilder with valid defaults.
func NewFieldsBuilder() *FieldsBuilder {
	return &FieldsBuilder{
		fields: models.Fields{
			IssuerID:        TestIssuer,
			Title:           "BSc Physics",
			Category:        "Bachelor",
			IssuerName:      "University of Somewhere",
			IssueDate:       "2024-06-30",
			Distinction:     "First Class",
			SerialNumber:    "X-001",
			HolderName:      "Ada Lovelace",
			HolderBirthDate: "2001-02-03",
			HolderContact:   "ada@example.org",
		},
	}
}

func (b *FieldsBuilder) WithIssuer(issuerID string) *FieldsBuilder {
	b.fields.IssuerID = issuerID
	return b
}

func (b *FieldsBuilder) WithSerial(serial string) *FieldsBuilder {
	b.fields.SerialNumber = serial
	return b
}

func (b *FieldsBuilder) WithHolder(name string) *FieldsBuilder {
	b.fields.HolderName = name
	return b
}

func (b *FieldsBuilder) Build() models.Fields {
	return b.fields
}

// NewTestFields returns valid fields whose serial number is derived from n,
// so distinct n give distinct fingerprints.
func NewTestFields(n int) models.Fields {
	return NewFieldsBuilder().WithSerial(fmt.Sprintf("X-%04d", n)).Build()
}

// NewTestCredential builds an unanchored credential for fields, computing its
// fingerprint. Panics on invalid fields.
func NewTestCredential(fields models.Fields) *models.Credential {
	normalized, err := fingerprint.Normalize(fields)
	if err != nil {
		panic(fmt.Sprintf("testutil: invalid fixture fields: %v", err))
	}
	fp, err := fingerprint.Compute(normalized)
	if err != nil {
		panic(fmt.Sprintf("testutil: fingerprint fixture: %v", err))
	}
	return &models.Credential{
		Fingerprint:     fp,
		Fields:          normalized,
		Status:          models.StatusUnanchored,
		VerificationURL: "https://verify.example.org/verify/" + fp.String(),
		CreatedAt:       time.Date(2024, 7, 1, 12, 0, 0, 0, time.UTC),
	}
}

// TestTxReference returns a well-formed transaction reference derived from n.
func TestTxReference(n int) string {
	return fmt.Sprintf("0x%064x", n)
}
