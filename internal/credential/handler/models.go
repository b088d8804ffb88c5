package handler

import (
	"strings"
	"time"

	"certledger/internal/credential/models"
	"certledger/internal/ledger"
)

// IssueCredentialRequest is the body of POST /credentials. The issuer id is
// taken from the authenticated caller, never from the body.
type IssueCredentialRequest struct {
	Title           string `json:"title"`
	Category        string `json:"category"`
	IssuerName      string `json:"issuer_name"`
	IssueDate       string `json:"issue_date"`
	Distinction     string `json:"distinction"`
	SerialNumber    string `json:"serial_number"`
	HolderName      string `json:"holder_name"`
	HolderBirthDate string `json:"holder_birth_date"`
	HolderContact   string `json:"holder_contact"`
}

func (r *IssueCredentialRequest) Sanitize() {
	r.Title = strings.TrimSpace(r.Title)
	r.Category = strings.TrimSpace(r.Category)
	r.IssuerName = strings.TrimSpace(r.IssuerName)
	r.IssueDate = strings.TrimSpace(r.IssueDate)
	r.Distinction = strings.TrimSpace(r.Distinction)
	r.SerialNumber = strings.TrimSpace(r.SerialNumber)
	r.HolderName = strings.TrimSpace(r.HolderName)
	r.HolderBirthDate = strings.TrimSpace(r.HolderBirthDate)
	r.HolderContact = strings.TrimSpace(r.HolderContact)
}

func (r *IssueCredentialRequest) toModel(issuerID string) models.IssueRequest {
	return models.IssueRequest{Fields: models.Fields{
		IssuerID:        issuerID,
		Title:           r.Title,
		Category:        r.Category,
		IssuerName:      r.IssuerName,
		IssueDate:       r.IssueDate,
		Distinction:     r.Distinction,
		SerialNumber:    r.SerialNumber,
		HolderName:      r.HolderName,
		HolderBirthDate: r.HolderBirthDate,
		HolderContact:   r.HolderContact,
	}}
}

// CredentialResponse is the issuer's full view of a credential, including the
// holder contact.
type CredentialResponse struct {
	Fingerprint     string     `json:"fingerprint"`
	IssuerID        string     `json:"issuer_id"`
	Title           string     `json:"title"`
	Category        string     `json:"category"`
	IssuerName      string     `json:"issuer_name"`
	IssueDate       string     `json:"issue_date"`
	Distinction     string     `json:"distinction"`
	SerialNumber    string     `json:"serial_number"`
	HolderName      string     `json:"holder_name"`
	HolderBirthDate string     `json:"holder_birth_date"`
	HolderContact   string     `json:"holder_contact"`
	Status          string     `json:"anchoring_status"`
	TxReference     string     `json:"ledger_tx_reference,omitempty"`
	AnchoredAt      *time.Time `json:"anchored_at,omitempty"`
	PendingSince    *time.Time `json:"pending_since,omitempty"`
	FailureReason   string     `json:"failure_reason,omitempty"`
	VerificationURL string     `json:"verification_payload_url"`
	CreatedAt       time.Time  `json:"created_at"`
}

func toCredentialResponse(c *models.Credential) CredentialResponse {
	return CredentialResponse{
		Fingerprint:     c.Fingerprint.String(),
		IssuerID:        c.Fields.IssuerID,
		Title:           c.Fields.Title,
		Category:        c.Fields.Category,
		IssuerName:      c.Fields.IssuerName,
		IssueDate:       c.Fields.IssueDate,
		Distinction:     c.Fields.Distinction,
		SerialNumber:    c.Fields.SerialNumber,
		HolderName:      c.Fields.HolderName,
		HolderBirthDate: c.Fields.HolderBirthDate,
		HolderContact:   c.Fields.HolderContact,
		Status:          string(c.Status),
		TxReference:     c.TxReference,
		AnchoredAt:      c.AnchoredAt,
		PendingSince:    c.PendingSince,
		FailureReason:   c.FailureReason,
		VerificationURL: c.VerificationURL,
		CreatedAt:       c.CreatedAt,
	}
}

// AnchorResponse reports an anchoring outcome. BlockNumber and GasUsed are
// zero while the transaction is pending.
type AnchorResponse struct {
	Credential  CredentialResponse `json:"credential"`
	BlockNumber uint64             `json:"block_number,omitempty"`
	GasUsed     uint64             `json:"gas_used,omitempty"`
	Pending     bool               `json:"pending"`
}

// EstimateResponse carries wei amounts as decimal strings.
type EstimateResponse struct {
	Fingerprint        string `json:"fingerprint"`
	GasLimit           uint64 `json:"gas_limit"`
	UnitGasPrice       string `json:"unit_gas_price_wei"`
	EstimatedTotalCost string `json:"estimated_total_cost_wei"`
}

func toEstimateResponse(fp models.Fingerprint, e *ledger.CostEstimate) EstimateResponse {
	res := EstimateResponse{Fingerprint: fp.String(), GasLimit: e.GasLimit, UnitGasPrice: "0", EstimatedTotalCost: "0"}
	if e.UnitGasPrice != nil {
		res.UnitGasPrice = e.UnitGasPrice.String()
	}
	if e.EstimatedTotalCost != nil {
		res.EstimatedTotalCost = e.EstimatedTotalCost.String()
	}
	return res
}

// ReconcileResponse is returned by the admin reconcile route.
type ReconcileResponse struct {
	Outcome    string             `json:"outcome"`
	Credential CredentialResponse `json:"credential"`
}
