package ledger

import (
	"math/big"
	"time"

	"certledger/internal/credential/models"
)

// CostEstimate is the expected price of anchoring one credential, in wei.
// Never persisted.
type CostEstimate struct {
	GasLimit           uint64
	UnitGasPrice       *big.Int
	EstimatedTotalCost *big.Int
}

// ReceiptStatus is the outcome carried by an AnchorReceipt.
type ReceiptStatus string

const (
	ReceiptConfirmed ReceiptStatus = "confirmed"
	ReceiptReverted  ReceiptStatus = "reverted"
	// ReceiptPending means the transaction was submitted but no receipt was
	// observed before the wait gave up.
	ReceiptPending ReceiptStatus = "pending"
)

// AnchorReceipt describes a submitted anchoring transaction.
type AnchorReceipt struct {
	TxReference string
	BlockNumber uint64
	GasUsed     uint64
	Status      ReceiptStatus
}

// AnchorRecord is the on-chain copy of a credential's descriptive fields.
// The issuer id is not stored on chain; IssuerAddress is the signing account.
type AnchorRecord struct {
	Title           string
	Category        string
	IssuerName      string
	IssueDate       string
	Distinction     string
	SerialNumber    string
	HolderName      string
	HolderBirthDate string
	HolderContact   string
	IssuerAddress   string
	AnchoredAt      time.Time
}

// Fields combines the on-chain fields with the locally known issuer id so the
// fingerprint can be recomputed from ledger data.
func (r AnchorRecord) Fields(issuerID string) models.Fields {
	return models.Fields{
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
	}
}

// AnchorRecordResult is either Present(record) or Absent. Absence is a normal
// outcome of a ledger read, not an error.
type AnchorRecordResult struct {
	record *AnchorRecord
}

// PresentRecord wraps a record read from the ledger.
func PresentRecord(r AnchorRecord) AnchorRecordResult {
	return AnchorRecordResult{record: &r}
}

// AbsentRecord reports that the ledger holds no record for the fingerprint.
func AbsentRecord() AnchorRecordResult {
	return AnchorRecordResult{}
}

func (r AnchorRecordResult) Present() bool {
	return r.record != nil
}

// Record returns the record and whether it is present.
func (r AnchorRecordResult) Record() (AnchorRecord, bool) {
	if r.record == nil {
		return AnchorRecord{}, false
	}
	return *r.record, true
}

// TxStatus is the lifecycle state of a ledger transaction.
type TxStatus string

const (
	TxPending   TxStatus = "pending"
	TxConfirmed TxStatus = "confirmed"
	TxReverted  TxStatus = "reverted"
)

// TransactionDetails is what the ledger reports about one transaction.
type TransactionDetails struct {
	Reference   string
	From        string
	To          string
	Value       *big.Int
	GasLimit    uint64
	GasPrice    *big.Int
	GasUsed     uint64
	BlockNumber uint64
	BlockTime   *time.Time
	Status      TxStatus
}

// TransactionResult is either Present(details) or Absent.
type TransactionResult struct {
	details *TransactionDetails
}

func PresentTransaction(d TransactionDetails) TransactionResult {
	return TransactionResult{details: &d}
}

func AbsentTransaction() TransactionResult {
	return TransactionResult{}
}

func (r TransactionResult) Present() bool {
	return r.details != nil
}

func (r TransactionResult) Details() (TransactionDetails, bool) {
	if r.details == nil {
		return TransactionDetails{}, false
	}
	return *r.details, true
}
