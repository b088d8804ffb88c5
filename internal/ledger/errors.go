package ledger

import (
	"errors"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	dErrors "certledger/pkg/domain-errors"
)

var (
	ErrContractNotConfigured = dErrors.New(dErrors.CodeContractNotConfigured, "ledger contract address is not configured")
	ErrSignerNotConfigured   = dErrors.New(dErrors.CodeSignerNotConfigured, "ledger signer key is not configured")
	ErrEndpointNotConfigured = dErrors.New(dErrors.CodeLedgerUnavailable, "ledger endpoint is not configured")
)

func unavailable(msg string, err error) error {
	return &dErrors.Error{Code: dErrors.CodeLedgerUnavailable, Message: msg, Err: err}
}

func insufficientFunds(err error) error {
	return &dErrors.Error{Code: dErrors.CodeInsufficientFunds, Message: "signer balance cannot cover the anchoring transaction", Err: err}
}

func reverted(msg string, err error) error {
	return &dErrors.Error{Code: dErrors.CodeTransactionReverted, Message: msg, Err: err}
}

// classify maps a node error onto the ledger taxonomy. Anything the node does
// not explicitly reject is treated as unavailability.
func classify(op string, err error) error {
	var domainErr *dErrors.Error
	if errors.As(err, &domainErr) {
		return err
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "insufficient funds"):
		return insufficientFunds(err)
	case strings.Contains(msg, "execution reverted"):
		return reverted(op+": execution reverted", err)
	default:
		return unavailable(op+": ledger node unavailable", err)
	}
}

// ParseTxReference checks that ref is "0x" followed by 64 hex characters.
func ParseTxReference(ref string) (common.Hash, error) {
	if len(ref) != 66 || !strings.HasPrefix(ref, "0x") {
		return common.Hash{}, dErrors.New(dErrors.CodeMalformedReference, "transaction reference must be 0x followed by 64 hex characters")
	}
	for _, c := range ref[2:] {
		if !isHex(c) {
			return common.Hash{}, dErrors.New(dErrors.CodeMalformedReference, "transaction reference must be hexadecimal")
		}
	}
	return common.HexToHash(ref), nil
}

func isHex(c rune) bool {
	return ('0' <= c && c <= '9') || ('a' <= c && c <= 'f') || ('A' <= c && c <= 'F')
}
