package ledger

import (
	"context"
	"crypto/ecdsa"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	dErrors "certledger/pkg/domain-errors"
)

// Dial connects to the node endpoint. HTTP endpoints connect lazily, so a
// successful Dial does not prove the node is reachable.
func Dial(ctx context.Context, endpoint string) (*ethclient.Client, error) {
	if strings.TrimSpace(endpoint) == "" {
		return nil, ErrEndpointNotConfigured
	}
	client, err := ethclient.DialContext(ctx, endpoint)
	if err != nil {
		return nil, unavailable("dial ledger node", err)
	}
	return client, nil
}

// ParseContractAddress validates a 0x-prefixed 20-byte address.
func ParseContractAddress(value string) (common.Address, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return common.Address{}, ErrContractNotConfigured
	}
	if !common.IsHexAddress(value) {
		return common.Address{}, dErrors.New(dErrors.CodeContractNotConfigured, "ledger contract address is not a valid address")
	}
	return common.HexToAddress(value), nil
}

// ParseSignerKey decodes a hex secp256k1 private key, with or without 0x.
func ParseSignerKey(value string) (*ecdsa.PrivateKey, error) {
	value = strings.TrimPrefix(strings.TrimSpace(value), "0x")
	if value == "" {
		return nil, ErrSignerNotConfigured
	}
	key, err := crypto.HexToECDSA(value)
	if err != nil {
		return nil, &dErrors.Error{Code: dErrors.CodeSignerNotConfigured, Message: "ledger signer key is not a valid private key", Err: err}
	}
	return key, nil
}
