package ledger

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"certledger/internal/credential/fingerprint"
	"certledger/internal/credential/models"
	"certledger/internal/ledger/metrics"
	dErrors "certledger/pkg/domain-errors"
	"certledger/pkg/testutil"
)

var testContract = common.HexToAddress("0x00000000000000000000000000000000000c0de1")

type EthClientSuite struct {
	suite.Suite
	chain  *fakeChain
	client *EthClient
	fields models.Fields
	fp     models.Fingerprint
}

func TestEthClientSuite(t *testing.T) {
	suite.Run(t, new(EthClientSuite))
}

func (s *EthClientSuite) SetupTest() {
	key, err := crypto.GenerateKey()
	s.Require().NoError(err)

	s.chain = newFakeChain()
	s.client, err = NewEthClient(s.chain, testContract,
		WithSigner(key),
		WithReceiptTimeout(200*time.Millisecond),
		WithPollInterval(5*time.Millisecond),
		WithMetrics(metrics.New(prometheus.NewRegistry())),
	)
	s.Require().NoError(err)

	cred := testutil.NewTestCredential(testutil.NewTestFields(1))
	s.fields, s.fp = cred.Fields, cred.Fingerprint
}

func (s *EthClientSuite) TestEstimateAddsHeadroom() {
	est, err := s.client.EstimateAnchorCost(context.Background(), s.fp, s.fields)
	s.Require().NoError(err)

	s.Equal(uint64(180_000), est.GasLimit)
	s.Equal(0, est.UnitGasPrice.Cmp(big.NewInt(2_000_000_000)))
	s.Equal(0, est.EstimatedTotalCost.Cmp(new(big.Int).Mul(big.NewInt(2_000_000_000), big.NewInt(180_000))))
}

func (s *EthClientSuite) TestAnchorThenReadBack() {
	ctx := context.Background()

	receipt, err := s.client.Anchor(ctx, s.fp, s.fields)
	s.Require().NoError(err)
	s.Equal(ReceiptConfirmed, receipt.Status)
	s.Len(receipt.TxReference, 66)
	s.Equal(uint64(101), receipt.BlockNumber)
	s.NotZero(receipt.GasUsed)

	result, err := s.client.ReadAnchorRecord(ctx, s.fp)
	s.Require().NoError(err)
	record, ok := result.Record()
	s.Require().True(ok)
	s.Equal(s.fields.Title, record.Title)
	s.Equal(s.fields.IssueDate, record.IssueDate)
	s.Equal(s.fields.HolderBirthDate, record.HolderBirthDate)
	from, _ := s.client.SignerAddress()
	s.Equal(from.Hex(), record.IssuerAddress)
	s.True(fingerprint.Matches(s.fp, record.Fields(s.fields.IssuerID)))
	s.False(fingerprint.Matches(s.fp, record.Fields("someone-else")))

	tx, err := s.client.ReadTransaction(ctx, receipt.TxReference)
	s.Require().NoError(err)
	details, ok := tx.Details()
	s.Require().True(ok)
	s.Equal(TxConfirmed, details.Status)
	s.Equal(from.Hex(), details.From)
	s.Equal(testContract.Hex(), details.To)
	s.Equal(receipt.BlockNumber, details.BlockNumber)
	s.Require().NotNil(details.BlockTime)
}

func (s *EthClientSuite) TestAnchorDuplicateReverts() {
	ctx := context.Background()
	_, err := s.client.Anchor(ctx, s.fp, s.fields)
	s.Require().NoError(err)

	_, err = s.client.Anchor(ctx, s.fp, s.fields)
	s.True(dErrors.HasCode(err, dErrors.CodeTransactionReverted))
	s.Equal(1, s.chain.sendCount())
}

func (s *EthClientSuite) TestAnchorWithoutSigner() {
	client, err := NewEthClient(s.chain, testContract)
	s.Require().NoError(err)

	s.ErrorIs(client.SignerReady(), ErrSignerNotConfigured)
	_, err = client.Anchor(context.Background(), s.fp, s.fields)
	s.True(dErrors.HasCode(err, dErrors.CodeSignerNotConfigured))
	s.Zero(s.chain.sendCount())

	// Reads and estimates still work without a signer.
	_, err = client.EstimateAnchorCost(context.Background(), s.fp, s.fields)
	s.NoError(err)
}

func (s *EthClientSuite) TestAnchorInsufficientBalance() {
	s.chain.balance = big.NewInt(1)

	_, err := s.client.Anchor(context.Background(), s.fp, s.fields)
	s.True(dErrors.HasCode(err, dErrors.CodeInsufficientFunds))
	s.Zero(s.chain.sendCount())
}

func (s *EthClientSuite) TestAnchorReceiptNotObserved() {
	s.chain.withholdReceipts = true

	receipt, err := s.client.Anchor(context.Background(), s.fp, s.fields)
	s.True(dErrors.HasCode(err, dErrors.CodeLedgerUnavailable))
	s.Require().NotNil(receipt)
	s.Equal(ReceiptPending, receipt.Status)
	s.Len(receipt.TxReference, 66)

	tx, err := s.client.ReadTransaction(context.Background(), receipt.TxReference)
	s.Require().NoError(err)
	details, ok := tx.Details()
	s.Require().True(ok)
	s.Equal(TxPending, details.Status)
}

func (s *EthClientSuite) TestAnchorRevertedOnMine() {
	s.chain.revertOnMine = true

	receipt, err := s.client.Anchor(context.Background(), s.fp, s.fields)
	s.True(dErrors.HasCode(err, dErrors.CodeTransactionReverted))
	s.Require().NotNil(receipt)
	s.Equal(ReceiptReverted, receipt.Status)

	result, err := s.client.ReadAnchorRecord(context.Background(), s.fp)
	s.Require().NoError(err)
	s.False(result.Present())
}

func (s *EthClientSuite) TestNodeDown() {
	s.chain.nodeErr = errors.New("dial tcp 127.0.0.1:8545: connect: connection refused")
	ctx := context.Background()

	_, err := s.client.EstimateAnchorCost(ctx, s.fp, s.fields)
	s.True(dErrors.HasCode(err, dErrors.CodeLedgerUnavailable))

	_, err = s.client.ReadAnchorRecord(ctx, s.fp)
	s.True(dErrors.HasCode(err, dErrors.CodeLedgerUnavailable))

	_, err = s.client.ReadTransaction(ctx, testutil.TestTxReference(9))
	s.True(dErrors.HasCode(err, dErrors.CodeLedgerUnavailable))
}

func (s *EthClientSuite) TestNodeRejectsForFunds() {
	s.chain.nodeErr = errors.New("insufficient funds for gas * price + value")
	_, err := s.client.Anchor(context.Background(), s.fp, s.fields)
	s.True(dErrors.HasCode(err, dErrors.CodeInsufficientFunds))
}

func (s *EthClientSuite) TestReadTamperedDateIsMismatch() {
	ctx := context.Background()
	_, err := s.client.Anchor(ctx, s.fp, s.fields)
	s.Require().NoError(err)
	s.chain.mu.Lock()
	s.chain.stored[s.fp.String()][4] = big.NewInt(20241399)
	s.chain.mu.Unlock()

	result, err := s.client.ReadAnchorRecord(ctx, s.fp)
	s.Require().NoError(err)
	record, ok := result.Record()
	s.Require().True(ok)
	s.Equal("20241399", record.IssueDate)
	s.Equal(s.fields.HolderBirthDate, record.HolderBirthDate)
	s.False(fingerprint.Matches(s.fp, record.Fields(s.fields.IssuerID)))
}

func (s *EthClientSuite) TestReadAbsent() {
	ctx := context.Background()

	result, err := s.client.ReadAnchorRecord(ctx, s.fp)
	s.Require().NoError(err)
	s.False(result.Present())

	tx, err := s.client.ReadTransaction(ctx, testutil.TestTxReference(42))
	s.Require().NoError(err)
	s.False(tx.Present())
}

func TestParseTxReference(t *testing.T) {
	valid := testutil.TestTxReference(1)
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"valid", valid, false},
		{"uppercase hex", "0x" + "ABCDEF0123456789ABCDEF0123456789ABCDEF0123456789ABCDEF0123456789", false},
		{"missing prefix", valid[2:], true},
		{"too short", valid[:65], true},
		{"non hex", "0x" + "zz" + valid[4:], true},
		{"empty", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseTxReference(tt.input)
			if tt.wantErr {
				assert.True(t, dErrors.HasCode(err, dErrors.CodeMalformedReference))
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestDateEncoding(t *testing.T) {
	for _, date := range []string{"2024-06-30", "1955-11-05", "2000-02-29"} {
		encoded, err := encodeDate(date)
		require.NoError(t, err)
		assert.Equal(t, date, decodeDate(encoded))
	}

	v, err := encodeDate("1955-11-05")
	require.NoError(t, err)
	assert.Equal(t, int64(19551105), v.Int64())
}

func TestDecodeDateKeepsNonCalendarValues(t *testing.T) {
	huge, _ := new(big.Int).SetString("123456789012345678901234567890", 10)
	tests := []struct {
		in   *big.Int
		want string
	}{
		{big.NewInt(20230230), "20230230"},
		{big.NewInt(20241399), "20241399"},
		{big.NewInt(0), "0"},
		{big.NewInt(-20240101), "-20240101"},
		{huge, "123456789012345678901234567890"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, decodeDate(tt.in))
		})
	}
}

func TestNewEthClientRequiresContract(t *testing.T) {
	_, err := NewEthClient(newFakeChain(), common.Address{})
	assert.ErrorIs(t, err, ErrContractNotConfigured)
}

func TestUnavailableClient(t *testing.T) {
	ctx := context.Background()
	fp := testutil.NewTestCredential(testutil.NewTestFields(1)).Fingerprint
	client := NewUnavailable(ErrContractNotConfigured)

	_, err := client.Anchor(ctx, fp, models.Fields{})
	assert.True(t, dErrors.HasCode(err, dErrors.CodeContractNotConfigured))
	assert.ErrorIs(t, client.SignerReady(), ErrContractNotConfigured)

	_, err = client.ReadAnchorRecord(ctx, fp)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeLedgerUnavailable))

	_, err = client.ReadTransaction(ctx, "0xnope")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeMalformedReference))
}

func TestConfigParsing(t *testing.T) {
	_, err := ParseContractAddress("")
	assert.ErrorIs(t, err, ErrContractNotConfigured)
	_, err = ParseContractAddress("0x1234")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeContractNotConfigured))
	addr, err := ParseContractAddress(testContract.Hex())
	require.NoError(t, err)
	assert.Equal(t, testContract, addr)

	_, err = ParseSignerKey("")
	assert.ErrorIs(t, err, ErrSignerNotConfigured)
	_, err = ParseSignerKey("0xnothex")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeSignerNotConfigured))
	key, err := ParseSignerKey("0x4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318")
	require.NoError(t, err)
	assert.NotNil(t, key)
}
