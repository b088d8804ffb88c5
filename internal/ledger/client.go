package ledger

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"golang.org/x/sync/errgroup"

	"certledger/internal/credential/models"
	"certledger/internal/ledger/metrics"
	"certledger/internal/platform/tracer"
	dErrors "certledger/pkg/domain-errors"
)

// Backend is the subset of the node RPC API the EthClient needs.
type Backend interface {
	ChainID(ctx context.Context) (*big.Int, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionByHash(ctx context.Context, hash common.Hash) (tx *types.Transaction, isPending bool, err error)
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
}

var _ Backend = (*ethclient.Client)(nil)

const (
	defaultReceiptTimeout = 2 * time.Minute
	defaultPollInterval   = 2 * time.Second
	defaultGasHeadroomPct = 20
)

// EthClient implements Client against a go-ethereum compatible node.
type EthClient struct {
	backend        Backend
	registry       *registry
	contract       common.Address
	key            *ecdsa.PrivateKey
	from           common.Address
	receiptTimeout time.Duration
	pollInterval   time.Duration
	gasHeadroomPct uint64

	chainMu sync.Mutex
	chainID *big.Int

	logger  *slog.Logger
	tracer  tracer.Tracer
	metrics *metrics.Metrics
}

// Option configures an EthClient.
type Option func(*EthClient)

// WithSigner sets the key that signs anchoring transactions. Without it the
// client can estimate and read but Anchor fails with SignerNotConfigured.
func WithSigner(key *ecdsa.PrivateKey) Option {
	return func(c *EthClient) {
		c.key = key
	}
}

func WithReceiptTimeout(d time.Duration) Option {
	return func(c *EthClient) {
		if d > 0 {
			c.receiptTimeout = d
		}
	}
}

func WithPollInterval(d time.Duration) Option {
	return func(c *EthClient) {
		if d > 0 {
			c.pollInterval = d
		}
	}
}

// WithGasHeadroom sets the percentage added on top of the simulated gas.
func WithGasHeadroom(pct uint64) Option {
	return func(c *EthClient) {
		c.gasHeadroomPct = pct
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *EthClient) {
		c.logger = logger
	}
}

func WithTracer(t tracer.Tracer) Option {
	return func(c *EthClient) {
		c.tracer = t
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *EthClient) {
		c.metrics = m
	}
}

// NewEthClient builds a client for the registry contract at contract.
func NewEthClient(backend Backend, contract common.Address, opts ...Option) (*EthClient, error) {
	if backend == nil {
		return nil, ErrEndpointNotConfigured
	}
	if contract == (common.Address{}) {
		return nil, ErrContractNotConfigured
	}
	reg, err := newRegistry()
	if err != nil {
		return nil, err
	}
	c := &EthClient{
		backend:        backend,
		registry:       reg,
		contract:       contract,
		receiptTimeout: defaultReceiptTimeout,
		pollInterval:   defaultPollInterval,
		gasHeadroomPct: defaultGasHeadroomPct,
		logger:         slog.Default(),
		tracer:         tracer.NewNoop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.key != nil {
		c.from = crypto.PubkeyToAddress(c.key.PublicKey)
	}
	return c, nil
}

// SignerAddress returns the account that pays for anchoring, if configured.
func (c *EthClient) SignerAddress() (common.Address, bool) {
	return c.from, c.key != nil
}

func (c *EthClient) SignerReady() error {
	if c.key == nil {
		return ErrSignerNotConfigured
	}
	return nil
}

func (c *EthClient) EstimateAnchorCost(ctx context.Context, fp models.Fingerprint, fields models.Fields) (est *CostEstimate, err error) {
	ctx, span := c.tracer.Start(ctx, tracer.SpanLedgerEstimate, tracer.String(tracer.AttrFingerprint, fp.String()))
	start := time.Now()
	defer func() {
		span.End(err)
		c.observe("estimate", start, err)
	}()

	data, err := c.registry.packStore(fp, fields)
	if err != nil {
		return nil, err
	}

	var (
		gasPrice *big.Int
		gas      uint64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		price, err := c.backend.SuggestGasPrice(gctx)
		if err != nil {
			return classify("suggest gas price", err)
		}
		gasPrice = price
		return nil
	})
	g.Go(func() error {
		simulated, err := c.backend.EstimateGas(gctx, c.callMsg(data))
		if err != nil {
			return classify("estimate gas", err)
		}
		gas = simulated
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	limit := c.withHeadroom(gas)
	return &CostEstimate{
		GasLimit:           limit,
		UnitGasPrice:       gasPrice,
		EstimatedTotalCost: new(big.Int).Mul(gasPrice, new(big.Int).SetUint64(limit)),
	}, nil
}

func (c *EthClient) Anchor(ctx context.Context, fp models.Fingerprint, fields models.Fields) (receipt *AnchorReceipt, err error) {
	ctx, span := c.tracer.Start(ctx, tracer.SpanLedgerAnchor, tracer.String(tracer.AttrFingerprint, fp.String()))
	start := time.Now()
	defer func() {
		span.End(err)
		c.observe("anchor", start, err)
	}()

	if err := c.SignerReady(); err != nil {
		return nil, err
	}
	data, err := c.registry.packStore(fp, fields)
	if err != nil {
		return nil, err
	}
	chainID, err := c.chain(ctx)
	if err != nil {
		return nil, err
	}
	gasPrice, err := c.backend.SuggestGasPrice(ctx)
	if err != nil {
		return nil, classify("suggest gas price", err)
	}
	gas, err := c.backend.EstimateGas(ctx, c.callMsg(data))
	if err != nil {
		return nil, classify("estimate gas", err)
	}
	limit := c.withHeadroom(gas)

	cost := new(big.Int).Mul(gasPrice, new(big.Int).SetUint64(limit))
	balance, err := c.backend.BalanceAt(ctx, c.from, nil)
	if err != nil {
		return nil, classify("read signer balance", err)
	}
	if balance.Cmp(cost) < 0 {
		return nil, insufficientFunds(fmt.Errorf("balance %s wei below estimated cost %s wei", balance, cost))
	}

	nonce, err := c.backend.PendingNonceAt(ctx, c.from)
	if err != nil {
		return nil, classify("read signer nonce", err)
	}
	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &c.contract,
		Value:    big.NewInt(0),
		Gas:      limit,
		GasPrice: gasPrice,
		Data:     data,
	})
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(chainID), c.key)
	if err != nil {
		return nil, fmt.Errorf("sign anchoring transaction: %w", err)
	}
	ref := signed.Hash().Hex()

	if err := c.backend.SendTransaction(ctx, signed); err != nil {
		classified := classify("submit transaction", err)
		if dErrors.HasCode(classified, dErrors.CodeLedgerUnavailable) {
			// The node may have accepted it before the connection failed.
			return &AnchorReceipt{TxReference: ref, Status: ReceiptPending}, classified
		}
		return nil, classified
	}
	span.AddEvent(tracer.EventTxSubmitted, tracer.String(tracer.AttrTxReference, ref))
	c.logger.InfoContext(ctx, "anchoring transaction submitted",
		"fingerprint", fp.Short(),
		"tx_reference", ref,
		"nonce", nonce,
		"gas_limit", limit,
	)

	rcpt, err := c.waitReceipt(ctx, signed.Hash())
	if err != nil {
		c.metrics.RecordReceiptTimeout()
		span.AddEvent(tracer.EventReceiptTimedOut)
		return &AnchorReceipt{TxReference: ref, Status: ReceiptPending},
			unavailable("anchoring transaction submitted but its receipt was not observed", err)
	}

	receipt = &AnchorReceipt{
		TxReference: ref,
		BlockNumber: rcpt.BlockNumber.Uint64(),
		GasUsed:     rcpt.GasUsed,
		Status:      ReceiptConfirmed,
	}
	span.SetAttributes(
		tracer.Uint64(tracer.AttrBlockNumber, receipt.BlockNumber),
		tracer.Uint64(tracer.AttrGasUsed, receipt.GasUsed),
	)
	if rcpt.Status == types.ReceiptStatusFailed {
		receipt.Status = ReceiptReverted
		return receipt, reverted("anchoring transaction reverted", nil)
	}
	c.metrics.ObserveGasUsed(rcpt.GasUsed)
	return receipt, nil
}

func (c *EthClient) ReadAnchorRecord(ctx context.Context, fp models.Fingerprint) (result AnchorRecordResult, err error) {
	ctx, span := c.tracer.Start(ctx, tracer.SpanLedgerReadRecord, tracer.String(tracer.AttrFingerprint, fp.String()))
	start := time.Now()
	defer func() {
		span.SetAttributes(tracer.Bool(tracer.AttrPresent, result.Present()))
		span.End(err)
		c.observe("read_record", start, err)
	}()

	data, err := c.registry.packGet(fp)
	if err != nil {
		return AnchorRecordResult{}, err
	}
	out, err := c.backend.CallContract(ctx, ethereum.CallMsg{To: &c.contract, Data: data}, nil)
	if err != nil {
		classified := classify("read anchor record", err)
		if dErrors.HasCode(classified, dErrors.CodeTransactionReverted) {
			return AbsentRecord(), nil
		}
		return AnchorRecordResult{}, classified
	}
	if len(out) == 0 {
		return AnchorRecordResult{}, dErrors.New(dErrors.CodeContractNotConfigured, "no registry contract deployed at the configured address")
	}
	result, err = c.registry.unpackGet(out)
	if err != nil {
		return AnchorRecordResult{}, unavailable("decode anchor record", err)
	}
	return result, nil
}

func (c *EthClient) ReadTransaction(ctx context.Context, txReference string) (result TransactionResult, err error) {
	hash, err := ParseTxReference(txReference)
	if err != nil {
		return TransactionResult{}, err
	}
	ctx, span := c.tracer.Start(ctx, tracer.SpanLedgerReadTx, tracer.String(tracer.AttrTxReference, hash.Hex()))
	start := time.Now()
	defer func() {
		span.SetAttributes(tracer.Bool(tracer.AttrPresent, result.Present()))
		span.End(err)
		c.observe("read_transaction", start, err)
	}()

	tx, isPending, err := c.backend.TransactionByHash(ctx, hash)
	if errors.Is(err, ethereum.NotFound) {
		return AbsentTransaction(), nil
	}
	if err != nil {
		return TransactionResult{}, classify("read transaction", err)
	}

	details := TransactionDetails{
		Reference: hash.Hex(),
		Value:     tx.Value(),
		GasLimit:  tx.Gas(),
		GasPrice:  tx.GasPrice(),
		Status:    TxPending,
	}
	if to := tx.To(); to != nil {
		details.To = to.Hex()
	}
	if from, err := types.Sender(types.LatestSignerForChainID(tx.ChainId()), tx); err == nil {
		details.From = from.Hex()
	}
	if isPending {
		return PresentTransaction(details), nil
	}

	rcpt, err := c.backend.TransactionReceipt(ctx, hash)
	if errors.Is(err, ethereum.NotFound) {
		return PresentTransaction(details), nil
	}
	if err != nil {
		return TransactionResult{}, classify("read transaction receipt", err)
	}
	details.GasUsed = rcpt.GasUsed
	details.BlockNumber = rcpt.BlockNumber.Uint64()
	details.Status = TxConfirmed
	if rcpt.Status == types.ReceiptStatusFailed {
		details.Status = TxReverted
	}
	header, err := c.backend.HeaderByNumber(ctx, rcpt.BlockNumber)
	if err != nil {
		c.logger.DebugContext(ctx, "block header unavailable", "block", details.BlockNumber, "error", err)
	} else {
		blockTime := time.Unix(int64(header.Time), 0).UTC() //nolint:gosec // block timestamps fit in int64
		details.BlockTime = &blockTime
	}
	return PresentTransaction(details), nil
}

func (c *EthClient) callMsg(data []byte) ethereum.CallMsg {
	return ethereum.CallMsg{From: c.from, To: &c.contract, Data: data}
}

func (c *EthClient) withHeadroom(gas uint64) uint64 {
	return gas + gas*c.gasHeadroomPct/100
}

// chain returns the node's chain id, fetched once.
func (c *EthClient) chain(ctx context.Context) (*big.Int, error) {
	c.chainMu.Lock()
	cached := c.chainID
	c.chainMu.Unlock()
	if cached != nil {
		return cached, nil
	}
	id, err := c.backend.ChainID(ctx)
	if err != nil {
		return nil, classify("read chain id", err)
	}
	c.chainMu.Lock()
	c.chainID = id
	c.chainMu.Unlock()
	return id, nil
}

func (c *EthClient) waitReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	ctx, cancel := context.WithTimeout(ctx, c.receiptTimeout)
	defer cancel()
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		rcpt, err := c.backend.TransactionReceipt(ctx, hash)
		if err == nil {
			return rcpt, nil
		}
		if !errors.Is(err, ethereum.NotFound) {
			c.logger.DebugContext(ctx, "receipt poll failed", "tx_reference", hash.Hex(), "error", err)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (c *EthClient) observe(op string, start time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = string(dErrors.CodeOf(err))
	}
	c.metrics.ObserveCall(op, outcome, time.Since(start).Seconds())
}
