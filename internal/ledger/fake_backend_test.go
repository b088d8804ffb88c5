package ledger

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// fakeChain is an in-process stand-in for a node hosting the registry
// contract. It decodes storeDiploma calldata with the real ABI and answers
// getDiploma from what it stored.
type fakeChain struct {
	mu       sync.Mutex
	reg      *registry
	chainID  *big.Int
	gasPrice *big.Int
	gas      uint64
	balance  *big.Int
	nonce    uint64
	block    uint64
	time     uint64

	stored   map[string][]any
	issuers  map[string]common.Address
	txs      map[common.Hash]*types.Transaction
	receipts map[common.Hash]*types.Receipt

	nodeErr          error // returned by every call when set
	withholdReceipts bool
	revertOnMine     bool
	sends            int
}

func newFakeChain() *fakeChain {
	reg, err := newRegistry()
	if err != nil {
		panic(err)
	}
	return &fakeChain{
		reg:      reg,
		chainID:  big.NewInt(1337),
		gasPrice: big.NewInt(2_000_000_000),
		gas:      150_000,
		balance:  new(big.Int).Mul(big.NewInt(1_000_000_000_000_000_000), big.NewInt(10)),
		block:    100,
		time:     1_720_000_000,
		stored:   make(map[string][]any),
		issuers:  make(map[string]common.Address),
		txs:      make(map[common.Hash]*types.Transaction),
		receipts: make(map[common.Hash]*types.Receipt),
	}
}

func (f *fakeChain) ChainID(context.Context) (*big.Int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.nodeErr != nil {
		return nil, f.nodeErr
	}
	return f.chainID, nil
}

func (f *fakeChain) SuggestGasPrice(context.Context) (*big.Int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.nodeErr != nil {
		return nil, f.nodeErr
	}
	return new(big.Int).Set(f.gasPrice), nil
}

func (f *fakeChain) EstimateGas(_ context.Context, msg ethereum.CallMsg) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.nodeErr != nil {
		return 0, f.nodeErr
	}
	args, err := f.decode(msg.Data)
	if err != nil {
		return 0, err
	}
	if _, exists := f.stored[args[0].(string)]; exists {
		return 0, errors.New("execution reverted: diploma already stored")
	}
	return f.gas, nil
}

func (f *fakeChain) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.nodeErr != nil {
		return nil, f.nodeErr
	}
	method, err := f.reg.abi.MethodById(msg.Data[:4])
	if err != nil {
		return nil, err
	}
	if method.Name != methodGet {
		return nil, fmt.Errorf("unexpected call %s", method.Name)
	}
	in, err := method.Inputs.Unpack(msg.Data[4:])
	if err != nil {
		return nil, err
	}
	args, ok := f.stored[in[0].(string)]
	if !ok {
		zero := big.NewInt(0)
		return method.Outputs.Pack("", "", "", zero, "", "", "", zero, "", common.Address{}, zero, false)
	}
	return method.Outputs.Pack(
		args[1], args[2], args[3], args[4], args[5], args[6], args[7], args[8], args[9],
		f.issuers[in[0].(string)], new(big.Int).SetUint64(f.time), true,
	)
}

func (f *fakeChain) BalanceAt(context.Context, common.Address, *big.Int) (*big.Int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.nodeErr != nil {
		return nil, f.nodeErr
	}
	return new(big.Int).Set(f.balance), nil
}

func (f *fakeChain) PendingNonceAt(context.Context, common.Address) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.nodeErr != nil {
		return 0, f.nodeErr
	}
	return f.nonce, nil
}

func (f *fakeChain) SendTransaction(_ context.Context, tx *types.Transaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sends++
	if f.nodeErr != nil {
		return f.nodeErr
	}
	args, err := f.decode(tx.Data())
	if err != nil {
		return err
	}
	from, err := types.Sender(types.LatestSignerForChainID(f.chainID), tx)
	if err != nil {
		return err
	}
	f.nonce++
	f.block++
	f.txs[tx.Hash()] = tx
	status := types.ReceiptStatusSuccessful
	if f.revertOnMine {
		status = types.ReceiptStatusFailed
	} else {
		fp := args[0].(string)
		f.stored[fp] = args
		f.issuers[fp] = from
	}
	f.receipts[tx.Hash()] = &types.Receipt{
		Status:      status,
		TxHash:      tx.Hash(),
		GasUsed:     f.gas - 1_000,
		BlockNumber: new(big.Int).SetUint64(f.block),
	}
	return nil
}

func (f *fakeChain) TransactionByHash(_ context.Context, hash common.Hash) (*types.Transaction, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.nodeErr != nil {
		return nil, false, f.nodeErr
	}
	tx, ok := f.txs[hash]
	if !ok {
		return nil, false, ethereum.NotFound
	}
	return tx, f.withholdReceipts, nil
}

func (f *fakeChain) TransactionReceipt(_ context.Context, hash common.Hash) (*types.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.nodeErr != nil {
		return nil, f.nodeErr
	}
	rcpt, ok := f.receipts[hash]
	if !ok || f.withholdReceipts {
		return nil, ethereum.NotFound
	}
	return rcpt, nil
}

func (f *fakeChain) HeaderByNumber(_ context.Context, number *big.Int) (*types.Header, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.nodeErr != nil {
		return nil, f.nodeErr
	}
	return &types.Header{Number: number, Time: f.time}, nil
}

func (f *fakeChain) sendCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sends
}

func (f *fakeChain) decode(data []byte) ([]any, error) {
	method, err := f.reg.abi.MethodById(data[:4])
	if err != nil {
		return nil, err
	}
	if method.Name != methodStore {
		return nil, fmt.Errorf("unexpected call %s", method.Name)
	}
	return method.Inputs.Unpack(data[4:])
}

var _ Backend = (*fakeChain)(nil)
