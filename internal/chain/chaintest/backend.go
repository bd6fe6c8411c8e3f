// Package chaintest provides an in-memory chain.Backend for tests.
package chaintest

import (
	"context"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Backend is a scriptable fake of chain.Backend. Sent transactions are
// mined immediately into a new block; their receipts become visible after
// PendingPolls unsuccessful receipt lookups.
type Backend struct {
	mu sync.Mutex

	chainID  uint64
	balances map[common.Address]*big.Int
	nonces   map[common.Address]uint64
	block    uint64

	// BaseFee, when set, makes the latest header EIP-1559 enabled.
	BaseFee  *big.Int
	Tip      *big.Int
	GasPrice *big.Int

	// EstimateGasFn overrides gas estimation. The default returns 100000.
	EstimateGasFn func(msg ethereum.CallMsg) (uint64, error)
	// CallFn answers eth_call.
	CallFn func(msg ethereum.CallMsg) ([]byte, error)
	// LogsFn builds the logs attached to a transaction's receipt.
	LogsFn func(tx *types.Transaction, block uint64) []*types.Log

	BalanceErr error
	SendErr    error
	ReceiptErr error

	// ReceiptStatus is applied to receipts of sent transactions.
	ReceiptStatus uint64
	// PendingPolls is how many receipt lookups report NotFound first.
	PendingPolls int
	// Unmined leaves sent transactions without a receipt forever.
	Unmined bool

	sent     []*types.Transaction
	receipts map[common.Hash]*types.Receipt
	polls    map[common.Hash]int
	calls    map[string]int
	closed   bool
}

// NewBackend returns a fake for chainID with a successful receipt status.
func NewBackend(chainID uint64) *Backend {
	return &Backend{
		chainID:       chainID,
		balances:      make(map[common.Address]*big.Int),
		nonces:        make(map[common.Address]uint64),
		block:         100,
		Tip:           big.NewInt(1_500_000_000),
		GasPrice:      big.NewInt(30_000_000_000),
		BaseFee:       big.NewInt(25_000_000_000),
		ReceiptStatus: types.ReceiptStatusSuccessful,
		receipts:      make(map[common.Hash]*types.Receipt),
		polls:         make(map[common.Hash]int),
		calls:         make(map[string]int),
	}
}

// SetBalance funds an account.
func (b *Backend) SetBalance(addr common.Address, wei *big.Int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.balances[addr] = new(big.Int).Set(wei)
}

// Mine advances the chain by n blocks.
func (b *Backend) Mine(n uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.block += n
}

// Sent returns the transactions received so far.
func (b *Backend) Sent() []*types.Transaction {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]*types.Transaction, len(b.sent))
	copy(out, b.sent)
	return out
}

// Calls returns how many times the named method was invoked.
func (b *Backend) Calls(method string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[method]
}

// Closed reports whether Close was called.
func (b *Backend) Closed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

func (b *Backend) count(method string) {
	b.mu.Lock()
	b.calls[method]++
	b.mu.Unlock()
}

// ChainID implements chain.Backend.
func (b *Backend) ChainID(context.Context) (*big.Int, error) {
	b.count("ChainID")
	return new(big.Int).SetUint64(b.chainID), nil
}

// BlockNumber implements chain.Backend.
func (b *Backend) BlockNumber(context.Context) (uint64, error) {
	b.count("BlockNumber")
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.block, nil
}

// HeaderByNumber implements chain.Backend.
func (b *Backend) HeaderByNumber(context.Context, *big.Int) (*types.Header, error) {
	b.count("HeaderByNumber")
	b.mu.Lock()
	defer b.mu.Unlock()
	h := &types.Header{Number: new(big.Int).SetUint64(b.block)}
	if b.BaseFee != nil {
		h.BaseFee = new(big.Int).Set(b.BaseFee)
	}
	return h, nil
}

// BalanceAt implements chain.Backend.
func (b *Backend) BalanceAt(_ context.Context, account common.Address, _ *big.Int) (*big.Int, error) {
	b.count("BalanceAt")
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.BalanceErr != nil {
		return nil, b.BalanceErr
	}
	if bal, ok := b.balances[account]; ok {
		return new(big.Int).Set(bal), nil
	}
	return new(big.Int), nil
}

// PendingNonceAt implements chain.Backend.
func (b *Backend) PendingNonceAt(_ context.Context, account common.Address) (uint64, error) {
	b.count("PendingNonceAt")
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.nonces[account], nil
}

// CallContract implements chain.Backend.
func (b *Backend) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	b.count("CallContract")
	if b.CallFn == nil {
		return nil, nil
	}
	return b.CallFn(msg)
}

// EstimateGas implements chain.Backend.
func (b *Backend) EstimateGas(_ context.Context, msg ethereum.CallMsg) (uint64, error) {
	b.count("EstimateGas")
	if b.EstimateGasFn == nil {
		return 100_000, nil
	}
	return b.EstimateGasFn(msg)
}

// SuggestGasPrice implements chain.Backend.
func (b *Backend) SuggestGasPrice(context.Context) (*big.Int, error) {
	b.count("SuggestGasPrice")
	return new(big.Int).Set(b.GasPrice), nil
}

// SuggestGasTipCap implements chain.Backend.
func (b *Backend) SuggestGasTipCap(context.Context) (*big.Int, error) {
	b.count("SuggestGasTipCap")
	return new(big.Int).Set(b.Tip), nil
}

// SendTransaction implements chain.Backend.
func (b *Backend) SendTransaction(_ context.Context, tx *types.Transaction) error {
	b.count("SendTransaction")
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.SendErr != nil {
		return b.SendErr
	}

	b.sent = append(b.sent, tx)
	if signer := types.LatestSignerForChainID(tx.ChainId()); signer != nil {
		if from, err := types.Sender(signer, tx); err == nil {
			b.nonces[from] = tx.Nonce() + 1
		}
	}
	if b.Unmined {
		return nil
	}

	b.block++
	receipt := &types.Receipt{
		Status:            b.ReceiptStatus,
		TxHash:            tx.Hash(),
		BlockNumber:       new(big.Int).SetUint64(b.block),
		GasUsed:           tx.Gas() / 2,
		EffectiveGasPrice: tx.GasFeeCap(),
	}
	if b.LogsFn != nil {
		receipt.Logs = b.LogsFn(tx, b.block)
	}
	b.receipts[tx.Hash()] = receipt
	return nil
}

// TransactionReceipt implements chain.Backend.
func (b *Backend) TransactionReceipt(_ context.Context, hash common.Hash) (*types.Receipt, error) {
	b.count("TransactionReceipt")
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.ReceiptErr != nil {
		return nil, b.ReceiptErr
	}
	if b.polls[hash] < b.PendingPolls {
		b.polls[hash]++
		return nil, ethereum.NotFound
	}
	r, ok := b.receipts[hash]
	if !ok {
		return nil, ethereum.NotFound
	}
	return r, nil
}

// SetReceipt installs a receipt for hash directly.
func (b *Backend) SetReceipt(hash common.Hash, status uint64, block uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.receipts[hash] = &types.Receipt{
		Status:      status,
		TxHash:      hash,
		BlockNumber: new(big.Int).SetUint64(block),
	}
}

// Close implements chain.Backend.
func (b *Backend) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
}
