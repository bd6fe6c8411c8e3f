package chain

import (
	"context"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"golang.org/x/time/rate"
)

// RateLimiter provides per-endpoint rate limiting using token bucket algorithm.
type RateLimiter struct {
	limiters   map[string]*rate.Limiter
	mu         sync.RWMutex
	rateLimit  rate.Limit
	burstLimit int
}

// NewRateLimiter creates a new rate limiter with the specified rate and burst.
// rate is requests per second, burst is the maximum burst size.
// A non-positive rate disables limiting.
func NewRateLimiter(ratePerSecond float64, burst int) *RateLimiter {
	limit := rate.Limit(ratePerSecond)
	if ratePerSecond <= 0 {
		limit = rate.Inf
	}
	return &RateLimiter{
		limiters:   make(map[string]*rate.Limiter),
		rateLimit:  limit,
		burstLimit: max(burst, 1),
	}
}

// DefaultRateLimiter returns a limiter suited to public RPC endpoints:
// 10 requests/second with a burst of 20.
func DefaultRateLimiter() *RateLimiter {
	return NewRateLimiter(10, 20)
}

// Allow reports whether a request to endpoint may proceed now.
func (r *RateLimiter) Allow(endpoint string) bool {
	return r.getLimiter(endpoint).Allow()
}

// Wait blocks until a request to the endpoint is allowed or the context is canceled.
func (r *RateLimiter) Wait(ctx context.Context, endpoint string) error {
	return r.getLimiter(endpoint).Wait(ctx)
}

// getLimiter returns the limiter for the given endpoint, creating one if needed.
func (r *RateLimiter) getLimiter(endpoint string) *rate.Limiter {
	r.mu.RLock()
	limiter, exists := r.limiters[endpoint]
	r.mu.RUnlock()

	if exists {
		return limiter
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if limiter, exists = r.limiters[endpoint]; exists {
		return limiter
	}

	limiter = rate.NewLimiter(r.rateLimit, r.burstLimit)
	r.limiters[endpoint] = limiter
	return limiter
}

// LimitedBackend throttles every RPC call made through the wrapped Backend.
type LimitedBackend struct {
	Backend
	limiter  *RateLimiter
	endpoint string
}

// NewLimitedBackend wraps b so that each call waits on limiter for endpoint.
func NewLimitedBackend(b Backend, limiter *RateLimiter, endpoint string) *LimitedBackend {
	return &LimitedBackend{Backend: b, limiter: limiter, endpoint: endpoint}
}

func (l *LimitedBackend) wait(ctx context.Context) error {
	return l.limiter.Wait(ctx, l.endpoint)
}

// ChainID implements Backend.
func (l *LimitedBackend) ChainID(ctx context.Context) (*big.Int, error) {
	if err := l.wait(ctx); err != nil {
		return nil, err
	}
	return l.Backend.ChainID(ctx)
}

// BlockNumber implements Backend.
func (l *LimitedBackend) BlockNumber(ctx context.Context) (uint64, error) {
	if err := l.wait(ctx); err != nil {
		return 0, err
	}
	return l.Backend.BlockNumber(ctx)
}

// HeaderByNumber implements Backend.
func (l *LimitedBackend) HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error) {
	if err := l.wait(ctx); err != nil {
		return nil, err
	}
	return l.Backend.HeaderByNumber(ctx, number)
}

// BalanceAt implements Backend.
func (l *LimitedBackend) BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error) {
	if err := l.wait(ctx); err != nil {
		return nil, err
	}
	return l.Backend.BalanceAt(ctx, account, blockNumber)
}

// PendingNonceAt implements Backend.
func (l *LimitedBackend) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	if err := l.wait(ctx); err != nil {
		return 0, err
	}
	return l.Backend.PendingNonceAt(ctx, account)
}

// CallContract implements Backend.
func (l *LimitedBackend) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	if err := l.wait(ctx); err != nil {
		return nil, err
	}
	return l.Backend.CallContract(ctx, msg, blockNumber)
}

// EstimateGas implements Backend.
func (l *LimitedBackend) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	if err := l.wait(ctx); err != nil {
		return 0, err
	}
	return l.Backend.EstimateGas(ctx, msg)
}

// SuggestGasPrice implements Backend.
func (l *LimitedBackend) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	if err := l.wait(ctx); err != nil {
		return nil, err
	}
	return l.Backend.SuggestGasPrice(ctx)
}

// SuggestGasTipCap implements Backend.
func (l *LimitedBackend) SuggestGasTipCap(ctx context.Context) (*big.Int, error) {
	if err := l.wait(ctx); err != nil {
		return nil, err
	}
	return l.Backend.SuggestGasTipCap(ctx)
}

// SendTransaction implements Backend.
func (l *LimitedBackend) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	if err := l.wait(ctx); err != nil {
		return err
	}
	return l.Backend.SendTransaction(ctx, tx)
}

// TransactionReceipt implements Backend.
func (l *LimitedBackend) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	if err := l.wait(ctx); err != nil {
		return nil, err
	}
	return l.Backend.TransactionReceipt(ctx, txHash)
}
