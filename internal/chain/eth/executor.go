// Package eth executes ReviewRegistry calls on EVM chains: precondition
// checks, gas estimation, fee selection, signing, broadcast and
// confirmation tracking.
package eth

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"github.com/reviewchain/reviewchain/internal/chain"
	"github.com/reviewchain/reviewchain/internal/contracts"
	"github.com/reviewchain/reviewchain/internal/metrics"
	"github.com/reviewchain/reviewchain/internal/store"
	"github.com/reviewchain/reviewchain/internal/wallet"
	reviewerr "github.com/reviewchain/reviewchain/pkg/errors"
)

// Options tunes transaction execution.
type Options struct {
	// GasCeiling is the hard upper bound on any transaction's gas limit.
	GasCeiling uint64
	// GasBufferPercent pads the node's estimate.
	GasBufferPercent uint64
	Speed            GasSpeed
	PollInterval     time.Duration
	// Confirmations is the number of blocks, including the inclusion
	// block, required before a transaction counts as confirmed.
	Confirmations  uint64
	ConfirmTimeout time.Duration
}

// DefaultOptions returns the execution defaults.
func DefaultOptions() Options {
	return Options{
		GasCeiling:       500_000,
		GasBufferPercent: 20,
		Speed:            GasSpeedMedium,
		PollInterval:     2 * time.Second,
		Confirmations:    1,
		ConfirmTimeout:   3 * time.Minute,
	}
}

// Tracker records broadcast transactions so they can be reconciled after
// a crash or a confirmation timeout.
type Tracker interface {
	TrackPending(ctx context.Context, tx store.Transaction) error
	UpdateStatus(ctx context.Context, hash string, status store.TxStatus, reason string) error
}

// Receipt describes a confirmed transaction.
type Receipt struct {
	TxHash            common.Hash    `json:"tx_hash"`
	Method            string         `json:"method"`
	NetworkID         string         `json:"network"`
	ChainID           uint64         `json:"chain_id"`
	From              common.Address `json:"from"`
	Nonce             uint64         `json:"nonce"`
	BlockNumber       uint64         `json:"block_number"`
	GasLimit          uint64         `json:"gas_limit"`
	GasUsed           uint64         `json:"gas_used"`
	EffectiveGasPrice *big.Int       `json:"effective_gas_price,omitempty"`
	ExplorerURL       string         `json:"explorer_url,omitempty"`
	Logs              []*types.Log   `json:"-"`
}

// Fee returns the amount paid for gas, when known.
func (r *Receipt) Fee() *big.Int {
	if r.EffectiveGasPrice == nil {
		return nil
	}
	return new(big.Int).Mul(r.EffectiveGasPrice, new(big.Int).SetUint64(r.GasUsed))
}

// Executor sends contract calls on behalf of a connected wallet session.
// The same path serves submissions, votes and comments.
type Executor struct {
	opts    Options
	tracker Tracker
	nonces  *NonceManager
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// NewExecutor creates an executor. tracker, logger and m may be nil.
func NewExecutor(opts Options, tracker Tracker, logger *zap.Logger, m *metrics.Metrics) *Executor {
	defaults := DefaultOptions()
	if opts.PollInterval <= 0 {
		opts.PollInterval = defaults.PollInterval
	}
	if opts.ConfirmTimeout <= 0 {
		opts.ConfirmTimeout = defaults.ConfirmTimeout
	}
	if opts.Confirmations == 0 {
		opts.Confirmations = 1
	}
	if opts.Speed == "" {
		opts.Speed = defaults.Speed
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{
		opts:    opts,
		tracker: tracker,
		nonces:  NewNonceManager(),
		logger:  logger.Named("executor"),
		metrics: m,
	}
}

// Options returns the effective options.
func (e *Executor) Options() Options {
	return e.opts
}

// Execute checks preconditions, estimates, signs, sends and waits for
// call to be confirmed. It only returns a receipt once the transaction has
// the configured number of confirmations.
func (e *Executor) Execute(ctx context.Context, sess wallet.Session, call contracts.Call) (rcpt *Receipt, err error) {
	ctx, end := e.metrics.StartStage(ctx, "transaction")
	defer func() {
		end(err)
		e.metrics.RecordTransaction(ctx, call.Method, err)
	}()

	binding, err := e.preflight(ctx, sess)
	if err != nil {
		return nil, err
	}
	backend := binding.Backend
	profile := binding.Profile
	to := profile.Contracts.ReviewRegistry

	estimate, err := backend.EstimateGas(ctx, ethereum.CallMsg{
		From: sess.Account,
		To:   &to,
		Data: call.Data,
	})
	if err != nil {
		return nil, classifyEstimateError(err, call.Method)
	}
	gasLimit, err := GasLimit(estimate, e.opts.GasBufferPercent, e.opts.GasCeiling)
	if err != nil {
		return nil, err
	}

	quote, err := SuggestFees(ctx, backend, e.opts.Speed)
	if err != nil {
		return nil, networkError(err, "quoting fees")
	}
	pending, err := backend.PendingNonceAt(ctx, sess.Account)
	if err != nil {
		return nil, networkError(err, "fetching nonce")
	}
	nonce := e.nonces.Next(profile.ChainID, sess.Account, pending)

	chainID := new(big.Int).SetUint64(profile.ChainID)
	tx := newTransaction(quote, chainID, nonce, to, gasLimit, call.Data)
	signed, err := sess.Signer.SignTx(ctx, tx, chainID)
	if err != nil {
		e.nonces.Release(profile.ChainID, sess.Account, nonce)
		return nil, classifySignError(err)
	}
	if err := backend.SendTransaction(ctx, signed); err != nil {
		e.nonces.Release(profile.ChainID, sess.Account, nonce)
		return nil, classifySendError(err, call.Method)
	}

	hash := signed.Hash()
	log := e.logger.With(
		zap.String("tx_hash", hash.Hex()),
		zap.String("method", call.Method),
		zap.String("network", profile.ID),
	)
	log.Info("transaction sent",
		zap.Uint64("nonce", nonce),
		zap.Uint64("gas_limit", gasLimit),
		zap.String("max_fee", FormatGasPrice(quote.PricePerGas())),
	)
	e.track(ctx, log, store.Transaction{
		Hash:      hash.Hex(),
		Method:    call.Method,
		NetworkID: profile.ID,
		ChainID:   profile.ChainID,
		From:      sess.Account.Hex(),
		Nonce:     nonce,
		GasLimit:  gasLimit,
		Status:    store.TxPending,
	})

	receipt, err := e.awaitConfirmation(ctx, backend, hash)
	if err != nil {
		log.Warn("transaction not confirmed", zap.Error(err))
		return nil, reviewerr.WithDetails(err, map[string]string{
			"tx_hash":  hash.Hex(),
			"explorer": profile.TxURL(hash.Hex()),
		})
	}

	if receipt.Status != types.ReceiptStatusSuccessful {
		e.settle(ctx, log, hash, store.TxFailed, "reverted")
		rejected := contractRejected(call.Method, "execution", "")
		return nil, reviewerr.WithDetails(rejected, map[string]string{
			"tx_hash":  hash.Hex(),
			"explorer": profile.TxURL(hash.Hex()),
		})
	}

	e.settle(ctx, log, hash, store.TxConfirmed, "")
	log.Info("transaction confirmed",
		zap.Uint64("block", receipt.BlockNumber.Uint64()),
		zap.Uint64("gas_used", receipt.GasUsed),
	)

	return &Receipt{
		TxHash:            hash,
		Method:            call.Method,
		NetworkID:         profile.ID,
		ChainID:           profile.ChainID,
		From:              sess.Account,
		Nonce:             nonce,
		BlockNumber:       receipt.BlockNumber.Uint64(),
		GasLimit:          gasLimit,
		GasUsed:           receipt.GasUsed,
		EffectiveGasPrice: receipt.EffectiveGasPrice,
		ExplorerURL:       profile.TxURL(hash.Hex()),
		Logs:              receipt.Logs,
	}, nil
}

// Read performs a view call against the bound ReviewRegistry. Transport
// failures are retried; reads cost no gas and need no signer.
func (e *Executor) Read(ctx context.Context, binding *wallet.Binding, call contracts.Call) ([]byte, error) {
	if err := checkDeployed(binding); err != nil {
		return nil, err
	}
	to := binding.Profile.Contracts.ReviewRegistry
	msg := ethereum.CallMsg{To: &to, Data: call.Data}

	out, err := chain.Retry(ctx, func() ([]byte, error) {
		data, err := binding.Backend.CallContract(ctx, msg, nil)
		if err != nil && chain.IsTransportError(err) {
			return nil, chain.WrapRetryable(err)
		}
		return data, err
	})
	if err != nil {
		return nil, classifyCallError(err, call.Method)
	}
	return out, nil
}

// Reconcile looks up a previously broadcast transaction once and records
// its outcome. It returns TxPending while no receipt exists.
func (e *Executor) Reconcile(ctx context.Context, binding *wallet.Binding, hash common.Hash) (store.TxStatus, error) {
	if binding == nil || binding.Backend == nil {
		return "", reviewerr.ErrWalletNotConnected
	}
	receipt, err := binding.Backend.TransactionReceipt(ctx, hash)
	if errors.Is(err, ethereum.NotFound) {
		return store.TxPending, nil
	}
	if err != nil {
		return "", networkError(err, "fetching receipt")
	}

	log := e.logger.With(zap.String("tx_hash", hash.Hex()))
	if receipt.Status != types.ReceiptStatusSuccessful {
		e.settle(ctx, log, hash, store.TxFailed, "reverted")
		return store.TxFailed, nil
	}
	if ok, err := e.confirmedAt(ctx, binding.Backend, receipt.BlockNumber.Uint64()); err != nil {
		return "", networkError(err, "fetching block number")
	} else if !ok {
		return store.TxPending, nil
	}
	e.settle(ctx, log, hash, store.TxConfirmed, "")
	return store.TxConfirmed, nil
}

// preflight applies the ordered precondition checks: signer, deployment,
// gas balance, then chain.
func (e *Executor) preflight(ctx context.Context, sess wallet.Session) (*wallet.Binding, error) {
	if sess.Signer == nil {
		return nil, reviewerr.ErrWalletNotConnected
	}
	binding := sess.Binding
	if err := checkDeployed(binding); err != nil {
		return nil, err
	}
	profile := binding.Profile

	// A wallet on an undeployed chain is bound to the default network,
	// so the balance is read where the transaction would be sent.
	balance, err := binding.Backend.BalanceAt(ctx, sess.Account, nil)
	if err != nil {
		return nil, networkError(err, "checking balance")
	}
	if balance.Sign() <= 0 {
		err := reviewerr.WithDetails(reviewerr.ErrInsufficientGasFunds, map[string]string{
			"account": sess.Account.Hex(),
			"network": profile.Name,
		})
		suggestion := fmt.Sprintf("fund %s with %s to pay for gas", sess.Account.Hex(), profile.NativeSymbol)
		if profile.FaucetURL != "" {
			suggestion = fmt.Sprintf("get test %s for %s from %s", profile.NativeSymbol, sess.Account.Hex(), profile.FaucetURL)
		}
		return nil, reviewerr.WithSuggestion(err, suggestion)
	}

	if sess.ChainID != profile.ChainID {
		wrong := reviewerr.Newf(reviewerr.ErrWrongNetwork, "wallet is on chain %d but the contract is on %s", sess.ChainID, profile)
		err := reviewerr.WithDetails(wrong, map[string]string{
			"expected":          profile.Name,
			"expected_chain_id": fmt.Sprintf("%d", profile.ChainID),
			"actual_chain_id":   fmt.Sprintf("%d", sess.ChainID),
		})
		return nil, reviewerr.WithSuggestion(err, "switch your wallet to "+profile.String())
	}
	return binding, nil
}

func checkDeployed(binding *wallet.Binding) error {
	if binding == nil || binding.Backend == nil || !binding.Profile.IsContractsDeployed() {
		name := "this network"
		if binding != nil && binding.Profile.Name != "" {
			name = binding.Profile.Name
		}
		err := reviewerr.Newf(reviewerr.ErrContractNotDeployed, "review contracts are not deployed on %s", name)
		return reviewerr.WithDetails(err, map[string]string{"network": name})
	}
	return nil
}

// awaitConfirmation polls for the receipt and then for the configured
// depth. The wait is bounded by ConfirmTimeout; on expiry the transaction
// stays pending in the tracker.
func (e *Executor) awaitConfirmation(ctx context.Context, backend chain.Backend, hash common.Hash) (*types.Receipt, error) {
	waitCtx, cancel := context.WithTimeout(ctx, e.opts.ConfirmTimeout)
	defer cancel()

	ticker := time.NewTicker(e.opts.PollInterval)
	defer ticker.Stop()

	var receipt *types.Receipt
	for {
		if receipt == nil {
			r, err := backend.TransactionReceipt(waitCtx, hash)
			switch {
			case err == nil:
				receipt = r
			case errors.Is(err, ethereum.NotFound):
			default:
				e.logger.Debug("receipt lookup failed", zap.String("tx_hash", hash.Hex()), zap.Error(err))
			}
		}
		if receipt != nil {
			if receipt.Status != types.ReceiptStatusSuccessful {
				return receipt, nil
			}
			ok, err := e.confirmedAt(waitCtx, backend, receipt.BlockNumber.Uint64())
			if err != nil {
				e.logger.Debug("block number lookup failed", zap.Error(err))
			} else if ok {
				return receipt, nil
			}
		}

		select {
		case <-waitCtx.Done():
			return nil, reviewerr.WithCause(reviewerr.ErrConfirmationTimeout, waitCtx.Err())
		case <-ticker.C:
		}
	}
}

func (e *Executor) confirmedAt(ctx context.Context, backend chain.Backend, block uint64) (bool, error) {
	if e.opts.Confirmations <= 1 {
		return true, nil
	}
	head, err := backend.BlockNumber(ctx)
	if err != nil {
		return false, err
	}
	return head >= block && head-block+1 >= e.opts.Confirmations, nil
}

func (e *Executor) track(ctx context.Context, log *zap.Logger, tx store.Transaction) {
	if e.tracker == nil {
		return
	}
	if err := e.tracker.TrackPending(ctx, tx); err != nil {
		log.Error("failed to record pending transaction", zap.Error(err))
	}
}

func (e *Executor) settle(ctx context.Context, log *zap.Logger, hash common.Hash, status store.TxStatus, reason string) {
	if e.tracker == nil {
		return
	}
	if err := e.tracker.UpdateStatus(ctx, hash.Hex(), status, reason); err != nil && !errors.Is(err, reviewerr.ErrStatusConflict) {
		log.Error("failed to update transaction status", zap.String("status", string(status)), zap.Error(err))
	}
}
