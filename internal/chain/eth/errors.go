package eth

import (
	"errors"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/reviewchain/reviewchain/internal/chain"
	"github.com/reviewchain/reviewchain/internal/wallet"
	reviewerr "github.com/reviewchain/reviewchain/pkg/errors"
)

const revertedPrefix = "execution reverted"

// RevertReason extracts the contract's revert message from an RPC error.
// The ABI-encoded Error(string) payload is preferred; node messages of the
// form "execution reverted: <reason>" are the fallback.
func RevertReason(err error) (string, bool) {
	if err == nil {
		return "", false
	}

	var dataErr rpc.DataError
	if errors.As(err, &dataErr) {
		if hexData, ok := dataErr.ErrorData().(string); ok {
			if data, decodeErr := hexutil.Decode(hexData); decodeErr == nil {
				if reason, unpackErr := abi.UnpackRevert(data); unpackErr == nil {
					return reason, true
				}
			}
		}
	}

	msg := err.Error()
	idx := strings.Index(strings.ToLower(msg), revertedPrefix)
	if idx < 0 {
		return "", false
	}
	reason := strings.TrimSpace(strings.TrimPrefix(msg[idx+len(revertedPrefix):], ":"))
	return reason, true
}

func isInsufficientFunds(err error) bool {
	return strings.Contains(strings.ToLower(err.Error()), "insufficient funds")
}

func networkError(err error, operation string) error {
	out := reviewerr.WithCause(reviewerr.ErrNetworkError, err)
	out = reviewerr.WithDetails(out, map[string]string{"operation": operation})
	return reviewerr.WithSuggestion(out, "check your connection and the network's RPC endpoint, then retry")
}

func contractRejected(method, stage, reason string) error {
	var err *reviewerr.ReviewError
	if reason == "" {
		err = reviewerr.Newf(reviewerr.ErrContractRejected, "contract rejected %s", method)
	} else {
		err = reviewerr.Newf(reviewerr.ErrContractRejected, "contract rejected %s: %s", method, reason)
	}
	return reviewerr.WithDetails(err, map[string]string{
		"method": method,
		"stage":  stage,
		"reason": reason,
	})
}

// classifyEstimateError separates a call that would revert from a call
// that never reached the chain.
func classifyEstimateError(err error, method string) error {
	if chain.IsTransportError(err) {
		return networkError(err, "estimating gas")
	}
	if isInsufficientFunds(err) {
		return reviewerr.WithCause(reviewerr.ErrInsufficientGasFunds, err)
	}
	reason, ok := RevertReason(err)
	if !ok {
		reason = err.Error()
	}
	return contractRejected(method, "estimate", reason)
}

func classifySignError(err error) error {
	if wallet.IsUserRejected(err) {
		return reviewerr.WithCause(reviewerr.ErrUserRejected, err)
	}
	return reviewerr.Wrap(err, "signing transaction")
}

func classifySendError(err error, method string) error {
	switch {
	case wallet.IsUserRejected(err):
		return reviewerr.WithCause(reviewerr.ErrUserRejected, err)
	case chain.IsTransportError(err):
		return networkError(err, "broadcasting transaction")
	case isInsufficientFunds(err):
		return reviewerr.WithCause(reviewerr.ErrInsufficientGasFunds, err)
	}
	if reason, ok := RevertReason(err); ok {
		return contractRejected(method, "broadcast", reason)
	}
	return reviewerr.Wrap(err, "broadcasting transaction")
}

func classifyCallError(err error, method string) error {
	if chain.IsTransportError(err) || errors.Is(err, chain.ErrRetryable) {
		return networkError(err, "calling "+method)
	}
	reason, ok := RevertReason(err)
	if !ok {
		reason = err.Error()
	}
	return contractRejected(method, "call", reason)
}
