// Package wallet connects reviewchain to a wallet provider. Providers are
// modeled on EIP-1193: a request method plus account and chain change
// events. The Manager turns those into a connection state machine and
// a signing Session bound to the right network.
package wallet

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/event"

	"github.com/reviewchain/reviewchain/internal/chain"
	"github.com/reviewchain/reviewchain/internal/network"
	reviewerr "github.com/reviewchain/reviewchain/pkg/errors"
)

// Provider request methods.
const (
	MethodRequestAccounts = "eth_requestAccounts"
	MethodAccounts        = "eth_accounts"
	MethodChainID         = "eth_chainId"
	MethodSwitchChain     = "wallet_switchEthereumChain"
)

// EIP-1193 provider error codes.
const (
	CodeUserRejected      = 4001
	CodeUnauthorized      = 4100
	CodeUnsupportedMethod = 4200
	CodeDisconnected      = 4900
	CodeUnrecognizedChain = 4902
	CodeInvalidParams     = -32602
)

// ProviderError is an error reported by a wallet provider.
type ProviderError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Error implements error.
func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider error %d: %s", e.Code, e.Message)
}

// IsUserRejected reports whether err means the human declined a wallet
// prompt.
func IsUserRejected(err error) bool {
	if err == nil {
		return false
	}
	var pe *ProviderError
	if errors.As(err, &pe) && pe.Code == CodeUserRejected {
		return true
	}
	if errors.Is(err, reviewerr.ErrUserRejected) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "user rejected") || strings.Contains(msg, "user denied")
}

// Provider is a wallet. Subscriptions deliver the full account list and
// the new chain ID respectively.
type Provider interface {
	Request(ctx context.Context, method string, params ...any) (json.RawMessage, error)
	SubscribeAccounts(ch chan<- []common.Address) event.Subscription
	SubscribeChain(ch chan<- uint64) event.Subscription
	Signer(ctx context.Context, account common.Address) (Signer, error)
}

// Signer signs transactions for one account.
type Signer interface {
	Address() common.Address
	SignTx(ctx context.Context, tx *types.Transaction, chainID *big.Int) (*types.Transaction, error)
}

// Binding is the contract set and RPC backend for the network a session
// is bound to.
type Binding struct {
	Profile network.Profile
	Backend chain.Backend
}

// Session is a snapshot of a connected wallet. The zero Session is not
// connected.
type Session struct {
	Account common.Address
	ChainID uint64
	Signer  Signer
	Binding *Binding
}

// Connected reports whether the session can sign.
func (s Session) Connected() bool {
	return s.Signer != nil
}
