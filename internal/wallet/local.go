package wallet

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"os"
	"slices"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	gethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/event"

	"github.com/reviewchain/reviewchain/internal/secret"
	reviewerr "github.com/reviewchain/reviewchain/pkg/errors"
)

// ErrNoKeys is returned when a local provider is built without keys.
var ErrNoKeys = errors.New("local provider needs at least one key")

// ApprovalRequest describes a prompt the wallet would show its user.
type ApprovalRequest struct {
	Method  string
	Account common.Address
	Tx      *types.Transaction
}

// Approver decides prompts. Returning false rejects the request with
// CodeUserRejected.
type Approver func(ctx context.Context, req ApprovalRequest) bool

// AutoApprove accepts every prompt.
func AutoApprove(context.Context, ApprovalRequest) bool { return true }

type localKey struct {
	address common.Address
	key     *secret.Bytes
}

// LocalProvider is a Provider backed by private keys held in memory. It
// behaves like a browser wallet: accounts must be authorized before they
// are exposed, signing goes through the approver, and account or chain
// changes are announced to subscribers.
type LocalProvider struct {
	mu         sync.RWMutex
	keys       []localKey
	chainID    uint64
	authorized bool
	locked     bool
	approve    Approver

	accountsFeed event.Feed
	chainFeed    event.Feed
}

// LocalOption configures a LocalProvider.
type LocalOption func(*LocalProvider)

// WithApprover sets the prompt handler. The default approves everything.
func WithApprover(a Approver) LocalOption {
	return func(p *LocalProvider) { p.approve = a }
}

// WithAuthorized marks the accounts as already authorized, as a wallet
// remembers a site the user connected before.
func WithAuthorized() LocalOption {
	return func(p *LocalProvider) { p.authorized = true }
}

// NewLocalProvider builds a provider from raw 32-byte private keys. The
// first key is the selected account. Keys are copied into locked memory.
func NewLocalProvider(chainID uint64, keys [][]byte, opts ...LocalOption) (*LocalProvider, error) {
	if len(keys) == 0 {
		return nil, ErrNoKeys
	}
	p := &LocalProvider{chainID: chainID, approve: AutoApprove}
	for i, raw := range keys {
		priv, err := gethcrypto.ToECDSA(raw)
		if err != nil {
			p.Close()
			return nil, fmt.Errorf("key %d: %w", i, err)
		}
		p.keys = append(p.keys, localKey{
			address: gethcrypto.PubkeyToAddress(priv.PublicKey),
			key:     secret.New(raw),
		})
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// NewHDProvider derives count accounts from a BIP39 mnemonic along
// DerivationPath.
func NewHDProvider(mnemonic, passphrase string, count int, chainID uint64, opts ...LocalOption) (*LocalProvider, error) {
	seed, err := MnemonicToSeed(mnemonic, passphrase)
	if err != nil {
		return nil, err
	}
	defer secret.Zero(seed)

	keys := make([][]byte, 0, max(count, 1))
	defer func() {
		for _, k := range keys {
			secret.Zero(k)
		}
	}()
	for i := range max(count, 1) {
		derived, err := DeriveKey(seed, uint32(i)) //nolint:gosec // bounded by count
		if err != nil {
			return nil, err
		}
		raw := make([]byte, 32)
		_ = derived.Use(func(b []byte) error {
			copy(raw, b)
			return nil
		})
		derived.Destroy()
		keys = append(keys, raw)
	}
	return NewLocalProvider(chainID, keys, opts...)
}

// LoadKeystore decrypts a go-ethereum keystore file and returns the raw
// private key. The caller should zero it.
func LoadKeystore(path, password string) ([]byte, error) {
	data, err := os.ReadFile(path) //nolint:gosec // user-supplied keystore path
	if err != nil {
		return nil, fmt.Errorf("reading keystore: %w", err)
	}
	key, err := keystore.DecryptKey(data, password)
	if err != nil {
		return nil, reviewerr.WithDetails(
			reviewerr.Newf(reviewerr.ErrValidationFailed, "could not decrypt keystore: %v", err),
			map[string]string{"field": "keystore"},
		)
	}
	return gethcrypto.FromECDSA(key.PrivateKey), nil
}

// Accounts returns every account in selection order, regardless of
// authorization.
func (p *LocalProvider) Accounts() []common.Address {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.addresses()
}

func (p *LocalProvider) addresses() []common.Address {
	out := make([]common.Address, len(p.keys))
	for i, k := range p.keys {
		out[i] = k.address
	}
	return out
}

// exposed returns the accounts visible to the dapp.
func (p *LocalProvider) exposed() []common.Address {
	if !p.authorized || p.locked {
		return []common.Address{}
	}
	return p.addresses()
}

// Request implements Provider.
func (p *LocalProvider) Request(ctx context.Context, method string, params ...any) (json.RawMessage, error) {
	switch method {
	case MethodAccounts:
		p.mu.RLock()
		accounts := p.exposed()
		p.mu.RUnlock()
		return json.Marshal(accounts)

	case MethodRequestAccounts:
		return p.requestAccounts(ctx)

	case MethodChainID:
		p.mu.RLock()
		id := p.chainID
		p.mu.RUnlock()
		return json.Marshal(hexutil.EncodeUint64(id))

	case MethodSwitchChain:
		id, err := switchChainParam(params)
		if err != nil {
			return nil, err
		}
		if !p.approve(ctx, ApprovalRequest{Method: method}) {
			return nil, &ProviderError{Code: CodeUserRejected, Message: "user rejected the request"}
		}
		p.SwitchChain(id)
		return json.RawMessage("null"), nil

	default:
		return nil, &ProviderError{Code: CodeUnsupportedMethod, Message: "unsupported method " + method}
	}
}

func (p *LocalProvider) requestAccounts(ctx context.Context) (json.RawMessage, error) {
	p.mu.RLock()
	locked, authorized := p.locked, p.authorized
	p.mu.RUnlock()

	if locked {
		return nil, &ProviderError{Code: CodeUnauthorized, Message: "wallet is locked"}
	}
	if !authorized {
		if !p.approve(ctx, ApprovalRequest{Method: MethodRequestAccounts}) {
			return nil, &ProviderError{Code: CodeUserRejected, Message: "user rejected the request"}
		}
		p.mu.Lock()
		p.authorized = true
		accounts := p.exposed()
		p.mu.Unlock()
		p.accountsFeed.Send(accounts)
		return json.Marshal(accounts)
	}

	p.mu.RLock()
	accounts := p.exposed()
	p.mu.RUnlock()
	return json.Marshal(accounts)
}

func switchChainParam(params []any) (uint64, error) {
	invalid := &ProviderError{Code: CodeInvalidParams, Message: "expected [{chainId: hex}]"}
	if len(params) != 1 {
		return 0, invalid
	}
	var hexID string
	switch v := params[0].(type) {
	case map[string]string:
		hexID = v["chainId"]
	case map[string]any:
		hexID, _ = v["chainId"].(string)
	}
	id, err := hexutil.DecodeUint64(hexID)
	if err != nil {
		return 0, invalid
	}
	return id, nil
}

// SubscribeAccounts implements Provider.
func (p *LocalProvider) SubscribeAccounts(ch chan<- []common.Address) event.Subscription {
	return p.accountsFeed.Subscribe(ch)
}

// SubscribeChain implements Provider.
func (p *LocalProvider) SubscribeChain(ch chan<- uint64) event.Subscription {
	return p.chainFeed.Subscribe(ch)
}

// SwitchChain changes the active chain and announces it.
func (p *LocalProvider) SwitchChain(chainID uint64) {
	p.mu.Lock()
	changed := p.chainID != chainID
	p.chainID = chainID
	p.mu.Unlock()
	if changed {
		p.chainFeed.Send(chainID)
	}
}

// SelectAccount moves account to the front of the account list.
func (p *LocalProvider) SelectAccount(account common.Address) error {
	p.mu.Lock()
	idx := slices.IndexFunc(p.keys, func(k localKey) bool { return k.address == account })
	if idx < 0 {
		p.mu.Unlock()
		return &ProviderError{Code: CodeUnauthorized, Message: unknownAccount(account)}
	}
	if idx == 0 {
		p.mu.Unlock()
		return nil
	}
	selected := p.keys[idx]
	p.keys = slices.Delete(p.keys, idx, idx+1)
	p.keys = slices.Insert(p.keys, 0, selected)
	accounts := p.exposed()
	p.mu.Unlock()

	p.accountsFeed.Send(accounts)
	return nil
}

// Lock hides the accounts until Unlock, as when a wallet times out.
func (p *LocalProvider) Lock() {
	p.setLocked(true)
}

// Unlock reverses Lock.
func (p *LocalProvider) Unlock() {
	p.setLocked(false)
}

func (p *LocalProvider) setLocked(locked bool) {
	p.mu.Lock()
	changed := p.locked != locked
	p.locked = locked
	accounts := p.exposed()
	p.mu.Unlock()
	if changed {
		p.accountsFeed.Send(accounts)
	}
}

// Disconnect revokes the dapp's authorization.
func (p *LocalProvider) Disconnect() {
	p.mu.Lock()
	changed := p.authorized
	p.authorized = false
	p.mu.Unlock()
	if changed {
		p.accountsFeed.Send([]common.Address{})
	}
}

// Signer implements Provider. The account must be authorized.
func (p *LocalProvider) Signer(_ context.Context, account common.Address) (Signer, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if !p.authorized || p.locked {
		return nil, &ProviderError{Code: CodeUnauthorized, Message: "accounts have not been authorized"}
	}
	for _, k := range p.keys {
		if k.address == account {
			return &keySigner{address: k.address, key: k.key, provider: p}, nil
		}
	}
	return nil, &ProviderError{Code: CodeUnauthorized, Message: unknownAccount(account)}
}

// Close zeroes every key.
func (p *LocalProvider) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, k := range p.keys {
		k.key.Destroy()
	}
}

func unknownAccount(account common.Address) string {
	return "unknown account " + account.Hex()
}

type keySigner struct {
	address  common.Address
	key      *secret.Bytes
	provider *LocalProvider
}

func (s *keySigner) Address() common.Address {
	return s.address
}

// SignTx prompts for approval and signs with the latest signer for
// chainID.
func (s *keySigner) SignTx(ctx context.Context, tx *types.Transaction, chainID *big.Int) (*types.Transaction, error) {
	s.provider.mu.RLock()
	locked, approve := s.provider.locked, s.provider.approve
	s.provider.mu.RUnlock()

	if locked {
		return nil, &ProviderError{Code: CodeUnauthorized, Message: "wallet is locked"}
	}
	if !approve(ctx, ApprovalRequest{Method: "eth_signTransaction", Account: s.address, Tx: tx}) {
		return nil, &ProviderError{Code: CodeUserRejected, Message: "user rejected the request"}
	}

	var signed *types.Transaction
	err := s.key.Use(func(raw []byte) error {
		priv, err := gethcrypto.ToECDSA(raw)
		if err != nil {
			return err
		}
		signed, err = types.SignTx(tx, types.LatestSignerForChainID(chainID), priv)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("signing transaction: %w", err)
	}
	return signed, nil
}
