package wallet

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/event"
	"go.uber.org/zap"

	"github.com/reviewchain/reviewchain/internal/chain"
	"github.com/reviewchain/reviewchain/internal/network"
	reviewerr "github.com/reviewchain/reviewchain/pkg/errors"
)

// Status is the connection state.
type Status string

// Connection states.
const (
	StatusDisconnected Status = "disconnected"
	StatusConnecting   Status = "connecting"
	StatusConnected    Status = "connected"
)

// eventTimeout bounds the provider calls made while handling an event.
const eventTimeout = 30 * time.Second

// State is what the manager publishes to subscribers.
type State struct {
	Status  Status         `json:"status"`
	Account common.Address `json:"account"`
	ChainID uint64         `json:"chain_id"`
	// NetworkID is the profile the session is bound to.
	NetworkID string `json:"network,omitempty"`
	// Deployed reports whether the active chain itself has the contracts.
	Deployed bool `json:"deployed"`
}

// Manager owns the connection to one provider. It is the only writer of
// its state; provider events and Connect calls are applied under its
// lock, and every change is published to SubscribeState subscribers.
type Manager struct {
	provider Provider
	registry *network.Registry
	dial     chain.Dialer
	logger   *zap.Logger

	connectMu sync.Mutex

	mu       sync.RWMutex
	state    State
	signer   Signer
	binding  *Binding
	backends map[string]chain.Backend

	feed  event.Feed
	scope event.SubscriptionScope

	startOnce sync.Once
	closeOnce sync.Once
	cancel    context.CancelFunc
	done      chan struct{}
	wg        sync.WaitGroup
}

// NewManager creates a disconnected manager. Backends for bound networks
// are opened with dial.
func NewManager(provider Provider, registry *network.Registry, dial chain.Dialer, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		provider: provider,
		registry: registry,
		dial:     dial,
		logger:   logger.Named("wallet"),
		state:    State{Status: StatusDisconnected},
		backends: make(map[string]chain.Backend),
		done:     make(chan struct{}),
	}
}

// Start subscribes to provider events and silently restores a previous
// authorization. It never prompts.
func (m *Manager) Start(ctx context.Context) error {
	var started bool
	m.startOnce.Do(func() {
		started = true
		loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		m.cancel = cancel

		accounts := make(chan []common.Address, 1)
		chains := make(chan uint64, 1)
		accountsSub := m.scope.Track(m.provider.SubscribeAccounts(accounts))
		chainSub := m.scope.Track(m.provider.SubscribeChain(chains))

		m.wg.Add(1)
		go m.loop(loopCtx, accounts, chains, accountsSub, chainSub)
	})
	if !started {
		return nil
	}

	raw, err := m.provider.Request(ctx, MethodAccounts)
	if err != nil {
		return fmt.Errorf("querying authorized accounts: %w", err)
	}
	accounts, err := decodeAccounts(raw)
	if err != nil {
		return err
	}
	if len(accounts) == 0 {
		return nil
	}

	m.connectMu.Lock()
	defer m.connectMu.Unlock()
	return m.establish(ctx, accounts[0])
}

// Connect asks the provider for account access and binds the session to
// the active chain. Calling it while connected returns the current
// account without prompting again.
func (m *Manager) Connect(ctx context.Context) (common.Address, error) {
	m.connectMu.Lock()
	defer m.connectMu.Unlock()

	m.mu.RLock()
	current := m.state
	m.mu.RUnlock()
	if current.Status == StatusConnected {
		return current.Account, nil
	}

	m.setState(State{Status: StatusConnecting})

	raw, err := m.provider.Request(ctx, MethodRequestAccounts)
	if err != nil {
		m.reset()
		if IsUserRejected(err) {
			return common.Address{}, reviewerr.WithCause(reviewerr.ErrUserRejected, err)
		}
		return common.Address{}, reviewerr.Wrap(err, "requesting wallet accounts")
	}
	accounts, err := decodeAccounts(raw)
	if err != nil || len(accounts) == 0 {
		m.reset()
		return common.Address{}, reviewerr.ErrWalletNotConnected
	}

	if err := m.establish(ctx, accounts[0]); err != nil {
		m.reset()
		return common.Address{}, err
	}
	return accounts[0], nil
}

// establish derives the signer and binding for account on the provider's
// active chain. Callers hold connectMu.
func (m *Manager) establish(ctx context.Context, account common.Address) error {
	chainID, err := m.chainID(ctx)
	if err != nil {
		return err
	}
	signer, err := m.provider.Signer(ctx, account)
	if err != nil {
		return reviewerr.Wrap(err, "deriving signer")
	}
	binding, deployed, err := m.bind(ctx, chainID)
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.signer = signer
	m.binding = binding
	m.state = State{
		Status:    StatusConnected,
		Account:   account,
		ChainID:   chainID,
		NetworkID: binding.Profile.ID,
		Deployed:  deployed,
	}
	state := m.state
	m.mu.Unlock()

	m.logger.Info("wallet connected",
		zap.String("account", account.Hex()),
		zap.Uint64("chain_id", chainID),
		zap.String("network", binding.Profile.ID),
	)
	m.feed.Send(state)
	return nil
}

func (m *Manager) chainID(ctx context.Context) (uint64, error) {
	raw, err := m.provider.Request(ctx, MethodChainID)
	if err != nil {
		return 0, reviewerr.Wrap(err, "querying chain id")
	}
	var hexID string
	if err := json.Unmarshal(raw, &hexID); err != nil {
		return 0, reviewerr.Wrap(err, "decoding chain id")
	}
	id, err := hexutil.DecodeUint64(hexID)
	if err != nil {
		return 0, reviewerr.Wrap(err, "decoding chain id %q", hexID)
	}
	return id, nil
}

// bind resolves the contract binding for chainID. Chains without a
// deployment fall back to the default network so that a wrong network can
// be reported against the network the user should switch to.
func (m *Manager) bind(ctx context.Context, chainID uint64) (*Binding, bool, error) {
	profile, deployed := m.registry.Resolve(chainID)
	backend, err := m.backendFor(ctx, profile)
	if err != nil {
		return nil, false, err
	}
	return &Binding{Profile: profile, Backend: backend}, deployed, nil
}

// backendFor returns the cached backend for the profile's RPC URL,
// dialing it on first use.
func (m *Manager) backendFor(ctx context.Context, profile network.Profile) (chain.Backend, error) {
	m.mu.RLock()
	backend, ok := m.backends[profile.RPCURL]
	m.mu.RUnlock()
	if ok {
		return backend, nil
	}

	backend, err := m.dial(ctx, profile.RPCURL)
	if err != nil {
		return nil, reviewerr.WithDetails(
			reviewerr.WithCause(reviewerr.ErrNetworkError, err),
			map[string]string{"network": profile.ID, "rpc_url": profile.RPCURL},
		)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.backends[profile.RPCURL]; ok {
		backend.Close()
		return existing, nil
	}
	m.backends[profile.RPCURL] = backend
	return backend, nil
}

func (m *Manager) loop(ctx context.Context, accounts <-chan []common.Address, chains <-chan uint64, accountsSub, chainSub event.Subscription) {
	defer m.wg.Done()
	for {
		select {
		case list := <-accounts:
			m.onAccountsChanged(ctx, list)
		case id := <-chains:
			m.onChainChanged(ctx, id)
		case err := <-accountsSub.Err():
			if err != nil {
				m.logger.Warn("account subscription failed", zap.Error(err))
			}
			return
		case err := <-chainSub.Err():
			if err != nil {
				m.logger.Warn("chain subscription failed", zap.Error(err))
			}
			return
		case <-m.done:
			return
		}
	}
}

func (m *Manager) onAccountsChanged(ctx context.Context, accounts []common.Address) {
	m.connectMu.Lock()
	defer m.connectMu.Unlock()

	m.mu.RLock()
	current := m.state
	m.mu.RUnlock()

	if len(accounts) == 0 {
		if current.Status != StatusDisconnected {
			m.logger.Info("wallet disconnected by provider")
			m.reset()
		}
		return
	}
	if current.Status != StatusConnected || current.Account == accounts[0] {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, eventTimeout)
	defer cancel()
	signer, err := m.provider.Signer(ctx, accounts[0])
	if err != nil {
		m.logger.Warn("switching account failed", zap.Error(err))
		m.reset()
		return
	}

	m.mu.Lock()
	m.signer = signer
	m.state.Account = accounts[0]
	state := m.state
	m.mu.Unlock()

	m.logger.Info("wallet account changed", zap.String("account", accounts[0].Hex()))
	m.feed.Send(state)
}

func (m *Manager) onChainChanged(ctx context.Context, chainID uint64) {
	m.connectMu.Lock()
	defer m.connectMu.Unlock()

	m.mu.RLock()
	current := m.state
	m.mu.RUnlock()
	if current.Status != StatusConnected || current.ChainID == chainID {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, eventTimeout)
	defer cancel()
	binding, deployed, err := m.bind(ctx, chainID)

	m.mu.Lock()
	m.state.ChainID = chainID
	if err != nil {
		m.binding = nil
		m.state.NetworkID = ""
		m.state.Deployed = false
	} else {
		m.binding = binding
		m.state.NetworkID = binding.Profile.ID
		m.state.Deployed = deployed
	}
	state := m.state
	m.mu.Unlock()

	if err != nil {
		m.logger.Warn("rebinding after chain change failed", zap.Uint64("chain_id", chainID), zap.Error(err))
	} else {
		m.logger.Info("wallet chain changed", zap.Uint64("chain_id", chainID), zap.String("network", state.NetworkID))
	}
	m.feed.Send(state)
}

func (m *Manager) reset() {
	m.setState(State{Status: StatusDisconnected})
}

func (m *Manager) setState(state State) {
	m.mu.Lock()
	m.state = state
	if state.Status != StatusConnected {
		m.signer = nil
		m.binding = nil
	}
	m.mu.Unlock()
	m.feed.Send(state)
}

// State returns the current connection state.
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Session returns a snapshot for the transaction layer. It is the zero
// Session unless connected.
func (m *Manager) Session() Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.state.Status != StatusConnected {
		return Session{}
	}
	return Session{
		Account: m.state.Account,
		ChainID: m.state.ChainID,
		Signer:  m.signer,
		Binding: m.binding,
	}
}

// Bind returns a binding for networkID that needs no wallet, for view
// calls.
func (m *Manager) Bind(ctx context.Context, networkID string) (*Binding, error) {
	profile, err := m.registry.ByID(networkID)
	if err != nil {
		return nil, err
	}
	backend, err := m.backendFor(ctx, profile)
	if err != nil {
		return nil, err
	}
	return &Binding{Profile: profile, Backend: backend}, nil
}

// SubscribeState delivers every state change to ch. Sends block until
// received, so ch should be buffered or drained promptly.
func (m *Manager) SubscribeState(ch chan<- State) event.Subscription {
	return m.scope.Track(m.feed.Subscribe(ch))
}

// Close unsubscribes from the provider and every state subscriber, and
// closes the opened backends.
func (m *Manager) Close() {
	m.closeOnce.Do(func() {
		close(m.done)
		if m.cancel != nil {
			m.cancel()
		}
		m.scope.Close()
		m.wg.Wait()

		m.mu.Lock()
		defer m.mu.Unlock()
		for url, b := range m.backends {
			b.Close()
			delete(m.backends, url)
		}
	})
}

func decodeAccounts(raw json.RawMessage) ([]common.Address, error) {
	var accounts []common.Address
	if err := json.Unmarshal(raw, &accounts); err != nil {
		return nil, reviewerr.Wrap(err, "decoding accounts")
	}
	return accounts, nil
}
