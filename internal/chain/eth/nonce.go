package eth

import (
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

type nonceKey struct {
	chainID uint64
	account common.Address
}

// NonceManager hands out nonces so that transactions sent in quick
// succession from one account, before the first reaches the node's pending
// pool, do not collide.
type NonceManager struct {
	mu     sync.Mutex
	nonces map[nonceKey]uint64 // next nonce, one past the highest used
}

// NewNonceManager creates a new NonceManager.
func NewNonceManager() *NonceManager {
	return &NonceManager{nonces: make(map[nonceKey]uint64)}
}

// Next returns the higher of the node's pending nonce and the locally
// tracked one, and reserves it.
func (nm *NonceManager) Next(chainID uint64, account common.Address, pending uint64) uint64 {
	nm.mu.Lock()
	defer nm.mu.Unlock()

	key := nonceKey{chainID: chainID, account: account}
	nonce := pending
	if local, ok := nm.nonces[key]; ok && local > pending {
		nonce = local
	}
	nm.nonces[key] = nonce + 1
	return nonce
}

// Release gives back a nonce whose transaction never reached the node.
// Only the most recent reservation can be released.
func (nm *NonceManager) Release(chainID uint64, account common.Address, nonce uint64) {
	nm.mu.Lock()
	defer nm.mu.Unlock()

	key := nonceKey{chainID: chainID, account: account}
	if nm.nonces[key] == nonce+1 {
		nm.nonces[key] = nonce
	}
}

// Reset forgets the local state for an account.
func (nm *NonceManager) Reset(chainID uint64, account common.Address) {
	nm.mu.Lock()
	defer nm.mu.Unlock()
	delete(nm.nonces, nonceKey{chainID: chainID, account: account})
}
