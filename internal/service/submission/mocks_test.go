package submission

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/reviewchain/reviewchain/internal/chain/eth"
	"github.com/reviewchain/reviewchain/internal/contracts"
	"github.com/reviewchain/reviewchain/internal/evidence"
	"github.com/reviewchain/reviewchain/internal/network"
	"github.com/reviewchain/reviewchain/internal/store"
	"github.com/reviewchain/reviewchain/internal/wallet"
)

var (
	reviewerAddr = common.HexToAddress("0x8ba1f109551bD432803012645Ac136ddd64DBA72")
	registryAddr = common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3")
	txHash       = common.HexToHash("0xabc0000000000000000000000000000000000000000000000000000000000001")
)

type stubSigner struct{}

func (stubSigner) Address() common.Address { return reviewerAddr }

func (stubSigner) SignTx(_ context.Context, tx *types.Transaction, _ *big.Int) (*types.Transaction, error) {
	return tx, nil
}

type mockSessions struct {
	sess wallet.Session
}

func (m *mockSessions) Session() wallet.Session { return m.sess }

func connectedSession() wallet.Session {
	profile := network.Profile{ID: network.Amoy, Name: "Polygon Amoy", ChainID: 80002}
	profile.Contracts.ReviewRegistry = registryAddr
	return wallet.Session{
		Account: reviewerAddr,
		ChainID: 80002,
		Signer:  stubSigner{},
		Binding: &wallet.Binding{Profile: profile},
	}
}

// mockExecutor records calls. When block is set, Execute waits on it.
type mockExecutor struct {
	mu      sync.Mutex
	calls   []contracts.Call
	ctxErrs []error
	err     error
	logs    []*types.Log
	started chan struct{}
	block   chan struct{}
}

func (m *mockExecutor) Execute(ctx context.Context, _ wallet.Session, call contracts.Call) (*eth.Receipt, error) {
	m.mu.Lock()
	m.calls = append(m.calls, call)
	m.ctxErrs = append(m.ctxErrs, ctx.Err())
	started, block := m.started, m.block
	m.mu.Unlock()

	if started != nil {
		started <- struct{}{}
	}
	if block != nil {
		<-block
	}
	if m.err != nil {
		return nil, m.err
	}
	return &eth.Receipt{
		TxHash:      txHash,
		Method:      call.Method,
		NetworkID:   network.Amoy,
		ChainID:     80002,
		From:        reviewerAddr,
		BlockNumber: 101,
		Logs:        m.logs,
	}, nil
}

func (m *mockExecutor) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// mockEvidence is an in-memory evidence.Store. failAt makes the n-th
// upload (0-based) fail; onUpload runs before each upload.
type mockEvidence struct {
	mu        sync.Mutex
	objects   map[string][]byte
	uploaded  []string
	removed   []string
	failAt    int
	removeErr error
	onUpload  func(n int)
}

func newMockEvidence() *mockEvidence {
	return &mockEvidence{objects: map[string][]byte{}, failAt: -1}
}

func (m *mockEvidence) Backend() string { return "mock" }

func (m *mockEvidence) Upload(_ context.Context, key string, content []byte, mimeType string) (evidence.Ref, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := len(m.uploaded)
	if m.onUpload != nil {
		m.onUpload(n)
	}
	m.uploaded = append(m.uploaded, key)
	if n == m.failAt {
		return evidence.Ref{}, fmt.Errorf("bucket unavailable: %w", errors.New("503"))
	}
	m.objects[key] = content
	return evidence.Ref{
		Key:      key,
		URI:      "mock://" + key,
		Size:     int64(len(content)),
		Digest:   evidence.Digest(content),
		MIMEType: mimeType,
	}, nil
}

func (m *mockEvidence) Remove(_ context.Context, keys []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removed = append(m.removed, keys...)
	if m.removeErr != nil {
		return m.removeErr
	}
	for _, k := range keys {
		delete(m.objects, k)
	}
	return nil
}

func (m *mockEvidence) stored() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.objects))
	for k := range m.objects {
		out = append(out, k)
	}
	return out
}

type mockRecords struct {
	mu       sync.Mutex
	inserted []store.Record
	err      error
}

func (m *mockRecords) Insert(_ context.Context, r store.Record) (store.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return store.Record{}, m.err
	}
	m.inserted = append(m.inserted, r)
	return r, nil
}
