package review

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"github.com/reviewchain/reviewchain/internal/chain/eth"
	"github.com/reviewchain/reviewchain/internal/contracts"
	"github.com/reviewchain/reviewchain/internal/store"
	"github.com/reviewchain/reviewchain/internal/wallet"
)

// SessionProvider returns the current wallet session.
type SessionProvider interface {
	Session() wallet.Session
}

// Binder binds a network for calls that need no wallet.
type Binder interface {
	Bind(ctx context.Context, networkID string) (*wallet.Binding, error)
}

// Executor sends, reads and reconciles ReviewRegistry calls.
type Executor interface {
	Execute(ctx context.Context, sess wallet.Session, call contracts.Call) (*eth.Receipt, error)
	Read(ctx context.Context, binding *wallet.Binding, call contracts.Call) ([]byte, error)
	Reconcile(ctx context.Context, binding *wallet.Binding, hash common.Hash) (store.TxStatus, error)
}

// PendingLister lists transactions that have not reached a final state.
type PendingLister interface {
	ListPending(ctx context.Context) ([]store.Transaction, error)
}

// SubmissionRecords holds reviews stored before their transaction
// confirmed.
type SubmissionRecords interface {
	ListAwaiting(ctx context.Context) ([]store.Record, error)
	GetTransaction(ctx context.Context, hash string) (store.Transaction, error)
	SettleRecord(ctx context.Context, id string, from, to store.RecordStatus, reviewID string) error
}

// EvidenceRemover deletes stored evidence files.
type EvidenceRemover interface {
	Remove(ctx context.Context, keys []string) error
}
