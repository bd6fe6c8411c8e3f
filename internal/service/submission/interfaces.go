package submission

import (
	"context"

	"github.com/reviewchain/reviewchain/internal/chain/eth"
	"github.com/reviewchain/reviewchain/internal/contracts"
	"github.com/reviewchain/reviewchain/internal/store"
	"github.com/reviewchain/reviewchain/internal/wallet"
)

// SessionProvider returns the current wallet session.
type SessionProvider interface {
	Session() wallet.Session
}

// Executor sends a contract call and waits for it to be confirmed.
type Executor interface {
	Execute(ctx context.Context, sess wallet.Session, call contracts.Call) (*eth.Receipt, error)
}

// RecordStore persists submitted reviews.
type RecordStore interface {
	Insert(ctx context.Context, r store.Record) (store.Record, error)
}

// Locker guards against overlapping submissions by the same reviewer.
type Locker interface {
	// Acquire takes the lock for key. It fails with SUBMISSION_IN_FLIGHT
	// when the lock is held. release is safe to call more than once.
	Acquire(ctx context.Context, key string) (release func(), err error)
}
