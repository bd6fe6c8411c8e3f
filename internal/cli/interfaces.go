package cli

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"github.com/reviewchain/reviewchain/internal/chain/eth"
	"github.com/reviewchain/reviewchain/internal/contracts"
	"github.com/reviewchain/reviewchain/internal/service/review"
	"github.com/reviewchain/reviewchain/internal/service/submission"
	"github.com/reviewchain/reviewchain/internal/store"
	"github.com/reviewchain/reviewchain/internal/wallet"
)

// Compile-time interface checks.
var (
	_ Submitter    = (*submission.Orchestrator)(nil)
	_ ReviewClient = (*review.Service)(nil)
	_ RecordReader = (*store.SQLStore)(nil)
	_ WalletState  = (*wallet.Manager)(nil)
)

// Submitter runs the submission pipeline.
type Submitter interface {
	Submit(ctx context.Context, draft *submission.Draft) (*submission.Result, error)
}

// ReviewClient votes, comments and reads reviews.
type ReviewClient interface {
	Upvote(ctx context.Context, reviewID uint64) (*eth.Receipt, error)
	Downvote(ctx context.Context, reviewID uint64) (*eth.Receipt, error)
	Comment(ctx context.Context, reviewID uint64, content string) (*eth.Receipt, error)
	Get(ctx context.Context, networkID string, reviewID uint64) (*contracts.Review, error)
	ListByUser(ctx context.Context, networkID string, user common.Address) ([]uint64, error)
	Reconcile(ctx context.Context) ([]review.Reconciled, error)
}

// RecordReader reads the local record database.
type RecordReader interface {
	GetRecord(ctx context.Context, id string) (store.Record, error)
	ListByReviewer(ctx context.Context, reviewer string) ([]store.Record, error)
	GetTransaction(ctx context.Context, hash string) (store.Transaction, error)
	ListPending(ctx context.Context) ([]store.Transaction, error)
}

// WalletState reports the wallet connection.
type WalletState interface {
	State() wallet.State
}
