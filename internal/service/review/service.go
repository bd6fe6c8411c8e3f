// Package review handles everything after a review exists: votes,
// comments, cached reads and reconciliation of unconfirmed transactions.
package review

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/ethereum/go-ethereum/common"
	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/reviewchain/reviewchain/internal/chain/eth"
	"github.com/reviewchain/reviewchain/internal/contracts"
	"github.com/reviewchain/reviewchain/internal/evidence"
	"github.com/reviewchain/reviewchain/internal/metrics"
	"github.com/reviewchain/reviewchain/internal/sanitize"
	"github.com/reviewchain/reviewchain/internal/store"
	"github.com/reviewchain/reviewchain/internal/wallet"
	reviewerr "github.com/reviewchain/reviewchain/pkg/errors"
)

// MaxCommentLength is the longest comment accepted, in characters.
const MaxCommentLength = 1000

// DefaultCacheTTL is how long reads are served from memory.
const DefaultCacheTTL = 30 * time.Second

// Service votes on, comments on and reads reviews.
type Service struct {
	sessions SessionProvider
	binder   Binder
	executor Executor
	pending  PendingLister
	records  SubmissionRecords
	evidence EvidenceRemover
	cache    *cache.Cache
	logger   *zap.Logger
	metrics  *metrics.Metrics
}

// Config holds dependencies for the review service. Pending, Records and
// Evidence are only needed by Reconcile; without Records it leaves
// unconfirmed submissions alone.
type Config struct {
	Sessions SessionProvider
	Binder   Binder
	Executor Executor
	Pending  PendingLister
	Records  SubmissionRecords
	Evidence EvidenceRemover
	CacheTTL time.Duration
	Logger   *zap.Logger
	Metrics  *metrics.Metrics
}

// NewService creates a review service.
func NewService(cfg *Config) *Service {
	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		sessions: cfg.Sessions,
		binder:   cfg.Binder,
		executor: cfg.Executor,
		pending:  cfg.Pending,
		records:  cfg.Records,
		evidence: cfg.Evidence,
		cache:    cache.New(ttl, 2*ttl),
		logger:   logger.Named("review"),
		metrics:  cfg.Metrics,
	}
}

// Upvote votes for a review.
func (s *Service) Upvote(ctx context.Context, reviewID uint64) (*eth.Receipt, error) {
	if err := checkReviewID(reviewID); err != nil {
		return nil, err
	}
	call, err := contracts.UpvoteReview(reviewID)
	if err != nil {
		return nil, reviewerr.Wrap(err, "encoding upvote")
	}
	return s.write(ctx, reviewID, call)
}

// Downvote votes against a review.
func (s *Service) Downvote(ctx context.Context, reviewID uint64) (*eth.Receipt, error) {
	if err := checkReviewID(reviewID); err != nil {
		return nil, err
	}
	call, err := contracts.DownvoteReview(reviewID)
	if err != nil {
		return nil, reviewerr.Wrap(err, "encoding downvote")
	}
	return s.write(ctx, reviewID, call)
}

// Comment adds a sanitized comment to a review.
func (s *Service) Comment(ctx context.Context, reviewID uint64, content string) (*eth.Receipt, error) {
	if err := checkReviewID(reviewID); err != nil {
		return nil, err
	}
	clean := sanitize.Text(content)
	if clean == "" {
		err := reviewerr.Newf(reviewerr.ErrValidationFailed, "comment is required")
		return nil, reviewerr.WithDetails(err, map[string]string{"field": "comment"})
	}
	if n := utf8.RuneCountInString(clean); n > MaxCommentLength {
		err := reviewerr.Newf(reviewerr.ErrValidationFailed, "comment is %d characters, at most %d allowed", n, MaxCommentLength)
		return nil, reviewerr.WithDetails(err, map[string]string{"field": "comment"})
	}
	call, err := contracts.AddComment(reviewID, clean)
	if err != nil {
		return nil, reviewerr.Wrap(err, "encoding comment")
	}
	return s.write(ctx, reviewID, call)
}

// write executes call for the connected wallet and drops the cached copy
// of the review it changed.
func (s *Service) write(ctx context.Context, reviewID uint64, call contracts.Call) (*eth.Receipt, error) {
	sess := s.sessions.Session()
	receipt, err := s.executor.Execute(ctx, sess, call)
	if err != nil {
		return nil, err
	}
	s.cache.Delete(reviewKey(receipt.NetworkID, reviewID))
	s.logger.Info("review updated",
		zap.String("method", call.Method),
		zap.Uint64("review_id", reviewID),
		zap.String("tx_hash", receipt.TxHash.Hex()),
	)
	return receipt, nil
}

// Get returns a review from networkID.
func (s *Service) Get(ctx context.Context, networkID string, reviewID uint64) (*contracts.Review, error) {
	if err := checkReviewID(reviewID); err != nil {
		return nil, err
	}
	key := reviewKey(networkID, reviewID)
	if x, found := s.cache.Get(key); found {
		if r, ok := x.(contracts.Review); ok {
			s.metrics.RecordCache(ctx, true)
			return &r, nil
		}
		s.logger.Warn("cache type mismatch", zap.String("key", key), zap.String("type", fmt.Sprintf("%T", x)))
	}
	s.metrics.RecordCache(ctx, false)

	call, err := contracts.GetReview(reviewID)
	if err != nil {
		return nil, reviewerr.Wrap(err, "encoding getReview")
	}
	data, err := s.read(ctx, networkID, call)
	if err != nil {
		return nil, err
	}
	r, err := contracts.UnpackReview(data)
	if reviewerr.Is(err, reviewerr.ErrNotFound) {
		return nil, reviewerr.WithDetails(
			reviewerr.Newf(reviewerr.ErrNotFound, "review %d not found on %s", reviewID, networkID),
			map[string]string{"review_id": fmt.Sprint(reviewID), "network": networkID},
		)
	}
	if err != nil {
		return nil, reviewerr.Wrap(err, "reading review %d", reviewID)
	}
	s.cache.SetDefault(key, *r)
	return r, nil
}

// ListByUser returns the ids of the reviews written by user on networkID.
func (s *Service) ListByUser(ctx context.Context, networkID string, user common.Address) ([]uint64, error) {
	key := userKey(networkID, user)
	if x, found := s.cache.Get(key); found {
		if ids, ok := x.([]uint64); ok {
			s.metrics.RecordCache(ctx, true)
			return append([]uint64(nil), ids...), nil
		}
	}
	s.metrics.RecordCache(ctx, false)

	call, err := contracts.GetUserReviews(user)
	if err != nil {
		return nil, reviewerr.Wrap(err, "encoding getUserReviews")
	}
	data, err := s.read(ctx, networkID, call)
	if err != nil {
		return nil, err
	}
	ids, err := contracts.UnpackUserReviews(data)
	if err != nil {
		return nil, reviewerr.Wrap(err, "reading reviews of %s", user.Hex())
	}
	s.cache.SetDefault(key, append([]uint64(nil), ids...))
	return ids, nil
}

func (s *Service) read(ctx context.Context, networkID string, call contracts.Call) ([]byte, error) {
	binding, err := s.binder.Bind(ctx, networkID)
	if err != nil {
		return nil, err
	}
	return s.executor.Read(ctx, binding, call)
}

// Reconciled is the outcome of re-checking one pending transaction.
// Submission and RecordStatus are set when a review was waiting on it.
type Reconciled struct {
	Transaction  store.Transaction  `json:"transaction"`
	Status       store.TxStatus     `json:"status"`
	Submission   string             `json:"submission,omitempty"`
	RecordStatus store.RecordStatus `json:"record_status,omitempty"`
	Error        string             `json:"error,omitempty"`
}

// Reconcile re-checks every pending transaction once, then settles the
// reviews that were waiting on a transaction: a confirmed one promotes
// the review to pending-review, a failed one removes its evidence.
// Failures for one transaction are reported in its result and do not
// stop the others.
func (s *Service) Reconcile(ctx context.Context) ([]Reconciled, error) {
	txs, err := s.pending.ListPending(ctx)
	if err != nil {
		return nil, reviewerr.Wrap(err, "listing pending transactions")
	}

	bindings := make(map[string]*wallet.Binding)
	results := make([]Reconciled, 0, len(txs))
	for _, tx := range txs {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		res := Reconciled{Transaction: tx, Status: tx.Status}

		binding, ok := bindings[tx.NetworkID]
		if !ok {
			binding, err = s.binder.Bind(ctx, tx.NetworkID)
			if err != nil {
				res.Error = err.Error()
				results = append(results, res)
				continue
			}
			bindings[tx.NetworkID] = binding
		}

		status, err := s.executor.Reconcile(ctx, binding, common.HexToHash(tx.Hash))
		if err != nil {
			s.logger.Warn("reconcile failed", zap.String("tx_hash", tx.Hash), zap.Error(err))
			res.Error = err.Error()
		} else {
			res.Status = status
		}
		results = append(results, res)
	}
	return s.settleSubmissions(ctx, results)
}

func (s *Service) settleSubmissions(ctx context.Context, results []Reconciled) ([]Reconciled, error) {
	if s.records == nil {
		return results, nil
	}
	awaiting, err := s.records.ListAwaiting(ctx)
	if err != nil {
		return results, reviewerr.Wrap(err, "listing unconfirmed reviews")
	}

	byHash := make(map[string]int, len(results))
	for i, r := range results {
		byHash[strings.ToLower(r.Transaction.Hash)] = i
	}
	for _, rec := range awaiting {
		idx, ok := byHash[strings.ToLower(rec.TxHash)]
		if !ok {
			// Settled by an earlier pass whose record update did not finish.
			res := Reconciled{Transaction: store.Transaction{Hash: rec.TxHash, NetworkID: rec.NetworkID}}
			if tx, err := s.records.GetTransaction(ctx, rec.TxHash); err != nil {
				res.Error = err.Error()
			} else {
				res.Transaction, res.Status = tx, tx.Status
			}
			results = append(results, res)
			idx = len(results) - 1
			byHash[strings.ToLower(rec.TxHash)] = idx
		}

		res := &results[idx]
		res.Submission, res.RecordStatus = rec.ID, rec.Status
		if res.Error != "" {
			continue
		}
		status, err := s.settleRecord(ctx, rec, res.Status)
		if err != nil {
			s.logger.Warn("settling review failed", zap.String("submission", rec.ID), zap.Error(err))
			res.Error = err.Error()
			continue
		}
		res.RecordStatus = status
	}
	return results, nil
}

// settleRecord applies the outcome of rec's transaction. Evidence is
// removed before the record is marked, so a retry after a partial
// failure repeats the removal harmlessly.
func (s *Service) settleRecord(ctx context.Context, rec store.Record, tx store.TxStatus) (store.RecordStatus, error) {
	log := s.logger.With(zap.String("submission", rec.ID), zap.String("tx_hash", rec.TxHash))

	switch tx {
	case store.TxConfirmed:
		err := s.records.SettleRecord(ctx, rec.ID, store.RecordAwaitingConfirmation, store.RecordPendingReview, "")
		if err != nil {
			return rec.Status, reviewerr.Wrap(err, "recording review %s", rec.ID)
		}
		log.Info("unconfirmed review recorded")
		return store.RecordPendingReview, nil

	case store.TxFailed:
		keys := evidence.Keys(rec.Evidence)
		if len(keys) > 0 {
			if s.evidence == nil {
				return rec.Status, reviewerr.Newf(reviewerr.ErrConfigInvalid, "no evidence store to remove %d files from", len(keys))
			}
			err := s.evidence.Remove(ctx, keys)
			s.metrics.RecordRollback(ctx, len(keys), err)
			if err != nil {
				return rec.Status, reviewerr.WithCause(reviewerr.ErrUploadFailed, fmt.Errorf("removing evidence of %s: %w", rec.ID, err))
			}
		}
		err := s.records.SettleRecord(ctx, rec.ID, store.RecordAwaitingConfirmation, store.RecordTxFailed, "")
		if err != nil {
			return rec.Status, reviewerr.Wrap(err, "marking review %s failed", rec.ID)
		}
		log.Info("evidence of failed submission removed", zap.Strings("keys", keys))
		return store.RecordTxFailed, nil

	default:
		return rec.Status, nil
	}
}

func checkReviewID(id uint64) error {
	if id == 0 {
		err := reviewerr.Newf(reviewerr.ErrValidationFailed, "review id must be greater than zero")
		return reviewerr.WithDetails(err, map[string]string{"field": "review_id"})
	}
	return nil
}

func reviewKey(networkID string, id uint64) string {
	return fmt.Sprintf("review:%s:%d", networkID, id)
}

func userKey(networkID string, user common.Address) string {
	return "user:" + networkID + ":" + strings.ToLower(user.Hex())
}
