// Package submission runs the review submission pipeline: sanitize,
// validate evidence, upload it, send the submitReview transaction and
// record the result. Uploaded evidence is removed again when a later
// stage fails, so no stored file is left without a review.
package submission

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/reviewchain/reviewchain/internal/contracts"
	"github.com/reviewchain/reviewchain/internal/evidence"
	"github.com/reviewchain/reviewchain/internal/metrics"
	"github.com/reviewchain/reviewchain/internal/sanitize"
	"github.com/reviewchain/reviewchain/internal/store"
	"github.com/reviewchain/reviewchain/internal/wallet"
	reviewerr "github.com/reviewchain/reviewchain/pkg/errors"
)

// Orchestrator submits reviews.
type Orchestrator struct {
	sessions SessionProvider
	executor Executor
	evidence evidence.Store
	records  RecordStore
	locker   Locker
	logger   *zap.Logger
	metrics  *metrics.Metrics
	newID    func() string
	now      func() time.Time
}

// Config holds dependencies for the orchestrator. Locker, Logger and
// Metrics are optional.
type Config struct {
	Sessions SessionProvider
	Executor Executor
	Evidence evidence.Store
	Records  RecordStore
	Locker   Locker
	Logger   *zap.Logger
	Metrics  *metrics.Metrics
}

// NewOrchestrator creates an orchestrator.
func NewOrchestrator(cfg *Config) *Orchestrator {
	o := &Orchestrator{
		sessions: cfg.Sessions,
		executor: cfg.Executor,
		evidence: cfg.Evidence,
		records:  cfg.Records,
		locker:   cfg.Locker,
		logger:   cfg.Logger,
		metrics:  cfg.Metrics,
		newID:    uuid.NewString,
		now:      time.Now,
	}
	if o.locker == nil {
		o.locker = NewMemoryLocker()
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	o.logger = o.logger.Named("submission")
	return o
}

// Submit runs the pipeline for draft and resets it on success.
//
// Cancelling ctx stops the pipeline up to the transaction stage. Once the
// transaction has been handed to the executor the pipeline runs to
// completion, since a broadcast transaction cannot be withdrawn.
func (o *Orchestrator) Submit(ctx context.Context, draft *Draft) (res *Result, err error) {
	ctx, end := o.metrics.StartStage(ctx, "submission")
	defer func() {
		end(err)
		o.metrics.RecordSubmission(ctx, err)
	}()

	f, err := sanitizeDraft(draft)
	if err != nil {
		return nil, err
	}
	sess := o.sessions.Session()
	reviewer, err := reviewerOf(sess)
	if err != nil {
		return nil, err
	}
	if err := validateEvidence(draft.Files); err != nil {
		return nil, err
	}

	release, err := o.locker.Acquire(ctx, reviewer)
	if err != nil {
		return nil, err
	}
	defer release()

	submissionID := o.newID()
	log := o.logger.With(zap.String("submission", submissionID), zap.String("reviewer", reviewer))

	refs, err := o.upload(ctx, log, reviewer, submissionID, draft.Files)
	if err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		o.rollback(ctx, log, refs)
		return nil, reviewerr.WithCause(reviewerr.ErrCancelled, err)
	}

	evidenceHash, proofHash := evidence.ManifestHash(refs), evidence.ProofHash(refs)
	call, err := contracts.SubmitReview(contracts.SubmitReviewParams{
		CompanyName:  f.companyName,
		Category:     f.category,
		EvidenceHash: evidenceHash,
		ProofHash:    proofHash,
		Rating:       f.rating,
	})
	if err != nil {
		o.rollback(ctx, log, refs)
		return nil, reviewerr.Wrap(err, "encoding submitReview")
	}

	record := store.Record{
		ID:           submissionID,
		Reviewer:     reviewer,
		CompanyName:  f.companyName,
		Category:     f.category,
		Title:        f.title,
		Body:         f.body,
		Rating:       f.rating,
		EvidenceHash: evidenceHash,
		ProofHash:    proofHash,
		Evidence:     refs,
		Status:       store.RecordPendingReview,
		CreatedAt:    o.now().UTC(),
	}

	// Past this point the transaction may be on chain.
	ctx = context.WithoutCancel(ctx)
	receipt, err := o.executor.Execute(ctx, sess, call)
	if err != nil {
		if reviewerr.Is(err, reviewerr.ErrConfirmationTimeout) {
			o.holdUnconfirmed(ctx, log, sess, record, reviewerr.Detail(err, "tx_hash"))
			return nil, reviewerr.WithDetails(err, map[string]string{"submission": submissionID})
		}
		o.rollback(ctx, log, refs)
		return nil, err
	}

	record.TxHash = receipt.TxHash.Hex()
	record.NetworkID = receipt.NetworkID
	record.ChainID = receipt.ChainID
	if sess.Binding != nil {
		if id, ok := contracts.FindReviewID(receipt.Logs, sess.Binding.Profile.Contracts.ReviewRegistry); ok {
			record.ReviewID = strconv.FormatUint(id, 10)
		}
	}

	saved, err := o.persist(ctx, log, record)
	if err != nil {
		return nil, err
	}

	log.Info("review submitted",
		zap.String("tx_hash", saved.TxHash),
		zap.String("review_id", saved.ReviewID),
		zap.Int("evidence", len(refs)),
	)
	draft.Reset()
	return &Result{SubmissionID: submissionID, Record: saved, Receipt: receipt, Evidence: refs}, nil
}

func sanitizeDraft(d *Draft) (fields, error) {
	if d == nil {
		return fields{}, reviewerr.Newf(reviewerr.ErrValidationFailed, "no review to submit")
	}
	f := fields{
		companyName: sanitize.SingleLine(d.CompanyName),
		category:    sanitize.SingleLine(d.Category),
		title:       sanitize.SingleLine(d.Title),
		body:        sanitize.Text(d.Body),
		rating:      sanitize.ClampRatingFloat(d.Rating),
	}
	required := []struct{ name, value string }{
		{"company_name", f.companyName},
		{"category", f.category},
		{"title", f.title},
		{"body", f.body},
	}
	for _, r := range required {
		if r.value == "" {
			return fields{}, requiredField(r.name)
		}
	}
	return f, nil
}

func reviewerOf(sess wallet.Session) (string, error) {
	if !sess.Connected() {
		return "", reviewerr.ErrWalletNotConnected
	}
	reviewer := sanitize.WalletAddress(sess.Account.Hex())
	if reviewer == "" {
		err := reviewerr.Newf(reviewerr.ErrValidationFailed, "wallet address %s is not valid", sess.Account.Hex())
		return "", reviewerr.WithDetails(err, map[string]string{"field": "wallet_address"})
	}
	return reviewer, nil
}

func validateEvidence(files []evidence.Upload) error {
	if len(files) == 0 {
		err := reviewerr.WithDetails(
			reviewerr.Newf(reviewerr.ErrValidationFailed, "at least one evidence file is required"),
			map[string]string{"field": "evidence"},
		)
		return reviewerr.WithSuggestion(err, "attach a "+evidence.AllowedTypesLabel+" document that proves the interaction")
	}
	if err := evidence.ValidateNewFiles(evidence.Files(files), nil); err != nil {
		return err
	}
	for _, u := range files {
		if err := evidence.ValidateContent(u); err != nil {
			return err
		}
	}
	return nil
}

func requiredField(name string) error {
	err := reviewerr.Newf(reviewerr.ErrValidationFailed, "%s is required", name)
	return reviewerr.WithDetails(err, map[string]string{"field": name})
}

// upload stores each file in order. When one fails, the files already
// stored are removed before the error is returned.
func (o *Orchestrator) upload(ctx context.Context, log *zap.Logger, reviewer, submissionID string, files []evidence.Upload) (refs []evidence.Ref, err error) {
	ctx, end := o.metrics.StartStage(ctx, "upload")
	defer func() { end(err) }()

	backend := o.evidence.Backend()
	refs = make([]evidence.Ref, 0, len(files))
	for i, u := range files {
		key := evidence.Key(reviewer, submissionID, i, u.Name)
		ref, err := o.evidence.Upload(ctx, key, u.Content, u.MIMEType)
		o.metrics.RecordUpload(ctx, backend, u.Size, err)
		if err != nil {
			log.Warn("evidence upload failed", zap.String("file", u.Name), zap.Int("index", i), zap.Error(err))
			o.rollback(ctx, log, refs)
			failed := reviewerr.WithCause(reviewerr.ErrUploadFailed, err)
			return nil, reviewerr.WithDetails(failed, map[string]string{
				"file":    u.Name,
				"backend": backend,
			})
		}
		log.Debug("evidence uploaded", zap.String("key", ref.Key), zap.Int64("size", ref.Size))
		refs = append(refs, ref)
	}
	return refs, nil
}

// rollback removes stored evidence. It runs to completion even when ctx
// is cancelled; failures are logged since the original error matters more.
func (o *Orchestrator) rollback(ctx context.Context, log *zap.Logger, refs []evidence.Ref) {
	if len(refs) == 0 {
		return
	}
	ctx = context.WithoutCancel(ctx)
	keys := evidence.Keys(refs)
	err := o.evidence.Remove(ctx, keys)
	o.metrics.RecordRollback(ctx, len(keys), err)
	if err != nil {
		log.Error("evidence rollback failed; files are orphaned", zap.Strings("keys", keys), zap.Error(err))
		return
	}
	log.Info("evidence rolled back", zap.Strings("keys", keys))
}

// holdUnconfirmed stores the record of a review whose transaction was
// sent but not confirmed in time. Reconciliation later promotes it or
// removes its evidence, depending on how the transaction settled.
func (o *Orchestrator) holdUnconfirmed(ctx context.Context, log *zap.Logger, sess wallet.Session, record store.Record, txHash string) {
	record.TxHash = txHash
	record.Status = store.RecordAwaitingConfirmation
	if sess.Binding != nil {
		record.NetworkID = sess.Binding.Profile.ID
		record.ChainID = sess.Binding.Profile.ChainID
	}
	keys := evidence.Keys(record.Evidence)

	if _, err := o.records.Insert(ctx, record); err != nil {
		log.Error("unconfirmed review not recorded; evidence cannot be reconciled",
			zap.String("tx_hash", txHash),
			zap.Strings("evidence", keys),
			zap.Error(err),
		)
		return
	}
	log.Warn("confirmation timed out; review held until the transaction settles",
		zap.String("tx_hash", txHash),
		zap.Strings("evidence", keys),
	)
}

// persist writes the record of a confirmed review. The transaction is
// already on chain, so a failure here is logged at error level and the
// evidence is kept.
func (o *Orchestrator) persist(ctx context.Context, log *zap.Logger, record store.Record) (saved store.Record, err error) {
	ctx, end := o.metrics.StartStage(ctx, "persist")
	defer func() { end(err) }()

	saved, err = o.records.Insert(ctx, record)
	if err != nil {
		log.Error("review confirmed on chain but not recorded",
			zap.String("tx_hash", record.TxHash),
			zap.String("network", record.NetworkID),
			zap.String("evidence_hash", record.EvidenceHash),
			zap.Strings("evidence", evidence.Keys(record.Evidence)),
			zap.Error(err),
		)
		failed := reviewerr.WithCause(reviewerr.ErrPersistenceFailed, err)
		return store.Record{}, reviewerr.WithDetails(failed, map[string]string{
			"tx_hash":       record.TxHash,
			"submission":    record.ID,
			"review_id":     record.ReviewID,
			"evidence_hash": record.EvidenceHash,
		})
	}
	return saved, nil
}
