package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reviewchain/reviewchain/internal/evidence"
	reviewerr "github.com/reviewchain/reviewchain/pkg/errors"
)

func openSQLite(t *testing.T) *SQLStore {
	t.Helper()
	s, err := Open(context.Background(), DriverSQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func sampleRecord(id, reviewer string, created time.Time) Record {
	return Record{
		ID:           id,
		TxHash:       "0xabc",
		ReviewID:     "7",
		Reviewer:     reviewer,
		CompanyName:  "Acme",
		Category:     "Software",
		Title:        "Solid",
		Body:         "Worked as described.",
		Rating:       5,
		EvidenceHash: "0x01",
		ProofHash:    "0x02",
		Evidence: []evidence.Ref{
			{Key: "reviews/a/b/00-invoice.pdf", URI: "file:///tmp/x", Size: 42, Digest: "0x03", MIMEType: "application/pdf"},
		},
		NetworkID: "amoy",
		ChainID:   80002,
		CreatedAt: created,
	}
}

func TestSQLStore_Records(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := openSQLite(t)

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	reviewer := "0xAbCdEf0000000000000000000000000000000001"

	first, err := s.Insert(ctx, sampleRecord("r1", reviewer, base))
	require.NoError(t, err)
	assert.Equal(t, RecordPendingReview, first.Status)

	_, err = s.Insert(ctx, sampleRecord("r2", reviewer, base.Add(time.Minute)))
	require.NoError(t, err)
	_, err = s.Insert(ctx, sampleRecord("r3", "0x0000000000000000000000000000000000000002", base))
	require.NoError(t, err)

	got, err := s.GetRecord(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, "Acme", got.CompanyName)
	assert.Equal(t, uint64(80002), got.ChainID)
	assert.Equal(t, base, got.CreatedAt)
	require.Len(t, got.Evidence, 1)
	assert.Equal(t, "application/pdf", got.Evidence[0].MIMEType)
	assert.Equal(t, RecordPendingReview, got.Status)

	list, err := s.ListByReviewer(ctx, reviewer)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "r2", list[0].ID, "newest first")

	_, err = s.GetRecord(ctx, "missing")
	assert.True(t, reviewerr.Is(err, reviewerr.ErrNotFound))

	_, err = s.Insert(ctx, sampleRecord("r1", reviewer, base))
	assert.Error(t, err, "duplicate id")
}

func TestSQLStore_TransactionLifecycle(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := openSQLite(t)

	tx := Transaction{
		Hash:      "0xfeed",
		Method:    "submitReview",
		NetworkID: "amoy",
		ChainID:   80002,
		From:      "0x01",
		Nonce:     4,
		GasLimit:  120000,
	}
	require.NoError(t, s.TrackPending(ctx, tx))

	pending, err := s.ListPending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, TxPending, pending[0].Status)
	assert.Equal(t, uint64(120000), pending[0].GasLimit)

	require.NoError(t, s.UpdateStatus(ctx, "0xfeed", TxConfirmed, ""))
	require.NoError(t, s.UpdateStatus(ctx, "0xfeed", TxConfirmed, ""), "repeating the final status is a no-op")

	err = s.UpdateStatus(ctx, "0xfeed", TxFailed, "reverted")
	assert.True(t, reviewerr.Is(err, reviewerr.ErrStatusConflict))

	err = s.UpdateStatus(ctx, "0xfeed", TxPending, "")
	assert.True(t, reviewerr.Is(err, reviewerr.ErrStatusConflict))

	err = s.UpdateStatus(ctx, "0xmissing", TxFailed, "")
	assert.True(t, reviewerr.Is(err, reviewerr.ErrNotFound))

	got, err := s.GetTransaction(ctx, "0xfeed")
	require.NoError(t, err)
	assert.Equal(t, TxConfirmed, got.Status)

	pending, err = s.ListPending(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestSQLStore_SettleRecord(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := openSQLite(t)

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	reviewer := "0xAbCdEf0000000000000000000000000000000001"

	waiting := sampleRecord("r1", reviewer, base)
	waiting.ReviewID = ""
	waiting.Status = RecordAwaitingConfirmation
	_, err := s.Insert(ctx, waiting)
	require.NoError(t, err)

	later := sampleRecord("r2", reviewer, base.Add(time.Minute))
	later.Status = RecordAwaitingConfirmation
	_, err = s.Insert(ctx, later)
	require.NoError(t, err)
	_, err = s.Insert(ctx, sampleRecord("r3", reviewer, base))
	require.NoError(t, err)

	awaiting, err := s.ListAwaiting(ctx)
	require.NoError(t, err)
	require.Len(t, awaiting, 2)
	assert.Equal(t, "r1", awaiting[0].ID, "oldest first")

	require.NoError(t, s.SettleRecord(ctx, "r1", RecordAwaitingConfirmation, RecordPendingReview, "12"))
	got, err := s.GetRecord(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, RecordPendingReview, got.Status)
	assert.Equal(t, "12", got.ReviewID)

	require.NoError(t, s.SettleRecord(ctx, "r1", RecordAwaitingConfirmation, RecordPendingReview, ""),
		"repeating a finished move is a no-op")
	err = s.SettleRecord(ctx, "r1", RecordAwaitingConfirmation, RecordTxFailed, "")
	assert.True(t, reviewerr.Is(err, reviewerr.ErrStatusConflict))

	require.NoError(t, s.SettleRecord(ctx, "r2", RecordAwaitingConfirmation, RecordTxFailed, ""))
	got, err = s.GetRecord(ctx, "r2")
	require.NoError(t, err)
	assert.Equal(t, RecordTxFailed, got.Status)
	assert.Equal(t, "7", got.ReviewID, "review id kept when none is given")

	err = s.SettleRecord(ctx, "missing", RecordAwaitingConfirmation, RecordTxFailed, "")
	assert.True(t, reviewerr.Is(err, reviewerr.ErrNotFound))

	awaiting, err = s.ListAwaiting(ctx)
	require.NoError(t, err)
	assert.Empty(t, awaiting)
}

func TestOpen_UnsupportedDriver(t *testing.T) {
	t.Parallel()
	_, err := Open(context.Background(), "mysql", "")
	assert.True(t, reviewerr.Is(err, reviewerr.ErrConfigInvalid))
}

func TestTxStatusValid(t *testing.T) {
	t.Parallel()
	assert.True(t, TxPending.Valid())
	assert.True(t, TxFailed.Valid())
	assert.False(t, TxStatus("mined").Valid())
}

func TestRebind(t *testing.T) {
	t.Parallel()
	pg := &SQLStore{driver: DriverPostgres}
	assert.Equal(t, "a = $1 AND b = $2", pg.rebind("a = ? AND b = ?"))
	lite := &SQLStore{driver: DriverSQLite}
	assert.Equal(t, "a = ?", lite.rebind("a = ?"))
}
