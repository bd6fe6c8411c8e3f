package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"  // postgres driver
	_ "modernc.org/sqlite" // sqlite driver

	reviewerr "github.com/reviewchain/reviewchain/pkg/errors"
)

// Supported drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS reviews (
		id TEXT PRIMARY KEY,
		tx_hash TEXT NOT NULL,
		review_id TEXT NOT NULL DEFAULT '',
		reviewer TEXT NOT NULL,
		company_name TEXT NOT NULL,
		category TEXT NOT NULL,
		title TEXT NOT NULL,
		body TEXT NOT NULL,
		rating INTEGER NOT NULL,
		evidence_hash TEXT NOT NULL,
		proof_hash TEXT NOT NULL,
		evidence TEXT NOT NULL,
		network TEXT NOT NULL,
		chain_id BIGINT NOT NULL,
		status TEXT NOT NULL,
		created_at TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS reviews_reviewer_idx ON reviews (reviewer)`,
	`CREATE TABLE IF NOT EXISTS transactions (
		hash TEXT PRIMARY KEY,
		method TEXT NOT NULL,
		network TEXT NOT NULL,
		chain_id BIGINT NOT NULL,
		from_address TEXT NOT NULL,
		nonce BIGINT NOT NULL,
		gas_limit BIGINT NOT NULL,
		status TEXT NOT NULL,
		reason TEXT NOT NULL DEFAULT '',
		submitted_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS transactions_status_idx ON transactions (status)`,
}

const (
	recordColumns = `id, tx_hash, review_id, reviewer, company_name, category, title, body, rating,
		evidence_hash, proof_hash, evidence, network, chain_id, status, created_at`
	txColumns = `hash, method, network, chain_id, from_address, nonce, gas_limit, status, reason, submitted_at, updated_at`
)

// SQLStore keeps records and transactions in SQLite or Postgres. Queries
// are written with ? placeholders and rebound for Postgres.
type SQLStore struct {
	db     *sql.DB
	driver string
	now    func() time.Time
}

// Open connects to dsn with driver and applies the schema.
func Open(ctx context.Context, driver, dsn string) (*SQLStore, error) {
	if driver != DriverSQLite && driver != DriverPostgres {
		return nil, reviewerr.Newf(reviewerr.ErrConfigInvalid, "unsupported store driver %q", driver)
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("opening %s store: %w", driver, err)
	}
	if driver == DriverSQLite {
		// One connection keeps ":memory:" databases shared and serializes writers.
		db.SetMaxOpenConns(1)
	}
	s, err := New(ctx, db, driver)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an open database and applies the schema.
func New(ctx context.Context, db *sql.DB, driver string) (*SQLStore, error) {
	s := &SQLStore{db: db, driver: driver, now: time.Now}
	if err := s.migrate(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SQLStore) migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrating store: %w", err)
		}
	}
	return nil
}

// Close closes the database.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// rebind rewrites ? placeholders to $n for Postgres.
func (s *SQLStore) rebind(query string) string {
	if s.driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// timeLayout is fixed width so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(timeLayout, s)
}

// Insert stores a new review record. CreatedAt and Status default when
// unset.
func (s *SQLStore) Insert(ctx context.Context, r Record) (Record, error) {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = s.now()
	}
	if r.Status == "" {
		r.Status = RecordPendingReview
	}
	refs, err := json.Marshal(r.Evidence)
	if err != nil {
		return Record{}, fmt.Errorf("encoding evidence refs: %w", err)
	}

	query := s.rebind(`INSERT INTO reviews (` + recordColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err = s.db.ExecContext(ctx, query,
		r.ID, r.TxHash, r.ReviewID, strings.ToLower(r.Reviewer), r.CompanyName, r.Category, r.Title, r.Body, r.Rating,
		r.EvidenceHash, r.ProofHash, string(refs), r.NetworkID, int64(r.ChainID), string(r.Status), formatTime(r.CreatedAt), //nolint:gosec // chain ids fit in int64
	)
	if err != nil {
		return Record{}, fmt.Errorf("inserting review %s: %w", r.ID, err)
	}
	return r, nil
}

// GetRecord returns the record with id.
func (s *SQLStore) GetRecord(ctx context.Context, id string) (Record, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`SELECT `+recordColumns+` FROM reviews WHERE id = ?`), id)
	r, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, reviewerr.WithDetails(reviewerr.ErrNotFound, map[string]string{"record": id})
	}
	return r, err
}

// ListByReviewer returns a reviewer's records, newest first.
func (s *SQLStore) ListByReviewer(ctx context.Context, reviewer string) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx,
		s.rebind(`SELECT `+recordColumns+` FROM reviews WHERE reviewer = ? ORDER BY created_at DESC`),
		strings.ToLower(reviewer),
	)
	if err != nil {
		return nil, fmt.Errorf("listing reviews: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ListAwaiting returns records whose transaction had not confirmed when
// they were stored, oldest first.
func (s *SQLStore) ListAwaiting(ctx context.Context) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx,
		s.rebind(`SELECT `+recordColumns+` FROM reviews WHERE status = ? ORDER BY created_at ASC`),
		string(RecordAwaitingConfirmation),
	)
	if err != nil {
		return nil, fmt.Errorf("listing unconfirmed reviews: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// SettleRecord moves record id from one status to another, setting its
// review id when reviewID is not empty. Repeating a finished move is a
// no-op; a record in any other status is a STATUS_CONFLICT.
func (s *SQLStore) SettleRecord(ctx context.Context, id string, from, to RecordStatus, reviewID string) error {
	query := `UPDATE reviews SET status = ? WHERE id = ? AND status = ?`
	args := []any{string(to), id, string(from)}
	if reviewID != "" {
		query = `UPDATE reviews SET status = ?, review_id = ? WHERE id = ? AND status = ?`
		args = []any{string(to), reviewID, id, string(from)}
	}
	res, err := s.db.ExecContext(ctx, s.rebind(query), args...)
	if err != nil {
		return fmt.Errorf("updating review %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		return nil
	}

	current, err := s.GetRecord(ctx, id)
	if err != nil {
		return err
	}
	if current.Status == to {
		return nil
	}
	return reviewerr.WithDetails(
		reviewerr.Newf(reviewerr.ErrStatusConflict, "review record is %s, not %s", current.Status, from),
		map[string]string{"record": id},
	)
}

// TrackPending records a broadcast transaction as pending.
func (s *SQLStore) TrackPending(ctx context.Context, tx Transaction) error {
	now := s.now()
	if tx.SubmittedAt.IsZero() {
		tx.SubmittedAt = now
	}
	query := s.rebind(`INSERT INTO transactions (` + txColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err := s.db.ExecContext(ctx, query,
		tx.Hash, tx.Method, tx.NetworkID, int64(tx.ChainID), tx.From, int64(tx.Nonce), int64(tx.GasLimit), //nolint:gosec // chain values fit in int64
		string(TxPending), "", formatTime(tx.SubmittedAt), formatTime(now),
	)
	if err != nil {
		return fmt.Errorf("tracking transaction %s: %w", tx.Hash, err)
	}
	return nil
}

// UpdateStatus moves a pending transaction to confirmed or failed.
// Repeating the current final status is a no-op; any other change of a
// settled transaction is a STATUS_CONFLICT.
func (s *SQLStore) UpdateStatus(ctx context.Context, hash string, status TxStatus, reason string) error {
	if status != TxConfirmed && status != TxFailed {
		return reviewerr.WithDetails(
			reviewerr.Newf(reviewerr.ErrStatusConflict, "cannot move transaction to %q", status),
			map[string]string{"tx_hash": hash},
		)
	}

	res, err := s.db.ExecContext(ctx,
		s.rebind(`UPDATE transactions SET status = ?, reason = ?, updated_at = ? WHERE hash = ? AND status = ?`),
		string(status), reason, formatTime(s.now()), hash, string(TxPending),
	)
	if err != nil {
		return fmt.Errorf("updating transaction %s: %w", hash, err)
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		return nil
	}

	current, err := s.GetTransaction(ctx, hash)
	if err != nil {
		return err
	}
	if current.Status == status {
		return nil
	}
	return reviewerr.WithDetails(
		reviewerr.Newf(reviewerr.ErrStatusConflict, "transaction is already %s", current.Status),
		map[string]string{"tx_hash": hash},
	)
}

// GetTransaction returns the tracked transaction with hash.
func (s *SQLStore) GetTransaction(ctx context.Context, hash string) (Transaction, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`SELECT `+txColumns+` FROM transactions WHERE hash = ?`), hash)
	tx, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Transaction{}, reviewerr.WithDetails(reviewerr.ErrNotFound, map[string]string{"tx_hash": hash})
	}
	return tx, err
}

// ListPending returns pending transactions, oldest first.
func (s *SQLStore) ListPending(ctx context.Context) ([]Transaction, error) {
	rows, err := s.db.QueryContext(ctx,
		s.rebind(`SELECT `+txColumns+` FROM transactions WHERE status = ? ORDER BY submitted_at ASC`),
		string(TxPending),
	)
	if err != nil {
		return nil, fmt.Errorf("listing pending transactions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, tx)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (Record, error) {
	var (
		r       Record
		refs    string
		status  string
		chainID int64
		created string
	)
	err := row.Scan(&r.ID, &r.TxHash, &r.ReviewID, &r.Reviewer, &r.CompanyName, &r.Category, &r.Title, &r.Body,
		&r.Rating, &r.EvidenceHash, &r.ProofHash, &refs, &r.NetworkID, &chainID, &status, &created)
	if err != nil {
		return Record{}, err
	}
	if err := json.Unmarshal([]byte(refs), &r.Evidence); err != nil {
		return Record{}, fmt.Errorf("decoding evidence refs of %s: %w", r.ID, err)
	}
	if r.CreatedAt, err = parseTime(created); err != nil {
		return Record{}, fmt.Errorf("decoding created_at of %s: %w", r.ID, err)
	}
	r.ChainID = uint64(chainID) //nolint:gosec // stored from uint64
	r.Status = RecordStatus(status)
	return r, nil
}

func scanTransaction(row scanner) (Transaction, error) {
	var (
		tx                  Transaction
		chainID, nonce, gas int64
		status              string
		submitted, updated  string
	)
	err := row.Scan(&tx.Hash, &tx.Method, &tx.NetworkID, &chainID, &tx.From, &nonce, &gas, &status, &tx.Reason, &submitted, &updated)
	if err != nil {
		return Transaction{}, err
	}
	if tx.SubmittedAt, err = parseTime(submitted); err != nil {
		return Transaction{}, fmt.Errorf("decoding submitted_at of %s: %w", tx.Hash, err)
	}
	if tx.UpdatedAt, err = parseTime(updated); err != nil {
		return Transaction{}, fmt.Errorf("decoding updated_at of %s: %w", tx.Hash, err)
	}
	tx.ChainID = uint64(chainID) //nolint:gosec // stored from uint64
	tx.Nonce = uint64(nonce)     //nolint:gosec // stored from uint64
	tx.GasLimit = uint64(gas)    //nolint:gosec // stored from uint64
	tx.Status = TxStatus(status)
	return tx, nil
}
