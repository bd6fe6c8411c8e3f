// Package store persists review records and the transactions that back
// them.
package store

import (
	"time"

	"github.com/reviewchain/reviewchain/internal/evidence"
)

// TxStatus is the lifecycle state of a broadcast transaction. The only
// transitions are pending to confirmed and pending to failed.
type TxStatus string

// Transaction states.
const (
	TxPending   TxStatus = "pending"
	TxConfirmed TxStatus = "confirmed"
	TxFailed    TxStatus = "failed"
)

// Valid reports whether s is a known status.
func (s TxStatus) Valid() bool {
	switch s {
	case TxPending, TxConfirmed, TxFailed:
		return true
	}
	return false
}

// RecordStatus is the moderation state of a stored review.
type RecordStatus string

// Record states. A review whose transaction was still unconfirmed when
// the submission returned is stored as awaiting-confirmation and moves to
// pending-review or tx-failed once the transaction settles.
const (
	RecordPendingReview        RecordStatus = "pending-review"
	RecordAwaitingConfirmation RecordStatus = "awaiting-confirmation"
	RecordTxFailed             RecordStatus = "tx-failed"
)

// Transaction is a broadcast transaction awaiting or past confirmation.
type Transaction struct {
	Hash        string    `json:"hash"`
	Method      string    `json:"method"`
	NetworkID   string    `json:"network"`
	ChainID     uint64    `json:"chain_id"`
	From        string    `json:"from"`
	Nonce       uint64    `json:"nonce"`
	GasLimit    uint64    `json:"gas_limit"`
	Status      TxStatus  `json:"status"`
	Reason      string    `json:"reason,omitempty"`
	SubmittedAt time.Time `json:"submitted_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Record links a submission to its transaction and evidence.
type Record struct {
	ID           string         `json:"id"`
	TxHash       string         `json:"tx_hash"`
	ReviewID     string         `json:"review_id,omitempty"`
	Reviewer     string         `json:"reviewer"`
	CompanyName  string         `json:"company_name"`
	Category     string         `json:"category"`
	Title        string         `json:"title"`
	Body         string         `json:"body"`
	Rating       int            `json:"rating"`
	EvidenceHash string         `json:"evidence_hash"`
	ProofHash    string         `json:"proof_hash"`
	Evidence     []evidence.Ref `json:"evidence"`
	NetworkID    string         `json:"network"`
	ChainID      uint64         `json:"chain_id"`
	Status       RecordStatus   `json:"status"`
	CreatedAt    time.Time      `json:"created_at"`
}
