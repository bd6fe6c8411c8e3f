package contracts

import (
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/reviewchain/reviewchain/internal/sanitize"
	reviewerr "github.com/reviewchain/reviewchain/pkg/errors"
)

// ErrUnexpectedLog is returned when a log is not the expected event.
var ErrUnexpectedLog = errors.New("log is not the expected event")

// Call is an encoded contract invocation. The target address comes from
// the network binding at execution time.
type Call struct {
	Method string
	Data   []byte
}

// SubmitReviewParams are the on-chain fields of a review.
type SubmitReviewParams struct {
	CompanyName  string
	Category     string
	EvidenceHash string
	ProofHash    string
	Rating       int
}

// Review is the decoded on-chain review.
type Review struct {
	ID           uint64         `json:"id"`
	Reviewer     common.Address `json:"reviewer"`
	CompanyName  string         `json:"company_name"`
	Category     string         `json:"category"`
	EvidenceHash string         `json:"evidence_hash"`
	ProofHash    string         `json:"proof_hash"`
	Rating       int            `json:"rating"`
	Upvotes      uint64         `json:"upvotes"`
	Downvotes    uint64         `json:"downvotes"`
	Timestamp    time.Time      `json:"timestamp"`
	Verified     bool           `json:"verified"`
}

// Score is upvotes minus downvotes.
func (r Review) Score() int64 {
	return int64(r.Upvotes) - int64(r.Downvotes) //nolint:gosec // vote counts fit in int64
}

// ReviewSubmitted is the decoded ReviewSubmitted event.
type ReviewSubmitted struct {
	ReviewID    uint64
	Reviewer    common.Address
	CompanyName string
	Rating      uint8
}

// rawReview mirrors the getReview tuple so abi.ConvertType can map onto it.
//
//nolint:revive,stylecheck // field names must match the ABI component names
type rawReview struct {
	Id           *big.Int
	Reviewer     common.Address
	CompanyName  string
	Category     string
	EvidenceHash string
	ProofHash    string
	Rating       uint8
	Upvotes      *big.Int
	Downvotes    *big.Int
	Timestamp    *big.Int
	Verified     bool
}

// SubmitReview encodes submitReview. The rating is clamped to 1..5.
func SubmitReview(p SubmitReviewParams) (Call, error) {
	rating := uint8(sanitize.ClampRating(p.Rating)) //nolint:gosec // clamped to 1..5
	return pack(MethodSubmitReview, p.CompanyName, p.Category, p.EvidenceHash, p.ProofHash, rating)
}

// UpvoteReview encodes upvoteReview.
func UpvoteReview(reviewID uint64) (Call, error) {
	return pack(MethodUpvoteReview, new(big.Int).SetUint64(reviewID))
}

// DownvoteReview encodes downvoteReview.
func DownvoteReview(reviewID uint64) (Call, error) {
	return pack(MethodDownvoteReview, new(big.Int).SetUint64(reviewID))
}

// AddComment encodes addComment.
func AddComment(reviewID uint64, content string) (Call, error) {
	return pack(MethodAddComment, new(big.Int).SetUint64(reviewID), content)
}

// GetReview encodes the getReview view call.
func GetReview(reviewID uint64) (Call, error) {
	return pack(MethodGetReview, new(big.Int).SetUint64(reviewID))
}

// GetUserReviews encodes the getUserReviews view call.
func GetUserReviews(user common.Address) (Call, error) {
	return pack(MethodGetUserReviews, user)
}

func pack(method string, args ...any) (Call, error) {
	data, err := reviewRegistry.Pack(method, args...)
	if err != nil {
		return Call{}, fmt.Errorf("encoding %s: %w", method, err)
	}
	return Call{Method: method, Data: data}, nil
}

// UnpackReview decodes the result of getReview. A zero id means the
// review does not exist.
func UnpackReview(data []byte) (*Review, error) {
	out, err := reviewRegistry.Unpack(MethodGetReview, data)
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", MethodGetReview, err)
	}
	if len(out) != 1 {
		return nil, fmt.Errorf("decoding %s: expected 1 value, got %d", MethodGetReview, len(out))
	}

	raw, ok := abi.ConvertType(out[0], new(rawReview)).(*rawReview)
	if !ok || raw.Id == nil {
		return nil, fmt.Errorf("decoding %s: unexpected result type %T", MethodGetReview, out[0])
	}
	if raw.Id.Sign() == 0 {
		return nil, reviewerr.ErrNotFound
	}

	return &Review{
		ID:           toUint64(raw.Id),
		Reviewer:     raw.Reviewer,
		CompanyName:  raw.CompanyName,
		Category:     raw.Category,
		EvidenceHash: raw.EvidenceHash,
		ProofHash:    raw.ProofHash,
		Rating:       int(raw.Rating),
		Upvotes:      toUint64(raw.Upvotes),
		Downvotes:    toUint64(raw.Downvotes),
		Timestamp:    time.Unix(int64(toUint64(raw.Timestamp)), 0).UTC(), //nolint:gosec // block timestamps fit in int64
		Verified:     raw.Verified,
	}, nil
}

// UnpackUserReviews decodes the result of getUserReviews.
func UnpackUserReviews(data []byte) ([]uint64, error) {
	out, err := reviewRegistry.Unpack(MethodGetUserReviews, data)
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", MethodGetUserReviews, err)
	}
	if len(out) != 1 {
		return nil, fmt.Errorf("decoding %s: expected 1 value, got %d", MethodGetUserReviews, len(out))
	}

	ids, ok := out[0].([]*big.Int)
	if !ok {
		return nil, fmt.Errorf("decoding %s: unexpected result type %T", MethodGetUserReviews, out[0])
	}

	result := make([]uint64, len(ids))
	for i, id := range ids {
		result[i] = toUint64(id)
	}
	return result, nil
}

// ParseReviewSubmitted decodes a ReviewSubmitted log.
func ParseReviewSubmitted(log *types.Log) (*ReviewSubmitted, error) {
	event := reviewRegistry.Events[EventReviewSubmitted]
	if log == nil || len(log.Topics) != 3 || log.Topics[0] != event.ID {
		return nil, ErrUnexpectedLog
	}

	var body struct {
		CompanyName string
		Rating      uint8
	}
	if err := reviewRegistry.UnpackIntoInterface(&body, EventReviewSubmitted, log.Data); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", EventReviewSubmitted, err)
	}

	return &ReviewSubmitted{
		ReviewID:    toUint64(new(big.Int).SetBytes(log.Topics[1].Bytes())),
		Reviewer:    common.BytesToAddress(log.Topics[2].Bytes()),
		CompanyName: body.CompanyName,
		Rating:      body.Rating,
	}, nil
}

// FindReviewID returns the id assigned by the first ReviewSubmitted event
// emitted by registry in logs.
func FindReviewID(logs []*types.Log, registry common.Address) (uint64, bool) {
	for _, l := range logs {
		if l == nil || l.Address != registry {
			continue
		}
		if ev, err := ParseReviewSubmitted(l); err == nil {
			return ev.ReviewID, true
		}
	}
	return 0, false
}

func toUint64(v *big.Int) uint64 {
	if v == nil || !v.IsUint64() {
		return 0
	}
	return v.Uint64()
}
