package contracts

import (
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	reviewerr "github.com/reviewchain/reviewchain/pkg/errors"
)

var (
	registryAddr = common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3")
	reviewerAddr = common.HexToAddress("0x9858EfFD232B4033E47d90003D41EC34EcaEda94")
)

func TestSubmitReviewEncoding(t *testing.T) {
	t.Parallel()
	call, err := SubmitReview(SubmitReviewParams{
		CompanyName:  "Acme",
		Category:     "salary",
		EvidenceHash: "0xaa",
		ProofHash:    "0xbb",
		Rating:       4,
	})
	require.NoError(t, err)
	assert.Equal(t, MethodSubmitReview, call.Method)

	method := ABI().Methods[MethodSubmitReview]
	assert.Equal(t, method.ID, call.Data[:4])

	args, err := method.Inputs.Unpack(call.Data[4:])
	require.NoError(t, err)
	require.Len(t, args, 5)
	assert.Equal(t, "Acme", args[0])
	assert.Equal(t, "salary", args[1])
	assert.Equal(t, "0xaa", args[2])
	assert.Equal(t, "0xbb", args[3])
	assert.Equal(t, uint8(4), args[4])
}

func TestSubmitReviewClampsRating(t *testing.T) {
	t.Parallel()
	for input, want := range map[int]uint8{0: 1, 7: 5, -3: 1, 5: 5} {
		call, err := SubmitReview(SubmitReviewParams{CompanyName: "A", Category: "c", Rating: input})
		require.NoError(t, err)

		args, err := ABI().Methods[MethodSubmitReview].Inputs.Unpack(call.Data[4:])
		require.NoError(t, err)
		assert.Equal(t, want, args[4], "input %d", input)
	}
}

func TestVoteAndCommentEncoding(t *testing.T) {
	t.Parallel()
	up, err := UpvoteReview(42)
	require.NoError(t, err)
	assert.Equal(t, ABI().Methods[MethodUpvoteReview].ID, up.Data[:4])

	down, err := DownvoteReview(42)
	require.NoError(t, err)
	assert.Equal(t, ABI().Methods[MethodDownvoteReview].ID, down.Data[:4])
	assert.Equal(t, up.Data[4:], down.Data[4:])

	comment, err := AddComment(42, "Agreed")
	require.NoError(t, err)
	args, err := ABI().Methods[MethodAddComment].Inputs.Unpack(comment.Data[4:])
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(42), args[0])
	assert.Equal(t, "Agreed", args[1])
}

func TestUnpackReview(t *testing.T) {
	t.Parallel()
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	data, err := ABI().Methods[MethodGetReview].Outputs.Pack(rawReview{
		Id:           big.NewInt(7),
		Reviewer:     reviewerAddr,
		CompanyName:  "Acme",
		Category:     "culture",
		EvidenceHash: "0x01",
		ProofHash:    "0x02",
		Rating:       3,
		Upvotes:      big.NewInt(10),
		Downvotes:    big.NewInt(4),
		Timestamp:    big.NewInt(ts.Unix()),
		Verified:     true,
	})
	require.NoError(t, err)

	review, err := UnpackReview(data)
	require.NoError(t, err)
	assert.Equal(t, uint64(7), review.ID)
	assert.Equal(t, reviewerAddr, review.Reviewer)
	assert.Equal(t, "Acme", review.CompanyName)
	assert.Equal(t, 3, review.Rating)
	assert.Equal(t, int64(6), review.Score())
	assert.Equal(t, ts, review.Timestamp)
	assert.True(t, review.Verified)
}

func TestUnpackReviewMissing(t *testing.T) {
	t.Parallel()
	data, err := ABI().Methods[MethodGetReview].Outputs.Pack(rawReview{
		Id:        big.NewInt(0),
		Upvotes:   big.NewInt(0),
		Downvotes: big.NewInt(0),
		Timestamp: big.NewInt(0),
	})
	require.NoError(t, err)

	_, err = UnpackReview(data)
	require.ErrorIs(t, err, reviewerr.ErrNotFound)

	_, err = UnpackReview([]byte{0x01})
	require.Error(t, err)
}

func TestUserReviews(t *testing.T) {
	t.Parallel()
	call, err := GetUserReviews(reviewerAddr)
	require.NoError(t, err)
	assert.Equal(t, MethodGetUserReviews, call.Method)

	data, err := ABI().Methods[MethodGetUserReviews].Outputs.Pack([]*big.Int{big.NewInt(1), big.NewInt(9)})
	require.NoError(t, err)

	ids, err := UnpackUserReviews(data)
	require.NoError(t, err)
	assert.Equal(t, []uint64{1, 9}, ids)
}

// reviewSubmittedLog builds a log as the registry would emit it.
func reviewSubmittedLog(t *testing.T, id int64, company string, rating uint8) *types.Log {
	t.Helper()
	event := ABI().Events[EventReviewSubmitted]
	data, err := event.Inputs.NonIndexed().Pack(company, rating)
	require.NoError(t, err)

	return &types.Log{
		Address: registryAddr,
		Topics: []common.Hash{
			event.ID,
			common.BigToHash(big.NewInt(id)),
			common.BytesToHash(reviewerAddr.Bytes()),
		},
		Data: data,
	}
}

func TestParseReviewSubmitted(t *testing.T) {
	t.Parallel()
	ev, err := ParseReviewSubmitted(reviewSubmittedLog(t, 12, "Acme", 5))
	require.NoError(t, err)
	assert.Equal(t, uint64(12), ev.ReviewID)
	assert.Equal(t, reviewerAddr, ev.Reviewer)
	assert.Equal(t, "Acme", ev.CompanyName)
	assert.Equal(t, uint8(5), ev.Rating)

	_, err = ParseReviewSubmitted(&types.Log{Topics: []common.Hash{{}}})
	require.ErrorIs(t, err, ErrUnexpectedLog)
	_, err = ParseReviewSubmitted(nil)
	require.ErrorIs(t, err, ErrUnexpectedLog)
}

func TestFindReviewID(t *testing.T) {
	t.Parallel()
	other := reviewSubmittedLog(t, 99, "Other", 1)
	other.Address = common.HexToAddress("0x01")

	logs := []*types.Log{nil, other, reviewSubmittedLog(t, 12, "Acme", 5)}
	id, ok := FindReviewID(logs, registryAddr)
	assert.True(t, ok)
	assert.Equal(t, uint64(12), id)

	_, ok = FindReviewID(logs[:2], registryAddr)
	assert.False(t, ok)
}
