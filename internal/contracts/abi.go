// Package contracts encodes calls to, and decodes results from, the
// ReviewRegistry contract.
package contracts

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// ReviewRegistryABI is the JSON ABI of the ReviewRegistry contract.
const ReviewRegistryABI = `[
  {"type":"function","name":"submitReview","stateMutability":"nonpayable",
   "inputs":[
     {"name":"companyName","type":"string"},
     {"name":"category","type":"string"},
     {"name":"evidenceHash","type":"string"},
     {"name":"proofHash","type":"string"},
     {"name":"rating","type":"uint8"}],
   "outputs":[{"name":"reviewId","type":"uint256"}]},
  {"type":"function","name":"upvoteReview","stateMutability":"nonpayable",
   "inputs":[{"name":"reviewId","type":"uint256"}],"outputs":[]},
  {"type":"function","name":"downvoteReview","stateMutability":"nonpayable",
   "inputs":[{"name":"reviewId","type":"uint256"}],"outputs":[]},
  {"type":"function","name":"addComment","stateMutability":"nonpayable",
   "inputs":[{"name":"reviewId","type":"uint256"},{"name":"content","type":"string"}],"outputs":[]},
  {"type":"function","name":"getReview","stateMutability":"view",
   "inputs":[{"name":"reviewId","type":"uint256"}],
   "outputs":[{"name":"review","type":"tuple","components":[
     {"name":"id","type":"uint256"},
     {"name":"reviewer","type":"address"},
     {"name":"companyName","type":"string"},
     {"name":"category","type":"string"},
     {"name":"evidenceHash","type":"string"},
     {"name":"proofHash","type":"string"},
     {"name":"rating","type":"uint8"},
     {"name":"upvotes","type":"uint256"},
     {"name":"downvotes","type":"uint256"},
     {"name":"timestamp","type":"uint256"},
     {"name":"verified","type":"bool"}]}]},
  {"type":"function","name":"getUserReviews","stateMutability":"view",
   "inputs":[{"name":"user","type":"address"}],
   "outputs":[{"name":"","type":"uint256[]"}]},
  {"type":"event","name":"ReviewSubmitted","anonymous":false,
   "inputs":[
     {"name":"reviewId","type":"uint256","indexed":true},
     {"name":"reviewer","type":"address","indexed":true},
     {"name":"companyName","type":"string","indexed":false},
     {"name":"rating","type":"uint8","indexed":false}]},
  {"type":"event","name":"ReviewVoted","anonymous":false,
   "inputs":[
     {"name":"reviewId","type":"uint256","indexed":true},
     {"name":"voter","type":"address","indexed":true},
     {"name":"upvote","type":"bool","indexed":false}]},
  {"type":"event","name":"CommentAdded","anonymous":false,
   "inputs":[
     {"name":"reviewId","type":"uint256","indexed":true},
     {"name":"commenter","type":"address","indexed":true},
     {"name":"content","type":"string","indexed":false}]}
]`

// Method names.
const (
	MethodSubmitReview   = "submitReview"
	MethodUpvoteReview   = "upvoteReview"
	MethodDownvoteReview = "downvoteReview"
	MethodAddComment     = "addComment"
	MethodGetReview      = "getReview"
	MethodGetUserReviews = "getUserReviews"

	EventReviewSubmitted = "ReviewSubmitted"
)

var reviewRegistry = mustParse(ReviewRegistryABI) //nolint:gochecknoglobals // parsed once at init

func mustParse(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic("contracts: invalid ABI: " + err.Error())
	}
	return parsed
}

// ABI returns the parsed ReviewRegistry ABI.
func ABI() abi.ABI {
	return reviewRegistry
}
