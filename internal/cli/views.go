package cli

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/reviewchain/reviewchain/internal/chain"
	"github.com/reviewchain/reviewchain/internal/chain/eth"
	"github.com/reviewchain/reviewchain/internal/contracts"
	"github.com/reviewchain/reviewchain/internal/network"
	"github.com/reviewchain/reviewchain/internal/output"
	"github.com/reviewchain/reviewchain/internal/service/review"
	"github.com/reviewchain/reviewchain/internal/service/submission"
	"github.com/reviewchain/reviewchain/internal/store"
	"github.com/reviewchain/reviewchain/internal/wallet"
)

// submissionView is the output of a successful submit.
type submissionView struct {
	*submission.Result
}

func (v submissionView) RenderText(w io.Writer) error {
	r := v.Record
	tbl := output.NewTable().
		AddRow("Submission", v.SubmissionID).
		AddRow("Review ID", valueOr(r.ReviewID, "(not reported)")).
		AddRow("Company", r.CompanyName).
		AddRow("Category", r.Category).
		AddRow("Title", r.Title).
		AddRow("Rating", strconv.Itoa(r.Rating)).
		AddRow("Status", string(r.Status)).
		AddRow("Evidence hash", r.EvidenceHash).
		AddRow("Proof hash", r.ProofHash)
	if err := tbl.Render(w); err != nil {
		return err
	}

	files := output.NewTable("FILE", "SIZE", "DIGEST").AlignRight(1)
	for _, ref := range v.Evidence {
		files.AddRow(ref.URI, strconv.FormatInt(ref.Size, 10), ref.Digest)
	}
	if _, err := fmt.Fprintln(w); err != nil {
		return err
	}
	if err := files.Render(w); err != nil {
		return err
	}
	if v.Receipt == nil {
		return nil
	}
	if _, err := fmt.Fprintln(w); err != nil {
		return err
	}
	return receiptView{v.Receipt}.RenderText(w)
}

// receiptView is the output of any confirmed transaction.
type receiptView struct {
	*eth.Receipt
}

func (v receiptView) RenderText(w io.Writer) error {
	tbl := output.NewTable().
		AddRow("Transaction", v.TxHash.Hex()).
		AddRow("Method", v.Method).
		AddRow("Network", fmt.Sprintf("%s (chain %d)", v.NetworkID, v.ChainID)).
		AddRow("From", v.From.Hex()).
		AddRow("Block", strconv.FormatUint(v.BlockNumber, 10)).
		AddRow("Gas used", fmt.Sprintf("%d of %d", v.GasUsed, v.GasLimit))
	if v.EffectiveGasPrice != nil {
		tbl.AddRow("Gas price", eth.FormatGasPrice(v.EffectiveGasPrice))
		tbl.AddRow("Fee", chain.FormatDecimalAmount(v.Fee(), 18))
	}
	if v.ExplorerURL != "" {
		tbl.AddRow("Explorer", v.ExplorerURL)
	}
	return tbl.Render(w)
}

// reviewView renders an on-chain review.
type reviewView struct {
	*contracts.Review
	Network string `json:"network"`
	Score   int64  `json:"score"`
}

func newReviewView(r *contracts.Review, networkID string) reviewView {
	return reviewView{Review: r, Network: networkID, Score: r.Score()}
}

func (v reviewView) RenderText(w io.Writer) error {
	return output.NewTable().
		AddRow("Review", strconv.FormatUint(v.ID, 10)).
		AddRow("Network", v.Network).
		AddRow("Company", v.CompanyName).
		AddRow("Category", v.Category).
		AddRow("Rating", fmt.Sprintf("%d/5", v.Rating)).
		AddRow("Votes", fmt.Sprintf("+%d / -%d (score %d)", v.Upvotes, v.Downvotes, v.Score)).
		AddRow("Verified", strconv.FormatBool(v.Verified)).
		AddRow("Reviewer", v.Reviewer.Hex()).
		AddRow("Submitted", v.Timestamp.UTC().Format(time.RFC3339)).
		AddRow("Evidence hash", v.EvidenceHash).
		AddRow("Proof hash", v.ProofHash).
		Render(w)
}

// reviewIDsView lists the reviews one address wrote.
type reviewIDsView struct {
	User    string   `json:"user"`
	Network string   `json:"network"`
	IDs     []uint64 `json:"review_ids"`
}

func (v reviewIDsView) RenderText(w io.Writer) error {
	if len(v.IDs) == 0 {
		_, err := fmt.Fprintf(w, "No reviews by %s on %s\n", v.User, v.Network)
		return err
	}
	tbl := output.NewTable("REVIEW ID").AlignRight(0)
	for _, id := range v.IDs {
		tbl.AddRow(strconv.FormatUint(id, 10))
	}
	return tbl.Render(w)
}

// recordsView lists locally stored submissions.
type recordsView []store.Record

func (v recordsView) RenderText(w io.Writer) error {
	if len(v) == 0 {
		_, err := fmt.Fprintln(w, "No local records")
		return err
	}
	tbl := output.NewTable("ID", "REVIEW", "COMPANY", "RATING", "NETWORK", "STATUS", "CREATED").AlignRight(3)
	for _, r := range v {
		tbl.AddRow(r.ID, valueOr(r.ReviewID, "-"), r.CompanyName, strconv.Itoa(r.Rating),
			r.NetworkID, string(r.Status), r.CreatedAt.UTC().Format(time.RFC3339))
	}
	return tbl.Render(w)
}

// transactionsView lists tracked transactions.
type transactionsView []store.Transaction

func (v transactionsView) RenderText(w io.Writer) error {
	if len(v) == 0 {
		_, err := fmt.Fprintln(w, "No pending transactions")
		return err
	}
	tbl := output.NewTable("HASH", "METHOD", "NETWORK", "NONCE", "STATUS", "SUBMITTED").AlignRight(3)
	for _, tx := range v {
		tbl.AddRow(tx.Hash, tx.Method, tx.NetworkID, strconv.FormatUint(tx.Nonce, 10),
			string(tx.Status), tx.SubmittedAt.UTC().Format(time.RFC3339))
	}
	return tbl.Render(w)
}

// transactionView shows one tracked transaction.
type transactionView struct {
	store.Transaction
	ExplorerURL string `json:"explorer_url,omitempty"`
}

func (v transactionView) RenderText(w io.Writer) error {
	tbl := output.NewTable().
		AddRow("Transaction", v.Hash).
		AddRow("Method", v.Method).
		AddRow("Network", fmt.Sprintf("%s (chain %d)", v.NetworkID, v.ChainID)).
		AddRow("From", v.From).
		AddRow("Nonce", strconv.FormatUint(v.Nonce, 10)).
		AddRow("Gas limit", strconv.FormatUint(v.GasLimit, 10)).
		AddRow("Status", string(v.Status))
	if v.Reason != "" {
		tbl.AddRow("Reason", v.Reason)
	}
	tbl.AddRow("Submitted", v.SubmittedAt.UTC().Format(time.RFC3339))
	tbl.AddRow("Updated", v.UpdatedAt.UTC().Format(time.RFC3339))
	if v.ExplorerURL != "" {
		tbl.AddRow("Explorer", v.ExplorerURL)
	}
	return tbl.Render(w)
}

// reconcileView reports a reconciliation pass.
type reconcileView []review.Reconciled

func (v reconcileView) RenderText(w io.Writer) error {
	if len(v) == 0 {
		_, err := fmt.Fprintln(w, "No pending transactions")
		return err
	}
	tbl := output.NewTable("HASH", "METHOD", "NETWORK", "STATUS", "REVIEW", "ERROR")
	for _, r := range v {
		review := "-"
		if r.Submission != "" {
			review = r.Submission + " " + string(r.RecordStatus)
		}
		tbl.AddRow(r.Transaction.Hash, r.Transaction.Method, r.Transaction.NetworkID, string(r.Status), review, r.Error)
	}
	return tbl.Render(w)
}

// networksView lists the configured networks.
type networksView struct {
	Default  string            `json:"default"`
	Networks []network.Profile `json:"networks"`
}

func (v networksView) RenderText(w io.Writer) error {
	tbl := output.NewTable("", "ID", "NAME", "CHAIN", "TESTNET", "CONTRACTS").AlignRight(3)
	for _, p := range v.Networks {
		marker := ""
		if p.ID == v.Default {
			marker = "*"
		}
		deployed := "not deployed"
		if p.IsContractsDeployed() {
			deployed = p.Contracts.ReviewRegistry.Hex()
		}
		tbl.AddRow(marker, p.ID, p.Name, strconv.FormatUint(p.ChainID, 10), strconv.FormatBool(p.Testnet), deployed)
	}
	return tbl.Render(w)
}

// profileView shows one network.
type profileView struct {
	network.Profile
	Deployed bool `json:"deployed"`
}

func (v profileView) RenderText(w io.Writer) error {
	registry := "not deployed"
	if v.Deployed {
		registry = v.Contracts.ReviewRegistry.Hex()
	}
	tbl := output.NewTable().
		AddRow("Network", v.ID).
		AddRow("Name", v.Name).
		AddRow("Chain ID", strconv.FormatUint(v.ChainID, 10)).
		AddRow("RPC", v.RPCURL).
		AddRow("Explorer", valueOr(v.ExplorerURL, "-")).
		AddRow("Currency", v.NativeSymbol).
		AddRow("Testnet", strconv.FormatBool(v.Testnet)).
		AddRow("Review registry", registry)
	if v.FaucetURL != "" {
		tbl.AddRow("Faucet", v.FaucetURL)
	}
	return tbl.Render(w)
}

// walletView shows the wallet connection.
type walletView struct {
	wallet.State
	ExplorerURL string `json:"explorer_url,omitempty"`
}

func (v walletView) RenderText(w io.Writer) error {
	tbl := output.NewTable().AddRow("Status", string(v.Status))
	if v.Status == wallet.StatusConnected {
		tbl.AddRow("Account", v.Account.Hex()).
			AddRow("Chain ID", strconv.FormatUint(v.ChainID, 10)).
			AddRow("Network", valueOr(v.NetworkID, "unsupported")).
			AddRow("Contracts", strconv.FormatBool(v.Deployed))
	}
	if v.ExplorerURL != "" {
		tbl.AddRow("Explorer", v.ExplorerURL)
	}
	return tbl.Render(w)
}

func valueOr(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
