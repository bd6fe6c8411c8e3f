package submission

import (
	"github.com/reviewchain/reviewchain/internal/chain/eth"
	"github.com/reviewchain/reviewchain/internal/evidence"
	"github.com/reviewchain/reviewchain/internal/store"
)

// Draft is the form state of a review being written. It is consumed by
// Submit, cleared on success and kept intact on failure so the reviewer
// can fix the reported problem and retry.
type Draft struct {
	CompanyName string
	Category    string
	Title       string
	Body        string
	// Rating is the raw entered rating. It is floored and clamped to 1..5.
	Rating float64
	Files  []evidence.Upload
}

// AddFiles attaches evidence after checking it against the files already
// attached. Nothing is attached when any file is rejected.
func (d *Draft) AddFiles(uploads ...evidence.Upload) error {
	if err := evidence.ValidateNewFiles(evidence.Files(uploads), evidence.Files(d.Files)); err != nil {
		return err
	}
	d.Files = append(d.Files, uploads...)
	return nil
}

// Reset clears the draft.
func (d *Draft) Reset() {
	*d = Draft{}
}

// Result is a submitted review.
type Result struct {
	SubmissionID string         `json:"submission_id"`
	Record       store.Record   `json:"record"`
	Receipt      *eth.Receipt   `json:"receipt"`
	Evidence     []evidence.Ref `json:"evidence"`
}

// fields are the sanitized text fields of a draft.
type fields struct {
	companyName string
	category    string
	title       string
	body        string
	rating      int
}
