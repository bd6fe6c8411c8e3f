package evidence

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"golang.org/x/crypto/sha3"

	"github.com/reviewchain/reviewchain/internal/sanitize"
)

// Store persists evidence objects under caller-chosen keys.
type Store interface {
	// Upload stores content under key and returns a reference to it.
	Upload(ctx context.Context, key string, content []byte, mimeType string) (Ref, error)
	// Remove deletes the given keys. Missing keys are not an error.
	Remove(ctx context.Context, keys []string) error
	// Backend names the storage backend, e.g. "local" or "s3".
	Backend() string
}

// Ref identifies a stored evidence object.
type Ref struct {
	Key      string `json:"key"`
	URI      string `json:"uri"`
	Size     int64  `json:"size"`
	Digest   string `json:"digest"`
	MIMEType string `json:"mime_type"`
}

// Key builds the storage key for the index-th file of a submission:
// reviews/{reviewer}/{submission}/{index}-{file}.
func Key(reviewer, submissionID string, index int, filename string) string {
	return fmt.Sprintf("reviews/%s/%s/%02d-%s", reviewer, submissionID, index, sanitize.Filename(filename))
}

// Digest returns the 0x-prefixed keccak-256 of content.
func Digest(content []byte) string {
	h := sha3.NewLegacyKeccak256()
	_, _ = h.Write(content)
	return hexutil.Encode(h.Sum(nil))
}

// ManifestHash commits to a set of stored references. The result does
// not depend on the order of refs.
func ManifestHash(refs []Ref) string {
	lines := make([]string, len(refs))
	for i, r := range refs {
		lines[i] = r.Key + ":" + r.Digest
	}
	sort.Strings(lines)
	return Digest([]byte(strings.Join(lines, "\n")))
}

// ProofHash commits to the content digests of refs in upload order.
func ProofHash(refs []Ref) string {
	h := sha3.NewLegacyKeccak256()
	for _, r := range refs {
		b, err := hexutil.Decode(r.Digest)
		if err != nil {
			b = []byte(r.Digest)
		}
		_, _ = h.Write(b)
	}
	return hexutil.Encode(h.Sum(nil))
}

// Keys returns the storage keys of refs.
func Keys(refs []Ref) []string {
	out := make([]string, len(refs))
	for i, r := range refs {
		out[i] = r.Key
	}
	return out
}

func newRef(key, uri string, content []byte, mimeType string) Ref {
	return Ref{
		Key:      key,
		URI:      uri,
		Size:     int64(len(content)),
		Digest:   Digest(content),
		MIMEType: mimeType,
	}
}
