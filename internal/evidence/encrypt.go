package evidence

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"filippo.io/age"
)

// EncryptedMIMEType is the content type of age-encrypted objects.
const EncryptedMIMEType = "application/age-encrypted"

// EncryptingStore encrypts evidence to a set of age recipients before
// handing it to the wrapped store. Refs keep the plaintext digest and
// MIME type so on-chain proofs commit to the original document.
type EncryptingStore struct {
	inner      Store
	recipients []age.Recipient
}

// NewEncryptingStore wraps inner. recipients are age X25519 public keys
// ("age1...").
func NewEncryptingStore(inner Store, recipients []string) (*EncryptingStore, error) {
	if len(recipients) == 0 {
		return nil, errors.New("encrypting store needs at least one recipient")
	}

	parsed := make([]age.Recipient, 0, len(recipients))
	for _, r := range recipients {
		rec, err := age.ParseX25519Recipient(r)
		if err != nil {
			return nil, fmt.Errorf("parsing age recipient %q: %w", r, err)
		}
		parsed = append(parsed, rec)
	}

	return &EncryptingStore{inner: inner, recipients: parsed}, nil
}

// Backend implements Store.
func (s *EncryptingStore) Backend() string { return s.inner.Backend() + "+age" }

// Upload implements Store.
func (s *EncryptingStore) Upload(ctx context.Context, key string, content []byte, mimeType string) (Ref, error) {
	var buf bytes.Buffer
	w, err := age.Encrypt(&buf, s.recipients...)
	if err != nil {
		return Ref{}, fmt.Errorf("initialising encryption: %w", err)
	}
	if _, err := w.Write(content); err != nil {
		return Ref{}, fmt.Errorf("encrypting evidence: %w", err)
	}
	if err := w.Close(); err != nil {
		return Ref{}, fmt.Errorf("finalising encryption: %w", err)
	}

	ref, err := s.inner.Upload(ctx, key+".age", buf.Bytes(), EncryptedMIMEType)
	if err != nil {
		return Ref{}, err
	}

	ref.Size = int64(len(content))
	ref.Digest = Digest(content)
	ref.MIMEType = mimeType
	return ref, nil
}

// Remove implements Store. Keys are those returned in Ref.Key.
func (s *EncryptingStore) Remove(ctx context.Context, keys []string) error {
	return s.inner.Remove(ctx, keys)
}

// Decrypt reverses the encryption applied by EncryptingStore.
func Decrypt(ciphertext []byte, identity string) ([]byte, error) {
	id, err := age.ParseX25519Identity(identity)
	if err != nil {
		return nil, fmt.Errorf("parsing age identity: %w", err)
	}
	r, err := age.Decrypt(bytes.NewReader(ciphertext), id)
	if err != nil {
		return nil, fmt.Errorf("decrypting evidence: %w", err)
	}
	return io.ReadAll(r)
}
