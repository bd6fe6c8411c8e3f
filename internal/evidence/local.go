package evidence

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/reviewchain/reviewchain/internal/fileutil"
)

// ErrInvalidKey is returned for keys that would escape the store root.
var ErrInvalidKey = errors.New("invalid evidence key")

// LocalStore keeps evidence on the local filesystem.
type LocalStore struct {
	root string
}

// NewLocalStore creates a filesystem store rooted at dir.
func NewLocalStore(dir string) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("creating evidence directory: %w", err)
	}
	return &LocalStore{root: dir}, nil
}

// Backend implements Store.
func (s *LocalStore) Backend() string { return "local" }

// Upload implements Store.
func (s *LocalStore) Upload(ctx context.Context, key string, content []byte, mimeType string) (Ref, error) {
	if err := ctx.Err(); err != nil {
		return Ref{}, err
	}

	path, err := s.path(key)
	if err != nil {
		return Ref{}, err
	}

	if err := fileutil.WriteAtomic(path, content, 0o600); err != nil {
		return Ref{}, fmt.Errorf("writing evidence %s: %w", key, err)
	}

	return newRef(key, "file://"+filepath.ToSlash(path), content, mimeType), nil
}

// Remove implements Store.
func (s *LocalStore) Remove(_ context.Context, keys []string) error {
	var errs []error
	for _, key := range keys {
		path, err := s.path(key)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if err := fileutil.RemoveIfExists(path); err != nil {
			errs = append(errs, fmt.Errorf("removing evidence %s: %w", key, err))
		}
	}
	return errors.Join(errs...)
}

func (s *LocalStore) path(key string) (string, error) {
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, "..") || strings.Contains(key, "\\") {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return filepath.Join(s.root, filepath.FromSlash(key)), nil
}
