//go:build gcp

package evidence

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/storage"
)

// GCSStore keeps evidence in a Google Cloud Storage bucket.
type GCSStore struct {
	client *storage.Client
	bucket string
	prefix string
}

// NewGCSStore creates a GCS-backed store using application default credentials.
func NewGCSStore(ctx context.Context, cfg GCSConfig) (Store, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("gcs evidence store requires a bucket")
	}

	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("creating GCS client: %w", err)
	}

	return &GCSStore{client: client, bucket: cfg.Bucket, prefix: cfg.Prefix}, nil
}

// Backend implements Store.
func (s *GCSStore) Backend() string { return "gcs" }

// Upload implements Store.
func (s *GCSStore) Upload(ctx context.Context, key string, content []byte, mimeType string) (Ref, error) {
	objectPath := s.prefix + key
	w := s.client.Bucket(s.bucket).Object(objectPath).NewWriter(ctx)
	w.ContentType = mimeType
	w.Metadata = map[string]string{"digest": Digest(content)}

	if _, err := w.Write(content); err != nil {
		_ = w.Close()
		return Ref{}, fmt.Errorf("gcs write %s: %w", objectPath, err)
	}
	if err := w.Close(); err != nil {
		return Ref{}, fmt.Errorf("gcs close %s: %w", objectPath, err)
	}

	return newRef(key, fmt.Sprintf("gs://%s/%s", s.bucket, objectPath), content, mimeType), nil
}

// Remove implements Store.
func (s *GCSStore) Remove(ctx context.Context, keys []string) error {
	var errs []error
	for _, key := range keys {
		objectPath := s.prefix + key
		err := s.client.Bucket(s.bucket).Object(objectPath).Delete(ctx)
		if err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
			errs = append(errs, fmt.Errorf("gcs delete %s: %w", objectPath, err))
		}
	}
	return errors.Join(errs...)
}

// Close releases the GCS client.
func (s *GCSStore) Close() error {
	return s.client.Close()
}
