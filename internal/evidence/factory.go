package evidence

import (
	"context"
	"fmt"
)

// Backend names.
const (
	BackendLocal = "local"
	BackendS3    = "s3"
	BackendGCS   = "gcs"
)

// GCSConfig holds configuration for GCSStore.
type GCSConfig struct {
	Bucket string
	Prefix string
}

// Config selects and configures an evidence backend.
type Config struct {
	Backend    string
	Dir        string // local backend root
	S3         S3Config
	GCS        GCSConfig
	Recipients []string // optional age recipients; enables encryption at rest
}

// Open builds the Store described by cfg.
func Open(ctx context.Context, cfg Config) (Store, error) {
	var (
		store Store
		err   error
	)

	switch cfg.Backend {
	case "", BackendLocal:
		store, err = NewLocalStore(cfg.Dir)
	case BackendS3:
		store, err = NewS3Store(ctx, cfg.S3)
	case BackendGCS:
		store, err = NewGCSStore(ctx, cfg.GCS)
	default:
		return nil, fmt.Errorf("unsupported evidence backend: %s", cfg.Backend)
	}
	if err != nil {
		return nil, err
	}

	if len(cfg.Recipients) > 0 {
		return NewEncryptingStore(store, cfg.Recipients)
	}
	return store, nil
}
