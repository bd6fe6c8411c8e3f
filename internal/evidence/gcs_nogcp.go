//go:build !gcp

package evidence

import (
	"context"
	"errors"
)

// ErrGCSUnavailable is returned when the binary was built without the gcp tag.
var ErrGCSUnavailable = errors.New("gcs evidence store requires building with -tags gcp")

// NewGCSStore is unavailable in builds without the gcp tag.
func NewGCSStore(_ context.Context, _ GCSConfig) (Store, error) {
	return nil, ErrGCSUnavailable
}
