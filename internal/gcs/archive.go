// Package gcs archives uploaded receipt images to Cloud Storage so the
// original photo can be re-examined after the draft is saved.
package gcs

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/storage"
	"github.com/google/uuid"
)

// Archiver stores a receipt image and returns a stable URI for it.
type Archiver interface {
	ArchiveReceipt(ctx context.Context, image []byte, mimeType string) (string, error)
}

// BucketArchiver writes receipts to one GCS bucket under
// receipts/<yyyy>/<mm>/<dd>/<uuid>. It assumes Application Default
// Credentials are configured.
type BucketArchiver struct {
	client *storage.Client
	bucket string
	now    func() time.Time
}

// NewBucketArchiver creates an archiver for the given bucket.
func NewBucketArchiver(ctx context.Context, bucket string) (*BucketArchiver, error) {
	if bucket == "" {
		return nil, fmt.Errorf("NewBucketArchiver: bucket is required")
	}

	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("NewBucketArchiver: create storage client: %w", err)
	}

	return &BucketArchiver{client: client, bucket: bucket, now: time.Now}, nil
}

// Close releases the underlying client.
func (a *BucketArchiver) Close() error {
	return a.client.Close()
}

// ArchiveReceipt uploads the image and returns its gs:// URI.
func (a *BucketArchiver) ArchiveReceipt(ctx context.Context, image []byte, mimeType string) (string, error) {
	if len(image) == 0 {
		return "", fmt.Errorf("ArchiveReceipt: empty image")
	}

	object := objectName(a.now().UTC())

	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	w := a.client.Bucket(a.bucket).Object(object).NewWriter(ctx)
	w.ContentType = mimeType
	if _, err := w.Write(image); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("ArchiveReceipt: writing object %s: %w", object, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("ArchiveReceipt: finalize upload: %w", err)
	}

	return fmt.Sprintf("gs://%s/%s", a.bucket, object), nil
}

func objectName(t time.Time) string {
	return fmt.Sprintf("receipts/%04d/%02d/%02d/%s", t.Year(), int(t.Month()), t.Day(), uuid.NewString())
}
