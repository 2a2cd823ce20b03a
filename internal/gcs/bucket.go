// Package gcs keeps attachments in a Google Cloud Storage bucket.
package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
)

// googleChunkSize mirrors storage.Writer's default chunk size.
const googleChunkSize = 16 * 1024 * 1024

type Bucket struct {
	gcs    *storage.Client
	bucket string
}

func NewBucket(gcs *storage.Client, bucket string) *Bucket {
	return &Bucket{gcs: gcs, bucket: bucket}
}

// Put streams body into the bucket. Objects are expected to be publicly
// readable through a bucket-level IAM binding.
func (b *Bucket) Put(ctx context.Context, key, contentType string, body io.Reader, size int64) (string, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	w := b.gcs.Bucket(b.bucket).Object(key).NewWriter(ctx)
	w.ContentType = contentType
	// Small files go up in a single request.
	if size > 0 && size < googleChunkSize {
		w.ChunkSize = 0
	}

	if _, err := io.Copy(w, body); err != nil {
		// Cancelling the writer's context abandons the partial upload.
		cancel()
		w.Close()
		return "", fmt.Errorf("while writing object %s: %w", key, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("while closing object writer for %s: %w", key, err)
	}
	return PublicURL(b.bucket, key), nil
}

func (b *Bucket) Delete(ctx context.Context, key string) error {
	err := b.gcs.Bucket(b.bucket).Object(key).Delete(ctx)
	if err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		return fmt.Errorf("while deleting object %s: %w", key, err)
	}
	return nil
}

func (b *Bucket) DeletePrefix(ctx context.Context, prefix string) error {
	it := b.gcs.Bucket(b.bucket).Objects(ctx, &storage.Query{Prefix: prefix})
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("while listing objects under %s: %w", prefix, err)
		}
		if err := b.Delete(ctx, attrs.Name); err != nil {
			return err
		}
	}
}

func PublicURL(bucket, key string) string {
	segments := strings.Split(key, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return "https://storage.googleapis.com/" + bucket + "/" + strings.Join(segments, "/")
}
