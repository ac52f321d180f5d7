// Package imagestore persists receipt images as write-once blobs in Google
// Cloud Storage. A stored image is addressed by its gs:// URI, which becomes
// the record's immutable receipt reference.
package imagestore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"github.com/google/uuid"
)

// GCSStore writes and reads receipt images in a single bucket. It assumes
// Application Default Credentials are configured.
type GCSStore struct {
	bucket string
}

// NewGCS creates a store over the given bucket.
func NewGCS(bucket string) *GCSStore {
	return &GCSStore{bucket: bucket}
}

// Store uploads the image under a generated, date-partitioned object name and
// returns its gs:// URI. Objects are never overwritten or rewritten.
func (s *GCSStore) Store(ctx context.Context, data []byte, filename string) (string, error) {
	objectName := fmt.Sprintf("receipts/%s/%s",
		time.Now().UTC().Format("2006/01/02"),
		uuid.NewString()+"-"+path.Base(filename))

	client, err := storage.NewClient(ctx)
	if err != nil {
		return "", fmt.Errorf("create storage client: %w", err)
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	w := client.Bucket(s.bucket).Object(objectName).NewWriter(ctx)
	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("copy image to GCS writer: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("finalize upload: %w", err)
	}

	return fmt.Sprintf("gs://%s/%s", s.bucket, objectName), nil
}

// Fetch downloads the image bytes for a previously returned reference.
func (s *GCSStore) Fetch(ctx context.Context, ref string) ([]byte, error) {
	bucketName, objectPath, err := splitURI(ref)
	if err != nil {
		return nil, err
	}

	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}
	defer client.Close()

	rc, err := client.Bucket(bucketName).Object(objectPath).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("read object %s/%s: %w", bucketName, objectPath, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read image bytes: %w", err)
	}
	return data, nil
}

// splitURI splits "gs://bucket/path/to/object" into bucket and object path.
func splitURI(uri string) (string, string, error) {
	if !strings.HasPrefix(uri, "gs://") {
		return "", "", fmt.Errorf("invalid image reference: %s", uri)
	}
	trimmed := strings.TrimPrefix(uri, "gs://")
	parts := strings.SplitN(trimmed, "/", 2)
	if len(parts) != 2 || parts[1] == "" {
		return "", "", fmt.Errorf("invalid image reference (no object path): %s", uri)
	}
	return parts[0], parts[1], nil
}
