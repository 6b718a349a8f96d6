package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
)

// CaptionStore backs up caption sidecars into a bucket folder so generated
// captions survive local cleanup.
type CaptionStore struct {
	client *storage.Client
	bucket string
	folder string
}

func NewCaptionStore(ctx context.Context, bucket, folder string) (*CaptionStore, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS client: %w", err)
	}

	return &CaptionStore{
		client: client,
		bucket: bucket,
		folder: folder,
	}, nil
}

func (s *CaptionStore) Close() error {
	return s.client.Close()
}

// Upload copies a local caption file into the store and returns the object
// name it was written under.
func (s *CaptionStore) Upload(ctx context.Context, localPath string) (string, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("failed to open caption file: %w", err)
	}
	defer func() { _ = f.Close() }()

	object := path.Join(s.folder, filepath.Base(localPath))
	w := s.client.Bucket(s.bucket).Object(object).NewWriter(ctx)
	w.ContentType = "text/plain; charset=utf-8"

	if _, err := io.Copy(w, f); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("failed to upload caption: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("failed to finalize caption upload: %w", err)
	}

	return object, nil
}

// List returns the object names of every backed-up caption.
func (s *CaptionStore) List(ctx context.Context) ([]string, error) {
	query := &storage.Query{Prefix: s.folder + "/"}

	var objects []string
	it := s.client.Bucket(s.bucket).Objects(ctx, query)
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to list captions: %w", err)
		}
		objects = append(objects, attrs.Name)
	}

	return objects, nil
}
