package gateway

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"sync"

	"github.com/beesaferoot/tenantly/internal/apperr"
)

var ErrObjectExists = errors.New("object already exists")

type UploadOptions struct {
	// Upsert replaces an existing object at the same path.
	Upsert      bool
	ContentType string
}

// ObjectStore holds uploaded files in named buckets.
type ObjectStore interface {
	Upload(ctx context.Context, bucket, path string, r io.Reader, opts UploadOptions) error
	Download(ctx context.Context, bucket, path string, w io.Writer) error
	PublicURL(bucket, path string) string
	Close(ctx context.Context) error
}

// publicURL joins base, bucket and an escaped object path.
func publicURL(base, bucket, path string) string {
	segments := strings.Split(path, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return strings.TrimRight(base, "/") + "/" + url.PathEscape(bucket) + "/" + strings.Join(segments, "/")
}

func objectNotFound(bucket, path string) error {
	return fmt.Errorf("object %s/%s: %w", bucket, path, apperr.ErrNotFound)
}

// MemoryStore keeps objects in process memory.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string]memoryObject
	baseURL string
}

type memoryObject struct {
	data        []byte
	contentType string
}

func NewMemoryStore(baseURL string) *MemoryStore {
	return &MemoryStore{
		objects: make(map[string]memoryObject),
		baseURL: baseURL,
	}
}

func (s *MemoryStore) key(bucket, path string) string {
	return bucket + "/" + path
}

func (s *MemoryStore) Upload(ctx context.Context, bucket, path string, r io.Reader, opts UploadOptions) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("failed to read upload: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	k := s.key(bucket, path)
	if _, ok := s.objects[k]; ok && !opts.Upsert {
		return fmt.Errorf("object %s: %w", k, ErrObjectExists)
	}
	s.objects[k] = memoryObject{data: data, contentType: opts.ContentType}
	return nil
}

func (s *MemoryStore) Download(_ context.Context, bucket, path string, w io.Writer) error {
	s.mu.RLock()
	obj, ok := s.objects[s.key(bucket, path)]
	s.mu.RUnlock()
	if !ok {
		return objectNotFound(bucket, path)
	}
	_, err := io.Copy(w, bytes.NewReader(obj.data))
	return err
}

func (s *MemoryStore) PublicURL(bucket, path string) string {
	return publicURL(s.baseURL, bucket, path)
}

func (s *MemoryStore) Close(context.Context) error {
	return nil
}
