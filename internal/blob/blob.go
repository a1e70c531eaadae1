// Package blob stores binary objects (uploaded images, company
// documents) in named buckets on top of the kv store, so the same
// code runs against memory in dev and Redis in prod.
package blob

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/contentgen/contentgen-backend/pkg/kv"
)

// ErrNotFound is returned when an object does not exist.
var ErrNotFound = errors.New("object not found")

// Object describes a stored blob.
type Object struct {
	Path        string
	ContentType string
	Size        int64
	UploadedAt  time.Time
}

// Store is a bucket-scoped object store.
type Store struct {
	kv     kv.Store
	bucket string
}

func NewStore(store kv.Store, bucket string) *Store {
	return &Store{kv: store, bucket: bucket}
}

func (s *Store) dataKey(path string) string {
	return "blob:" + s.bucket + ":data:" + path
}

func (s *Store) metaKey(path string) string {
	return "blob:" + s.bucket + ":meta:" + path
}

// Put stores data under path, replacing any previous object.
func (s *Store) Put(ctx context.Context, path, contentType string, data []byte) (*Object, error) {
	obj := &Object{
		Path:        path,
		ContentType: contentType,
		Size:        int64(len(data)),
		UploadedAt:  time.Now().UTC(),
	}

	if err := s.kv.Set(ctx, s.dataKey(path), data); err != nil {
		return nil, err
	}
	meta := s.metaKey(path)
	if err := s.kv.HSet(ctx, meta, "content_type", []byte(contentType)); err != nil {
		return nil, err
	}
	if err := s.kv.HSet(ctx, meta, "size", []byte(formatSize(obj.Size))); err != nil {
		return nil, err
	}
	if err := s.kv.HSet(ctx, meta, "uploaded_at", []byte(obj.UploadedAt.Format(time.RFC3339Nano))); err != nil {
		return nil, err
	}
	return obj, nil
}

// Get returns the object's data and metadata.
func (s *Store) Get(ctx context.Context, path string) ([]byte, *Object, error) {
	data, err := s.kv.Get(ctx, s.dataKey(path))
	if errors.Is(err, kv.ErrNotFound) {
		return nil, nil, ErrNotFound
	}
	if err != nil {
		return nil, nil, err
	}

	obj := &Object{Path: path, Size: int64(len(data))}
	meta, err := s.kv.HGetAll(ctx, s.metaKey(path))
	if err == nil {
		if ct, ok := meta["content_type"]; ok {
			obj.ContentType = string(ct)
		}
		if ts, ok := meta["uploaded_at"]; ok {
			if t, perr := time.Parse(time.RFC3339Nano, string(ts)); perr == nil {
				obj.UploadedAt = t
			}
		}
	}
	return data, obj, nil
}

// Stat returns metadata without reading the payload.
func (s *Store) Stat(ctx context.Context, path string) (*Object, error) {
	n, err := s.kv.Exists(ctx, s.dataKey(path))
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, ErrNotFound
	}

	obj := &Object{Path: path}
	meta, err := s.kv.HGetAll(ctx, s.metaKey(path))
	if err != nil {
		return nil, err
	}
	if ct, ok := meta["content_type"]; ok {
		obj.ContentType = string(ct)
	}
	if sz, ok := meta["size"]; ok {
		obj.Size = parseSize(sz)
	}
	if ts, ok := meta["uploaded_at"]; ok {
		if t, perr := time.Parse(time.RFC3339Nano, string(ts)); perr == nil {
			obj.UploadedAt = t
		}
	}
	return obj, nil
}

// Delete removes the object. Deleting a missing object is not an error.
func (s *Store) Delete(ctx context.Context, path string) error {
	_, err := s.kv.Del(ctx, s.dataKey(path), s.metaKey(path))
	return err
}

// List returns metadata for every object whose path starts with prefix,
// sorted by path.
func (s *Store) List(ctx context.Context, prefix string) ([]*Object, error) {
	keyPrefix := "blob:" + s.bucket + ":data:"
	keys, err := s.kv.Scan(ctx, keyPrefix+prefix)
	if err != nil {
		return nil, err
	}
	sort.Strings(keys)

	out := make([]*Object, 0, len(keys))
	for _, key := range keys {
		path := strings.TrimPrefix(key, keyPrefix)
		obj, err := s.Stat(ctx, path)
		if errors.Is(err, ErrNotFound) {
			continue // deleted between scan and stat
		}
		if err != nil {
			return nil, err
		}
		out = append(out, obj)
	}
	return out, nil
}

func formatSize(n int64) string {
	return strconv.FormatInt(n, 10)
}

func parseSize(b []byte) int64 {
	n, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil {
		return 0
	}
	return n
}
