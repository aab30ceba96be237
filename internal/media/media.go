// Package media stores uploaded question images and returns their public URLs.
package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strings"

	"quizbank/internal/apperr"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	storage "github.com/supabase-community/storage-go"
)

var ErrNotConfigured = errors.New("media store is not configured")

// Object is one uploaded file.
type Object struct {
	Data        []byte
	Folder      string
	Filename    string
	ContentType string
}

type SupabaseConfig struct {
	URL    string
	Key    string
	Bucket string
}

// bucketClient is the part of the storage-go client the store calls.
type bucketClient interface {
	UploadFile(bucketID, relativePath string, data io.Reader, fileOptions ...storage.FileOptions) (storage.FileUploadResponse, error)
}

// SupabaseStore uploads objects to a public Supabase Storage bucket.
type SupabaseStore struct {
	client  bucketClient
	baseURL string
	bucket  string
	newID   func() string
}

func NewSupabaseStore(cfg SupabaseConfig) *SupabaseStore {
	base := strings.TrimRight(cfg.URL, "/")
	bucket := cfg.Bucket
	if bucket == "" {
		bucket = "uploads"
	}
	return &SupabaseStore{
		client:  storage.NewClient(base+"/storage/v1", cfg.Key, nil),
		baseURL: base,
		bucket:  bucket,
		newID:   func() string { return uuid.NewString() },
	}
}

func (s *SupabaseStore) Upload(ctx context.Context, obj Object) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if len(obj.Data) == 0 {
		return "", apperr.Validation("uploaded file is empty")
	}

	objectPath := ObjectPath(obj.Folder, obj.Filename, s.newID())
	contentType := obj.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	upsert := false
	if _, err := s.client.UploadFile(s.bucket, objectPath, bytes.NewReader(obj.Data), storage.FileOptions{
		ContentType: &contentType,
		Upsert:      &upsert,
	}); err != nil {
		return "", apperr.Upstream("upload "+objectPath, err)
	}

	return fmt.Sprintf("%s/storage/v1/object/public/%s/%s", s.baseURL, s.bucket, objectPath), nil
}

// ObjectPath builds "<folder>/<id>-<slug>.<ext>" so names stay URL safe and unique.
func ObjectPath(folder, filename, id string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	name := slug.Make(strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename)))
	base := id
	if name != "" {
		base = id + "-" + name
	}
	folder = strings.Trim(folder, "/")
	if folder == "" {
		return base + ext
	}
	return path.Join(folder, base+ext)
}

// Disabled rejects every upload. It is used when no storage credentials are set.
type Disabled struct{}

func (Disabled) Upload(ctx context.Context, obj Object) (string, error) {
	return "", apperr.Upstream("upload "+obj.Folder, ErrNotConfigured)
}
