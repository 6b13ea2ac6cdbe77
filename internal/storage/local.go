package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// LocalStore keeps uploads on disk. The "signed" URLs it returns are
// plain static file URLs with an advisory expiry parameter; it exists
// so the server runs without S3 credentials.
type LocalStore struct {
	dir     string
	baseURL string
}

// NewLocalStore creates the upload directory if needed. baseURL is the
// public prefix the files are served under, e.g.
// "http://localhost:8000/uploads".
func NewLocalStore(dir, baseURL string) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &LocalStore{dir: dir, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

// Dir returns the directory files are stored in, for static serving.
func (s *LocalStore) Dir() string {
	return s.dir
}

// Put writes the object to disk.
func (s *LocalStore) Put(ctx context.Context, key, filename, contentType string, size int64, r io.Reader) error {
	path := filepath.Join(s.dir, filepath.Base(key))
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	if _, err := io.Copy(f, r); err != nil {
		os.Remove(path)
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// SignedGetURL returns the static URL for the object.
func (s *LocalStore) SignedGetURL(ctx context.Context, key string, expiry time.Duration) (string, error) {
	path := filepath.Join(s.dir, filepath.Base(key))
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("object %s: %w", key, err)
	}
	expires := time.Now().Add(expiry).Unix()
	return s.baseURL + "/" + filepath.Base(key) + "?expires=" + strconv.FormatInt(expires, 10), nil
}

// Delete removes the object; a missing file is not an error.
func (s *LocalStore) Delete(ctx context.Context, key string) error {
	err := os.Remove(filepath.Join(s.dir, filepath.Base(key)))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
