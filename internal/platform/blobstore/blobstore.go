// Package blobstore stores lab report files. It defines the Store contract,
// upload validation, an in-memory store for development and tests, and a
// MinIO/S3 store for deployments.
package blobstore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"hash"
	"io"
	"time"
)

var (
	ErrBlobNotFound       = errors.New("blob not found")
	ErrFileTooLarge       = errors.New("file exceeds maximum allowed size")
	ErrInvalidContentType = errors.New("content type is not allowed")
	ErrMissingFileName    = errors.New("file name is required")
	ErrEmptyFile          = errors.New("file is empty")
)

// Object describes a stored blob.
type Object struct {
	Key         string    `json:"key"`
	ContentType string    `json:"content_type"`
	Size        int64     `json:"size"`
	Checksum    string    `json:"checksum"`
	CreatedAt   time.Time `json:"created_at"`
}

// Store is a flat key/value blob store.
type Store interface {
	// Upload writes size bytes from r under key and returns the stored
	// object with its sha256 checksum.
	Upload(ctx context.Context, key, contentType string, r io.Reader, size int64) (*Object, error)
	Download(ctx context.Context, key string) (io.ReadCloser, *Object, error)
	Stat(ctx context.Context, key string) (*Object, error)
	Delete(ctx context.Context, key string) error
	Ping(ctx context.Context) error
}

// checksumReader hashes everything read through it.
type checksumReader struct {
	r io.Reader
	h hash.Hash
	n int64
}

func newChecksumReader(r io.Reader) *checksumReader {
	return &checksumReader{r: r, h: sha256.New()}
}

func (c *checksumReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	if n > 0 {
		c.h.Write(p[:n])
		c.n += int64(n)
	}
	return n, err
}

func (c *checksumReader) Sum() string {
	return hex.EncodeToString(c.h.Sum(nil))
}
