package storage

import (
	"context"
	"errors"
	"io"
	"time"
)

// Package storage contains the file storage abstraction used for uploads.
// Keys are slash separated paths relative to the storage root, e.g. "images/1700000000000.jpg".

var (
	// ErrObjectExists is returned by Put when the key is already taken. No bytes are consumed.
	ErrObjectExists = errors.New("object already exists")
	// ErrObjectNotFound is returned when the key does not exist.
	ErrObjectNotFound = errors.New("object not found")
	// ErrTooLarge is returned by Put when the reader yields more than MaxSize bytes.
	ErrTooLarge = errors.New("object exceeds size limit")
	// ErrInvalidKey is returned for keys that are empty or escape the storage root.
	ErrInvalidKey = errors.New("invalid object key")
)

// PutObjectOptions define optional parameters for storing objects.
// MaxSize caps the number of bytes accepted from the reader; zero or negative means unlimited.
type PutObjectOptions struct {
	MaxSize     int64
	ContentType string
}

// ObjectInfo contains basic information about a stored object.
type ObjectInfo struct {
	Key          string
	Name         string
	Size         int64
	ContentType  string
	LastModified time.Time
}

// Storage is the file store used by the upload pipeline.
type Storage interface {
	// Put creates a new object under key with create-exclusive semantics.
	// Partially written objects are removed when the write fails.
	Put(ctx context.Context, key string, r io.Reader, opt PutObjectOptions) (ObjectInfo, error)
	// Open retrieves an object's content as a streaming reader alongside its info.
	Open(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error)
	// Delete removes an object by key.
	Delete(ctx context.Context, key string) error
	// List returns the objects directly under dir in filesystem order.
	List(ctx context.Context, dir string) ([]ObjectInfo, error)
	// Ping reports whether every managed directory is usable.
	Ping(ctx context.Context) error
}
