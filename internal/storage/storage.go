// Package storage stores product and store images in an object backend and
// hands out their public URLs.
package storage

import (
	"context"
	"errors"
	"io"
)

// ErrObjectNotFound is returned by backends asked to delete a key they do not hold.
var ErrObjectNotFound = errors.New("object not found")

// Storage is an object backend addressed by key.
type Storage interface {
	// Upload stores the object and returns its key and public URL.
	Upload(ctx context.Context, input *UploadInput) (*UploadResult, error)

	// Delete removes the object stored under key.
	Delete(ctx context.Context, key string) error

	// KeyFromURL maps a public URL issued by this backend back to its key.
	// ok is false for URLs the backend did not issue.
	KeyFromURL(url string) (key string, ok bool)

	// Ping checks that the backend is reachable.
	Ping(ctx context.Context) error
}

// UploadInput holds the parameters for uploading an object.
type UploadInput struct {
	Key         string
	ContentType string
	Size        int64
	Data        io.Reader
}

// UploadResult holds the result of a successful upload.
type UploadResult struct {
	Key string
	URL string
}

// File is an uploaded image as received from a client.
type File struct {
	Name        string
	ContentType string
	Size        int64
	Data        io.Reader
}
