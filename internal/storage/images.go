package storage

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	apperrors "github.com/utafrali/marketplace/pkg/errors"
)

// MaxImageSize is the largest accepted image in bytes (10 MiB).
const MaxImageSize int64 = 10 << 20

var allowedImageTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
	"image/gif":  ".gif",
}

// IsAllowedImageType reports whether contentType is an accepted image type.
func IsAllowedImageType(contentType string) bool {
	_, ok := allowedImageTypes[contentType]
	return ok
}

// UploadOptions places an image under Folder with a Prefix on its object name.
type UploadOptions struct {
	Folder string
	Prefix string
}

// DeleteResult reports the outcome of a batch delete. Success is true only
// when every URL was removed.
type DeleteResult struct {
	Success      bool     `json:"success"`
	Failed       []string `json:"failed"`
	DeletedPaths []string `json:"deleted_paths"`
}

// ImageStore uploads and removes images on a Storage backend.
type ImageStore struct {
	backend Storage
	logger  *slog.Logger
}

// NewImageStore creates an image store on top of backend.
func NewImageStore(backend Storage, logger *slog.Logger) *ImageStore {
	return &ImageStore{backend: backend, logger: logger}
}

// Upload validates and stores a single image, returning its public URL.
func (s *ImageStore) Upload(ctx context.Context, f *File, opts UploadOptions) (string, error) {
	if err := validateImage(f); err != nil {
		return "", err
	}

	key := objectKey(f, opts)
	result, err := s.backend.Upload(ctx, &UploadInput{
		Key:         key,
		ContentType: f.ContentType,
		Size:        f.Size,
		Data:        f.Data,
	})
	if err != nil {
		return "", fmt.Errorf("upload image %s: %w", key, err)
	}

	s.logger.DebugContext(ctx, "image uploaded",
		slog.String("key", result.Key),
		slog.Int64("size", f.Size),
	)
	return result.URL, nil
}

// UploadMany uploads files in parallel and returns their URLs in input order.
// If any upload fails the images already stored are removed and the first
// error is returned.
func (s *ImageStore) UploadMany(ctx context.Context, files []*File, opts UploadOptions) ([]string, error) {
	urls := make([]string, len(files))
	if len(files) == 0 {
		return urls, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	for i, f := range files {
		g.Go(func() error {
			url, err := s.Upload(gctx, f, opts)
			if err != nil {
				return err
			}
			urls[i] = url
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		uploaded := make([]string, 0, len(urls))
		for _, u := range urls {
			if u != "" {
				uploaded = append(uploaded, u)
			}
		}
		if len(uploaded) > 0 {
			// The request context may already be cancelled by the failure.
			s.DeleteMany(context.WithoutCancel(ctx), uploaded)
		}
		return nil, err
	}
	return urls, nil
}

// Delete removes the image behind url.
func (s *ImageStore) Delete(ctx context.Context, url string) error {
	key, ok := s.backend.KeyFromURL(url)
	if !ok {
		return apperrors.InvalidInput(fmt.Sprintf("image url %q is not managed by this store", url))
	}
	if err := s.backend.Delete(ctx, key); err != nil {
		return fmt.Errorf("delete image %s: %w", key, err)
	}
	return nil
}

// DeleteMany removes every URL, continuing past failures. Failures are
// logged at warn and reported in the result, never returned.
func (s *ImageStore) DeleteMany(ctx context.Context, urls []string) DeleteResult {
	errs := make([]error, len(urls))

	var wg sync.WaitGroup
	for i, u := range urls {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = s.Delete(ctx, u)
		}()
	}
	wg.Wait()

	result := DeleteResult{Failed: []string{}, DeletedPaths: []string{}}
	for i, err := range errs {
		if err != nil {
			s.logger.WarnContext(ctx, "failed to delete image",
				slog.String("url", urls[i]),
				slog.String("error", err.Error()),
			)
			result.Failed = append(result.Failed, urls[i])
			continue
		}
		result.DeletedPaths = append(result.DeletedPaths, urls[i])
	}
	result.Success = len(result.Failed) == 0
	return result
}

// Ping checks the backend.
func (s *ImageStore) Ping(ctx context.Context) error {
	return s.backend.Ping(ctx)
}

func validateImage(f *File) error {
	switch {
	case f == nil || f.Data == nil:
		return apperrors.InvalidInput("image file is required")
	case !IsAllowedImageType(f.ContentType):
		return apperrors.InvalidInput(fmt.Sprintf("content type %q is not allowed", f.ContentType))
	case f.Size <= 0:
		return apperrors.InvalidInput("image size must be greater than zero")
	case f.Size > MaxImageSize:
		return apperrors.InvalidInput(fmt.Sprintf("image size %d exceeds maximum allowed size of %d bytes", f.Size, MaxImageSize))
	}
	return nil
}

// objectKey builds "<folder>/<prefix>-<uuid><ext>". The extension follows
// the content type so client file names never reach the key.
func objectKey(f *File, opts UploadOptions) string {
	name := uuid.NewString() + allowedImageTypes[f.ContentType]
	if opts.Prefix != "" {
		name = opts.Prefix + "-" + name
	}
	folder := strings.Trim(opts.Folder, "/")
	if folder == "" {
		return name
	}
	return path.Join(folder, name)
}
