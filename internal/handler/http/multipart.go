package http

import (
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/utafrali/marketplace/internal/storage"
)

// Bytes of a multipart form kept in memory; the rest spills to temp files.
const multipartMemory = 8 << 20

// form is a parsed multipart request. Close releases every opened file
// part and the temporary files backing the form.
type form struct {
	req     *http.Request
	opened  []io.Closer
	cleanup func() error
}

func isMultipart(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mediaType == "multipart/form-data"
}

// parseForm parses a multipart body of at most maxBytes.
func parseForm(w http.ResponseWriter, r *http.Request, maxBytes int64) (*form, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, errors.New("request body too large")
		}
		return nil, errors.New("invalid multipart form: " + err.Error())
	}
	return &form{req: r, cleanup: r.MultipartForm.RemoveAll}, nil
}

// Value returns a trimmed text field.
func (f *form) Value(name string) string {
	return strings.TrimSpace(f.req.FormValue(name))
}

// File opens the single file part name, or returns nil when absent.
func (f *form) File(name string) (*storage.File, error) {
	headers := f.req.MultipartForm.File[name]
	if len(headers) == 0 {
		return nil, nil
	}
	return f.open(headers[0])
}

// Files opens every file part under any of names, in request order.
func (f *form) Files(names ...string) ([]*storage.File, error) {
	var files []*storage.File
	for _, name := range names {
		for _, h := range f.req.MultipartForm.File[name] {
			file, err := f.open(h)
			if err != nil {
				return nil, err
			}
			files = append(files, file)
		}
	}
	return files, nil
}

func (f *form) open(h *multipart.FileHeader) (*storage.File, error) {
	src, err := h.Open()
	if err != nil {
		return nil, errors.New("cannot read uploaded file " + h.Filename)
	}
	f.opened = append(f.opened, src)

	contentType, _, _ := mime.ParseMediaType(h.Header.Get("Content-Type"))
	return &storage.File{
		Name:        h.Filename,
		ContentType: contentType,
		Size:        h.Size,
		Data:        src,
	}, nil
}

func (f *form) Close() {
	for _, c := range f.opened {
		_ = c.Close()
	}
	if f.cleanup != nil {
		_ = f.cleanup()
	}
}
