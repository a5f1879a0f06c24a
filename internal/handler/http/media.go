package http

import (
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// ObjectOpener reads stored objects back. The in-memory storage backend
// implements it so local runs can serve uploaded images.
type ObjectOpener interface {
	Open(key string) (io.Reader, string, bool)
}

// MediaHandler serves GET /media/* from an ObjectOpener.
func MediaHandler(objects ObjectOpener) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data, contentType, ok := objects.Open(chi.URLParam(r, "*"))
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", contentType)
		w.Header().Set("Cache-Control", "public, max-age=86400")
		_, _ = io.Copy(w, data)
	}
}
