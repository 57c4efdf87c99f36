package handlers

import (
	"context"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/kevinaaaquil/scripture-catalog/apperrors"
	"github.com/kevinaaaquil/scripture-catalog/middleware"
)

var coverExtensions = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".webp": "image/webp",
	".gif":  "image/gif",
}

// CoverURL is the public path a book's uploaded cover is served from.
func CoverURL(id string) string {
	return "/api/books/id/" + id + "/cover"
}

// coverContentType resolves the stored content type from the part header,
// falling back to the file extension. Anything that is not an image is
// rejected.
func coverContentType(filename, partType string) (string, bool) {
	if strings.HasPrefix(partType, "image/") {
		return partType, true
	}
	ct, ok := coverExtensions[strings.ToLower(filepath.Ext(filename))]
	return ct, ok
}

func (h *BooksHandler) deleteCover(ctx context.Context, key string) {
	if key == "" || h.Covers == nil {
		return
	}
	if err := h.Covers.Delete(ctx, key); err != nil {
		h.Log.WithError(err).WithField("key", key).Warn("failed to delete cover object")
	}
}

// UploadCover stores a multipart "file" image and points the book at it.
// The previous cover object is removed once the book references the new one.
func (h *BooksHandler) UploadCover(w http.ResponseWriter, r *http.Request) {
	if h.Covers == nil {
		writeError(w, r, h.Log, apperrors.Unavailable("cover uploads are not configured"))
		return
	}
	id := chi.URLParam(r, "id")
	if _, err := primitive.ObjectIDFromHex(id); err != nil {
		writeError(w, r, h.Log, apperrors.InvalidInput("invalid book id %q", id))
		return
	}

	if h.MaxCoverBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.MaxCoverBytes)
	}
	if err := r.ParseMultipartForm(h.MaxCoverBytes); err != nil {
		writeError(w, r, h.Log, apperrors.InvalidInput("failed to parse multipart form: %v", err))
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, r, h.Log, apperrors.InvalidInput("missing file"))
		return
	}
	defer file.Close()

	contentType, ok := coverContentType(header.Filename, header.Header.Get("Content-Type"))
	if !ok {
		writeError(w, r, h.Log, apperrors.InvalidInput("cover must be an image"))
		return
	}

	key, err := h.Covers.Upload(r.Context(), header.Filename, file, contentType)
	if err != nil {
		writeError(w, r, h.Log, apperrors.Internal("failed to upload cover", err))
		return
	}
	book, old, err := h.Catalog.SetCoverImage(r.Context(), id, CoverURL(id), key)
	if err != nil {
		h.deleteCover(r.Context(), key)
		writeError(w, r, h.Log, err)
		return
	}
	if old != key {
		h.deleteCover(r.Context(), old)
	}
	h.Log.WithFields(logrus.Fields{
		"bookId":     id,
		"key":        key,
		"uploadedBy": middleware.EmailFromContext(r.Context()),
	}).Info("cover uploaded")
	writeJSON(w, http.StatusOK, book)
}

// Cover streams the book's uploaded cover from object storage.
func (h *BooksHandler) Cover(w http.ResponseWriter, r *http.Request) {
	if h.Covers == nil {
		writeError(w, r, h.Log, apperrors.Unavailable("cover storage is not configured"))
		return
	}
	key, err := h.Catalog.CoverKey(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	body, contentType, err := h.Covers.GetObject(r.Context(), key)
	if err != nil {
		if apperrors.CodeOf(err) != apperrors.CodeNotFound {
			err = apperrors.Internal("failed to read cover", err)
		}
		writeError(w, r, h.Log, err)
		return
	}
	defer body.Close()
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "public, max-age=86400")
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, body); err != nil {
		h.Log.WithError(err).WithField("key", key).Warn("cover stream interrupted")
	}
}
