package handlers

import (
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"github.com/kevinaaaquil/scripture-catalog/models"
	"github.com/kevinaaaquil/scripture-catalog/service"
)

// CoverStorage is the object store behind cover uploads.
type CoverStorage interface {
	Upload(ctx context.Context, filename string, body io.Reader, contentType string) (string, error)
	Delete(ctx context.Context, key string) error
	GetObject(ctx context.Context, key string) (io.ReadCloser, string, error)
}

// MetadataLookup finds publication data by ISBN.
type MetadataLookup interface {
	LookupISBN(ctx context.Context, isbn string) (*models.BookMetadata, error)
}

type BooksHandler struct {
	Catalog  *service.Catalog
	Covers   CoverStorage // nil when S3 is not configured
	Metadata MetadataLookup
	// MaxCoverBytes caps multipart cover uploads.
	MaxCoverBytes int64
	Log           logrus.FieldLogger
}

func (h *BooksHandler) List(w http.ResponseWriter, r *http.Request) {
	f, err := bookFilterQuery(r)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	page, err := h.Catalog.ListBooks(r.Context(), f)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// Search is GET /api/books/search?q=term.
func (h *BooksHandler) Search(w http.ResponseWriter, r *http.Request) {
	page, limit, err := pageQuery(r)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	result, err := h.Catalog.GlobalSearch(r.Context(), r.URL.Query().Get("q"), page, limit)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *BooksHandler) Statistics(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Catalog.Statistics(r.Context())
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *BooksHandler) GetBySlug(w http.ResponseWriter, r *http.Request) {
	book, err := h.Catalog.GetBookBySlug(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, book)
}

func (h *BooksHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	book, err := h.Catalog.GetBookByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, book)
}

func (h *BooksHandler) ListChapters(w http.ResponseWriter, r *http.Request) {
	f, err := chapterFilterQuery(r)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	page, err := h.Catalog.ListChapters(r.Context(), chi.URLParam(r, "slug"), f)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (h *BooksHandler) GetChapter(w http.ResponseWriter, r *http.Request) {
	n, err := chapterNumberParam(r)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	view, err := h.Catalog.GetChapter(r.Context(), chi.URLParam(r, "slug"), n)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *BooksHandler) ListVerses(w http.ResponseWriter, r *http.Request) {
	n, err := chapterNumberParam(r)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	f, err := verseFilterQuery(r)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	page, err := h.Catalog.ListVerses(r.Context(), chi.URLParam(r, "slug"), n, f)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (h *BooksHandler) GetVerse(w http.ResponseWriter, r *http.Request) {
	n, err := chapterNumberParam(r)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	view, err := h.Catalog.GetVerse(r.Context(), chi.URLParam(r, "slug"), n, chi.URLParam(r, "verseNumber"))
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// Export sends the whole book as a JSON attachment.
func (h *BooksHandler) Export(w http.ResponseWriter, r *http.Request) {
	book, err := h.Catalog.ExportBook(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	w.Header().Set("Content-Disposition", `attachment; filename="`+book.Slug+`.json"`)
	writeJSON(w, http.StatusOK, book)
}

func (h *BooksHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in service.BookInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	book, err := h.Catalog.CreateBook(r.Context(), in)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusCreated, book)
}

func (h *BooksHandler) Update(w http.ResponseWriter, r *http.Request) {
	var patch service.BookPatch
	if err := decodeJSON(r, &patch); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	book, err := h.Catalog.UpdateBook(r.Context(), chi.URLParam(r, "id"), patch)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, book)
}

// Deactivate is the ordinary delete: the book is hidden, not removed.
func (h *BooksHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	if err := h.Catalog.DeactivateBook(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "book deactivated"})
}

func (h *BooksHandler) Restore(w http.ResponseWriter, r *http.Request) {
	if err := h.Catalog.ActivateBook(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "book restored"})
}

// HardDelete removes the book for good, then its cover object.
func (h *BooksHandler) HardDelete(w http.ResponseWriter, r *http.Request) {
	book, err := h.Catalog.HardDeleteBook(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	h.deleteCover(r.Context(), book.CoverS3Key)
	w.WriteHeader(http.StatusNoContent)
}

func (h *BooksHandler) AddChapter(w http.ResponseWriter, r *http.Request) {
	var in service.ChapterInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	book, err := h.Catalog.AddChapter(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusCreated, book)
}

func (h *BooksHandler) AddVerse(w http.ResponseWriter, r *http.Request) {
	n, err := chapterNumberParam(r)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	var in service.VerseInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	book, err := h.Catalog.AddVerse(r.Context(), chi.URLParam(r, "id"), n, in)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusCreated, book)
}

type RefreshMetadataRequest struct {
	ISBN string `json:"isbn"`
}

// RefreshMetadata looks the ISBN up and merges the result into the book.
func (h *BooksHandler) RefreshMetadata(w http.ResponseWriter, r *http.Request) {
	var req RefreshMetadataRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	meta, err := h.Metadata.LookupISBN(r.Context(), strings.TrimSpace(req.ISBN))
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	book, err := h.Catalog.ApplyMetadata(r.Context(), chi.URLParam(r, "id"), meta)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, book)
}
