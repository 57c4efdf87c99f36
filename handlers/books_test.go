package handlers

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kevinaaaquil/scripture-catalog/models"
	"github.com/kevinaaaquil/scripture-catalog/service"
)

func TestWelcomeAndHealth(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodGet, "/", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "welcome")

	rec = env.do(http.MethodGet, "/health", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestCreateBookRoleGuard(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name  string
		token string
		want  int
	}{
		{"anonymous", "", http.StatusUnauthorized},
		{"viewer", env.token(models.RoleViewer), http.StatusForbidden},
		{"editor", env.token(models.RoleEditor), http.StatusCreated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := gitaInput()
			in.Slug = "gita-" + tt.name
			in.Title = "Gita " + tt.name
			rec := env.do(http.MethodPost, "/api/books", in, tt.token)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
		})
	}
}

func TestCreateBookDerivesCounters(t *testing.T) {
	env := newTestEnv(t)
	book := env.createBook(gitaInput())

	assert.False(t, book.ID.IsZero())
	assert.Equal(t, 2, book.ChapterCount)
	assert.Equal(t, 2, book.TotalVerses)
	assert.Equal(t, 2, book.Chapters[0].VerseCount)
	assert.Equal(t, 1, book.Version)
	assert.True(t, book.IsActive)
}

func TestCreateBookRejectsBadBodies(t *testing.T) {
	env := newTestEnv(t)
	editor := env.token(models.RoleEditor)

	tests := []struct {
		name string
		body any
	}{
		{"empty body", nil},
		{"malformed json", `{"slug":`},
		{"unknown field", `{"slug":"x","title":"X","description":"d","author":"a","chapterCount":9}`},
		{"trailing data", `{"slug":"x","title":"X","description":"d","author":"a"} {}`},
		{"missing title", service.BookInput{Slug: "x", Description: "d", Author: "a"}},
		{"bad slug", service.BookInput{Slug: "Not A Slug", Title: "X", Description: "d", Author: "a"}},
		{"slug shadowed by search route", service.BookInput{Slug: "search", Title: "X", Description: "d", Author: "a"}},
		{"slug shadowed by statistics route", service.BookInput{Slug: "statistics", Title: "X", Description: "d", Author: "a"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(http.MethodPost, "/api/books", tt.body, editor)
			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
			assert.Equal(t, "INVALID_INPUT", errorCode(t, rec))
		})
	}
}

func TestJSONBodiesAreCapped(t *testing.T) {
	env := newTestEnv(t)
	book := env.createBook(gitaInput())
	huge := strings.Repeat("a", testMaxBody+1)

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		role   string
	}{
		{"create", http.MethodPost, "/api/books", service.BookInput{Slug: "big", Title: "Big", Description: huge, Author: "a"}, models.RoleEditor},
		{"patch", http.MethodPatch, "/api/books/id/" + book.ID.Hex(), map[string]any{"description": huge}, models.RoleEditor},
		{"add chapter", http.MethodPost, "/api/books/id/" + book.ID.Hex() + "/chapters", service.ChapterInput{ChapterNumber: 9, Title: huge}, models.RoleEditor},
		{"create user", http.MethodPost, "/api/users", CreateUserRequest{Email: "a@example.com", Password: huge}, models.RoleAdmin},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(tt.method, tt.path, tt.body, env.token(tt.role))
			require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
			assert.Contains(t, rec.Body.String(), "request body exceeds")
		})
	}

	// Cover uploads are bounded by the multipart limit instead.
	rec := env.uploadCover(book.ID.Hex(), "big.png", bytes.Repeat([]byte{1}, testMaxBody*2))
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestCreateBookDuplicateSlug(t *testing.T) {
	env := newTestEnv(t)
	env.createBook(gitaInput())

	in := gitaInput()
	in.Title = "Another title"
	rec := env.do(http.MethodPost, "/api/books", in, env.token(models.RoleAdmin))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "CONFLICT", errorCode(t, rec))
}

func TestListBooksStripsLargeVerseFields(t *testing.T) {
	env := newTestEnv(t)
	env.createBook(gitaInput())

	rec := env.do(http.MethodGet, "/api/books?category=bhagavad-gita&tags=gita,other", nil, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	page := decodeBody[models.Page[models.Book]](t, rec)
	require.Len(t, page.Data, 1)
	assert.Equal(t, int64(1), page.Pagination.Total)
	assert.Empty(t, page.Data[0].Chapters[0].Verses[0].Purport)

	rec = env.do(http.MethodGet, "/api/books/bhagavad-gita", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	book := decodeBody[models.Book](t, rec)
	assert.Equal(t, "Long purport", book.Chapters[0].Verses[0].Purport)
	assert.Equal(t, int64(1), book.ViewCount)
}

func TestListBooksRejectsBadQuery(t *testing.T) {
	env := newTestEnv(t)
	for _, q := range []string{"page=0", "limit=abc", "limit=500", "isActive=maybe", "sortBy=price", "category=novel"} {
		rec := env.do(http.MethodGet, "/api/books?"+q, nil, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code, q)
	}
}

func TestReadChaptersAndVerses(t *testing.T) {
	env := newTestEnv(t)
	env.createBook(gitaInput())

	rec := env.do(http.MethodGet, "/api/books/bhagavad-gita/chapters", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	chapters := decodeBody[map[string]any](t, rec)
	assert.Len(t, chapters["data"], 2)
	assert.Equal(t, "bhagavad-gita", chapters["book"].(map[string]any)["slug"])

	rec = env.do(http.MethodGet, "/api/books/bhagavad-gita/chapters/1", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	view := decodeBody[service.ChapterView](t, rec)
	assert.Equal(t, "Observing the Armies", view.Chapter.Title)

	rec = env.do(http.MethodGet, "/api/books/bhagavad-gita/chapters/1/verses?hasPurport=true", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	verses := decodeBody[map[string]any](t, rec)
	assert.Len(t, verses["data"], 1)

	rec = env.do(http.MethodGet, "/api/books/bhagavad-gita/chapters/1/verses/2", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	verse := decodeBody[service.VerseView](t, rec)
	assert.Equal(t, "Sanjaya said", verse.Verse.Translation)
	assert.Equal(t, 1, verse.Chapter.ChapterNumber)
}

func TestReadNotFoundAndBadParams(t *testing.T) {
	env := newTestEnv(t)
	env.createBook(gitaInput())

	tests := []struct {
		path string
		want int
		code string
	}{
		{"/api/books/missing", http.StatusNotFound, "NOT_FOUND"},
		{"/api/books/bhagavad-gita/chapters/9", http.StatusNotFound, "NOT_FOUND"},
		{"/api/books/bhagavad-gita/chapters/1/verses/99", http.StatusNotFound, "NOT_FOUND"},
		{"/api/books/bhagavad-gita/chapters/one", http.StatusBadRequest, "INVALID_INPUT"},
		{"/api/books/id/not-hex", http.StatusBadRequest, "INVALID_INPUT"},
		{"/api/books/id/507f1f77bcf86cd799439011", http.StatusNotFound, "NOT_FOUND"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := env.do(http.MethodGet, tt.path, nil, "")
			assert.Equal(t, tt.want, rec.Code)
			assert.Equal(t, tt.code, errorCode(t, rec))
		})
	}
}

func TestUpdateBook(t *testing.T) {
	env := newTestEnv(t)
	book := env.createBook(gitaInput())
	editor := env.token(models.RoleEditor)

	rec := env.do(http.MethodPatch, "/api/books/id/"+book.ID.Hex(), map[string]any{
		"title":    "Gita",
		"chapters": []service.ChapterInput{{ChapterNumber: 1, Title: "Only", Verses: []service.VerseInput{{VerseNumber: "1", Translation: "t"}}}},
	}, editor)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decodeBody[models.Book](t, rec)
	assert.Equal(t, "Gita", updated.Title)
	assert.Equal(t, 1, updated.ChapterCount)
	assert.Equal(t, 1, updated.TotalVerses)
	assert.Equal(t, 2, updated.Version)

	rec = env.do(http.MethodPatch, "/api/books/id/"+book.ID.Hex(), `{"viewCount":100}`, editor)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeactivateAndRestore(t *testing.T) {
	env := newTestEnv(t)
	book := env.createBook(gitaInput())
	editor := env.token(models.RoleEditor)
	path := "/api/books/id/" + book.ID.Hex()

	rec := env.do(http.MethodDelete, path, nil, editor)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, http.StatusNotFound, env.do(http.MethodGet, "/api/books/bhagavad-gita", nil, "").Code)

	page := decodeBody[models.Page[models.Book]](t, env.do(http.MethodGet, "/api/books?isActive=false", nil, ""))
	assert.Len(t, page.Data, 1)

	rec = env.do(http.MethodPost, path+"/restore", nil, editor)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, http.StatusOK, env.do(http.MethodGet, "/api/books/bhagavad-gita", nil, "").Code)
}

func TestHardDeleteIsAdminOnly(t *testing.T) {
	env := newTestEnv(t)
	book := env.createBook(gitaInput())
	path := "/api/books/id/" + book.ID.Hex() + "/permanent"

	assert.Equal(t, http.StatusForbidden, env.do(http.MethodDelete, path, nil, env.token(models.RoleEditor)).Code)

	rec := env.do(http.MethodDelete, path, nil, env.token(models.RoleAdmin))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, http.StatusNotFound, env.do(http.MethodGet, "/api/books/id/"+book.ID.Hex(), nil, "").Code)
	assert.Equal(t, http.StatusNotFound, env.do(http.MethodDelete, path, nil, env.token(models.RoleAdmin)).Code)
}

func TestAddChapterAndVerse(t *testing.T) {
	env := newTestEnv(t)
	book := env.createBook(gitaInput())
	editor := env.token(models.RoleEditor)
	base := "/api/books/id/" + book.ID.Hex()

	rec := env.do(http.MethodPost, base+"/chapters", service.ChapterInput{ChapterNumber: 3, Title: "Karma-yoga"}, editor)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, 3, decodeBody[models.Book](t, rec).ChapterCount)

	rec = env.do(http.MethodPost, base+"/chapters", service.ChapterInput{ChapterNumber: 3, Title: "Again"}, editor)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = env.do(http.MethodPost, base+"/chapters/3/verses", service.VerseInput{VerseNumber: "1", Translation: "Arjuna said"}, editor)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	updated := decodeBody[models.Book](t, rec)
	assert.Equal(t, 3, updated.TotalVerses)
	assert.Equal(t, 1, updated.Chapters[2].VerseCount)

	rec = env.do(http.MethodPost, base+"/chapters/7/verses", service.VerseInput{VerseNumber: "1", Translation: "x"}, editor)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSearchEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.createBook(gitaInput())

	rec := env.do(http.MethodGet, "/api/books/search", nil, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(http.MethodGet, "/api/books/search?q=sanjaya", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	page := decodeBody[models.Page[service.SearchHit]](t, rec)
	require.Len(t, page.Data, 1)
	assert.Equal(t, "bhagavad-gita", page.Data[0].Slug)
	assert.Positive(t, page.Data[0].Score)
}

func TestStatisticsEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.createBook(gitaInput())

	rec := env.do(http.MethodGet, "/api/books/statistics", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	stats := decodeBody[models.Statistics](t, rec)
	assert.Equal(t, int64(1), stats.Overview.TotalBooks)
	assert.Equal(t, int64(2), stats.Overview.TotalVerses)
}

func TestExport(t *testing.T) {
	env := newTestEnv(t)
	env.createBook(gitaInput())
	closed := gitaInput()
	closed.Slug = "closed"
	closed.Title = "Closed"
	closed.AllowDownload = nil
	env.createBook(closed)

	rec := env.do(http.MethodGet, "/api/books/bhagavad-gita/export", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `attachment; filename="bhagavad-gita.json"`, rec.Header().Get("Content-Disposition"))
	assert.Equal(t, int64(1), decodeBody[models.Book](t, rec).DownloadCount)

	rec = env.do(http.MethodGet, "/api/books/closed/export", nil, "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func multipartCover(t *testing.T, filename string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func (e *testEnv) uploadCover(bookID, filename string, data []byte) *httptest.ResponseRecorder {
	body, contentType := multipartCover(e.t, filename, data)
	req := httptest.NewRequest(http.MethodPost, "/api/books/id/"+bookID+"/cover", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+e.token(models.RoleEditor))
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func TestUploadAndServeCover(t *testing.T) {
	env := newTestEnv(t)
	book := env.createBook(gitaInput())
	id := book.ID.Hex()

	rec := env.uploadCover(id, "cover.png", []byte("first"))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, CoverURL(id), decodeBody[models.Book](t, rec).CoverImageURL)

	rec = env.do(http.MethodGet, CoverURL(id), nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.Equal(t, "first", rec.Body.String())

	// A replacement removes the previous object.
	rec = env.uploadCover(id, "cover.jpg", []byte("second"))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, env.covers.deleted, 1)
	assert.Len(t, env.covers.objects, 1)
	assert.Equal(t, "second", env.do(http.MethodGet, CoverURL(id), nil, "").Body.String())

	rec = env.do(http.MethodDelete, "/api/books/id/"+id+"/permanent", nil, env.token(models.RoleAdmin))
	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, env.covers.objects)
}

func TestUploadCoverRejections(t *testing.T) {
	env := newTestEnv(t)
	book := env.createBook(gitaInput())

	rec := env.uploadCover(book.ID.Hex(), "notes.txt", []byte("hello"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.uploadCover("507f1f77bcf86cd799439011", "cover.png", []byte("x"))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Empty(t, env.covers.objects, "orphaned upload must be removed")

	rec = env.do(http.MethodGet, CoverURL(book.ID.Hex()), nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	env.books.Covers = nil
	rec = env.uploadCover(book.ID.Hex(), "cover.png", []byte("x"))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "UNAVAILABLE", errorCode(t, rec))
}

func TestCoverContentType(t *testing.T) {
	tests := []struct {
		filename, part, want string
		ok                   bool
	}{
		{"a.PNG", "application/octet-stream", "image/png", true},
		{"a.bin", "image/webp", "image/webp", true},
		{"a.jpeg", "", "image/jpeg", true},
		{"a.pdf", "application/pdf", "", false},
	}
	for _, tt := range tests {
		got, ok := coverContentType(tt.filename, tt.part)
		assert.Equal(t, tt.ok, ok, tt.filename)
		assert.Equal(t, tt.want, got, tt.filename)
	}
}

func TestRefreshMetadata(t *testing.T) {
	env := newTestEnv(t)
	book := env.createBook(gitaInput())
	env.meta.meta = &models.BookMetadata{ISBN: "9780892133386", Publisher: "BBT", PageCount: 924}
	path := "/api/books/id/" + book.ID.Hex() + "/metadata"

	rec := env.do(http.MethodPost, path, RefreshMetadataRequest{ISBN: " 978-0892133386 "}, env.token(models.RoleEditor))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "978-0892133386", env.meta.isbn)
	updated := decodeBody[models.Book](t, rec)
	require.NotNil(t, updated.Metadata)
	assert.Equal(t, "BBT", updated.Metadata.Publisher)
	assert.Equal(t, 924, updated.Metadata.PageCount)

	rec = env.do(http.MethodPost, path, `{}`, env.token(models.RoleEditor))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "isbn"))
}
