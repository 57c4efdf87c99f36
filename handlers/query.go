package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/kevinaaaquil/scripture-catalog/apperrors"
	"github.com/kevinaaaquil/scripture-catalog/models"
	"github.com/kevinaaaquil/scripture-catalog/service"
)

// positiveQuery parses an optional integer query parameter. Absent means 0,
// which the catalog replaces with its default.
func positiveQuery(r *http.Request, name string) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperrors.InvalidInput("%s must be an integer", name)
	}
	if n < 1 {
		return 0, apperrors.InvalidInput("%s must be at least 1", name)
	}
	return n, nil
}

func boolQuery(r *http.Request, name string) (*bool, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return nil, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, apperrors.InvalidInput("%s must be true or false", name)
	}
	return &b, nil
}

// tagsQuery accepts both ?tags=a,b and ?tags=a&tags=b.
func tagsQuery(r *http.Request) []string {
	var tags []string
	for _, v := range r.URL.Query()["tags"] {
		for _, t := range strings.Split(v, ",") {
			if t = strings.TrimSpace(t); t != "" {
				tags = append(tags, t)
			}
		}
	}
	return tags
}

func chapterNumberParam(r *http.Request) (int, error) {
	raw := chi.URLParam(r, "chapterNumber")
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, apperrors.InvalidInput("chapter number must be a positive integer, got %q", raw)
	}
	return n, nil
}

// pageQuery reads page and limit.
func pageQuery(r *http.Request) (page, limit int, err error) {
	if page, err = positiveQuery(r, "page"); err != nil {
		return 0, 0, err
	}
	if limit, err = positiveQuery(r, "limit"); err != nil {
		return 0, 0, err
	}
	return page, limit, nil
}

func bookFilterQuery(r *http.Request) (service.BookFilter, error) {
	q := r.URL.Query()
	f := service.BookFilter{
		Search:    strings.TrimSpace(q.Get("search")),
		Category:  models.BookCategory(q.Get("category")),
		Status:    models.BookStatus(q.Get("status")),
		Author:    strings.TrimSpace(q.Get("author")),
		Tags:      tagsQuery(r),
		SortBy:    q.Get("sortBy"),
		SortOrder: q.Get("sortOrder"),
	}
	var err error
	if f.Page, f.Limit, err = pageQuery(r); err != nil {
		return f, err
	}
	if f.IsActive, err = boolQuery(r, "isActive"); err != nil {
		return f, err
	}
	if f.Featured, err = boolQuery(r, "featured"); err != nil {
		return f, err
	}
	return f, nil
}

func chapterFilterQuery(r *http.Request) (service.ChapterFilter, error) {
	f := service.ChapterFilter{
		Search: strings.TrimSpace(r.URL.Query().Get("search")),
		Tags:   tagsQuery(r),
	}
	var err error
	f.Page, f.Limit, err = pageQuery(r)
	return f, err
}

func verseFilterQuery(r *http.Request) (service.VerseFilter, error) {
	f := service.VerseFilter{
		Search: strings.TrimSpace(r.URL.Query().Get("search")),
		Tags:   tagsQuery(r),
	}
	var err error
	if f.Page, f.Limit, err = pageQuery(r); err != nil {
		return f, err
	}
	if f.HasAudio, err = boolQuery(r, "hasAudio"); err != nil {
		return f, err
	}
	if f.HasPurport, err = boolQuery(r, "hasPurport"); err != nil {
		return f, err
	}
	if f.HasSanskrit, err = boolQuery(r, "hasSanskrit"); err != nil {
		return f, err
	}
	return f, nil
}
