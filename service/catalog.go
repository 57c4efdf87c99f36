package service

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/kevinaaaquil/scripture-catalog/apperrors"
	"github.com/kevinaaaquil/scripture-catalog/models"
	"github.com/kevinaaaquil/scripture-catalog/store"
	"github.com/kevinaaaquil/scripture-catalog/validation"
)

// maxWriteAttempts bounds how often a read-modify-write is retried after
// losing a version race.
const maxWriteAttempts = 3

// Catalog owns the Book -> Chapter -> Verse hierarchy and its counter
// invariants. It holds no mutable state between calls.
type Catalog struct {
	books    store.BookRepository
	validate *validation.Validator
	log      logrus.FieldLogger
	now      func() time.Time
}

func NewCatalog(books store.BookRepository, v *validation.Validator, log logrus.FieldLogger) *Catalog {
	return &Catalog{
		books:    books,
		validate: v,
		log:      log.WithField("component", "catalog"),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// ChapterView is a single chapter with the book it belongs to.
type ChapterView struct {
	Book    models.BookRef `json:"book"`
	Chapter models.Chapter `json:"chapter"`
}

type VerseView struct {
	Book    models.BookRef    `json:"book"`
	Chapter models.ChapterRef `json:"chapter"`
	Verse   models.Verse      `json:"verse"`
}

type ChapterPage struct {
	Book models.BookRef `json:"book"`
	models.Page[models.ChapterSummary]
}

type VersePage struct {
	Book    models.BookRef    `json:"book"`
	Chapter models.ChapterRef `json:"chapter"`
	models.Page[models.Verse]
}

func parseID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, apperrors.InvalidInput("invalid book id %q", id)
	}
	return oid, nil
}

// duplicateNumbers rejects chapter numbers repeated within chapters, and verse
// numbers repeated within any one chapter.
func duplicateNumbers(chapters []ChapterInput) error {
	seen := make(map[int]bool, len(chapters))
	for _, ch := range chapters {
		if seen[ch.ChapterNumber] {
			return apperrors.Conflict("chapter %d appears more than once", ch.ChapterNumber)
		}
		seen[ch.ChapterNumber] = true
		if err := duplicateVerses(ch); err != nil {
			return err
		}
	}
	return nil
}

func duplicateVerses(ch ChapterInput) error {
	seen := make(map[string]bool, len(ch.Verses))
	for _, v := range ch.Verses {
		if seen[v.VerseNumber] {
			return apperrors.Conflict("verse %s appears more than once in chapter %d", v.VerseNumber, ch.ChapterNumber)
		}
		seen[v.VerseNumber] = true
	}
	return nil
}

func (c *Catalog) CreateBook(ctx context.Context, in BookInput) (*models.Book, error) {
	if err := c.validate.Validate(in); err != nil {
		return nil, err
	}
	if err := duplicateNumbers(in.Chapters); err != nil {
		return nil, err
	}
	taken, err := c.books.SlugTaken(ctx, in.Slug, primitive.NilObjectID)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, apperrors.Conflict("book with slug %q already exists", in.Slug)
	}

	book := in.toBook(c.now())
	book.RecountCounters()
	id, err := c.books.InsertBook(ctx, book)
	if err != nil {
		return nil, err
	}
	book.ID = id
	c.log.WithFields(logrus.Fields{"bookId": id.Hex(), "slug": book.Slug}).Info("book created")
	return book, nil
}

func (c *Catalog) ListBooks(ctx context.Context, f BookFilter) (*models.Page[models.Book], error) {
	pageDefaults(&f.Page, &f.Limit, defaultBookLimit)
	if err := c.validate.Validate(f); err != nil {
		return nil, err
	}
	active := true
	if f.IsActive != nil {
		active = *f.IsActive
	}

	p := models.NewPagination(f.Page, f.Limit, 0)
	q := store.BookQuery{
		Search:   f.Search,
		Category: f.Category,
		Status:   f.Status,
		Author:   f.Author,
		Tags:     f.Tags,
		IsActive: &active,
		Featured: f.Featured,
		Now:      c.now(),
		SortBy:   f.SortBy,
		SortDesc: f.SortOrder != "asc",
		Skip:     p.Skip(),
		Limit:    f.Limit,
	}
	books, total, err := c.books.FindBooks(ctx, q)
	if err != nil {
		return nil, err
	}
	if books == nil {
		books = []models.Book{}
	}
	return &models.Page[models.Book]{
		Data:       books,
		Pagination: models.NewPagination(f.Page, f.Limit, total),
	}, nil
}

// countView bumps viewCount after a single-book fetch. Failures are logged and
// never returned; the read already succeeded.
func (c *Catalog) countView(ctx context.Context, book *models.Book) {
	if err := c.books.IncrementBookCounter(ctx, book.ID, store.CounterViews); err != nil {
		c.log.WithError(err).WithField("bookId", book.ID.Hex()).Warn("view count not recorded")
		return
	}
	book.ViewCount++
}

func (c *Catalog) GetBookByID(ctx context.Context, id string) (*models.Book, error) {
	oid, err := parseID(id)
	if err != nil {
		return nil, err
	}
	book, err := c.books.BookByID(ctx, oid)
	if err != nil {
		return nil, notFoundf(err, "book with ID %s not found", id)
	}
	c.countView(ctx, book)
	return book, nil
}

func (c *Catalog) GetBookBySlug(ctx context.Context, slug string) (*models.Book, error) {
	book, err := c.activeBook(ctx, slug)
	if err != nil {
		return nil, err
	}
	c.countView(ctx, book)
	return book, nil
}

func (c *Catalog) activeBook(ctx context.Context, slug string) (*models.Book, error) {
	book, err := c.books.BookBySlug(ctx, slug, true)
	if err != nil {
		return nil, notFoundf(err, "book with slug %q not found", slug)
	}
	return book, nil
}

// notFoundf rewrites a repository NOT_FOUND with a message naming what was
// looked up. Other errors pass through.
func notFoundf(err error, format string, args ...any) error {
	if apperrors.Is(err, apperrors.ErrNotFound) {
		return apperrors.NotFound(format, args...)
	}
	return err
}

func chapterNotFound(slug string, n int) error {
	return apperrors.NotFound("chapter %d not found in book %q", n, slug)
}

func (c *Catalog) GetChapter(ctx context.Context, slug string, n int) (*ChapterView, error) {
	book, err := c.activeBook(ctx, slug)
	if err != nil {
		return nil, err
	}
	ch := book.ChapterByNumber(n)
	if ch == nil {
		return nil, chapterNotFound(slug, n)
	}
	ch.VerseCount = len(ch.Verses)
	return &ChapterView{Book: book.Ref(), Chapter: *ch}, nil
}

func (c *Catalog) GetVerse(ctx context.Context, slug string, n int, verseNumber string) (*VerseView, error) {
	book, err := c.activeBook(ctx, slug)
	if err != nil {
		return nil, err
	}
	ch := book.ChapterByNumber(n)
	if ch == nil {
		return nil, chapterNotFound(slug, n)
	}
	v := ch.VerseByNumber(verseNumber)
	if v == nil {
		return nil, apperrors.NotFound("verse %s not found in chapter %d of book %q", verseNumber, n, slug)
	}
	return &VerseView{
		Book:    book.Ref(),
		Chapter: models.ChapterRef{ChapterNumber: ch.ChapterNumber, Title: ch.Title},
		Verse:   *v,
	}, nil
}

func (c *Catalog) ListChapters(ctx context.Context, slug string, f ChapterFilter) (*ChapterPage, error) {
	pageDefaults(&f.Page, &f.Limit, defaultChapterLimit)
	if err := c.validate.Validate(f); err != nil {
		return nil, err
	}
	book, err := c.activeBook(ctx, slug)
	if err != nil {
		return nil, err
	}

	matched := []models.ChapterSummary{}
	for i := range book.Chapters {
		ch := &book.Chapters[i]
		if f.Search != "" && !store.ContainsFold(ch.Title, f.Search) && !store.ContainsFold(ch.Description, f.Search) {
			continue
		}
		if len(f.Tags) > 0 && !store.AnyTag(ch.Tags, f.Tags) {
			continue
		}
		matched = append(matched, ch.Summary())
	}
	return &ChapterPage{
		Book: book.Ref(),
		Page: models.Paginate(matched, f.Page, f.Limit),
	}, nil
}

func (c *Catalog) ListVerses(ctx context.Context, slug string, n int, f VerseFilter) (*VersePage, error) {
	pageDefaults(&f.Page, &f.Limit, defaultVerseLimit)
	if err := c.validate.Validate(f); err != nil {
		return nil, err
	}
	book, err := c.activeBook(ctx, slug)
	if err != nil {
		return nil, err
	}
	ch := book.ChapterByNumber(n)
	if ch == nil {
		return nil, chapterNotFound(slug, n)
	}

	matched := []models.Verse{}
	for _, v := range ch.Verses {
		if verseMatches(&v, f) {
			matched = append(matched, v)
		}
	}
	return &VersePage{
		Book:    book.Ref(),
		Chapter: models.ChapterRef{ChapterNumber: ch.ChapterNumber, Title: ch.Title},
		Page:    models.Paginate(matched, f.Page, f.Limit),
	}, nil
}

func verseMatches(v *models.Verse, f VerseFilter) bool {
	if f.Search != "" &&
		!store.ContainsFold(v.Translation, f.Search) &&
		!(v.Purport != "" && store.ContainsFold(v.Purport, f.Search)) &&
		!(v.SanskritText != "" && store.ContainsFold(v.SanskritText, f.Search)) {
		return false
	}
	if f.HasAudio != nil && v.HasAudio() != *f.HasAudio {
		return false
	}
	if f.HasPurport != nil && (v.Purport != "") != *f.HasPurport {
		return false
	}
	if f.HasSanskrit != nil && (v.SanskritText != "") != *f.HasSanskrit {
		return false
	}
	if len(f.Tags) > 0 && !store.AnyTag(v.Tags, f.Tags) {
		return false
	}
	return true
}

// mutate loads the book, applies fn and writes it back guarded by the version
// that was read. Counters are recomputed and version/updatedAt bumped here, so
// fn only edits content. A lost race is retried from a fresh read.
func (c *Catalog) mutate(ctx context.Context, id primitive.ObjectID, fn func(b *models.Book) error) (*models.Book, error) {
	var err error
	for attempt := 1; attempt <= maxWriteAttempts; attempt++ {
		var book *models.Book
		book, err = c.books.BookByID(ctx, id)
		if err != nil {
			return nil, notFoundf(err, "book with ID %s not found", id.Hex())
		}
		if err := fn(book); err != nil {
			return nil, err
		}
		expected := book.Version
		book.Version = expected + 1
		book.UpdatedAt = c.now()
		book.RecountCounters()

		err = c.books.ReplaceBook(ctx, book, expected)
		if err == nil {
			return book, nil
		}
		if err != store.ErrConcurrentUpdate {
			return nil, err
		}
		c.log.WithFields(logrus.Fields{"bookId": id.Hex(), "attempt": attempt}).Debug("version race, retrying")
	}
	return nil, err
}

func (c *Catalog) UpdateBook(ctx context.Context, id string, patch BookPatch) (*models.Book, error) {
	oid, err := parseID(id)
	if err != nil {
		return nil, err
	}
	if err := c.validate.Validate(patch); err != nil {
		return nil, err
	}
	if patch.Chapters != nil {
		if err := duplicateNumbers(*patch.Chapters); err != nil {
			return nil, err
		}
	}

	return c.mutate(ctx, oid, func(b *models.Book) error {
		if patch.Slug != nil && *patch.Slug != b.Slug {
			taken, err := c.books.SlugTaken(ctx, *patch.Slug, b.ID)
			if err != nil {
				return err
			}
			if taken {
				return apperrors.Conflict("book with slug %q already exists", *patch.Slug)
			}
		}
		patch.apply(b)
		if patch.Chapters != nil {
			b.Chapters = toChapters(*patch.Chapters, c.now())
		}
		return nil
	})
}

func (c *Catalog) setActive(ctx context.Context, id string, active bool) error {
	oid, err := parseID(id)
	if err != nil {
		return err
	}
	if err := c.books.SetBookActive(ctx, oid, active, c.now()); err != nil {
		return notFoundf(err, "book with ID %s not found", id)
	}
	c.log.WithFields(logrus.Fields{"bookId": id, "active": active}).Info("book lifecycle changed")
	return nil
}

// DeactivateBook soft-deletes: the book stays stored but leaves default
// listings, slug lookups and search.
func (c *Catalog) DeactivateBook(ctx context.Context, id string) error {
	return c.setActive(ctx, id, false)
}

func (c *Catalog) ActivateBook(ctx context.Context, id string) error {
	return c.setActive(ctx, id, true)
}

// HardDeleteBook removes the book permanently and returns what was removed.
func (c *Catalog) HardDeleteBook(ctx context.Context, id string) (*models.Book, error) {
	oid, err := parseID(id)
	if err != nil {
		return nil, err
	}
	book, err := c.books.DeleteBook(ctx, oid)
	if err != nil {
		return nil, notFoundf(err, "book with ID %s not found", id)
	}
	c.log.WithFields(logrus.Fields{"bookId": id, "slug": book.Slug}).Warn("book permanently deleted")
	return book, nil
}

func (c *Catalog) AddChapter(ctx context.Context, bookID string, in ChapterInput) (*models.Book, error) {
	oid, err := parseID(bookID)
	if err != nil {
		return nil, err
	}
	if err := c.validate.Validate(in); err != nil {
		return nil, err
	}
	if err := duplicateVerses(in); err != nil {
		return nil, err
	}
	return c.mutate(ctx, oid, func(b *models.Book) error {
		if b.ChapterByNumber(in.ChapterNumber) != nil {
			return apperrors.Conflict("chapter %d already exists in this book", in.ChapterNumber)
		}
		b.Chapters = append(b.Chapters, in.toChapter(c.now()))
		return nil
	})
}

func (c *Catalog) AddVerse(ctx context.Context, bookID string, n int, in VerseInput) (*models.Book, error) {
	oid, err := parseID(bookID)
	if err != nil {
		return nil, err
	}
	if err := c.validate.Validate(in); err != nil {
		return nil, err
	}
	return c.mutate(ctx, oid, func(b *models.Book) error {
		ch := b.ChapterByNumber(n)
		if ch == nil {
			return apperrors.NotFound("chapter %d not found in this book", n)
		}
		if ch.VerseByNumber(in.VerseNumber) != nil {
			return apperrors.Conflict("verse %s already exists in chapter %d", in.VerseNumber, n)
		}
		now := c.now()
		ch.Verses = append(ch.Verses, in.toVerse(now))
		ch.UpdatedAt = now
		return nil
	})
}

func (c *Catalog) Statistics(ctx context.Context) (*models.Statistics, error) {
	return c.books.BookStatistics(ctx)
}

// ExportBook returns the full active book for download and counts the download.
func (c *Catalog) ExportBook(ctx context.Context, slug string) (*models.Book, error) {
	book, err := c.activeBook(ctx, slug)
	if err != nil {
		return nil, err
	}
	if !book.AllowDownload {
		return nil, apperrors.Forbidden(fmt.Sprintf("downloads are disabled for %q", slug))
	}
	if err := c.books.IncrementBookCounter(ctx, book.ID, store.CounterDownloads); err != nil {
		c.log.WithError(err).WithField("bookId", book.ID.Hex()).Warn("download count not recorded")
	} else {
		book.DownloadCount++
	}
	return book, nil
}

// CoverKey returns the object key of the book's uploaded cover.
func (c *Catalog) CoverKey(ctx context.Context, id string) (string, error) {
	oid, err := parseID(id)
	if err != nil {
		return "", err
	}
	book, err := c.books.BookByID(ctx, oid)
	if err != nil {
		return "", notFoundf(err, "book with ID %s not found", id)
	}
	if book.CoverS3Key == "" {
		return "", apperrors.NotFound("book %s has no uploaded cover", id)
	}
	return book.CoverS3Key, nil
}

// SetCoverImage records a newly uploaded cover and returns the key of the
// cover it replaced, if any, so the caller can delete that object.
func (c *Catalog) SetCoverImage(ctx context.Context, id, url, key string) (*models.Book, string, error) {
	oid, err := parseID(id)
	if err != nil {
		return nil, "", err
	}
	var old string
	book, err := c.mutate(ctx, oid, func(b *models.Book) error {
		old = b.CoverS3Key
		b.CoverImageURL = url
		b.CoverS3Key = key
		return nil
	})
	if err != nil {
		return nil, "", err
	}
	return book, old, nil
}

// ApplyMetadata merges looked-up publication data into the book. Empty fields
// in meta never clear existing values.
func (c *Catalog) ApplyMetadata(ctx context.Context, id string, meta *models.BookMetadata) (*models.Book, error) {
	oid, err := parseID(id)
	if err != nil {
		return nil, err
	}
	return c.mutate(ctx, oid, func(b *models.Book) error {
		if b.Metadata == nil {
			b.Metadata = &models.BookMetadata{}
		}
		mergeMetadata(b.Metadata, meta)
		return nil
	})
}

func mergeMetadata(dst, src *models.BookMetadata) {
	merge := func(d *string, s string) {
		if s != "" {
			*d = s
		}
	}
	merge(&dst.ISBN, src.ISBN)
	merge(&dst.Publisher, src.Publisher)
	merge(&dst.PublishedDate, src.PublishedDate)
	merge(&dst.Edition, src.Edition)
	merge(&dst.Language, src.Language)
	merge(&dst.OriginalLanguage, src.OriginalLanguage)
	merge(&dst.Copyright, src.Copyright)
	if src.PageCount > 0 {
		dst.PageCount = src.PageCount
	}
	if len(src.Translators) > 0 {
		dst.Translators = src.Translators
	}
}
