package store

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/kevinaaaquil/scripture-catalog/apperrors"
	"github.com/kevinaaaquil/scripture-catalog/models"
)

// newTestMemory pins the clock so every book shares one createdAt.
func newTestMemory() *Memory {
	m := NewMemory()
	t0 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return t0 }
	return m
}

func testBook(slug, title string) *models.Book {
	return &models.Book{
		Slug:     slug,
		Title:    title,
		Category: models.CategoryOther,
		Status:   models.StatusDraft,
		IsActive: true,
		Version:  1,
		Chapters: []models.Chapter{{
			ChapterNumber: 1,
			Title:         "One",
			Verses: []models.Verse{{
				VerseNumber: "1",
				Translation: "text",
				Purport:     "long commentary",
				Synonyms:    []models.Synonym{{Word: "a", Meaning: "b"}},
			}},
		}},
	}
}

func TestMemory_InsertRejectsDuplicateKeys(t *testing.T) {
	ctx := context.Background()
	m := newTestMemory()

	_, err := m.InsertBook(ctx, testBook("gita", "Gita"))
	require.NoError(t, err)

	_, err = m.InsertBook(ctx, testBook("gita", "Other title"))
	assert.True(t, apperrors.Is(err, apperrors.ErrConflict))

	_, err = m.InsertBook(ctx, testBook("other-slug", "Gita"))
	assert.True(t, apperrors.Is(err, apperrors.ErrConflict))
}

func TestMemory_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	m := newTestMemory()
	id, err := m.InsertBook(ctx, testBook("gita", "Gita"))
	require.NoError(t, err)

	got, err := m.BookByID(ctx, id)
	require.NoError(t, err)
	got.Chapters[0].Title = "mutated"

	again, err := m.BookByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "One", again.Chapters[0].Title)
}

func TestMemory_ReplaceBookChecksVersion(t *testing.T) {
	ctx := context.Background()
	m := newTestMemory()
	id, err := m.InsertBook(ctx, testBook("gita", "Gita"))
	require.NoError(t, err)

	b, err := m.BookByID(ctx, id)
	require.NoError(t, err)
	b.Version = 2
	require.NoError(t, m.ReplaceBook(ctx, b, 1))

	// A writer that read version 1 has lost the race.
	stale := *b
	stale.Title = "Stale"
	stale.Version = 2
	err = m.ReplaceBook(ctx, &stale, 1)
	assert.True(t, apperrors.Is(err, apperrors.ErrConflict))

	missing := testBook("x", "X")
	missing.ID = primitive.NewObjectID()
	err = m.ReplaceBook(ctx, missing, 1)
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))
}

func TestMemory_FindBooks_ProjectionAndPaging(t *testing.T) {
	ctx := context.Background()
	m := newTestMemory()
	for _, s := range []string{"c", "a", "b"} {
		_, err := m.InsertBook(ctx, testBook(s, "Title "+s))
		require.NoError(t, err)
	}

	books, total, err := m.FindBooks(ctx, BookQuery{SortBy: SortTitle, Skip: 1, Limit: 1})
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	require.Len(t, books, 1)
	assert.Equal(t, "b", books[0].Slug)

	v := books[0].Chapters[0].Verses[0]
	assert.Empty(t, v.Purport)
	assert.Nil(t, v.Synonyms)
	assert.Equal(t, "text", v.Translation)

	for _, skip := range []int{10, math.MaxInt} {
		books, total, err = m.FindBooks(ctx, BookQuery{Skip: skip, Limit: 100})
		require.NoError(t, err)
		assert.EqualValues(t, 3, total)
		assert.NotNil(t, books)
		assert.Empty(t, books)
	}
}

func TestMemory_FindBooks_TiesKeepInsertionOrder(t *testing.T) {
	ctx := context.Background()
	m := newTestMemory()
	for _, s := range []string{"first", "second", "third"} {
		_, err := m.InsertBook(ctx, testBook(s, s))
		require.NoError(t, err)
	}

	for _, desc := range []bool{true, false} {
		books, _, err := m.FindBooks(ctx, BookQuery{SortBy: SortCreatedAt, SortDesc: desc})
		require.NoError(t, err)
		require.Len(t, books, 3)
		assert.Equal(t, []string{"first", "second", "third"},
			[]string{books[0].Slug, books[1].Slug, books[2].Slug})
	}
}

func TestMemory_SetActiveAndDelete(t *testing.T) {
	ctx := context.Background()
	m := newTestMemory()
	id, err := m.InsertBook(ctx, testBook("gita", "Gita"))
	require.NoError(t, err)

	require.NoError(t, m.SetBookActive(ctx, id, false, time.Now()))
	_, err = m.BookBySlug(ctx, "gita", true)
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))
	_, err = m.BookBySlug(ctx, "gita", false)
	assert.NoError(t, err)

	taken, err := m.SlugTaken(ctx, "gita", primitive.NilObjectID)
	require.NoError(t, err)
	assert.True(t, taken)
	taken, err = m.SlugTaken(ctx, "gita", id)
	require.NoError(t, err)
	assert.False(t, taken)

	removed, err := m.DeleteBook(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "gita", removed.Slug)
	_, err = m.BookByID(ctx, id)
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))
	_, err = m.DeleteBook(ctx, id)
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))
}

func TestMemory_SearchAndStatistics(t *testing.T) {
	ctx := context.Background()
	m := newTestMemory()

	a := testBook("a", "A")
	a.Category = models.CategoryKrishnaBook
	a.Status = models.StatusPublished
	a.RecountCounters()
	idA, err := m.InsertBook(ctx, a)
	require.NoError(t, err)

	b := testBook("b", "B")
	b.RecountCounters()
	idB, err := m.InsertBook(ctx, b)
	require.NoError(t, err)
	require.NoError(t, m.SetBookActive(ctx, idB, false, time.Now()))

	require.NoError(t, m.IncrementBookCounter(ctx, idA, CounterViews))
	require.NoError(t, m.IncrementBookCounter(ctx, idA, CounterDownloads))

	hits, err := m.SearchBooks(ctx, "COMMENTARY")
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "a", hits[0].Slug)

	stats, err := m.BookStatistics(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.StatisticsOverview{
		TotalBooks:     2,
		ActiveBooks:    1,
		PublishedBooks: 1,
		TotalChapters:  2,
		TotalVerses:    2,
		TotalViews:     1,
		TotalDownloads: 1,
	}, stats.Overview)
	assert.Equal(t, []models.CategoryCount{
		{Category: models.CategoryKrishnaBook, Count: 1},
		{Category: models.CategoryOther, Count: 1},
	}, stats.ByCategory)
}

func TestMemory_Users(t *testing.T) {
	ctx := context.Background()
	m := newTestMemory()

	u, err := m.UserByEmail(ctx, "nobody@example.com")
	require.NoError(t, err)
	assert.Nil(t, u)

	id, err := m.CreateUser(ctx, &models.User{Email: "a@example.com", Role: models.RoleAdmin})
	require.NoError(t, err)
	_, err = m.CreateUser(ctx, &models.User{Email: " A@Example.com"})
	assert.True(t, apperrors.Is(err, apperrors.ErrConflict))

	byEmail, err := m.UserByEmail(ctx, "A@EXAMPLE.COM")
	require.NoError(t, err)
	require.NotNil(t, byEmail)
	assert.Equal(t, id, byEmail.ID)

	require.NoError(t, m.UpdateUser(ctx, id, UserUpdate{Password: strPtr("hash")}))
	all, err := m.ListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Empty(t, all[0].Password)

	role := models.RoleEditor
	require.NoError(t, m.UpdateUser(ctx, id, UserUpdate{Role: &role}))
	got, err := m.UserByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.RoleEditor, got.Role)

	admins, err := m.AdminsCount(ctx)
	require.NoError(t, err)
	assert.Zero(t, admins)

	require.NoError(t, m.DeleteUser(ctx, id))
	n, err := m.UsersCount(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func strPtr(s string) *string { return &s }

func TestUserUpdateSetDoc(t *testing.T) {
	active := false
	doc := UserUpdate{Name: strPtr("Arjuna"), Role: strPtr(models.RoleViewer), IsActive: &active}.setDoc()
	assert.Equal(t, bson.M{"name": "Arjuna", "role": models.RoleViewer, "isActive": false}, doc)
	assert.Empty(t, UserUpdate{}.setDoc())
}
