package store

import (
	"cmp"
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/kevinaaaquil/scripture-catalog/apperrors"
	"github.com/kevinaaaquil/scripture-catalog/models"
)

// Memory is an in-process BookRepository and UserRepository. It keeps
// documents in insertion order and hands out deep copies, so callers see the
// same isolation they get from Mongo. Used by tests and STORAGE_DRIVER=memory.
type Memory struct {
	mu    sync.RWMutex
	books []models.Book
	users []models.User
	now   func() time.Time
}

var (
	_ BookRepository = (*Memory)(nil)
	_ UserRepository = (*Memory)(nil)
)

func NewMemory() *Memory {
	return &Memory{now: func() time.Time { return time.Now().UTC() }}
}

// cloneBook deep-copies through BSON, which also applies the same time
// truncation and omitempty rules a Mongo round trip would.
func cloneBook(b *models.Book) (*models.Book, error) {
	raw, err := bson.Marshal(b)
	if err != nil {
		return nil, apperrors.Internal("encode book", err)
	}
	var out models.Book
	if err := bson.Unmarshal(raw, &out); err != nil {
		return nil, apperrors.Internal("decode book", err)
	}
	return &out, nil
}

func (m *Memory) indexByID(id primitive.ObjectID) int {
	for i := range m.books {
		if m.books[i].ID == id {
			return i
		}
	}
	return -1
}

// uniqueViolation checks the slug and title unique keys against every book but skip.
func (m *Memory) uniqueViolation(b *models.Book, skip primitive.ObjectID) error {
	for i := range m.books {
		other := &m.books[i]
		if other.ID == skip {
			continue
		}
		if other.Slug == b.Slug || other.Title == b.Title {
			return apperrors.Conflict("book already exists")
		}
	}
	return nil
}

func (m *Memory) InsertBook(_ context.Context, book *models.Book) (primitive.ObjectID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.uniqueViolation(book, primitive.NilObjectID); err != nil {
		return primitive.NilObjectID, err
	}
	now := m.now()
	book.ID = primitive.NewObjectID()
	book.CreatedAt = now
	book.UpdatedAt = now
	stored, err := cloneBook(book)
	if err != nil {
		return primitive.NilObjectID, err
	}
	m.books = append(m.books, *stored)
	return book.ID, nil
}

func (m *Memory) FindBooks(_ context.Context, q BookQuery) ([]models.Book, int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var matched []*models.Book
	for i := range m.books {
		if q.Matches(&m.books[i]) {
			matched = append(matched, &m.books[i])
		}
	}
	sortBooks(matched, q)

	total := int64(len(matched))
	start := min(max(q.Skip, 0), len(matched))
	end := len(matched)
	if q.Limit > 0 && q.Limit < end-start {
		end = start + q.Limit
	}

	out := make([]models.Book, 0, end-start)
	for _, b := range matched[start:end] {
		c, err := cloneBook(b)
		if err != nil {
			return nil, 0, err
		}
		c.StripLargeVerseFields()
		out = append(out, *c)
	}
	return out, total, nil
}

// sortBooks orders like bookSort: stable, so ties keep insertion order.
func sortBooks(books []*models.Book, q BookQuery) {
	compare := func(a, b *models.Book) int {
		switch q.SortBy {
		case SortTitle:
			return strings.Compare(a.Title, b.Title)
		case SortAuthor:
			return strings.Compare(a.Author, b.Author)
		case SortUpdatedAt:
			return a.UpdatedAt.Compare(b.UpdatedAt)
		case SortViewCount:
			return cmp.Compare(a.ViewCount, b.ViewCount)
		default:
			return a.CreatedAt.Compare(b.CreatedAt)
		}
	}
	sort.SliceStable(books, func(i, j int) bool {
		if q.SortDesc {
			return compare(books[i], books[j]) > 0
		}
		return compare(books[i], books[j]) < 0
	})
}

func (m *Memory) BookByID(_ context.Context, id primitive.ObjectID) (*models.Book, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	i := m.indexByID(id)
	if i < 0 {
		return nil, apperrors.NotFound("book not found")
	}
	return cloneBook(&m.books[i])
}

func (m *Memory) BookBySlug(_ context.Context, slug string, activeOnly bool) (*models.Book, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for i := range m.books {
		b := &m.books[i]
		if b.Slug == slug && (!activeOnly || b.IsActive) {
			return cloneBook(b)
		}
	}
	return nil, apperrors.NotFound("book not found")
}

func (m *Memory) SlugTaken(_ context.Context, slug string, exclude primitive.ObjectID) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for i := range m.books {
		if m.books[i].Slug == slug && m.books[i].ID != exclude {
			return true, nil
		}
	}
	return false, nil
}

func (m *Memory) ReplaceBook(_ context.Context, book *models.Book, expectedVersion int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	i := m.indexByID(book.ID)
	if i < 0 {
		return apperrors.NotFound("book with ID %s not found", book.ID.Hex())
	}
	if m.books[i].Version != expectedVersion {
		return ErrConcurrentUpdate
	}
	if err := m.uniqueViolation(book, book.ID); err != nil {
		return err
	}
	stored, err := cloneBook(book)
	if err != nil {
		return err
	}
	m.books[i] = *stored
	return nil
}

func (m *Memory) SetBookActive(_ context.Context, id primitive.ObjectID, active bool, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	i := m.indexByID(id)
	if i < 0 {
		return apperrors.NotFound("book with ID %s not found", id.Hex())
	}
	m.books[i].IsActive = active
	m.books[i].UpdatedAt = now
	m.books[i].Version++
	return nil
}

func (m *Memory) DeleteBook(_ context.Context, id primitive.ObjectID) (*models.Book, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	i := m.indexByID(id)
	if i < 0 {
		return nil, apperrors.NotFound("book with ID %s not found", id.Hex())
	}
	removed := m.books[i]
	m.books = append(m.books[:i], m.books[i+1:]...)
	return &removed, nil
}

func (m *Memory) IncrementBookCounter(_ context.Context, id primitive.ObjectID, field CounterField) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	i := m.indexByID(id)
	if i < 0 {
		return apperrors.NotFound("book with ID %s not found", id.Hex())
	}
	switch field {
	case CounterViews:
		m.books[i].ViewCount++
	case CounterDownloads:
		m.books[i].DownloadCount++
	default:
		return apperrors.Internal("unknown counter", nil)
	}
	return nil
}

func (m *Memory) SearchBooks(_ context.Context, term string) ([]models.Book, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := []models.Book{}
	for i := range m.books {
		b := &m.books[i]
		if !b.IsActive || !MatchesSearch(b, term) {
			continue
		}
		c, err := cloneBook(b)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, nil
}

func (m *Memory) BookStatistics(_ context.Context) (*models.Statistics, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := &models.Statistics{ByCategory: []models.CategoryCount{}}
	byCategory := map[models.BookCategory]int64{}
	for i := range m.books {
		b := &m.books[i]
		o := &stats.Overview
		o.TotalBooks++
		o.TotalChapters += int64(b.ChapterCount)
		o.TotalVerses += int64(b.TotalVerses)
		o.TotalViews += b.ViewCount
		o.TotalDownloads += b.DownloadCount
		if b.IsActive {
			o.ActiveBooks++
		}
		if b.Status == models.StatusPublished {
			o.PublishedBooks++
		}
		byCategory[b.Category]++
	}
	for c, n := range byCategory {
		stats.ByCategory = append(stats.ByCategory, models.CategoryCount{Category: c, Count: n})
	}
	sort.Slice(stats.ByCategory, func(i, j int) bool {
		return stats.ByCategory[i].Category < stats.ByCategory[j].Category
	})
	return stats, nil
}

func (m *Memory) UsersCount(_ context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.users)), nil
}

func (m *Memory) AdminsCount(_ context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var n int64
	for _, u := range m.users {
		if u.Role == models.RoleAdmin {
			n++
		}
	}
	return n, nil
}

func (m *Memory) UserByEmail(_ context.Context, email string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, nil
}

func (m *Memory) UserByID(_ context.Context, id primitive.ObjectID) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.users {
		if u.ID == id {
			return &u, nil
		}
	}
	return nil, nil
}

func (m *Memory) CreateUser(_ context.Context, user *models.User) (primitive.ObjectID, error) {
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == user.Email {
			return primitive.NilObjectID, apperrors.Conflict("user already exists")
		}
	}
	user.ID = primitive.NewObjectID()
	m.users = append(m.users, *user)
	return user.ID, nil
}

func (m *Memory) ListUsers(_ context.Context) ([]models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.User, len(m.users))
	copy(out, m.users)
	for i := range out {
		out[i].Password = ""
	}
	return out, nil
}

func (m *Memory) UpdateUser(_ context.Context, id primitive.ObjectID, upd UserUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.users {
		u := &m.users[i]
		if u.ID != id {
			continue
		}
		if upd.Name != nil {
			u.Name = *upd.Name
		}
		if upd.Email != nil {
			u.Email = *upd.Email
		}
		if upd.Phone != nil {
			u.Phone = *upd.Phone
		}
		if upd.Address != nil {
			u.Address = *upd.Address
		}
		if upd.Password != nil {
			u.Password = *upd.Password
		}
		if upd.Role != nil {
			u.Role = *upd.Role
		}
		if upd.IsActive != nil {
			u.IsActive = *upd.IsActive
		}
		return nil
	}
	return nil
}

func (m *Memory) DeleteUser(_ context.Context, id primitive.ObjectID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.users {
		if m.users[i].ID == id {
			m.users = append(m.users[:i], m.users[i+1:]...)
			return nil
		}
	}
	return nil
}
