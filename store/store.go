package store

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/kevinaaaquil/scripture-catalog/models"
)

// BookRepository persists whole Book documents, nested chapters and verses included.
// Lookups that miss return an apperrors NOT_FOUND error; unique-key violations
// return CONFLICT.
type BookRepository interface {
	InsertBook(ctx context.Context, book *models.Book) (primitive.ObjectID, error)
	// FindBooks returns one page of matches plus the total match count.
	// Returned books have verse purports and synonyms stripped.
	FindBooks(ctx context.Context, q BookQuery) ([]models.Book, int64, error)
	BookByID(ctx context.Context, id primitive.ObjectID) (*models.Book, error)
	BookBySlug(ctx context.Context, slug string, activeOnly bool) (*models.Book, error)
	// SlugTaken reports whether a book other than exclude holds slug.
	SlugTaken(ctx context.Context, slug string, exclude primitive.ObjectID) (bool, error)
	// ReplaceBook overwrites the stored document only if its version still equals
	// expectedVersion; otherwise it returns CONFLICT.
	ReplaceBook(ctx context.Context, book *models.Book, expectedVersion int) error
	SetBookActive(ctx context.Context, id primitive.ObjectID, active bool, now time.Time) error
	DeleteBook(ctx context.Context, id primitive.ObjectID) (*models.Book, error)
	IncrementBookCounter(ctx context.Context, id primitive.ObjectID, field CounterField) error
	// SearchBooks returns every active book matching term anywhere in its
	// title, description, author, chapter titles or verse texts, in storage order.
	SearchBooks(ctx context.Context, term string) ([]models.Book, error)
	BookStatistics(ctx context.Context) (*models.Statistics, error)
}

// UserRepository persists user accounts. Lookups that miss return (nil, nil).
type UserRepository interface {
	UsersCount(ctx context.Context) (int64, error)
	AdminsCount(ctx context.Context) (int64, error)
	UserByEmail(ctx context.Context, email string) (*models.User, error)
	UserByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	CreateUser(ctx context.Context, user *models.User) (primitive.ObjectID, error)
	ListUsers(ctx context.Context) ([]models.User, error)
	UpdateUser(ctx context.Context, id primitive.ObjectID, upd UserUpdate) error
	DeleteUser(ctx context.Context, id primitive.ObjectID) error
}

// CounterField names an engagement counter that is bumped with $inc.
type CounterField string

const (
	CounterViews     CounterField = "viewCount"
	CounterDownloads CounterField = "downloadCount"
)

// UserUpdate holds the fields of a partial user update; nil means unchanged.
type UserUpdate struct {
	Name     *string
	Email    *string
	Phone    *string
	Address  *string
	Password *string // already hashed
	Role     *string
	IsActive *bool
}

// Sort keys accepted by BookQuery.SortBy.
const (
	SortTitle     = "title"
	SortCreatedAt = "createdAt"
	SortUpdatedAt = "updatedAt"
	SortViewCount = "viewCount"
	SortAuthor    = "author"
)

// BookQuery describes a book listing. Every set dimension must match (AND);
// within Search and Tags any alternative may match (OR).
type BookQuery struct {
	Search   string // substring of title, description, author or any tag
	Category models.BookCategory
	Status   models.BookStatus
	Author   string   // substring
	Tags     []string // any of, exact
	IsActive *bool
	Featured *bool
	Now      time.Time // reference time for Featured
	SortBy   string
	SortDesc bool
	Skip     int
	Limit    int
}
