package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/crypto/bcrypt"

	"github.com/kevinaaaquil/scripture-catalog/apperrors"
	"github.com/kevinaaaquil/scripture-catalog/middleware"
	"github.com/kevinaaaquil/scripture-catalog/models"
	"github.com/kevinaaaquil/scripture-catalog/service"
	"github.com/kevinaaaquil/scripture-catalog/store"
	"github.com/kevinaaaquil/scripture-catalog/validation"
)

const (
	testSecret   = "handler-test-secret"
	defaultEmail = "root@example.com"
	defaultPass  = "bootstrap-pass"
)

type storedObject struct {
	body        []byte
	contentType string
}

// fakeCovers is an in-memory CoverStorage.
type fakeCovers struct {
	mu      sync.Mutex
	objects map[string]storedObject
	deleted []string
}

func newFakeCovers() *fakeCovers {
	return &fakeCovers{objects: map[string]storedObject{}}
}

func (f *fakeCovers) Upload(_ context.Context, filename string, body io.Reader, contentType string) (string, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	key := service.CoverKey(filename)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[key] = storedObject{body: data, contentType: contentType}
	return key, nil
}

func (f *fakeCovers) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, key)
	f.deleted = append(f.deleted, key)
	return nil
}

func (f *fakeCovers) GetObject(_ context.Context, key string) (io.ReadCloser, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	obj, ok := f.objects[key]
	if !ok {
		return nil, "", fmt.Errorf("no such key %s", key)
	}
	return io.NopCloser(bytes.NewReader(obj.body)), obj.contentType, nil
}

type fakeMetadata struct {
	meta *models.BookMetadata
	err  error
	isbn string
}

func (f *fakeMetadata) LookupISBN(_ context.Context, isbn string) (*models.BookMetadata, error) {
	f.isbn = isbn
	if isbn == "" {
		return nil, apperrors.InvalidInput("isbn is required")
	}
	return f.meta, f.err
}

type testEnv struct {
	t      *testing.T
	repo   *store.Memory
	covers *fakeCovers
	meta   *fakeMetadata
	books  *BooksHandler
	router http.Handler
}

const testMaxBody = 64 << 10

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	log, _ := test.NewNullLogger()
	repo := store.NewMemory()
	v := validation.New()
	env := &testEnv{
		t:      t,
		repo:   repo,
		covers: newFakeCovers(),
		meta:   &fakeMetadata{},
	}
	env.books = &BooksHandler{
		Catalog:       service.NewCatalog(repo, v, log),
		Covers:        env.covers,
		Metadata:      env.meta,
		MaxCoverBytes: 1 << 20,
		Log:           log,
	}
	env.router = NewRouter(RouterConfig{
		Books: env.books,
		Auth: &AuthHandler{
			Users:        repo,
			Validate:     v,
			JWTSecret:    testSecret,
			DefaultEmail: defaultEmail,
			DefaultPass:  defaultPass,
			Log:          log,
		},
		Users:          &UsersHandler{Users: repo, Validate: v, Log: log},
		JWTSecret:      testSecret,
		LoginPerMinute: 1000,
		MaxBodyBytes:   testMaxBody,
		Log:            log,
	})
	return env
}

func tokenFor(t *testing.T, id primitive.ObjectID, role string) string {
	t.Helper()
	claims := &middleware.Claims{
		UserID: id.Hex(),
		Email:  role + "@example.com",
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return s
}

func (e *testEnv) token(role string) string {
	return tokenFor(e.t, primitive.NewObjectID(), role)
}

// seedUser stores an account directly and returns it.
func (e *testEnv) seedUser(email, password, role string, active bool) *models.User {
	e.t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(e.t, err)
	u := &models.User{Email: email, Password: string(hash), Role: role, IsActive: active, CreatedAt: time.Now()}
	u.ID, err = e.repo.CreateUser(context.Background(), u)
	require.NoError(e.t, err)
	return u
}

// do sends body as JSON unless it is already a string.
func (e *testEnv) do(method, path string, body any, token string) *httptest.ResponseRecorder {
	e.t.Helper()
	var r io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		r = bytes.NewBufferString(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(e.t, err)
		r = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	body := decodeBody[map[string]any](t, rec)
	code, _ := body["code"].(string)
	return code
}

func gitaInput() service.BookInput {
	allow := true
	return service.BookInput{
		Slug:          "bhagavad-gita",
		Title:         "Bhagavad-gita As It Is",
		Description:   "Dialogue on the battlefield",
		Author:        "A. C. Bhaktivedanta Swami",
		Category:      models.CategoryBhagavadGita,
		Status:        models.StatusPublished,
		Tags:          []string{"gita"},
		AllowDownload: &allow,
		Chapters: []service.ChapterInput{
			{
				ChapterNumber: 1,
				Title:         "Observing the Armies",
				Verses: []service.VerseInput{
					{VerseNumber: "1", Translation: "Dhrtarastra said", Purport: "Long purport"},
					{VerseNumber: "2", Translation: "Sanjaya said"},
				},
			},
			{ChapterNumber: 2, Title: "Contents of the Gita Summarized"},
		},
	}
}

// createBook posts in as an editor and returns the stored book.
func (e *testEnv) createBook(in service.BookInput) models.Book {
	e.t.Helper()
	rec := e.do(http.MethodPost, "/api/books", in, e.token(models.RoleEditor))
	require.Equal(e.t, http.StatusCreated, rec.Code, rec.Body.String())
	return decodeBody[models.Book](e.t, rec)
}
