package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"github.com/kevinaaaquil/scripture-catalog/middleware"
	"github.com/kevinaaaquil/scripture-catalog/models"
)

// RouterConfig carries everything NewRouter wires together.
type RouterConfig struct {
	Books       *BooksHandler
	Auth        *AuthHandler
	Users       *UsersHandler
	JWTSecret   string
	CORSOrigins []string
	// LoginPerMinute caps login attempts per client IP.
	LoginPerMinute int
	// MaxBodyBytes caps JSON request bodies; zero means defaultMaxBodyBytes.
	MaxBodyBytes int64
	Log          logrus.FieldLogger
}

const defaultMaxBodyBytes = 1 << 20

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLogger(cfg.Log))
	r.Use(chimw.Recoverer)
	r.Use(middleware.CORS(cfg.CORSOrigins))

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, MessageResponse{Message: "welcome to the scripture catalog."})
	})
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	authenticate := middleware.Auth(cfg.JWTSecret)
	editors := middleware.RequireRole(models.RoleAdmin, models.RoleEditor)
	admins := middleware.RequireRole(models.RoleAdmin)
	books := cfg.Books
	maxBody := cfg.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = defaultMaxBodyBytes
	}
	limitBody := chimw.RequestSize(maxBody)

	r.Route("/api", func(r chi.Router) {
		r.With(middleware.NewIPRateLimiter(cfg.LoginPerMinute).Handler, limitBody).Post("/auth/login", cfg.Auth.Login)
		r.With(authenticate).Get("/auth/me", cfg.Auth.Me)

		r.Route("/books", func(r chi.Router) {
			r.Get("/", books.List)
			r.Get("/search", books.Search)
			r.Get("/statistics", books.Statistics)
			r.Get("/id/{id}", books.GetByID)
			r.Get("/id/{id}/cover", books.Cover)
			r.Get("/{slug}", books.GetBySlug)
			r.Get("/{slug}/export", books.Export)
			r.Get("/{slug}/chapters", books.ListChapters)
			r.Get("/{slug}/chapters/{chapterNumber}", books.GetChapter)
			r.Get("/{slug}/chapters/{chapterNumber}/verses", books.ListVerses)
			r.Get("/{slug}/chapters/{chapterNumber}/verses/{verseNumber}", books.GetVerse)

			r.Group(func(r chi.Router) {
				r.Use(authenticate, editors)
				r.Delete("/id/{id}", books.Deactivate)
				r.Post("/id/{id}/restore", books.Restore)
				// Covers carry their own multipart limit.
				r.Post("/id/{id}/cover", books.UploadCover)

				r.Group(func(r chi.Router) {
					r.Use(limitBody)
					r.Post("/", books.Create)
					r.Patch("/id/{id}", books.Update)
					r.Post("/id/{id}/chapters", books.AddChapter)
					r.Post("/id/{id}/chapters/{chapterNumber}/verses", books.AddVerse)
					r.Post("/id/{id}/metadata", books.RefreshMetadata)
				})
			})
			r.With(authenticate, admins).Delete("/id/{id}/permanent", books.HardDelete)
		})

		r.Route("/users", func(r chi.Router) {
			r.Use(authenticate, admins, limitBody)
			r.Get("/", cfg.Users.List)
			r.Post("/", cfg.Users.Create)
			r.Patch("/{id}", cfg.Users.Update)
			r.Delete("/{id}", cfg.Users.Delete)
		})
	})
	return r
}
