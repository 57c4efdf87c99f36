package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/kevinaaaquil/scripture-catalog/config"
	"github.com/kevinaaaquil/scripture-catalog/handlers"
	"github.com/kevinaaaquil/scripture-catalog/logger"
	"github.com/kevinaaaquil/scripture-catalog/service"
	"github.com/kevinaaaquil/scripture-catalog/store"
	"github.com/kevinaaaquil/scripture-catalog/validation"
)

type repositories interface {
	store.BookRepository
	store.UserRepository
}

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("config")
	}
	log := logger.New(logger.Options{Level: cfg.LogLevel, Format: cfg.LogFormat, File: cfg.LogFile})
	if err := cfg.Validate(); err != nil {
		log.WithError(err).Fatal("invalid configuration")
	}

	ctx := context.Background()

	var repo repositories
	switch cfg.StorageDriver {
	case config.DriverMemory:
		log.Warn("using in-memory storage; data is lost on restart")
		repo = store.NewMemory()
	default:
		db, err := store.NewMongoDB(ctx, cfg.MongoURI, cfg.DBName, log)
		if err != nil {
			log.WithError(err).Fatal("mongodb")
		}
		defer func() {
			if err := db.Disconnect(context.Background()); err != nil {
				log.WithError(err).Warn("mongodb disconnect")
			}
		}()
		if err := db.EnsureIndexes(ctx); err != nil {
			log.WithError(err).Fatal("mongodb indexes")
		}
		repo = db
	}

	books := &handlers.BooksHandler{
		Metadata:      service.NewMetadataClient(cfg.GoogleBooksURL),
		MaxCoverBytes: cfg.MaxUploadBytes(),
		Log:           log,
	}
	if cfg.S3Bucket != "" {
		s3, err := service.NewS3Service(ctx, cfg.S3Bucket, cfg.S3Region, cfg.S3AccessKeyID, cfg.S3SecretKey)
		if err != nil {
			log.WithError(err).Fatal("s3")
		}
		books.Covers = s3
	} else {
		log.Warn("AWS_S3_BUCKET not set; cover uploads are disabled")
	}

	v := validation.New()
	books.Catalog = service.NewCatalog(repo, v, log)

	router := handlers.NewRouter(handlers.RouterConfig{
		Books: books,
		Auth: &handlers.AuthHandler{
			Users:        repo,
			Validate:     v,
			JWTSecret:    cfg.JWTSecret,
			DefaultEmail: cfg.AuthEmail,
			DefaultPass:  cfg.AuthPass,
			Log:          log,
		},
		Users:          &handlers.UsersHandler{Users: repo, Validate: v, Log: log},
		JWTSecret:      cfg.JWTSecret,
		CORSOrigins:    cfg.CORSOrigins,
		LoginPerMinute: cfg.LoginPerMinute,
		MaxBodyBytes:   cfg.MaxBodyBytes(),
		Log:            log,
	})

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.WithFields(logrus.Fields{"port": cfg.Port, "storage": cfg.StorageDriver}).Info("server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("shutdown")
	}
}
