package store

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// DB is the MongoDB-backed implementation of BookRepository and UserRepository.
type DB struct {
	Client   *mongo.Client
	Database *mongo.Database
	log      logrus.FieldLogger
}

var (
	_ BookRepository = (*DB)(nil)
	_ UserRepository = (*DB)(nil)
)

func NewMongoDB(ctx context.Context, uri, dbName string, log logrus.FieldLogger) (*DB, error) {
	opts := options.Client().ApplyURI(uri).
		SetMaxPoolSize(50).
		SetMinPoolSize(5).
		SetConnectTimeout(5 * time.Second).
		SetSocketTimeout(10 * time.Second)

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	client, err := mongo.Connect(connectCtx, opts)
	if err != nil {
		return nil, err
	}

	pingCtx, cancelPing := context.WithTimeout(ctx, 2*time.Second)
	defer cancelPing()
	if err := client.Ping(pingCtx, nil); err != nil {
		return nil, err
	}
	log.WithField("database", dbName).Info("connected to MongoDB")
	return &DB{
		Client:   client,
		Database: client.Database(dbName),
		log:      log,
	}, nil
}

func (db *DB) Users() *mongo.Collection {
	return db.Database.Collection("users")
}

func (db *DB) Books() *mongo.Collection {
	return db.Database.Collection("books")
}

// EnsureIndexes creates the unique keys the catalog relies on plus the indexes
// used by list filters and sorts.
func (db *DB) EnsureIndexes(ctx context.Context) error {
	books := []mongo.IndexModel{
		{Keys: bson.D{{Key: "slug", Value: 1}}, Options: options.Index().SetName("uniq_slug").SetUnique(true)},
		{Keys: bson.D{{Key: "title", Value: 1}}, Options: options.Index().SetName("uniq_title").SetUnique(true)},
		{Keys: bson.D{{Key: "category", Value: 1}}, Options: options.Index().SetName("idx_category")},
		{Keys: bson.D{{Key: "status", Value: 1}}, Options: options.Index().SetName("idx_status")},
		{Keys: bson.D{{Key: "tags", Value: 1}}, Options: options.Index().SetName("idx_tags")},
		{Keys: bson.D{{Key: "isActive", Value: 1}, {Key: "createdAt", Value: -1}}, Options: options.Index().SetName("idx_active_created")},
		{Keys: bson.D{{Key: "viewCount", Value: -1}}, Options: options.Index().SetName("idx_views")},
	}
	if _, err := db.Books().Indexes().CreateMany(ctx, books); err != nil {
		return err
	}

	users := mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetName("uniq_email").SetUnique(true),
	}
	_, err := db.Users().Indexes().CreateOne(ctx, users)
	return err
}

func (db *DB) Disconnect(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return db.Client.Disconnect(ctx)
}
