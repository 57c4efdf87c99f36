package store

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/kevinaaaquil/scripture-catalog/apperrors"
	"github.com/kevinaaaquil/scripture-catalog/models"
)

func (db *DB) InsertBook(ctx context.Context, book *models.Book) (primitive.ObjectID, error) {
	now := time.Now().UTC()
	book.CreatedAt = now
	book.UpdatedAt = now
	res, err := db.Books().InsertOne(ctx, book, options.InsertOne())
	if err != nil {
		return primitive.NilObjectID, convertMongoError(err, "book")
	}
	return res.InsertedID.(primitive.ObjectID), nil
}

func (db *DB) FindBooks(ctx context.Context, q BookQuery) ([]models.Book, int64, error) {
	filter := bookFilter(q)
	total, err := db.Books().CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, convertMongoError(err, "book")
	}
	// Past the last page there is nothing to fetch.
	if int64(q.Skip) >= total {
		return []models.Book{}, total, nil
	}

	opts := options.Find().
		SetSort(bookSort(q)).
		SetProjection(listProjection).
		SetSkip(int64(q.Skip)).
		SetLimit(int64(q.Limit))
	cur, err := db.Books().Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, convertMongoError(err, "book")
	}
	defer cur.Close(ctx)
	books := []models.Book{}
	if err := cur.All(ctx, &books); err != nil {
		return nil, 0, convertMongoError(err, "book")
	}
	return books, total, nil
}

func (db *DB) BookByID(ctx context.Context, id primitive.ObjectID) (*models.Book, error) {
	var book models.Book
	err := db.Books().FindOne(ctx, bson.M{"_id": id}).Decode(&book)
	if err != nil {
		return nil, convertMongoError(err, "book")
	}
	return &book, nil
}

func (db *DB) BookBySlug(ctx context.Context, slug string, activeOnly bool) (*models.Book, error) {
	filter := bson.M{"slug": slug}
	if activeOnly {
		filter["isActive"] = true
	}
	var book models.Book
	err := db.Books().FindOne(ctx, filter).Decode(&book)
	if err != nil {
		return nil, convertMongoError(err, "book")
	}
	return &book, nil
}

func (db *DB) SlugTaken(ctx context.Context, slug string, exclude primitive.ObjectID) (bool, error) {
	filter := bson.M{"slug": slug}
	if !exclude.IsZero() {
		filter["_id"] = bson.M{"$ne": exclude}
	}
	n, err := db.Books().CountDocuments(ctx, filter, options.Count().SetLimit(1))
	if err != nil {
		return false, convertMongoError(err, "book")
	}
	return n > 0, nil
}

// ReplaceBook writes the whole document, guarded by the version that was read.
// A miss is either a missing book or a lost race; one extra count tells them apart.
func (db *DB) ReplaceBook(ctx context.Context, book *models.Book, expectedVersion int) error {
	res, err := db.Books().ReplaceOne(ctx, bson.M{"_id": book.ID, "version": expectedVersion}, book)
	if err != nil {
		return convertMongoError(err, "book")
	}
	if res.MatchedCount > 0 {
		return nil
	}
	n, err := db.Books().CountDocuments(ctx, bson.M{"_id": book.ID})
	if err != nil {
		return convertMongoError(err, "book")
	}
	if n == 0 {
		return apperrors.NotFound("book with ID %s not found", book.ID.Hex())
	}
	return ErrConcurrentUpdate
}

func (db *DB) SetBookActive(ctx context.Context, id primitive.ObjectID, active bool, now time.Time) error {
	res, err := db.Books().UpdateOne(ctx, bson.M{"_id": id}, bson.M{
		"$set": bson.M{"isActive": active, "updatedAt": now},
		"$inc": bson.M{"version": 1},
	})
	if err != nil {
		return convertMongoError(err, "book")
	}
	if res.MatchedCount == 0 {
		return apperrors.NotFound("book with ID %s not found", id.Hex())
	}
	return nil
}

// DeleteBook removes the book and returns what was removed so the caller can
// clean up objects it referenced.
func (db *DB) DeleteBook(ctx context.Context, id primitive.ObjectID) (*models.Book, error) {
	var book models.Book
	err := db.Books().FindOneAndDelete(ctx, bson.M{"_id": id}).Decode(&book)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, apperrors.NotFound("book with ID %s not found", id.Hex())
		}
		return nil, convertMongoError(err, "book")
	}
	return &book, nil
}

func (db *DB) IncrementBookCounter(ctx context.Context, id primitive.ObjectID, field CounterField) error {
	res, err := db.Books().UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$inc": bson.M{string(field): 1}})
	if err != nil {
		return convertMongoError(err, "book")
	}
	if res.MatchedCount == 0 {
		return apperrors.NotFound("book with ID %s not found", id.Hex())
	}
	return nil
}

func (db *DB) SearchBooks(ctx context.Context, term string) ([]models.Book, error) {
	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: 1}})
	cur, err := db.Books().Find(ctx, searchFilter(term), opts)
	if err != nil {
		return nil, convertMongoError(err, "book")
	}
	defer cur.Close(ctx)
	books := []models.Book{}
	if err := cur.All(ctx, &books); err != nil {
		return nil, convertMongoError(err, "book")
	}
	return books, nil
}

// statisticsPipeline sums the denormalized counters across every book.
var statisticsPipeline = mongo.Pipeline{
	{{Key: "$group", Value: bson.D{
		{Key: "_id", Value: nil},
		{Key: "totalBooks", Value: bson.D{{Key: "$sum", Value: 1}}},
		{Key: "totalChapters", Value: bson.D{{Key: "$sum", Value: "$chapterCount"}}},
		{Key: "totalVerses", Value: bson.D{{Key: "$sum", Value: "$totalVerses"}}},
		{Key: "totalViews", Value: bson.D{{Key: "$sum", Value: "$viewCount"}}},
		{Key: "totalDownloads", Value: bson.D{{Key: "$sum", Value: "$downloadCount"}}},
		{Key: "activeBooks", Value: bson.D{{Key: "$sum", Value: bson.D{
			{Key: "$cond", Value: bson.A{bson.D{{Key: "$eq", Value: bson.A{"$isActive", true}}}, 1, 0}},
		}}}},
		{Key: "publishedBooks", Value: bson.D{{Key: "$sum", Value: bson.D{
			{Key: "$cond", Value: bson.A{bson.D{{Key: "$eq", Value: bson.A{"$status", models.StatusPublished}}}, 1, 0}},
		}}}},
	}}},
}

var categoryPipeline = mongo.Pipeline{
	{{Key: "$group", Value: bson.D{
		{Key: "_id", Value: "$category"},
		{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
	}}},
	{{Key: "$sort", Value: bson.D{{Key: "_id", Value: 1}}}},
}

func (db *DB) BookStatistics(ctx context.Context) (*models.Statistics, error) {
	stats := &models.Statistics{ByCategory: []models.CategoryCount{}}

	cur, err := db.Books().Aggregate(ctx, statisticsPipeline)
	if err != nil {
		return nil, convertMongoError(err, "book")
	}
	var overview []models.StatisticsOverview
	if err := cur.All(ctx, &overview); err != nil {
		return nil, convertMongoError(err, "book")
	}
	if len(overview) > 0 {
		stats.Overview = overview[0]
	}

	cur, err = db.Books().Aggregate(ctx, categoryPipeline)
	if err != nil {
		return nil, convertMongoError(err, "book")
	}
	if err := cur.All(ctx, &stats.ByCategory); err != nil {
		return nil, convertMongoError(err, "book")
	}
	return stats, nil
}
