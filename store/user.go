package store

import (
	"context"
	"errors"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/kevinaaaquil/scripture-catalog/models"
)

func (db *DB) countUsers(ctx context.Context, filter bson.M) (int64, error) {
	n, err := db.Users().CountDocuments(ctx, filter)
	return n, convertMongoError(err, "user")
}

func (db *DB) UsersCount(ctx context.Context) (int64, error) {
	return db.countUsers(ctx, bson.M{})
}

func (db *DB) AdminsCount(ctx context.Context) (int64, error) {
	return db.countUsers(ctx, bson.M{"role": models.RoleAdmin})
}

// findUser returns (nil, nil) when nothing matches filter.
func (db *DB) findUser(ctx context.Context, filter bson.M) (*models.User, error) {
	var u models.User
	err := db.Users().FindOne(ctx, filter).Decode(&u)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, convertMongoError(err, "user")
	}
	return &u, nil
}

// UserByEmail matches case-insensitively; emails are stored lowercased.
func (db *DB) UserByEmail(ctx context.Context, email string) (*models.User, error) {
	return db.findUser(ctx, bson.M{"email": strings.ToLower(strings.TrimSpace(email))})
}

func (db *DB) UserByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	return db.findUser(ctx, bson.M{"_id": id})
}

// CreateUser inserts user; a taken email is CONFLICT through the unique index.
func (db *DB) CreateUser(ctx context.Context, user *models.User) (primitive.ObjectID, error) {
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	res, err := db.Users().InsertOne(ctx, user)
	if err != nil {
		return primitive.NilObjectID, convertMongoError(err, "user")
	}
	id, ok := res.InsertedID.(primitive.ObjectID)
	if !ok {
		return primitive.NilObjectID, convertMongoError(errors.New("unexpected inserted id type"), "user")
	}
	return id, nil
}

// ListUsers returns every account oldest first, without password hashes.
func (db *DB) ListUsers(ctx context.Context) ([]models.User, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: 1}}).
		SetProjection(bson.M{"password": 0})
	cur, err := db.Users().Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, convertMongoError(err, "user")
	}
	defer cur.Close(ctx)
	users := []models.User{}
	if err := cur.All(ctx, &users); err != nil {
		return nil, convertMongoError(err, "user")
	}
	return users, nil
}

func (db *DB) UpdateUser(ctx context.Context, id primitive.ObjectID, upd UserUpdate) error {
	set := upd.setDoc()
	if len(set) == 0 {
		return nil
	}
	_, err := db.Users().UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	return convertMongoError(err, "user")
}

func (db *DB) DeleteUser(ctx context.Context, id primitive.ObjectID) error {
	_, err := db.Users().DeleteOne(ctx, bson.M{"_id": id})
	return convertMongoError(err, "user")
}

// setDoc lists the fields upd changes, keyed by their bson names.
func (upd UserUpdate) setDoc() bson.M {
	set := bson.M{}
	strs := map[string]*string{
		"name":     upd.Name,
		"email":    upd.Email,
		"phone":    upd.Phone,
		"address":  upd.Address,
		"password": upd.Password,
		"role":     upd.Role,
	}
	for field, v := range strs {
		if v != nil {
			set[field] = *v
		}
	}
	if upd.IsActive != nil {
		set["isActive"] = *upd.IsActive
	}
	return set
}
