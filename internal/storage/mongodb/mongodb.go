package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

type Storage struct {
	client    *mongo.Client
	database  *mongo.Database
	users     *mongo.Collection
	questions *mongo.Collection
	tags      *mongo.Collection
	answers   *mongo.Collection
	votes     *mongo.Collection
}

// New creates a new MongoDB storage instance and sets up indexes.
func New(ctx context.Context, uri, database string) (*Storage, error) {
	const op = "storage.mongodb.New"

	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("%s: connect: %w", op, err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("%s: ping: %w", op, err)
	}

	db := client.Database(database)
	s := &Storage{
		client:    client,
		database:  db,
		users:     db.Collection("users"),
		questions: db.Collection("questions"),
		tags:      db.Collection("tags"),
		answers:   db.Collection("answers"),
		votes:     db.Collection("votes"),
	}

	if err := s.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("%s: indexes: %w", op, err)
	}

	return s, nil
}

func (s *Storage) ensureIndexes(ctx context.Context) error {
	indexes := []struct {
		name  string
		coll  *mongo.Collection
		model mongo.IndexModel
	}{
		{
			name: "users.email",
			coll: s.users,
			model: mongo.IndexModel{
				Keys:    bson.D{{Key: "email", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
		},
		{
			name: "tags.name",
			coll: s.tags,
			model: mongo.IndexModel{
				Keys:    bson.D{{Key: "name", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
		},
		{
			name: "questions.created_at",
			coll: s.questions,
			model: mongo.IndexModel{
				Keys: bson.D{{Key: "created_at", Value: -1}},
			},
		},
		{
			name: "answers.question",
			coll: s.answers,
			model: mongo.IndexModel{
				Keys: bson.D{{Key: "question", Value: 1}, {Key: "created_at", Value: 1}},
			},
		},
		{
			// one vote per user per target
			name: "votes.user_target",
			coll: s.votes,
			model: mongo.IndexModel{
				Keys: bson.D{
					{Key: "user", Value: 1},
					{Key: "question", Value: 1},
					{Key: "answer", Value: 1},
				},
				Options: options.Index().SetUnique(true),
			},
		},
	}

	for _, idx := range indexes {
		if _, err := idx.coll.Indexes().CreateOne(ctx, idx.model); err != nil {
			return fmt.Errorf("%s index: %w", idx.name, err)
		}
	}

	return nil
}

// Ping checks that the deployment is reachable.
func (s *Storage) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

// Close disconnects from MongoDB.
func (s *Storage) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// objectID parses a hex id. Ids that cannot exist map to notFound.
func objectID(id string, notFound error) (bson.ObjectID, error) {
	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return bson.ObjectID{}, notFound
	}
	return oid, nil
}

// isDuplicateKeyError checks if the error is a MongoDB duplicate key error (code 11000).
func isDuplicateKeyError(err error) bool {
	var we mongo.WriteException
	if errors.As(err, &we) {
		for _, e := range we.WriteErrors {
			if e.Code == 11000 {
				return true
			}
		}
	}
	var ce mongo.CommandError
	if errors.As(err, &ce) && ce.Code == 11000 {
		return true
	}
	return false
}

func createdAt(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t.UTC()
}
