package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"forum/internal/domain/models"
	"forum/internal/storage"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

type tagDoc struct {
	ID        bson.ObjectID `bson:"_id"`
	Name      string        `bson:"name"`
	CreatedAt time.Time     `bson:"created_at"`
}

type questionDoc struct {
	ID          bson.ObjectID   `bson:"_id"`
	Title       string          `bson:"title"`
	Slug        string          `bson:"slug"`
	Description string          `bson:"description"`
	PublishedBy bson.ObjectID   `bson:"published_by"`
	Tags        []bson.ObjectID `bson:"tags"`
	VoteCount   int             `bson:"vote_count"`
	ViewCount   int             `bson:"view_count"`
	CreatedAt   time.Time       `bson:"created_at"`
	UpdatedAt   time.Time       `bson:"updated_at"`
}

type questionViewDoc struct {
	ID          bson.ObjectID `bson:"_id"`
	Title       string        `bson:"title"`
	Slug        string        `bson:"slug"`
	Description string        `bson:"description"`
	Publisher   struct {
		ID               bson.ObjectID `bson:"_id"`
		EnrollmentNumber string        `bson:"enrollment_number"`
	} `bson:"publisher"`
	Tags      []tagRef        `bson:"tags"`
	TagIDs    []bson.ObjectID `bson:"tag_ids"`
	VoteCount int             `bson:"vote_count"`
	ViewCount int             `bson:"view_count"`
	CreatedAt time.Time       `bson:"created_at"`
}

type tagRef struct {
	ID   bson.ObjectID `bson:"_id"`
	Name string        `bson:"name"`
}

func (d questionViewDoc) model() models.QuestionView {
	// $lookup returns tags in collection order; the question keeps its own.
	byID := make(map[bson.ObjectID]tagRef, len(d.Tags))
	for _, t := range d.Tags {
		byID[t.ID] = t
	}
	tags := make([]models.Tag, 0, len(d.Tags))
	for _, id := range d.TagIDs {
		t, ok := byID[id]
		if !ok {
			continue
		}
		tags = append(tags, models.Tag{ID: t.ID.Hex(), Name: t.Name})
	}

	var publisherID string
	if !d.Publisher.ID.IsZero() {
		publisherID = d.Publisher.ID.Hex()
	}

	return models.QuestionView{
		ID:          d.ID.Hex(),
		Title:       d.Title,
		Slug:        d.Slug,
		Description: d.Description,
		Publisher: models.Publisher{
			ID:               publisherID,
			EnrollmentNumber: d.Publisher.EnrollmentNumber,
		},
		Tags:      tags,
		VoteCount: d.VoteCount,
		ViewCount: d.ViewCount,
		CreatedAt: d.CreatedAt,
	}
}

// UpsertTag returns the tag with the given name, creating it if needed.
func (s *Storage) UpsertTag(ctx context.Context, name string) (models.Tag, error) {
	const op = "storage.mongodb.UpsertTag"

	filter := bson.D{{Key: "name", Value: name}}
	update := bson.D{{Key: "$setOnInsert", Value: bson.D{
		{Key: "created_at", Value: time.Now().UTC()},
	}}}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var doc tagDoc
	err := s.tags.FindOneAndUpdate(ctx, filter, update, opts).Decode(&doc)
	if err != nil {
		// A concurrent upsert of the same name loses on the unique index;
		// the winner's document is there now.
		if !isDuplicateKeyError(err) {
			return models.Tag{}, fmt.Errorf("%s: %w", op, err)
		}
		if err := s.tags.FindOne(ctx, filter).Decode(&doc); err != nil {
			return models.Tag{}, fmt.Errorf("%s: %w", op, err)
		}
	}

	return models.Tag{ID: doc.ID.Hex(), Name: doc.Name}, nil
}

// SaveQuestion stores a new question and returns its ID.
func (s *Storage) SaveQuestion(ctx context.Context, q models.Question) (string, error) {
	const op = "storage.mongodb.SaveQuestion"

	publisher, err := objectID(q.PublishedBy, storage.ErrUserNotFound)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	tags := make([]bson.ObjectID, 0, len(q.TagIDs))
	for _, id := range q.TagIDs {
		oid, err := bson.ObjectIDFromHex(id)
		if err != nil {
			return "", fmt.Errorf("%s: tag %q: %w", op, id, err)
		}
		tags = append(tags, oid)
	}

	now := createdAt(q.CreatedAt)
	doc := questionDoc{
		ID:          bson.NewObjectID(),
		Title:       q.Title,
		Slug:        q.Slug,
		Description: q.Description,
		PublishedBy: publisher,
		Tags:        tags,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if _, err := s.questions.InsertOne(ctx, doc); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return doc.ID.Hex(), nil
}

// Questions returns all questions, newest first, joined with their tags and
// publisher.
func (s *Storage) Questions(ctx context.Context) ([]models.QuestionView, error) {
	const op = "storage.mongodb.Questions"

	views, err := s.questionViews(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return views, nil
}

// QuestionView returns a single joined question.
func (s *Storage) QuestionView(ctx context.Context, questionID string) (*models.QuestionView, error) {
	const op = "storage.mongodb.QuestionView"

	oid, err := objectID(questionID, storage.ErrQuestionNotFound)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	views, err := s.questionViews(ctx, bson.D{{Key: "_id", Value: oid}})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if len(views) == 0 {
		return nil, fmt.Errorf("%s: %w", op, storage.ErrQuestionNotFound)
	}

	return &views[0], nil
}

// IncrementViews bumps the view counter of a question.
func (s *Storage) IncrementViews(ctx context.Context, questionID string) error {
	const op = "storage.mongodb.IncrementViews"

	oid, err := objectID(questionID, storage.ErrQuestionNotFound)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	res, err := s.questions.UpdateOne(ctx,
		bson.D{{Key: "_id", Value: oid}},
		bson.D{{Key: "$inc", Value: bson.D{{Key: "view_count", Value: 1}}}},
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("%s: %w", op, storage.ErrQuestionNotFound)
	}

	return nil
}

func (s *Storage) questionViews(ctx context.Context, match bson.D) ([]models.QuestionView, error) {
	pipeline := mongo.Pipeline{}
	if match != nil {
		pipeline = append(pipeline, bson.D{{Key: "$match", Value: match}})
	}

	pipeline = append(pipeline,
		bson.D{{Key: "$addFields", Value: bson.D{{Key: "tag_ids", Value: "$tags"}}}},
		bson.D{{Key: "$lookup", Value: bson.D{
			{Key: "from", Value: "tags"},
			{Key: "localField", Value: "tags"},
			{Key: "foreignField", Value: "_id"},
			{Key: "as", Value: "tags"},
		}}},
		bson.D{{Key: "$lookup", Value: bson.D{
			{Key: "from", Value: "users"},
			{Key: "localField", Value: "published_by"},
			{Key: "foreignField", Value: "_id"},
			{Key: "as", Value: "publisher"},
		}}},
		bson.D{{Key: "$addFields", Value: bson.D{
			{Key: "publisher", Value: bson.D{{Key: "$first", Value: "$publisher"}}},
		}}},
		bson.D{{Key: "$sort", Value: bson.D{{Key: "created_at", Value: -1}}}},
		bson.D{{Key: "$project", Value: bson.D{
			{Key: "title", Value: 1},
			{Key: "slug", Value: 1},
			{Key: "description", Value: 1},
			{Key: "publisher", Value: bson.D{
				{Key: "_id", Value: 1},
				{Key: "enrollment_number", Value: 1},
			}},
			{Key: "tags", Value: bson.D{{Key: "$map", Value: bson.D{
				{Key: "input", Value: "$tags"},
				{Key: "as", Value: "tag"},
				{Key: "in", Value: bson.D{
					{Key: "_id", Value: "$$tag._id"},
					{Key: "name", Value: "$$tag.name"},
				}},
			}}}},
			{Key: "tag_ids", Value: 1},
			{Key: "vote_count", Value: 1},
			{Key: "view_count", Value: 1},
			{Key: "created_at", Value: 1},
		}}},
	)

	cursor, err := s.questions.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}

	var docs []questionViewDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}

	views := make([]models.QuestionView, 0, len(docs))
	for _, d := range docs {
		views = append(views, d.model())
	}

	return views, nil
}

func (s *Storage) questionExists(ctx context.Context, oid bson.ObjectID) error {
	err := s.questions.FindOne(ctx, bson.D{{Key: "_id", Value: oid}}).Err()
	if errors.Is(err, mongo.ErrNoDocuments) {
		return storage.ErrQuestionNotFound
	}
	return err
}
