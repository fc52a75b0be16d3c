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

type voteDoc struct {
	ID        bson.ObjectID  `bson:"_id,omitempty"`
	User      bson.ObjectID  `bson:"user"`
	Question  *bson.ObjectID `bson:"question,omitempty"`
	Answer    *bson.ObjectID `bson:"answer,omitempty"`
	VoteType  string         `bson:"vote_type"`
	CreatedAt time.Time      `bson:"created_at"`
	UpdatedAt time.Time      `bson:"updated_at"`
}

type voteCountDoc struct {
	VoteCount int `bson:"vote_count"`
}

// CastVote records the user's vote on a question or answer and returns the
// target's resulting vote count. Repeating the same vote changes nothing;
// flipping it moves the count by two.
func (s *Storage) CastVote(ctx context.Context, vote models.Vote) (int, error) {
	const op = "storage.mongodb.CastVote"

	user, err := objectID(vote.UserID, storage.ErrUserNotFound)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	var (
		target   *mongo.Collection
		targetID bson.ObjectID
		filter   = bson.D{{Key: "user", Value: user}}
		notFound error
	)

	switch {
	case vote.Target.QuestionID != "":
		target, notFound = s.questions, storage.ErrQuestionNotFound
		if targetID, err = objectID(vote.Target.QuestionID, notFound); err != nil {
			return 0, fmt.Errorf("%s: %w", op, err)
		}
		filter = append(filter, bson.E{Key: "question", Value: targetID})
	case vote.Target.AnswerID != "":
		target, notFound = s.answers, storage.ErrAnswerNotFound
		if targetID, err = objectID(vote.Target.AnswerID, notFound); err != nil {
			return 0, fmt.Errorf("%s: %w", op, err)
		}
		filter = append(filter, bson.E{Key: "answer", Value: targetID})
	default:
		return 0, fmt.Errorf("%s: empty vote target", op)
	}

	targetFilter := bson.D{{Key: "_id", Value: targetID}}

	var current voteCountDoc
	if err := target.FindOne(ctx, targetFilter).Decode(&current); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return 0, fmt.Errorf("%s: %w", op, notFound)
		}
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	now := time.Now().UTC()
	update := bson.D{
		{Key: "$set", Value: bson.D{
			{Key: "vote_type", Value: string(vote.Type)},
			{Key: "updated_at", Value: now},
		}},
		{Key: "$setOnInsert", Value: bson.D{{Key: "created_at", Value: now}}},
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.Before)

	var (
		delta int
		prev  voteDoc
	)
	err = s.votes.FindOneAndUpdate(ctx, filter, update, opts).Decode(&prev)
	if isDuplicateKeyError(err) {
		// A concurrent first vote by the same user won the unique index;
		// the retry updates the vote it recorded.
		err = s.votes.FindOneAndUpdate(ctx, filter, update, opts).Decode(&prev)
	}
	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
		delta = vote.Type.Delta()
	case err != nil:
		return 0, fmt.Errorf("%s: upsert vote: %w", op, err)
	case models.VoteType(prev.VoteType) != vote.Type:
		delta = 2 * vote.Type.Delta()
	}

	if delta == 0 {
		return current.VoteCount, nil
	}

	var updated voteCountDoc
	err = target.FindOneAndUpdate(ctx,
		targetFilter,
		bson.D{{Key: "$inc", Value: bson.D{{Key: "vote_count", Value: delta}}}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&updated)
	if err != nil {
		return 0, fmt.Errorf("%s: update count: %w", op, err)
	}

	return updated.VoteCount, nil
}
