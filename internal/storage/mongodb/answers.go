package mongodb

import (
	"context"
	"fmt"
	"time"

	"forum/internal/domain/models"
	"forum/internal/storage"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

type answerDoc struct {
	ID         bson.ObjectID `bson:"_id"`
	Body       string        `bson:"body"`
	AnsweredBy bson.ObjectID `bson:"answered_by"`
	Question   bson.ObjectID `bson:"question"`
	VoteCount  int           `bson:"vote_count"`
	CreatedAt  time.Time     `bson:"created_at"`
	UpdatedAt  time.Time     `bson:"updated_at"`
}

func (d answerDoc) model() models.Answer {
	return models.Answer{
		ID:         d.ID.Hex(),
		Body:       d.Body,
		AnsweredBy: d.AnsweredBy.Hex(),
		QuestionID: d.Question.Hex(),
		VoteCount:  d.VoteCount,
		CreatedAt:  d.CreatedAt,
		UpdatedAt:  d.UpdatedAt,
	}
}

// SaveAnswer stores an answer to an existing question.
func (s *Storage) SaveAnswer(ctx context.Context, a models.Answer) (string, error) {
	const op = "storage.mongodb.SaveAnswer"

	question, err := objectID(a.QuestionID, storage.ErrQuestionNotFound)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	author, err := objectID(a.AnsweredBy, storage.ErrUserNotFound)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	if err := s.questionExists(ctx, question); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	now := createdAt(a.CreatedAt)
	doc := answerDoc{
		ID:         bson.NewObjectID(),
		Body:       a.Body,
		AnsweredBy: author,
		Question:   question,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if _, err := s.answers.InsertOne(ctx, doc); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return doc.ID.Hex(), nil
}

// Answers returns the answers to a question, oldest first.
func (s *Storage) Answers(ctx context.Context, questionID string) ([]models.Answer, error) {
	const op = "storage.mongodb.Answers"

	question, err := objectID(questionID, storage.ErrQuestionNotFound)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := s.questionExists(ctx, question); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	cursor, err := s.answers.Find(ctx,
		bson.D{{Key: "question", Value: question}},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}),
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var docs []answerDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	answers := make([]models.Answer, 0, len(docs))
	for _, d := range docs {
		answers = append(answers, d.model())
	}

	return answers, nil
}
