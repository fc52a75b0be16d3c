package forum

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"forum/internal/apperrors"
	"forum/internal/domain/models"
	"forum/internal/lib/sl"
	"forum/internal/storage"
)

type Forum struct {
	logger    *slog.Logger
	tags      TagUpserter
	questions QuestionStore
	answers   AnswerStore
	votes     VoteCaster
}

type TagUpserter interface {
	UpsertTag(ctx context.Context, name string) (models.Tag, error)
}

type QuestionStore interface {
	SaveQuestion(ctx context.Context, q models.Question) (string, error)
	Questions(ctx context.Context) ([]models.QuestionView, error)
	QuestionView(ctx context.Context, questionID string) (*models.QuestionView, error)
	IncrementViews(ctx context.Context, questionID string) error
}

type AnswerStore interface {
	SaveAnswer(ctx context.Context, a models.Answer) (string, error)
	Answers(ctx context.Context, questionID string) ([]models.Answer, error)
}

type VoteCaster interface {
	CastVote(ctx context.Context, vote models.Vote) (int, error)
}

var (
	ErrFieldsRequired   = apperrors.New(apperrors.ErrValidation, "all fields are required")
	ErrTagsRequired     = apperrors.New(apperrors.ErrValidation, "please add tags also")
	ErrBodyRequired     = apperrors.New(apperrors.ErrValidation, "answer body is required")
	ErrInvalidVoteType  = apperrors.New(apperrors.ErrValidation, "vote type must be upvote or downvote")
	ErrQuestionNotFound = apperrors.New(apperrors.ErrNotFound, "question not found")
	ErrAnswerNotFound   = apperrors.New(apperrors.ErrNotFound, "answer not found")
)

func New(
	logger *slog.Logger,
	tags TagUpserter,
	questions QuestionStore,
	answers AnswerStore,
	votes VoteCaster,
) *Forum {
	return &Forum{
		logger:    logger,
		tags:      tags,
		questions: questions,
		answers:   answers,
		votes:     votes,
	}
}

// AskQuestion stores a question published by userID. Tag names are
// normalized and created on first use.
func (f *Forum) AskQuestion(
	ctx context.Context,
	userID string,
	title, description, slug string,
	tagNames []string,
) (*models.Question, error) {
	const op = "forum.AskQuestion"
	log := f.logger.With(slog.String("op", op), slog.String("userID", userID))

	title, description, slug = strings.TrimSpace(title), strings.TrimSpace(description), strings.TrimSpace(slug)
	if title == "" || description == "" || slug == "" {
		return nil, fmt.Errorf("%s: %w", op, ErrFieldsRequired)
	}

	names := normalizeTags(tagNames)
	if len(names) == 0 {
		return nil, fmt.Errorf("%s: %w", op, ErrTagsRequired)
	}

	tagIDs := make([]string, 0, len(names))
	for _, name := range names {
		tag, err := f.tags.UpsertTag(ctx, name)
		if err != nil {
			log.Error("failed to upsert tag", slog.String("tag", name), sl.Err(err))
			return nil, persistence(op, err)
		}
		tagIDs = append(tagIDs, tag.ID)
	}

	now := time.Now().UTC()
	q := models.Question{
		Title:       title,
		Slug:        slug,
		Description: description,
		PublishedBy: userID,
		TagIDs:      tagIDs,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	id, err := f.questions.SaveQuestion(ctx, q)
	if err != nil {
		log.Error("failed to save question", sl.Err(err))
		return nil, persistence(op, err)
	}
	q.ID = id

	log.Info("question added", slog.String("questionID", id))

	return &q, nil
}

// Questions lists all questions, newest first.
func (f *Forum) Questions(ctx context.Context) ([]models.QuestionView, error) {
	const op = "forum.Questions"

	views, err := f.questions.Questions(ctx)
	if err != nil {
		f.logger.Error("failed to fetch questions", slog.String("op", op), sl.Err(err))
		return nil, persistence(op, err)
	}

	return views, nil
}

// Question returns a single question and counts the view.
func (f *Forum) Question(ctx context.Context, questionID string) (*models.QuestionView, error) {
	const op = "forum.Question"

	if err := f.questions.IncrementViews(ctx, questionID); err != nil {
		return nil, f.mapErr(op, err)
	}

	view, err := f.questions.QuestionView(ctx, questionID)
	if err != nil {
		return nil, f.mapErr(op, err)
	}

	return view, nil
}

// Answer adds userID's answer to a question.
func (f *Forum) Answer(ctx context.Context, userID, questionID, body string) (*models.Answer, error) {
	const op = "forum.Answer"

	body = strings.TrimSpace(body)
	if body == "" {
		return nil, fmt.Errorf("%s: %w", op, ErrBodyRequired)
	}

	now := time.Now().UTC()
	a := models.Answer{
		Body:       body,
		AnsweredBy: userID,
		QuestionID: questionID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	id, err := f.answers.SaveAnswer(ctx, a)
	if err != nil {
		return nil, f.mapErr(op, err)
	}
	a.ID = id

	f.logger.Info("answer added",
		slog.String("op", op),
		slog.String("questionID", questionID),
		slog.String("answerID", id),
	)

	return &a, nil
}

// Answers lists the answers to a question, oldest first.
func (f *Forum) Answers(ctx context.Context, questionID string) ([]models.Answer, error) {
	const op = "forum.Answers"

	answers, err := f.answers.Answers(ctx, questionID)
	if err != nil {
		return nil, f.mapErr(op, err)
	}

	return answers, nil
}

// Vote casts userID's vote on a question or answer and returns the target's
// vote count.
func (f *Forum) Vote(ctx context.Context, userID string, target models.VoteTarget, voteType models.VoteType) (int, error) {
	const op = "forum.Vote"

	if !voteType.Valid() {
		return 0, fmt.Errorf("%s: %w", op, ErrInvalidVoteType)
	}

	count, err := f.votes.CastVote(ctx, models.Vote{
		UserID: userID,
		Target: target,
		Type:   voteType,
	})
	if err != nil {
		return 0, f.mapErr(op, err)
	}

	return count, nil
}

func (f *Forum) mapErr(op string, err error) error {
	switch {
	case errors.Is(err, storage.ErrQuestionNotFound):
		return fmt.Errorf("%s: %w", op, ErrQuestionNotFound)
	case errors.Is(err, storage.ErrAnswerNotFound):
		return fmt.Errorf("%s: %w", op, ErrAnswerNotFound)
	}
	f.logger.Error("storage failure", slog.String("op", op), sl.Err(err))
	return persistence(op, err)
}

// normalizeTags trims, lower-cases and de-duplicates tag names, keeping the
// first occurrence order.
func normalizeTags(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		n = strings.ToLower(strings.TrimSpace(n))
		if n == "" {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}

func persistence(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, apperrors.ErrPersistence, err)
}
