package sqlite

import (
	"context"
	"testing"

	"forum/internal/domain/models"
	"forum/internal/storage"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func saveQuestion(t *testing.T, s *Storage, publisher string, tags ...string) string {
	t.Helper()
	ctx := context.Background()

	var tagIDs []string
	for _, name := range tags {
		tag, err := s.UpsertTag(ctx, name)
		require.NoError(t, err)
		tagIDs = append(tagIDs, tag.ID)
	}

	id, err := s.SaveQuestion(ctx, models.Question{
		Title:       gofakeit.Sentence(4),
		Slug:        gofakeit.Word(),
		Description: gofakeit.Paragraph(1, 2, 8, " "),
		PublishedBy: publisher,
		TagIDs:      tagIDs,
	})
	require.NoError(t, err)

	return id
}

func TestUpsertTag_ReturnsExisting(t *testing.T) {
	ctx := context.Background()
	s := newStorage(t)

	first, err := s.UpsertTag(ctx, "go")
	require.NoError(t, err)
	second, err := s.UpsertTag(ctx, "go")
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestQuestionViews(t *testing.T) {
	ctx := context.Background()
	s := newStorage(t)
	user := saveUser(t, s)

	older := saveQuestion(t, s, user.ID, "go", "sqlite")
	newer := saveQuestion(t, s, user.ID, "go")

	views, err := s.Questions(ctx)
	require.NoError(t, err)
	require.Len(t, views, 2)
	assert.Equal(t, newer, views[0].ID)
	assert.Equal(t, older, views[1].ID)

	view := views[1]
	require.Len(t, view.Tags, 2)
	assert.Equal(t, "go", view.Tags[0].Name)
	assert.Equal(t, "sqlite", view.Tags[1].Name)
	assert.Equal(t, user.EnrollmentNumber, view.Publisher.EnrollmentNumber)
	assert.Equal(t, views[0].Tags[0].ID, view.Tags[0].ID)

	require.NoError(t, s.IncrementViews(ctx, older))
	single, err := s.QuestionView(ctx, older)
	require.NoError(t, err)
	assert.Equal(t, 1, single.ViewCount)
	assert.Len(t, single.Tags, 2)

	_, err = s.QuestionView(ctx, "missing")
	require.ErrorIs(t, err, storage.ErrQuestionNotFound)
	require.ErrorIs(t, s.IncrementViews(ctx, "missing"), storage.ErrQuestionNotFound)
}

func TestAnswers(t *testing.T) {
	ctx := context.Background()
	s := newStorage(t)
	user := saveUser(t, s)
	questionID := saveQuestion(t, s, user.ID, "go")

	firstID, err := s.SaveAnswer(ctx, models.Answer{Body: "first", AnsweredBy: user.ID, QuestionID: questionID})
	require.NoError(t, err)
	_, err = s.SaveAnswer(ctx, models.Answer{Body: "second", AnsweredBy: user.ID, QuestionID: questionID})
	require.NoError(t, err)

	answers, err := s.Answers(ctx, questionID)
	require.NoError(t, err)
	require.Len(t, answers, 2)
	assert.Equal(t, firstID, answers[0].ID)
	assert.Equal(t, "second", answers[1].Body)

	_, err = s.SaveAnswer(ctx, models.Answer{Body: "x", AnsweredBy: user.ID, QuestionID: "missing"})
	require.ErrorIs(t, err, storage.ErrQuestionNotFound)

	_, err = s.Answers(ctx, "missing")
	require.ErrorIs(t, err, storage.ErrQuestionNotFound)
}

func TestCastVote(t *testing.T) {
	ctx := context.Background()
	s := newStorage(t)
	author := saveUser(t, s)
	voter := saveUser(t, s)
	questionID := saveQuestion(t, s, author.ID, "go")
	target := models.VoteTarget{QuestionID: questionID}

	vote := func(userID string, voteType models.VoteType) int {
		t.Helper()
		count, err := s.CastVote(ctx, models.Vote{UserID: userID, Target: target, Type: voteType})
		require.NoError(t, err)
		return count
	}

	assert.Equal(t, 1, vote(voter.ID, models.Upvote))
	assert.Equal(t, 1, vote(voter.ID, models.Upvote))
	assert.Equal(t, -1, vote(voter.ID, models.Downvote))
	assert.Equal(t, 0, vote(author.ID, models.Upvote))

	view, err := s.QuestionView(ctx, questionID)
	require.NoError(t, err)
	assert.Equal(t, 0, view.VoteCount)

	answerID, err := s.SaveAnswer(ctx, models.Answer{Body: "a", AnsweredBy: author.ID, QuestionID: questionID})
	require.NoError(t, err)

	count, err := s.CastVote(ctx, models.Vote{UserID: voter.ID, Target: models.VoteTarget{AnswerID: answerID}, Type: models.Upvote})
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	_, err = s.CastVote(ctx, models.Vote{UserID: voter.ID, Target: models.VoteTarget{AnswerID: "missing"}, Type: models.Upvote})
	require.ErrorIs(t, err, storage.ErrAnswerNotFound)

	_, err = s.CastVote(ctx, models.Vote{UserID: voter.ID, Target: models.VoteTarget{QuestionID: "missing"}, Type: models.Upvote})
	require.ErrorIs(t, err, storage.ErrQuestionNotFound)
}
