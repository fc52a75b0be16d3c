package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"forum/internal/domain/models"
	"forum/internal/storage"

	"github.com/google/uuid"
)

func (s *Storage) UpsertTag(ctx context.Context, name string) (models.Tag, error) {
	const op = "storage.sqlite.UpsertTag"

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO tags (id, name, created_at) VALUES (?, ?, ?) ON CONFLICT (name) DO NOTHING",
		uuid.NewString(), name, time.Now().UTC(),
	)
	if err != nil {
		return models.Tag{}, fmt.Errorf("%s: %w", op, err)
	}

	var tag models.Tag
	err = s.db.QueryRowContext(ctx, "SELECT id, name FROM tags WHERE name = ?", name).Scan(&tag.ID, &tag.Name)
	if err != nil {
		return models.Tag{}, fmt.Errorf("%s: %w", op, err)
	}

	return tag, nil
}

func (s *Storage) SaveQuestion(ctx context.Context, q models.Question) (string, error) {
	const op = "storage.sqlite.SaveQuestion"

	id := uuid.NewString()
	now := createdAt(q.CreatedAt)

	err := s.inTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO questions (id, title, slug, description, published_by, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			id, q.Title, q.Slug, q.Description, q.PublishedBy, now, now,
		)
		if err != nil {
			return err
		}

		for i, tagID := range q.TagIDs {
			_, err := tx.ExecContext(ctx,
				"INSERT INTO question_tags (question_id, tag_id, position) VALUES (?, ?, ?)",
				id, tagID, i,
			)
			if err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return id, nil
}

// Questions returns all questions, newest first.
func (s *Storage) Questions(ctx context.Context) ([]models.QuestionView, error) {
	const op = "storage.sqlite.Questions"

	views, err := s.questionViews(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return views, nil
}

func (s *Storage) QuestionView(ctx context.Context, questionID string) (*models.QuestionView, error) {
	const op = "storage.sqlite.QuestionView"

	views, err := s.questionViews(ctx, questionID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if len(views) == 0 {
		return nil, fmt.Errorf("%s: %w", op, storage.ErrQuestionNotFound)
	}

	return &views[0], nil
}

func (s *Storage) IncrementViews(ctx context.Context, questionID string) error {
	const op = "storage.sqlite.IncrementViews"

	res, err := s.db.ExecContext(ctx,
		"UPDATE questions SET view_count = view_count + 1 WHERE id = ?",
		questionID,
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return expectAffected(op, res, storage.ErrQuestionNotFound)
}

// questionViews loads questions joined with their publisher and tags. An
// empty questionID selects every question.
func (s *Storage) questionViews(ctx context.Context, questionID string) ([]models.QuestionView, error) {
	query := `SELECT q.id, q.title, q.slug, q.description, q.published_by,
	                 COALESCE(u.enrollment_number, ''), q.vote_count, q.view_count, q.created_at
	          FROM questions q LEFT JOIN users u ON u.id = q.published_by`
	var args []any
	if questionID != "" {
		query += " WHERE q.id = ?"
		args = append(args, questionID)
	}
	query += " ORDER BY q.created_at DESC, q.rowid DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}

	var views []models.QuestionView
	index := make(map[string]int)
	for rows.Next() {
		var v models.QuestionView
		err := rows.Scan(
			&v.ID,
			&v.Title,
			&v.Slug,
			&v.Description,
			&v.Publisher.ID,
			&v.Publisher.EnrollmentNumber,
			&v.VoteCount,
			&v.ViewCount,
			&v.CreatedAt,
		)
		if err != nil {
			_ = rows.Close()
			return nil, err
		}
		v.Tags = []models.Tag{}
		index[v.ID] = len(views)
		views = append(views, v)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// The single connection is released above; tags need a second query.
	tagQuery := `SELECT qt.question_id, t.id, t.name
	             FROM question_tags qt JOIN tags t ON t.id = qt.tag_id`
	if questionID != "" {
		tagQuery += " WHERE qt.question_id = ?"
	}
	tagQuery += " ORDER BY qt.question_id, qt.position"

	tagRows, err := s.db.QueryContext(ctx, tagQuery, args...)
	if err != nil {
		return nil, err
	}
	defer tagRows.Close()

	for tagRows.Next() {
		var (
			qID string
			tag models.Tag
		)
		if err := tagRows.Scan(&qID, &tag.ID, &tag.Name); err != nil {
			return nil, err
		}
		if i, ok := index[qID]; ok {
			views[i].Tags = append(views[i].Tags, tag)
		}
	}

	return views, tagRows.Err()
}

func (s *Storage) SaveAnswer(ctx context.Context, a models.Answer) (string, error) {
	const op = "storage.sqlite.SaveAnswer"

	id := uuid.NewString()
	now := createdAt(a.CreatedAt)

	err := s.inTx(ctx, func(tx *sql.Tx) error {
		if err := questionExists(ctx, tx, a.QuestionID); err != nil {
			return err
		}

		_, err := tx.ExecContext(ctx,
			`INSERT INTO answers (id, body, answered_by, question_id, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			id, a.Body, a.AnsweredBy, a.QuestionID, now, now,
		)
		return err
	})
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return id, nil
}

// Answers returns the answers to a question, oldest first.
func (s *Storage) Answers(ctx context.Context, questionID string) ([]models.Answer, error) {
	const op = "storage.sqlite.Answers"

	if err := questionExists(ctx, s.db, questionID); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, body, answered_by, question_id, vote_count, created_at, updated_at
		 FROM answers WHERE question_id = ? ORDER BY created_at, rowid`,
		questionID,
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	answers := []models.Answer{}
	for rows.Next() {
		var a models.Answer
		err := rows.Scan(&a.ID, &a.Body, &a.AnsweredBy, &a.QuestionID, &a.VoteCount, &a.CreatedAt, &a.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		answers = append(answers, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return answers, nil
}

// CastVote records the user's vote and returns the target's resulting vote
// count. Repeating the same vote changes nothing; flipping it moves the
// count by two.
func (s *Storage) CastVote(ctx context.Context, vote models.Vote) (int, error) {
	const op = "storage.sqlite.CastVote"

	var (
		table    string
		targetID string
		notFound error
	)
	switch {
	case vote.Target.QuestionID != "":
		table, targetID, notFound = "questions", vote.Target.QuestionID, storage.ErrQuestionNotFound
	case vote.Target.AnswerID != "":
		table, targetID, notFound = "answers", vote.Target.AnswerID, storage.ErrAnswerNotFound
	default:
		return 0, fmt.Errorf("%s: empty vote target", op)
	}

	var count int
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx, "SELECT vote_count FROM "+table+" WHERE id = ?", targetID).Scan(&count)
		if errors.Is(err, sql.ErrNoRows) {
			return notFound
		}
		if err != nil {
			return err
		}

		var prev string
		err = tx.QueryRowContext(ctx,
			"SELECT vote_type FROM votes WHERE user_id = ? AND question_id = ? AND answer_id = ?",
			vote.UserID, vote.Target.QuestionID, vote.Target.AnswerID,
		).Scan(&prev)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return err
		}

		var delta int
		switch {
		case prev == "":
			delta = vote.Type.Delta()
		case models.VoteType(prev) != vote.Type:
			delta = 2 * vote.Type.Delta()
		default:
			return nil
		}

		now := time.Now().UTC()
		_, err = tx.ExecContext(ctx,
			`INSERT INTO votes (id, user_id, question_id, answer_id, vote_type, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT (user_id, question_id, answer_id)
			 DO UPDATE SET vote_type = excluded.vote_type, updated_at = excluded.updated_at`,
			uuid.NewString(), vote.UserID, vote.Target.QuestionID, vote.Target.AnswerID, string(vote.Type), now, now,
		)
		if err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, "UPDATE "+table+" SET vote_count = vote_count + ? WHERE id = ?", delta, targetID)
		if err != nil {
			return err
		}

		count += delta
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return count, nil
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func questionExists(ctx context.Context, q queryer, questionID string) error {
	var one int
	err := q.QueryRowContext(ctx, "SELECT 1 FROM questions WHERE id = ?", questionID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.ErrQuestionNotFound
	}
	return err
}

func (s *Storage) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}

	return tx.Commit()
}

func createdAt(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t.UTC()
}
