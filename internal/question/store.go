package question

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"quizbank/internal/apperr"

	"github.com/google/uuid"
)

var ErrQuestionNotFound = apperr.New(apperr.ErrNotFound, "Question not found")

// Store persists questions.
type Store interface {
	Create(ctx context.Context, q *Question) error
	Get(ctx context.Context, id uuid.UUID) (*Question, error)
	List(ctx context.Context, f ListFilter) ([]Question, error)
	Update(ctx context.Context, q *Question) error
	Delete(ctx context.Context, id uuid.UUID) error
	// ExistsByTitleText matches the trimmed title text exactly.
	ExistsByTitleText(ctx context.Context, text string) (bool, error)
	// RemoveCategory pulls categoryID out of every question and reports how
	// many rows changed.
	RemoveCategory(ctx context.Context, categoryID uuid.UUID) (int64, error)
}

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(conn *sql.DB) *PostgresStore {
	return &PostgresStore{db: conn}
}

const questionColumns = `id, title, options, correct_answer, explanation, categories, tags,
	difficulty, created_by, is_approved, approved_by, created_at, updated_at`

type jsonColumns struct {
	title, options, explanation, categories, tags string
}

func encodeColumns(q *Question) (jsonColumns, error) {
	var out jsonColumns
	parts := []struct {
		dst *string
		v   any
	}{
		{&out.title, q.Title},
		{&out.options, nonNilOptions(q.Options)},
		{&out.explanation, q.Explanation},
		{&out.categories, nonNilIDs(q.Categories)},
		{&out.tags, nonNilTags(q.Tags)},
	}
	for _, p := range parts {
		b, err := json.Marshal(p.v)
		if err != nil {
			return out, fmt.Errorf("encode question: %w", err)
		}
		*p.dst = string(b)
	}
	return out, nil
}

func (s *PostgresStore) Create(ctx context.Context, q *Question) error {
	cols, err := encodeColumns(q)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO questions (`+questionColumns+`)
		VALUES ($1, $2::jsonb, $3::jsonb, $4, $5::jsonb, $6::jsonb, $7::jsonb, $8, $9, $10, $11, $12, $13)
	`, q.ID, cols.title, cols.options, q.CorrectAnswer, cols.explanation, cols.categories, cols.tags,
		q.Difficulty, nullUUID(q.CreatedBy), q.IsApproved, nullUUID(q.ApprovedBy), q.CreatedAt, q.UpdatedAt)
	if err != nil {
		return apperr.Upstream("insert question", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id uuid.UUID) (*Question, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+questionColumns+` FROM questions WHERE id = $1`, id)
	q, err := scanQuestion(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrQuestionNotFound
		}
		return nil, apperr.Upstream("load question", err)
	}
	return q, nil
}

func (s *PostgresStore) List(ctx context.Context, f ListFilter) ([]Question, error) {
	var (
		where []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if f.CategoryID != nil {
		add("categories ? $%d", f.CategoryID.String())
	}
	if f.Tag != "" {
		add("tags ? $%d", f.Tag)
	}
	if f.From != nil {
		add("created_at >= $%d", *f.From)
	}
	if f.To != nil {
		add("created_at < $%d", *f.To)
	}

	query := `SELECT ` + questionColumns + ` FROM questions`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperr.Upstream("list questions", err)
	}
	defer rows.Close()

	out := make([]Question, 0)
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, apperr.Upstream("scan question", err)
		}
		out = append(out, *q)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Upstream("iterate questions", err)
	}
	return out, nil
}

func (s *PostgresStore) Update(ctx context.Context, q *Question) error {
	cols, err := encodeColumns(q)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE questions
		SET title = $2::jsonb, options = $3::jsonb, correct_answer = $4, explanation = $5::jsonb,
			categories = $6::jsonb, tags = $7::jsonb, difficulty = $8, created_by = $9,
			is_approved = $10, approved_by = $11, updated_at = $12
		WHERE id = $1
	`, q.ID, cols.title, cols.options, q.CorrectAnswer, cols.explanation, cols.categories, cols.tags,
		q.Difficulty, nullUUID(q.CreatedBy), q.IsApproved, nullUUID(q.ApprovedBy), q.UpdatedAt)
	if err != nil {
		return apperr.Upstream("update question", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return apperr.Upstream("update question rows", err)
	}
	if n == 0 {
		return ErrQuestionNotFound
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM questions WHERE id = $1`, id)
	if err != nil {
		return apperr.Upstream("delete question", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return apperr.Upstream("delete question rows", err)
	}
	if n == 0 {
		return ErrQuestionNotFound
	}
	return nil
}

func (s *PostgresStore) ExistsByTitleText(ctx context.Context, text string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM questions WHERE btrim(title->>'text') = $1)
	`, strings.TrimSpace(text)).Scan(&exists)
	if err != nil {
		return false, apperr.Upstream("check duplicate title", err)
	}
	return exists, nil
}

func (s *PostgresStore) RemoveCategory(ctx context.Context, categoryID uuid.UUID) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE questions
		SET categories = categories - $1::text, updated_at = now()
		WHERE categories ? $1::text
	`, categoryID.String())
	if err != nil {
		return 0, apperr.Upstream("prune category from questions", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, apperr.Upstream("prune category rows", err)
	}
	return n, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanQuestion(sc rowScanner) (*Question, error) {
	var (
		q                                      Question
		title, options, explanation, cats, tgs []byte
		createdBy, approvedBy                  uuid.NullUUID
	)
	err := sc.Scan(&q.ID, &title, &options, &q.CorrectAnswer, &explanation, &cats, &tgs,
		&q.Difficulty, &createdBy, &q.IsApproved, &approvedBy, &q.CreatedAt, &q.UpdatedAt)
	if err != nil {
		return nil, err
	}
	for _, p := range []struct {
		src []byte
		dst any
	}{
		{title, &q.Title},
		{options, &q.Options},
		{explanation, &q.Explanation},
		{cats, &q.Categories},
		{tgs, &q.Tags},
	} {
		if len(p.src) == 0 {
			continue
		}
		if err := json.Unmarshal(p.src, p.dst); err != nil {
			return nil, fmt.Errorf("decode question column: %w", err)
		}
	}
	if createdBy.Valid {
		id := createdBy.UUID
		q.CreatedBy = &id
	}
	if approvedBy.Valid {
		id := approvedBy.UUID
		q.ApprovedBy = &id
	}
	q.Options = nonNilOptions(q.Options)
	q.Categories = nonNilIDs(q.Categories)
	q.Tags = nonNilTags(q.Tags)
	return &q, nil
}

func nullUUID(id *uuid.UUID) uuid.NullUUID {
	if id == nil {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: *id, Valid: true}
}

func nonNilOptions(v []MediaText) []MediaText {
	if v == nil {
		return []MediaText{}
	}
	return v
}

func nonNilIDs(v []uuid.UUID) []uuid.UUID {
	if v == nil {
		return []uuid.UUID{}
	}
	return v
}

func nonNilTags(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}
