package category

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"quizbank/internal/apperr"
	"quizbank/internal/db"

	"github.com/google/uuid"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(conn *sql.DB) *PostgresStore {
	return &PostgresStore{db: conn}
}

const categoryColumns = `id, name, created_at, updated_at`

func (s *PostgresStore) Create(ctx context.Context, c *Category) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO categories (id, name, created_at, updated_at)
		VALUES ($1, $2, $3, $4)
	`, c.ID, c.Name, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return ErrCategoryExists
		}
		return apperr.Upstream("insert category", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id uuid.UUID) (*Category, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+categoryColumns+` FROM categories WHERE id = $1`, id)
	return scanCategory(row, "load category")
}

func (s *PostgresStore) FindByName(ctx context.Context, name string) (*Category, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+categoryColumns+`
		FROM categories
		WHERE lower(name) = lower($1)
		LIMIT 1
	`, name)
	return scanCategory(row, "find category by name")
}

func (s *PostgresStore) FindMany(ctx context.Context, ids []uuid.UUID) ([]Category, error) {
	if len(ids) == 0 {
		return []Category{}, nil
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+categoryColumns+`
		FROM categories
		WHERE id = ANY($1::uuid[])
	`, db.UUIDStrings(ids))
	if err != nil {
		return nil, apperr.Upstream("query categories", err)
	}
	return collectCategories(rows)
}

func (s *PostgresStore) List(ctx context.Context) ([]Category, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+categoryColumns+` FROM categories ORDER BY name ASC`)
	if err != nil {
		return nil, apperr.Upstream("list categories", err)
	}
	return collectCategories(rows)
}

func (s *PostgresStore) Update(ctx context.Context, c *Category) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE categories
		SET name = $2,
			updated_at = $3
		WHERE id = $1
	`, c.ID, c.Name, c.UpdatedAt)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return ErrCategoryNameTaken
		}
		return apperr.Upstream("update category", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return apperr.Upstream("update category rows affected", err)
	}
	if affected == 0 {
		return ErrCategoryNotFound
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, id uuid.UUID) (*Category, error) {
	row := s.db.QueryRowContext(ctx, `DELETE FROM categories WHERE id = $1 RETURNING `+categoryColumns, id)
	return scanCategory(row, "delete category")
}

func scanCategory(row *sql.Row, op string) (*Category, error) {
	var c Category
	if err := row.Scan(&c.ID, &c.Name, &c.CreatedAt, &c.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCategoryNotFound
		}
		return nil, apperr.Upstream(op, err)
	}
	return &c, nil
}

func collectCategories(rows *sql.Rows) ([]Category, error) {
	defer rows.Close()
	items := make([]Category, 0)
	for rows.Next() {
		var c Category
		if err := rows.Scan(&c.ID, &c.Name, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, apperr.Upstream("scan category", err)
		}
		items = append(items, c)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Upstream("iterate categories", fmt.Errorf("rows: %w", err))
	}
	return items, nil
}
