package user

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

const userColumns = `id, username, email, password_hash, role, created_at, updated_at`

func (s *PostgresStore) Create(ctx context.Context, u *User) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, username, email, password_hash, role, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, u.ID, u.Username, u.Email, u.PasswordHash, u.Role, u.CreatedAt, u.UpdatedAt)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return ErrUserExists
		}
		return apperr.Upstream("insert user", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id uuid.UUID) (*User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row, "load user")
}

func (s *PostgresStore) FindByUsername(ctx context.Context, username string) (*User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE username = $1`, username)
	return scanUser(row, "find user by username")
}

func (s *PostgresStore) FindByEmail(ctx context.Context, email string) (*User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
	return scanUser(row, "find user by email")
}

func (s *PostgresStore) ExistsByUsernameOrEmail(ctx context.Context, username, email string, except uuid.UUID) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM users
			WHERE (username = $1 OR email = $2) AND id <> $3
		)
	`, username, email, except).Scan(&exists)
	if err != nil {
		return false, apperr.Upstream("check user identity", err)
	}
	return exists, nil
}

func (s *PostgresStore) List(ctx context.Context) ([]User, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at DESC`)
	if err != nil {
		return nil, apperr.Upstream("list users", err)
	}
	defer rows.Close()

	out := make([]User, 0)
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.Role, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, apperr.Upstream("scan user", err)
		}
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Upstream("iterate users", err)
	}
	return out, nil
}

func (s *PostgresStore) Update(ctx context.Context, u *User) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE users
		SET username = $2, email = $3, password_hash = $4, role = $5, updated_at = $6
		WHERE id = $1
	`, u.ID, u.Username, u.Email, u.PasswordHash, u.Role, u.UpdatedAt)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return ErrUserExists
		}
		return apperr.Upstream("update user", err)
	}
	return requireAffected(res, "update user")
}

func (s *PostgresStore) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return apperr.Upstream("delete user", err)
	}
	return requireAffected(res, "delete user")
}

func scanUser(row *sql.Row, op string) (*User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.Role, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, apperr.Upstream(op, err)
	}
	return &u, nil
}

func requireAffected(res sql.Result, op string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return apperr.Upstream(fmt.Sprintf("%s rows", op), err)
	}
	if n == 0 {
		return ErrUserNotFound
	}
	return nil
}
