package db

import (
	"context"
	"database/sql"
	"fmt"
)

// Questions keep categories as a jsonb array of id strings. There is no
// foreign key to categories or users; references are checked on write and
// category deletes prune the array.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id            UUID PRIMARY KEY,
		username      TEXT NOT NULL,
		email         TEXT NOT NULL,
		password_hash TEXT NOT NULL,
		role          TEXT NOT NULL DEFAULT 'user',
		created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS users_username_key ON users (username)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS users_email_key ON users (email)`,
	`CREATE TABLE IF NOT EXISTS categories (
		id         UUID PRIMARY KEY,
		name       TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS categories_name_lower_key ON categories (lower(name))`,
	`CREATE TABLE IF NOT EXISTS questions (
		id             UUID PRIMARY KEY,
		title          JSONB NOT NULL,
		options        JSONB NOT NULL,
		correct_answer INTEGER NOT NULL,
		explanation    JSONB NOT NULL DEFAULT '{"text":"","image":""}'::jsonb,
		categories     JSONB NOT NULL DEFAULT '[]'::jsonb,
		tags           JSONB NOT NULL DEFAULT '[]'::jsonb,
		difficulty     SMALLINT NOT NULL DEFAULT 3,
		created_by     UUID NULL,
		is_approved    BOOLEAN NOT NULL DEFAULT FALSE,
		approved_by    UUID NULL,
		created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at     TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS questions_title_text_idx ON questions (btrim(title->>'text'))`,
	`CREATE INDEX IF NOT EXISTS questions_categories_idx ON questions USING GIN (categories)`,
	`CREATE INDEX IF NOT EXISTS questions_tags_idx ON questions USING GIN (tags)`,
	`CREATE INDEX IF NOT EXISTS questions_created_at_idx ON questions (created_at)`,
}

// Migrate creates the tables the services need. Statements are idempotent.
func Migrate(ctx context.Context, conn *sql.DB) error {
	for i, stmt := range schema {
		if _, err := conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate step %d: %w", i+1, err)
		}
	}
	return nil
}
