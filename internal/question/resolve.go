package question

import (
	"context"
	"strings"

	"quizbank/internal/apperr"

	"github.com/google/uuid"
)

var (
	ErrInvalidCategoryReference = apperr.New(apperr.ErrInvalidReference, "One or more categories do not exist")
	ErrInvalidApprover          = apperr.New(apperr.ErrInvalidReference, "approvedBy must reference an existing user")
)

// CategoryDirectory is the category lookup the resolver needs.
type CategoryDirectory interface {
	ExistingIDs(ctx context.Context, ids []uuid.UUID) ([]uuid.UUID, error)
	IDByName(ctx context.Context, name string) (uuid.UUID, bool, error)
	NamesByID(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]string, error)
}

// UserDirectory is the user lookup the resolver needs.
type UserDirectory interface {
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
	IDByUsername(ctx context.Context, username string) (uuid.UUID, bool, error)
}

// Resolver turns loosely typed category and user references into ids.
type Resolver struct {
	categories CategoryDirectory
	users      UserDirectory
}

func NewResolver(categories CategoryDirectory, users UserDirectory) *Resolver {
	return &Resolver{categories: categories, users: users}
}

// ResolveUser returns the id of the user named by value, trying it as an id
// first and then as a username. Empty or unknown values resolve to nil
// without error; callers decide whether nil is acceptable.
func (r *Resolver) ResolveUser(ctx context.Context, value string) (*uuid.UUID, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	if id, err := uuid.Parse(value); err == nil {
		ok, err := r.users.Exists(ctx, id)
		if err != nil {
			return nil, err
		}
		if ok {
			return &id, nil
		}
	}
	id, ok, err := r.users.IDByUsername(ctx, value)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return &id, nil
}

// ResolveCategories requires every value to be the id of a stored category.
// A single miss fails the whole set.
func (r *Resolver) ResolveCategories(ctx context.Context, values []string) ([]uuid.UUID, error) {
	if len(values) == 0 {
		return []uuid.UUID{}, nil
	}
	ids := make([]uuid.UUID, 0, len(values))
	seen := make(map[uuid.UUID]struct{}, len(values))
	for _, v := range values {
		id, err := uuid.Parse(strings.TrimSpace(v))
		if err != nil {
			return nil, ErrInvalidCategoryReference
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}

	found, err := r.categories.ExistingIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	if len(found) != len(ids) {
		return nil, ErrInvalidCategoryReference
	}
	return ids, nil
}

// ResolveCategoryNames resolves import tokens by name, falling back to id
// when the token parses as one. Unresolved tokens are returned instead of
// failing so the caller can fail just its row.
func (r *Resolver) ResolveCategoryNames(ctx context.Context, tokens []string) ([]uuid.UUID, []string, error) {
	ids := make([]uuid.UUID, 0, len(tokens))
	var unresolved []string
	seen := make(map[uuid.UUID]struct{}, len(tokens))
	for _, tok := range tokens {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		id, ok, err := r.categories.IDByName(ctx, tok)
		if err != nil {
			return nil, nil, err
		}
		if !ok {
			if parsed, perr := uuid.Parse(tok); perr == nil {
				found, err := r.categories.ExistingIDs(ctx, []uuid.UUID{parsed})
				if err != nil {
					return nil, nil, err
				}
				if len(found) == 1 {
					id, ok = parsed, true
				}
			}
		}
		if !ok {
			unresolved = append(unresolved, tok)
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	if len(unresolved) > 0 {
		return nil, unresolved, nil
	}
	return ids, nil, nil
}

// CategoryNames maps ids to names for display. Unknown ids are absent.
func (r *Resolver) CategoryNames(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]string, error) {
	if len(ids) == 0 {
		return map[uuid.UUID]string{}, nil
	}
	return r.categories.NamesByID(ctx, ids)
}
