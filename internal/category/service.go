package category

import (
	"context"
	"errors"
	"strings"
	"time"

	"quizbank/internal/apperr"
	"quizbank/internal/validation"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

var (
	ErrCategoryNotFound  = apperr.New(apperr.ErrNotFound, "Category not found")
	ErrNameRequired      = apperr.New(apperr.ErrValidation, "Category name is required")
	ErrCategoryExists    = apperr.New(apperr.ErrDuplicate, "Category already exists")
	ErrCategoryNameTaken = apperr.New(apperr.ErrDuplicate, "Category name already exists")
)

type Category struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Store persists categories. FindByName matches case-insensitively.
type Store interface {
	Create(ctx context.Context, c *Category) error
	Get(ctx context.Context, id uuid.UUID) (*Category, error)
	FindByName(ctx context.Context, name string) (*Category, error)
	FindMany(ctx context.Context, ids []uuid.UUID) ([]Category, error)
	List(ctx context.Context) ([]Category, error)
	Update(ctx context.Context, c *Category) error
	Delete(ctx context.Context, id uuid.UUID) (*Category, error)
}

// QuestionPruner removes a category id from every question that references it.
type QuestionPruner interface {
	RemoveCategory(ctx context.Context, categoryID uuid.UUID) (int64, error)
}

type Service struct {
	store    Store
	pruner   QuestionPruner
	validate *validation.Validator
	log      *logrus.Entry
	now      func() time.Time
}

type nameInput struct {
	Name string `json:"name" validate:"required,max=120"`
}

type DeleteResult struct {
	Category         *Category `json:"category"`
	QuestionsUpdated int64     `json:"questionsUpdated"`
}

func NewService(store Store, pruner QuestionPruner, v *validation.Validator, log *logrus.Entry) *Service {
	return &Service{
		store:    store,
		pruner:   pruner,
		validate: v,
		log:      log,
		now:      time.Now,
	}
}

func (s *Service) Create(ctx context.Context, name string) (*Category, error) {
	name, err := s.cleanName(name)
	if err != nil {
		return nil, err
	}

	existing, err := s.store.FindByName(ctx, name)
	if err != nil && !errors.Is(err, ErrCategoryNotFound) {
		return nil, err
	}
	if existing != nil {
		return nil, ErrCategoryExists
	}

	now := s.now().UTC()
	c := &Category{ID: uuid.New(), Name: name, CreatedAt: now, UpdatedAt: now}
	if err := s.store.Create(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *Service) List(ctx context.Context) ([]Category, error) {
	return s.store.List(ctx)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Category, error) {
	return s.store.Get(ctx, id)
}

func (s *Service) Update(ctx context.Context, id uuid.UUID, name string) (*Category, error) {
	name, err := s.cleanName(name)
	if err != nil {
		return nil, err
	}

	existing, err := s.store.FindByName(ctx, name)
	if err != nil && !errors.Is(err, ErrCategoryNotFound) {
		return nil, err
	}
	if existing != nil && existing.ID != id {
		return nil, ErrCategoryNameTaken
	}

	c, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	c.Name = name
	c.UpdatedAt = s.now().UTC()
	if err := s.store.Update(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// Delete removes the category and then pulls its id out of every question.
// The two steps are not atomic; a question written in between can keep a
// dangling id until it is next pruned.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) (*DeleteResult, error) {
	c, err := s.store.Delete(ctx, id)
	if err != nil {
		return nil, err
	}
	n, err := s.pruner.RemoveCategory(ctx, id)
	if err != nil {
		return nil, err
	}
	s.log.WithFields(logrus.Fields{
		"category_id":       id.String(),
		"questions_updated": n,
	}).Info("category deleted")
	return &DeleteResult{Category: c, QuestionsUpdated: n}, nil
}

// ExistingIDs returns the subset of ids that reference stored categories.
func (s *Service) ExistingIDs(ctx context.Context, ids []uuid.UUID) ([]uuid.UUID, error) {
	items, err := s.store.FindMany(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := make([]uuid.UUID, 0, len(items))
	for _, c := range items {
		out = append(out, c.ID)
	}
	return out, nil
}

func (s *Service) IDByName(ctx context.Context, name string) (uuid.UUID, bool, error) {
	c, err := s.store.FindByName(ctx, strings.TrimSpace(name))
	if errors.Is(err, ErrCategoryNotFound) {
		return uuid.Nil, false, nil
	}
	if err != nil {
		return uuid.Nil, false, err
	}
	return c.ID, true, nil
}

func (s *Service) NamesByID(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]string, error) {
	items, err := s.store.FindMany(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := make(map[uuid.UUID]string, len(items))
	for _, c := range items {
		out[c.ID] = c.Name
	}
	return out, nil
}

func (s *Service) cleanName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", ErrNameRequired
	}
	if err := s.validate.Struct(nameInput{Name: name}); err != nil {
		return "", err
	}
	return name, nil
}
