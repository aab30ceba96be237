package category

import (
	"context"
	"errors"
	"io"
	"sort"
	"strings"
	"testing"

	"quizbank/internal/apperr"
	"quizbank/internal/validation"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type memStore struct {
	items map[uuid.UUID]Category
}

func newMemStore() *memStore {
	return &memStore{items: make(map[uuid.UUID]Category)}
}

func (m *memStore) Create(ctx context.Context, c *Category) error {
	m.items[c.ID] = *c
	return nil
}

func (m *memStore) Get(ctx context.Context, id uuid.UUID) (*Category, error) {
	c, ok := m.items[id]
	if !ok {
		return nil, ErrCategoryNotFound
	}
	return &c, nil
}

func (m *memStore) FindByName(ctx context.Context, name string) (*Category, error) {
	for _, c := range m.items {
		if strings.EqualFold(c.Name, name) {
			c := c
			return &c, nil
		}
	}
	return nil, ErrCategoryNotFound
}

func (m *memStore) FindMany(ctx context.Context, ids []uuid.UUID) ([]Category, error) {
	out := make([]Category, 0)
	for _, id := range ids {
		if c, ok := m.items[id]; ok {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *memStore) List(ctx context.Context) ([]Category, error) {
	out := make([]Category, 0, len(m.items))
	for _, c := range m.items {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *memStore) Update(ctx context.Context, c *Category) error {
	if _, ok := m.items[c.ID]; !ok {
		return ErrCategoryNotFound
	}
	m.items[c.ID] = *c
	return nil
}

func (m *memStore) Delete(ctx context.Context, id uuid.UUID) (*Category, error) {
	c, ok := m.items[id]
	if !ok {
		return nil, ErrCategoryNotFound
	}
	delete(m.items, id)
	return &c, nil
}

// questionRefs stands in for the question store: question id -> category ids.
type questionRefs struct {
	refs map[string][]uuid.UUID
	err  error
}

func (q *questionRefs) RemoveCategory(ctx context.Context, categoryID uuid.UUID) (int64, error) {
	if q.err != nil {
		return 0, q.err
	}
	var n int64
	for qid, ids := range q.refs {
		kept := ids[:0]
		changed := false
		for _, id := range ids {
			if id == categoryID {
				changed = true
				continue
			}
			kept = append(kept, id)
		}
		q.refs[qid] = kept
		if changed {
			n++
		}
	}
	return n, nil
}

func newTestService(store Store, pruner QuestionPruner) *Service {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return NewService(store, pruner, validation.New(), logrus.NewEntry(l))
}

func TestCreateTrimsAndRejectsCaseInsensitiveDuplicate(t *testing.T) {
	svc := newTestService(newMemStore(), &questionRefs{})
	ctx := context.Background()

	c, err := svc.Create(ctx, "  Science  ")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if c.Name != "Science" || c.ID == uuid.Nil {
		t.Fatalf("unexpected category %+v", c)
	}

	_, err = svc.Create(ctx, "science")
	if !errors.Is(err, ErrCategoryExists) || !errors.Is(err, apperr.ErrDuplicate) {
		t.Fatalf("expected duplicate, got %v", err)
	}
}

func TestCreateRequiresName(t *testing.T) {
	svc := newTestService(newMemStore(), &questionRefs{})
	if _, err := svc.Create(context.Background(), "   "); !errors.Is(err, ErrNameRequired) {
		t.Fatalf("expected name required, got %v", err)
	}
}

func TestUpdateAllowsSameNameButNotOthers(t *testing.T) {
	svc := newTestService(newMemStore(), &questionRefs{})
	ctx := context.Background()
	a, _ := svc.Create(ctx, "Math")
	b, _ := svc.Create(ctx, "History")

	if _, err := svc.Update(ctx, a.ID, "MATH"); err != nil {
		t.Fatalf("renaming to own name should pass: %v", err)
	}
	if _, err := svc.Update(ctx, b.ID, "math"); !errors.Is(err, ErrCategoryNameTaken) {
		t.Fatalf("expected name taken, got %v", err)
	}
	if _, err := svc.Update(ctx, uuid.New(), "Geo"); !errors.Is(err, ErrCategoryNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestDeleteRemovesIDFromEveryQuestion(t *testing.T) {
	store := newMemStore()
	refs := &questionRefs{refs: map[string][]uuid.UUID{}}
	svc := newTestService(store, refs)
	ctx := context.Background()

	keep, _ := svc.Create(ctx, "Keep")
	gone, _ := svc.Create(ctx, "Gone")
	refs.refs["q1"] = []uuid.UUID{keep.ID, gone.ID}
	refs.refs["q2"] = []uuid.UUID{gone.ID}
	refs.refs["q3"] = []uuid.UUID{keep.ID}

	res, err := svc.Delete(ctx, gone.ID)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if res.QuestionsUpdated != 2 {
		t.Fatalf("expected 2 questions updated, got %d", res.QuestionsUpdated)
	}
	for qid, ids := range refs.refs {
		for _, id := range ids {
			if id == gone.ID {
				t.Fatalf("question %s still references deleted category", qid)
			}
		}
	}
	if len(refs.refs["q1"]) != 1 || refs.refs["q1"][0] != keep.ID {
		t.Fatalf("unrelated category should survive, got %v", refs.refs["q1"])
	}
	if _, err := svc.Get(ctx, gone.ID); !errors.Is(err, ErrCategoryNotFound) {
		t.Fatalf("expected deleted category to be gone")
	}
}

func TestDeleteUnknownCategory(t *testing.T) {
	refs := &questionRefs{refs: map[string][]uuid.UUID{}}
	svc := newTestService(newMemStore(), refs)
	if _, err := svc.Delete(context.Background(), uuid.New()); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestLookupHelpers(t *testing.T) {
	svc := newTestService(newMemStore(), &questionRefs{})
	ctx := context.Background()
	c, _ := svc.Create(ctx, "Physics")

	id, ok, err := svc.IDByName(ctx, " physics ")
	if err != nil || !ok || id != c.ID {
		t.Fatalf("IDByName: id=%v ok=%v err=%v", id, ok, err)
	}
	if _, ok, _ := svc.IDByName(ctx, "chemistry"); ok {
		t.Fatalf("expected unknown name to miss")
	}

	existing, err := svc.ExistingIDs(ctx, []uuid.UUID{c.ID, uuid.New()})
	if err != nil || len(existing) != 1 || existing[0] != c.ID {
		t.Fatalf("ExistingIDs: %v %v", existing, err)
	}

	names, err := svc.NamesByID(ctx, []uuid.UUID{c.ID})
	if err != nil || names[c.ID] != "Physics" {
		t.Fatalf("NamesByID: %v %v", names, err)
	}
}
