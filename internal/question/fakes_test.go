package question

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"quizbank/internal/media"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type memStore struct {
	mu      sync.Mutex
	items   map[uuid.UUID]*Question
	order   []uuid.UUID
	creates int
	// panicOn makes Create panic for this title text.
	panicOn string
}

func newMemStore() *memStore {
	return &memStore{items: make(map[uuid.UUID]*Question)}
}

func (m *memStore) Create(ctx context.Context, q *Question) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.panicOn != "" && q.Title.Text == m.panicOn {
		panic("store exploded")
	}
	m.items[q.ID] = q.clone()
	m.order = append(m.order, q.ID)
	m.creates++
	return nil
}

func (m *memStore) Get(ctx context.Context, id uuid.UUID) (*Question, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	q, ok := m.items[id]
	if !ok {
		return nil, ErrQuestionNotFound
	}
	return q.clone(), nil
}

func (m *memStore) List(ctx context.Context, f ListFilter) ([]Question, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Question, 0)
	for _, id := range m.order {
		q, ok := m.items[id]
		if !ok {
			continue
		}
		if f.CategoryID != nil && !containsID(q.Categories, *f.CategoryID) {
			continue
		}
		if f.Tag != "" && !containsString(q.Tags, f.Tag) {
			continue
		}
		if f.From != nil && q.CreatedAt.Before(*f.From) {
			continue
		}
		if f.To != nil && !q.CreatedAt.Before(*f.To) {
			continue
		}
		out = append(out, *q.clone())
	}
	return out, nil
}

func (m *memStore) Update(ctx context.Context, q *Question) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[q.ID]; !ok {
		return ErrQuestionNotFound
	}
	m.items[q.ID] = q.clone()
	return nil
}

func (m *memStore) Delete(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[id]; !ok {
		return ErrQuestionNotFound
	}
	delete(m.items, id)
	return nil
}

func (m *memStore) ExistsByTitleText(ctx context.Context, text string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	text = strings.TrimSpace(text)
	for _, q := range m.items {
		if strings.TrimSpace(q.Title.Text) == text {
			return true, nil
		}
	}
	return false, nil
}

func (m *memStore) RemoveCategory(ctx context.Context, categoryID uuid.UUID) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, q := range m.items {
		kept := make([]uuid.UUID, 0, len(q.Categories))
		for _, id := range q.Categories {
			if id != categoryID {
				kept = append(kept, id)
			}
		}
		if len(kept) != len(q.Categories) {
			q.Categories = kept
			n++
		}
	}
	return n, nil
}

func (m *memStore) all() []*Question {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Question, 0, len(m.order))
	for _, id := range m.order {
		if q, ok := m.items[id]; ok {
			out = append(out, q.clone())
		}
	}
	return out
}

type fakeCategories struct {
	byID map[uuid.UUID]string
}

func newFakeCategories(names ...string) *fakeCategories {
	c := &fakeCategories{byID: make(map[uuid.UUID]string)}
	for _, n := range names {
		c.byID[uuid.New()] = n
	}
	return c
}

func (c *fakeCategories) id(name string) uuid.UUID {
	for id, n := range c.byID {
		if n == name {
			return id
		}
	}
	panic("unknown category " + name)
}

func (c *fakeCategories) ExistingIDs(ctx context.Context, ids []uuid.UUID) ([]uuid.UUID, error) {
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, ok := c.byID[id]; ok {
			out = append(out, id)
		}
	}
	return out, nil
}

func (c *fakeCategories) IDByName(ctx context.Context, name string) (uuid.UUID, bool, error) {
	for id, n := range c.byID {
		if strings.EqualFold(n, strings.TrimSpace(name)) {
			return id, true, nil
		}
	}
	return uuid.Nil, false, nil
}

func (c *fakeCategories) NamesByID(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]string, error) {
	out := make(map[uuid.UUID]string, len(ids))
	for _, id := range ids {
		if n, ok := c.byID[id]; ok {
			out[id] = n
		}
	}
	return out, nil
}

type fakeUsers struct {
	byName map[string]uuid.UUID
}

func newFakeUsers(names ...string) *fakeUsers {
	u := &fakeUsers{byName: make(map[string]uuid.UUID)}
	for _, n := range names {
		u.byName[n] = uuid.New()
	}
	return u
}

func (u *fakeUsers) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	for _, v := range u.byName {
		if v == id {
			return true, nil
		}
	}
	return false, nil
}

func (u *fakeUsers) IDByUsername(ctx context.Context, username string) (uuid.UUID, bool, error) {
	id, ok := u.byName[strings.ToLower(username)]
	return id, ok, nil
}

// recordingMedia records upload order and can fail on a given folder call.
type recordingMedia struct {
	calls  []string
	failAt int
}

func (m *recordingMedia) Upload(ctx context.Context, obj media.Object) (string, error) {
	m.calls = append(m.calls, obj.Folder+"/"+obj.Filename)
	if m.failAt > 0 && len(m.calls) == m.failAt {
		return "", fmt.Errorf("quota exceeded")
	}
	return "https://cdn.test/" + obj.Folder + "/" + obj.Filename, nil
}

func testLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

type testEnv struct {
	svc   *Service
	store *memStore
	cats  *fakeCategories
	users *fakeUsers
	media *recordingMedia
}

func newTestEnv() *testEnv {
	env := &testEnv{
		store: newMemStore(),
		cats:  newFakeCategories("Math", "Science"),
		users: newFakeUsers("alice", "bob"),
		media: &recordingMedia{},
	}
	env.svc = NewService(ServiceDeps{
		Store:      env.store,
		Categories: env.cats,
		Users:      env.users,
		Media:      env.media,
		Log:        testLogger(),
	})
	return env
}

func structuredInput(title string, options ...string) RawInput {
	opts := make([]any, 0, len(options))
	for _, o := range options {
		opts = append(opts, map[string]any{"text": o})
	}
	return RawInput{
		"title":         map[string]any{"text": title},
		"options":       opts,
		"correctAnswer": "1",
	}
}

func containsID(ids []uuid.UUID, id uuid.UUID) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
