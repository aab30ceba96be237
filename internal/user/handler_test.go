package user

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type mockUserService struct {
	createFn func(ctx context.Context, in CreateInput) (*User, error)
	getFn    func(ctx context.Context, id uuid.UUID) (*User, error)
}

func (m *mockUserService) Create(ctx context.Context, in CreateInput) (*User, error) {
	if m.createFn == nil {
		return nil, errors.New("not implemented")
	}
	return m.createFn(ctx, in)
}

func (m *mockUserService) List(ctx context.Context) ([]User, error) {
	return nil, errors.New("not implemented")
}

func (m *mockUserService) Get(ctx context.Context, id uuid.UUID) (*User, error) {
	if m.getFn == nil {
		return nil, errors.New("not implemented")
	}
	return m.getFn(ctx, id)
}

func (m *mockUserService) Update(ctx context.Context, id uuid.UUID, in UpdateInput) (*User, error) {
	return nil, errors.New("not implemented")
}

func (m *mockUserService) Delete(ctx context.Context, id uuid.UUID) error {
	return errors.New("not implemented")
}

func TestCreateUserHidesPasswordHash(t *testing.T) {
	h := &Handler{svc: &mockUserService{
		createFn: func(ctx context.Context, in CreateInput) (*User, error) {
			return &User{ID: uuid.New(), Username: in.Username, Email: in.Email, PasswordHash: "hash", Role: RoleUser}, nil
		},
	}}
	body := `{"username":"gina","email":"gina@example.com","password":"secret123"}`
	req := httptest.NewRequest(http.MethodPost, "/api/users", bytes.NewBufferString(body))
	w := httptest.NewRecorder()
	h.Create(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", w.Code)
	}
	if bytes.Contains(w.Body.Bytes(), []byte("hash")) {
		t.Fatalf("password hash leaked: %s", w.Body.String())
	}
}

func TestCreateUserDuplicateIs400(t *testing.T) {
	h := &Handler{svc: &mockUserService{
		createFn: func(ctx context.Context, in CreateInput) (*User, error) { return nil, ErrUserExists },
	}}
	req := httptest.NewRequest(http.MethodPost, "/api/users", bytes.NewBufferString(`{"username":"a"}`))
	w := httptest.NewRecorder()
	h.Create(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	var out map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &out)
	if out["error"].(map[string]any)["message"] != "User with this email or username already exists" {
		t.Fatalf("unexpected body %s", w.Body.String())
	}
}

func TestGetUserNotFound(t *testing.T) {
	id := uuid.New()
	h := &Handler{svc: &mockUserService{
		getFn: func(ctx context.Context, got uuid.UUID) (*User, error) { return nil, ErrUserNotFound },
	}}
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("id", id.String())
	req := httptest.NewRequest(http.MethodGet, "/api/users/"+id.String(), nil)
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
	w := httptest.NewRecorder()
	h.Get(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}
