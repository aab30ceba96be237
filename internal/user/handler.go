package user

import (
	"context"
	"encoding/json"
	"net/http"

	"quizbank/internal/app/apiresp"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type Handler struct {
	svc userService
}

type userService interface {
	Create(ctx context.Context, in CreateInput) (*User, error)
	List(ctx context.Context) ([]User, error)
	Get(ctx context.Context, id uuid.UUID) (*User, error)
	Update(ctx context.Context, id uuid.UUID, in UpdateInput) (*User, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateInput
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apiresp.WriteError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}
	u, err := h.svc.Create(r.Context(), req)
	if err != nil {
		apiresp.WriteServiceError(w, r, err)
		return
	}
	apiresp.WriteOK(w, r, http.StatusCreated, u)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.List(r.Context())
	if err != nil {
		apiresp.WriteServiceError(w, r, err)
		return
	}
	apiresp.WriteOK(w, r, http.StatusOK, items)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := userID(w, r)
	if !ok {
		return
	}
	u, err := h.svc.Get(r.Context(), id)
	if err != nil {
		apiresp.WriteServiceError(w, r, err)
		return
	}
	apiresp.WriteOK(w, r, http.StatusOK, u)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := userID(w, r)
	if !ok {
		return
	}
	var req UpdateInput
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apiresp.WriteError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}
	u, err := h.svc.Update(r.Context(), id, req)
	if err != nil {
		apiresp.WriteServiceError(w, r, err)
		return
	}
	apiresp.WriteOK(w, r, http.StatusOK, u)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := userID(w, r)
	if !ok {
		return
	}
	if err := h.svc.Delete(r.Context(), id); err != nil {
		apiresp.WriteServiceError(w, r, err)
		return
	}
	apiresp.WriteOK(w, r, http.StatusOK, map[string]string{"message": "User deleted successfully"})
}

func userID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		apiresp.WriteError(w, r, http.StatusNotFound, "User not found")
		return uuid.Nil, false
	}
	return id, true
}
