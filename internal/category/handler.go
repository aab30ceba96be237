package category

import (
	"context"
	"encoding/json"
	"net/http"

	"quizbank/internal/app/apiresp"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type Handler struct {
	svc categoryService
}

type categoryService interface {
	Create(ctx context.Context, name string) (*Category, error)
	List(ctx context.Context) ([]Category, error)
	Get(ctx context.Context, id uuid.UUID) (*Category, error)
	Update(ctx context.Context, id uuid.UUID, name string) (*Category, error)
	Delete(ctx context.Context, id uuid.UUID) (*DeleteResult, error)
}

type categoryRequest struct {
	Name string `json:"name"`
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apiresp.WriteError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}
	item, err := h.svc.Create(r.Context(), req.Name)
	if err != nil {
		apiresp.WriteServiceError(w, r, err)
		return
	}
	apiresp.WriteOK(w, r, http.StatusCreated, item)
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
	id, ok := categoryID(w, r)
	if !ok {
		return
	}
	item, err := h.svc.Get(r.Context(), id)
	if err != nil {
		apiresp.WriteServiceError(w, r, err)
		return
	}
	apiresp.WriteOK(w, r, http.StatusOK, item)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := categoryID(w, r)
	if !ok {
		return
	}
	var req categoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apiresp.WriteError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}
	item, err := h.svc.Update(r.Context(), id, req.Name)
	if err != nil {
		apiresp.WriteServiceError(w, r, err)
		return
	}
	apiresp.WriteOK(w, r, http.StatusOK, item)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := categoryID(w, r)
	if !ok {
		return
	}
	res, err := h.svc.Delete(r.Context(), id)
	if err != nil {
		apiresp.WriteServiceError(w, r, err)
		return
	}
	apiresp.WriteOK(w, r, http.StatusOK, map[string]any{
		"message":          "Category deleted successfully",
		"category":         res.Category,
		"questionsUpdated": res.QuestionsUpdated,
	})
}

func categoryID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		apiresp.WriteError(w, r, http.StatusNotFound, "Category not found")
		return uuid.Nil, false
	}
	return id, true
}
