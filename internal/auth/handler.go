package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"quizbank/internal/app/apiresp"
	"quizbank/internal/user"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type Authenticator interface {
	Authenticate(ctx context.Context, email, password string) (*user.User, error)
}

type Handler struct {
	users  UserLookup
	authn  Authenticator
	tokens *TokenIssuer
	log    *logrus.Entry
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string     `json:"token"`
	ExpiresAt time.Time  `json:"expiresAt"`
	User      *user.User `json:"user"`
}

type userDirectory interface {
	UserLookup
	Authenticator
}

func NewHandler(users userDirectory, tokens *TokenIssuer, log *logrus.Entry) *Handler {
	return &Handler{users: users, authn: users, tokens: tokens, log: log}
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apiresp.WriteError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}

	u, err := h.authn.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, user.ErrInvalidCredentials) {
			apiresp.WriteError(w, r, http.StatusUnauthorized, "Invalid email or password")
			return
		}
		apiresp.WriteServiceError(w, r, err)
		return
	}

	token, expiresAt, err := h.tokens.Issue(u.ID, u.Role)
	if err != nil {
		h.log.WithError(err).Error("issue login token")
		apiresp.WriteError(w, r, http.StatusInternalServerError, "cannot create session")
		return
	}
	h.log.WithField("user_id", u.ID.String()).Info("user logged in")
	apiresp.WriteOK(w, r, http.StatusOK, loginResponse{Token: token, ExpiresAt: expiresAt, User: u})
}

// ActorID returns the id of the authenticated caller, or uuid.Nil.
func ActorID(ctx context.Context) uuid.UUID {
	if u, ok := CurrentUser(ctx); ok {
		return u.ID
	}
	return uuid.Nil
}
