package user

import (
	"context"
	"errors"
	"strings"
	"time"

	"quizbank/internal/apperr"
	"quizbank/internal/validation"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

var (
	ErrUserNotFound       = apperr.New(apperr.ErrNotFound, "User not found")
	ErrUserExists         = apperr.New(apperr.ErrDuplicate, "User with this email or username already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

type User struct {
	ID           uuid.UUID `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         string    `json:"role"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

// Store persists users. Username and email are stored lowercase; lookups
// expect lowercase input.
type Store interface {
	Create(ctx context.Context, u *User) error
	Get(ctx context.Context, id uuid.UUID) (*User, error)
	FindByUsername(ctx context.Context, username string) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	ExistsByUsernameOrEmail(ctx context.Context, username, email string, except uuid.UUID) (bool, error)
	List(ctx context.Context) ([]User, error)
	Update(ctx context.Context, u *User) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type CreateInput struct {
	Username string `json:"username" validate:"required,min=3,max=50,username"`
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,min=6,max=72"`
	Role     string `json:"role" validate:"omitempty,oneof=user admin"`
}

// UpdateInput carries a partial update; nil fields are left untouched.
type UpdateInput struct {
	Username *string `json:"username" validate:"omitempty,min=3,max=50,username"`
	Email    *string `json:"email" validate:"omitempty,email,max=254"`
	Password *string `json:"password" validate:"omitempty,min=6,max=72"`
	Role     *string `json:"role" validate:"omitempty,oneof=user admin"`
}

type ServiceConfig struct {
	BcryptCost int
}

type Service struct {
	store      Store
	validate   *validation.Validator
	log        *logrus.Entry
	bcryptCost int
	now        func() time.Time
}

func NewService(store Store, v *validation.Validator, log *logrus.Entry, cfg ServiceConfig) *Service {
	if cfg.BcryptCost <= 0 {
		cfg.BcryptCost = bcrypt.DefaultCost
	}
	return &Service{
		store:      store,
		validate:   v,
		log:        log,
		bcryptCost: cfg.BcryptCost,
		now:        time.Now,
	}
}

func (s *Service) Create(ctx context.Context, in CreateInput) (*User, error) {
	in.Username = normalizeIdentity(in.Username)
	in.Email = normalizeIdentity(in.Email)
	if err := s.validate.Struct(in); err != nil {
		return nil, err
	}
	if in.Role == "" {
		in.Role = RoleUser
	}

	taken, err := s.store.ExistsByUsernameOrEmail(ctx, in.Username, in.Email, uuid.Nil)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, ErrUserExists
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.bcryptCost)
	if err != nil {
		return nil, apperr.Upstream("hash password", err)
	}

	now := s.now().UTC()
	u := &User{
		ID:           uuid.New(),
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: string(hash),
		Role:         in.Role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.Create(ctx, u); err != nil {
		return nil, err
	}
	s.log.WithFields(logrus.Fields{"user_id": u.ID.String(), "role": u.Role}).Info("user created")
	return u, nil
}

func (s *Service) List(ctx context.Context) ([]User, error) {
	return s.store.List(ctx)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*User, error) {
	return s.store.Get(ctx, id)
}

func (s *Service) Update(ctx context.Context, id uuid.UUID, in UpdateInput) (*User, error) {
	if in.Username != nil {
		v := normalizeIdentity(*in.Username)
		in.Username = &v
	}
	if in.Email != nil {
		v := normalizeIdentity(*in.Email)
		in.Email = &v
	}
	if err := s.validate.Struct(in); err != nil {
		return nil, err
	}

	u, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if in.Username != nil || in.Email != nil {
		username, email := u.Username, u.Email
		if in.Username != nil {
			username = *in.Username
		}
		if in.Email != nil {
			email = *in.Email
		}
		taken, err := s.store.ExistsByUsernameOrEmail(ctx, username, email, u.ID)
		if err != nil {
			return nil, err
		}
		if taken {
			return nil, ErrUserExists
		}
		u.Username, u.Email = username, email
	}
	if in.Role != nil {
		u.Role = *in.Role
	}
	if in.Password != nil {
		hash, err := bcrypt.GenerateFromPassword([]byte(*in.Password), s.bcryptCost)
		if err != nil {
			return nil, apperr.Upstream("hash password", err)
		}
		u.PasswordHash = string(hash)
	}
	u.UpdatedAt = s.now().UTC()

	if err := s.store.Update(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	s.log.WithField("user_id", id.String()).Info("user deleted")
	return nil
}

// Authenticate checks an email/password pair. Unknown email and wrong
// password report the same error.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*User, error) {
	email = normalizeIdentity(email)
	if email == "" || password == "" {
		return nil, ErrInvalidCredentials
	}
	u, err := s.store.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return u, nil
}

// Exists reports whether id names a stored user.
func (s *Service) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	_, err := s.store.Get(ctx, id)
	if errors.Is(err, ErrUserNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *Service) IDByUsername(ctx context.Context, username string) (uuid.UUID, bool, error) {
	u, err := s.store.FindByUsername(ctx, normalizeIdentity(username))
	if errors.Is(err, ErrUserNotFound) {
		return uuid.Nil, false, nil
	}
	if err != nil {
		return uuid.Nil, false, err
	}
	return u.ID, true, nil
}

func normalizeIdentity(v string) string {
	return strings.ToLower(strings.TrimSpace(v))
}
