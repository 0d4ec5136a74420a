package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"bookhub/internal/apperr"
)

const (
	MsgPasswordMismatch   = "Passwords do not match."
	MsgUsernameTaken      = "A user with that username already exists."
	MsgInvalidCredentials = "Unable to log in with provided credentials."
)

var validate = validator.New()

type RegisterInput struct {
	Username        string `json:"username" form:"username" validate:"required,min=3,max=150"`
	FirstName       string `json:"first_name" form:"first_name" validate:"max=150"`
	LastName        string `json:"last_name" form:"last_name" validate:"max=150"`
	Password        string `json:"password" form:"password" validate:"required,min=8,max=72"`
	ConfirmPassword string `json:"confirm_password" form:"confirm_password" validate:"required"`
	IsStaff         bool   `json:"is_staff" form:"is_staff"`
}

type LoginInput struct {
	Username string `json:"username" form:"username" validate:"required"`
	Password string `json:"password" form:"password" validate:"required"`
}

// Service owns account lifecycle: registration, credential checks and
// token revocation.
type Service struct {
	Repo *Repo
}

func NewService(repo *Repo) *Service {
	return &Service{Repo: repo}
}

func (s *Service) Register(ctx context.Context, in RegisterInput) (*User, error) {
	in.Username = strings.TrimSpace(in.Username)
	if err := checkStruct(in); err != nil {
		return nil, err
	}
	if in.Password != in.ConfirmPassword {
		return nil, apperr.Validation(MsgPasswordMismatch)
	}

	if u, err := s.Repo.GetByUsername(ctx, in.Username); err != nil {
		return nil, err
	} else if u != nil {
		return nil, apperr.Conflict(MsgUsernameTaken)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	u := User{
		ID:           uuid.NewString(),
		Username:     in.Username,
		FirstName:    strings.TrimSpace(in.FirstName),
		LastName:     strings.TrimSpace(in.LastName),
		PasswordHash: string(hash),
		IsStaff:      in.IsStaff,
	}
	if err := s.Repo.CreateUser(ctx, u); err != nil {
		return nil, err
	}
	return s.Repo.GetByID(ctx, u.ID)
}

// Login checks credentials without revealing which part was wrong.
func (s *Service) Login(ctx context.Context, in LoginInput) (*User, error) {
	in.Username = strings.TrimSpace(in.Username)
	if err := checkStruct(in); err != nil {
		return nil, err
	}

	u, err := s.Repo.GetByUsername(ctx, in.Username)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, apperr.Validation(MsgInvalidCredentials)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(in.Password)); err != nil {
		return nil, apperr.Validation(MsgInvalidCredentials)
	}
	return u, nil
}

// Logout revokes every token issued to the user so far.
func (s *Service) Logout(ctx context.Context, userID string) error {
	return s.Repo.BumpTokenVersion(ctx, userID)
}

// EnsureSuperuser creates the bootstrap administrator, or resets the
// password and flags of an existing account with that username.
func (s *Service) EnsureSuperuser(ctx context.Context, username, password string) (*User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, apperr.Validation("superuser username and password are required")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	u, err := s.Repo.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if u != nil {
		if err := s.Repo.UpdateRole(ctx, u.ID, string(hash), true, true); err != nil {
			return nil, err
		}
		return s.Repo.GetByID(ctx, u.ID)
	}

	id := uuid.NewString()
	if err := s.Repo.CreateUser(ctx, User{
		ID:           id,
		Username:     username,
		PasswordHash: string(hash),
		IsStaff:      true,
		IsSuperuser:  true,
	}); err != nil {
		return nil, err
	}
	return s.Repo.GetByID(ctx, id)
}

func checkStruct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return fmt.Errorf("validate: %w", err)
	}
	fe := ve[0]
	msg := fe.Tag()
	if fe.Param() != "" {
		msg += "=" + fe.Param()
	}
	return apperr.Validation(fmt.Sprintf("%s: %s", toSnake(fe.Field()), msg))
}

func toSnake(s string) string {
	var b strings.Builder
	for i, r := range s {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('_')
			}
			r += 'a' - 'A'
		}
		b.WriteRune(r)
	}
	return b.String()
}
