package users

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/central-erp/central-erp/internal/platform/db"
	"github.com/central-erp/central-erp/internal/shared"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) List(ctx context.Context) ([]User, error) {
	return s.repo.List(ctx)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (User, error) {
	u, err := s.repo.Get(ctx, id)
	if err != nil {
		if isNoRows(err) {
			return User{}, shared.NewNotFound("user", id.String())
		}
		return User{}, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func (s *Service) Create(ctx context.Context, req CreateUserRequest) (User, error) {
	if !req.Role.Valid() {
		return User{}, fmt.Errorf("%w: unknown role %q", shared.ErrValidation, req.Role)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, fmt.Errorf("users: hash password: %w", err)
	}

	user := User{
		ID:           uuid.New(),
		Name:         req.Name,
		Email:        req.Email,
		Role:         req.Role,
		PasswordHash: string(hash),
		IsActive:     true,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		if _, ok := db.UniqueViolation(err); ok {
			return User{}, &shared.ConflictError{Fields: []string{"email"}}
		}
		return User{}, fmt.Errorf("create user: %w", err)
	}
	return s.Get(ctx, user.ID)
}

func (s *Service) Update(ctx context.Context, id uuid.UUID, req UpdateUserRequest) (User, error) {
	if req.Role != nil && !req.Role.Valid() {
		return User{}, fmt.Errorf("%w: unknown role %q", shared.ErrValidation, *req.Role)
	}

	user, err := s.Get(ctx, id)
	if err != nil {
		return User{}, err
	}
	if req.Name != nil {
		user.Name = *req.Name
	}
	if req.Email != nil {
		user.Email = *req.Email
	}
	if req.Role != nil {
		user.Role = *req.Role
	}
	if req.IsActive != nil {
		user.IsActive = *req.IsActive
	}
	if req.Password != nil {
		hash, err := bcrypt.GenerateFromPassword([]byte(*req.Password), bcrypt.DefaultCost)
		if err != nil {
			return User{}, fmt.Errorf("users: hash password: %w", err)
		}
		user.PasswordHash = string(hash)
	}

	if err := s.repo.Update(ctx, user); err != nil {
		if isNoRows(err) {
			return User{}, shared.NewNotFound("user", id.String())
		}
		if _, ok := db.UniqueViolation(err); ok {
			return User{}, &shared.ConflictError{Fields: []string{"email"}}
		}
		return User{}, fmt.Errorf("update user: %w", err)
	}
	return s.Get(ctx, id)
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if isNoRows(err) {
			return shared.NewNotFound("user", id.String())
		}
		return fmt.Errorf("delete user: %w", err)
	}
	return nil
}
