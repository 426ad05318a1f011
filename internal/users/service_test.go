package users

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/central-erp/central-erp/internal/shared"
)

type memRepo struct {
	users map[uuid.UUID]User
}

func newMemRepo() *memRepo {
	return &memRepo{users: make(map[uuid.UUID]User)}
}

func (r *memRepo) List(ctx context.Context) ([]User, error) {
	var out []User
	for _, u := range r.users {
		out = append(out, u)
	}
	return out, nil
}

func (r *memRepo) Get(ctx context.Context, id uuid.UUID) (User, error) {
	u, ok := r.users[id]
	if !ok {
		return User{}, pgx.ErrNoRows
	}
	return u, nil
}

func (r *memRepo) Create(ctx context.Context, user User) error {
	r.users[user.ID] = user
	return nil
}

func (r *memRepo) Update(ctx context.Context, user User) error {
	if _, ok := r.users[user.ID]; !ok {
		return pgx.ErrNoRows
	}
	r.users[user.ID] = user
	return nil
}

func (r *memRepo) Delete(ctx context.Context, id uuid.UUID) error {
	if _, ok := r.users[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(r.users, id)
	return nil
}

func TestCreateUserHashesPassword(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(repo)

	user, err := svc.Create(context.Background(), CreateUserRequest{
		Name:     "Ana",
		Email:    "ana@example.com",
		Role:     RoleOperator,
		Password: "correct horse",
	})
	require.NoError(t, err)
	require.True(t, user.IsActive)

	stored := repo.users[user.ID]
	require.NotEqual(t, "correct horse", stored.PasswordHash)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("correct horse")))
}

func TestCreateUserRejectsUnknownRole(t *testing.T) {
	svc := NewService(newMemRepo())
	_, err := svc.Create(context.Background(), CreateUserRequest{
		Name:     "Ana",
		Email:    "ana@example.com",
		Role:     Role("SUPERUSER"),
		Password: "correct horse",
	})
	require.Error(t, err)
}

func TestUpdateUserRehashesNewPassword(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(repo)

	user, err := svc.Create(context.Background(), CreateUserRequest{
		Name:     "Ana",
		Email:    "ana@example.com",
		Role:     RoleAdmin,
		Password: "first password",
	})
	require.NoError(t, err)
	oldHash := repo.users[user.ID].PasswordHash

	next := "second password"
	_, err = svc.Update(context.Background(), user.ID, UpdateUserRequest{Password: &next})
	require.NoError(t, err)

	newHash := repo.users[user.ID].PasswordHash
	require.NotEqual(t, oldHash, newHash)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(newHash), []byte(next)))
}

func TestGetUserNotFound(t *testing.T) {
	svc := NewService(newMemRepo())
	_, err := svc.Get(context.Background(), uuid.New())
	require.ErrorIs(t, err, shared.ErrNotFound)
}
