package db

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
)

func TestIsRetryable(t *testing.T) {
	require.False(t, IsRetryable(nil))
	require.False(t, IsRetryable(errors.New("boom")))
	require.True(t, IsRetryable(&pgconn.PgError{Code: "40001"}))
	require.True(t, IsRetryable(&pgconn.PgError{Code: "40P01"}))
	require.False(t, IsRetryable(&pgconn.PgError{Code: "23505"}))

	wrapped := fmt.Errorf("insert order: %w", &pgconn.PgError{Code: "40001"})
	require.True(t, IsRetryable(wrapped))
}

func TestUniqueViolation(t *testing.T) {
	_, ok := UniqueViolation(errors.New("boom"))
	require.False(t, ok)

	_, ok = UniqueViolation(&pgconn.PgError{Code: "40001"})
	require.False(t, ok)

	name, ok := UniqueViolation(fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505", ConstraintName: "orders_number_key"}))
	require.True(t, ok)
	require.Equal(t, "orders_number_key", name)
}
