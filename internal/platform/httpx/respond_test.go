package httpx

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestQueryTime(t *testing.T) {
	t.Run("missing yields nil", func(t *testing.T) {
		r := httptest.NewRequest("GET", "/orders", nil)
		got, err := QueryTime(r, "from")
		require.NoError(t, err)
		require.Nil(t, got)
	})

	t.Run("rfc3339", func(t *testing.T) {
		r := httptest.NewRequest("GET", "/orders?from=2026-01-15T08:30:00Z", nil)
		got, err := QueryTime(r, "from")
		require.NoError(t, err)
		require.Equal(t, time.Date(2026, 1, 15, 8, 30, 0, 0, time.UTC), got.UTC())
	})

	t.Run("plain date", func(t *testing.T) {
		r := httptest.NewRequest("GET", "/orders?to=2026-01-31", nil)
		got, err := QueryTime(r, "to")
		require.NoError(t, err)
		require.Equal(t, time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC), got.UTC())
	})

	t.Run("garbage rejected", func(t *testing.T) {
		r := httptest.NewRequest("GET", "/orders?from=yesterday", nil)
		_, err := QueryTime(r, "from")
		require.ErrorIs(t, err, ErrValidation)
	})
}
