package httpx

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/central-erp/central-erp/internal/shared"
)

func TestRespondErrorMapping(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
	}{
		{"not found", shared.NewNotFound("order", uuid.NewString()), http.StatusNotFound},
		{"insufficient stock", &shared.InsufficientStockError{ProductName: "Arroz", Available: 5, Requested: 6}, http.StatusBadRequest},
		{"conflict", &shared.ConflictError{Fields: []string{"number"}}, http.StatusConflict},
		{"validation", fmt.Errorf("%w: qty must be positive", ErrValidation), http.StatusBadRequest},
		{"service validation", fmt.Errorf("%w: item price has more than two decimal places", shared.ErrValidation), http.StatusBadRequest},
		{"internal", fmt.Errorf("store unavailable"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			RespondError(rec, tc.err)
			require.Equal(t, tc.status, rec.Code)
			require.Equal(t, "application/json", rec.Header().Get("Content-Type"))

			var problem ProblemDetail
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &problem))
			require.Equal(t, tc.status, problem.Status)
		})
	}
}

func TestRespondErrorConflictListsFields(t *testing.T) {
	rec := httptest.NewRecorder()
	RespondError(rec, fmt.Errorf("create product: %w", &shared.ConflictError{Fields: []string{"sku"}}))

	var problem ProblemDetail
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &problem))
	require.Equal(t, []string{"sku"}, problem.Fields)
}
