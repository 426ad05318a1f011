package categories

import (
	"time"

	"github.com/google/uuid"
)

// Category groups products.
type Category struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CategoryForm is the create/update payload.
type CategoryForm struct {
	Name string `json:"name" validate:"required"`
}
