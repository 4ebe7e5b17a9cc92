// README: Bay aggregate and status definitions.
package bay

import (
	"time"

	"motoshop/internal/apperror"
	"motoshop/internal/types"
)

type Status string

const (
	StatusAvailable Status = "available"
	StatusOccupied  Status = "occupied"
	StatusInactive  Status = "inactive"
)

type Bay struct {
	ID          types.ID  `json:"id"`
	Number      int       `json:"number"`
	Description string    `json:"description"`
	Status      Status    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Schedulable reports whether the bay may accept new task assignments.
func (b *Bay) Schedulable() bool {
	return b.Status != StatusInactive
}

var (
	ErrNotFound   = apperror.New(apperror.NotFound, "bay not found")
	ErrInactive   = apperror.New(apperror.BayInactive, "bay is inactive")
	ErrBadRequest = apperror.New(apperror.Validation, "invalid bay")
	ErrDuplicate  = apperror.New(apperror.Validation, "bay number already exists")
	ErrReferenced = apperror.New(apperror.InvalidState, "bay is referenced by tasks")
)
