// README: Quote aggregate, line items and status definitions.
package quote

import (
	"time"

	"motoshop/internal/apperror"
	"motoshop/internal/types"
)

type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

type ItemType string

const (
	ItemService ItemType = "service"
	ItemPart    ItemType = "part"
	ItemCustom  ItemType = "custom"
)

func (t ItemType) Valid() bool {
	switch t {
	case ItemService, ItemPart, ItemCustom:
		return true
	}
	return false
}

// Item is a priced line. UnitPrice is in whole currency units.
type Item struct {
	Type      ItemType `json:"type"`
	Name      string   `json:"name"`
	UnitPrice int64    `json:"unit_price"`
	Quantity  int      `json:"quantity"`
}

func (i Item) LineTotal() int64 {
	return i.UnitPrice * int64(i.Quantity)
}

type Quote struct {
	ID              types.ID   `json:"id"`
	ServiceOrderID  types.ID   `json:"service_order_id"`
	Items           []Item     `json:"items"`
	Subtotal        int64      `json:"subtotal"`
	Tax             float64    `json:"tax"`
	TaxRate         float64    `json:"tax_rate"`
	GrandTotal      int64      `json:"grand_total"`
	Currency        string     `json:"currency"`
	Status          Status     `json:"status"`
	RejectionReason *string    `json:"rejection_reason,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	ResolvedAt      *time.Time `json:"resolved_at,omitempty"`
}

// Total is the amount the customer is asked to approve.
var (
	ErrNotFound      = apperror.New(apperror.NotFound, "quote not found")
	ErrBadRequest    = apperror.New(apperror.Validation, "invalid quote")
	ErrPendingExists = apperror.New(apperror.Validation, "a pending quote already exists for this service order")
	ErrNotPending    = apperror.New(apperror.InvalidState, "quote is not pending")
)
