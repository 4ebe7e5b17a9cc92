// README: Quote arithmetic (subtotal, tax, grand total rounding).
package quote

import (
	"fmt"
	"math"
	"strings"

	"motoshop/internal/types"
)

type Totals struct {
	Subtotal   int64
	Tax        float64
	GrandTotal int64
}

// ComputeTotals sums price x quantity per line; tax is left unrounded and only
// the grand total is rounded to a whole currency unit.
func ComputeTotals(items []Item, taxRate float64) Totals {
	var subtotal int64
	for _, it := range items {
		subtotal += it.LineTotal()
	}
	tax := float64(subtotal) * taxRate
	return Totals{
		Subtotal:   subtotal,
		Tax:        tax,
		GrandTotal: types.RoundUnit(float64(subtotal) + tax),
	}
}

// MaxSubtotal bounds a quote's subtotal so that subtotal plus tax (rate <= 1)
// still fits in int64 after rounding.
const MaxSubtotal int64 = math.MaxInt64 / 4

// ValidateItems rejects empty quotes, malformed lines and totals above MaxSubtotal.
func ValidateItems(items []Item) error {
	if len(items) == 0 {
		return ErrBadRequest.With("field", "items").With("reason", "at least one item is required")
	}
	var subtotal int64
	for i, it := range items {
		field := fmt.Sprintf("items[%d]", i)
		switch {
		case !it.Type.Valid():
			return ErrBadRequest.With("field", field+".type")
		case strings.TrimSpace(it.Name) == "":
			return ErrBadRequest.With("field", field+".name")
		case it.UnitPrice < 0:
			return ErrBadRequest.With("field", field+".unit_price")
		case it.Quantity < 1:
			return ErrBadRequest.With("field", field+".quantity")
		case it.UnitPrice > 0 && int64(it.Quantity) > MaxSubtotal/it.UnitPrice:
			return ErrBadRequest.With("field", field+".unit_price").With("reason", "line total too large")
		}
		if subtotal > MaxSubtotal-it.LineTotal() {
			return ErrBadRequest.With("field", field+".unit_price").With("reason", "subtotal too large")
		}
		subtotal += it.LineTotal()
	}
	return nil
}
