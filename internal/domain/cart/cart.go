// Package cart holds the shopper cart model: line items, the reducer that
// transitions cart state, derived totals and the error kinds shared by the
// cart synchronization layers.
package cart

import (
	"github.com/shopspring/decimal"
)

// Variant is a purchasable variant of a catalog product. It carries the
// monetary data the cart aggregates; the cart never computes a price itself.
type Variant struct {
	ID    string
	Price decimal.Decimal
	// MRP is the manufacturer's list price.
	MRP decimal.Decimal
}

// Product is the catalog input to an add-to-cart operation.
type Product struct {
	ID       string
	Name     string
	ImageURL string
	Variants []Variant
}

// DefaultVariant returns the first variant of the product, or nil when the
// product has none.
func (p Product) DefaultVariant() *Variant {
	if len(p.Variants) == 0 {
		return nil
	}
	v := p.Variants[0]
	return &v
}

// LineItem is one row of the cart.
//
// ItemID identifies the row: for anonymous carts it equals ProductID, for
// authenticated carts it is the row id assigned by the order service.
type LineItem struct {
	ItemID      string
	ProductID   string
	Variant     *Variant
	Quantity    int
	DisplayName string
	ImageURL    string
}

// VariantID returns the id of the item's variant, or "" when absent.
func (li LineItem) VariantID() string {
	if li.Variant == nil {
		return ""
	}
	return li.Variant.ID
}

// State is the ordered collection of line items at a point in time.
type State struct {
	Items []LineItem
}

// Empty reports whether the cart has no line items.
func (s State) Empty() bool {
	return len(s.Items) == 0
}

// Clone returns a deep copy of the state so callers can hand it out without
// sharing backing arrays or variants.
func (s State) Clone() State {
	return State{Items: cloneItems(s.Items)}
}

// FindByProduct returns the line items for the given product id in cart order.
func (s State) FindByProduct(productID string) []LineItem {
	var out []LineItem
	for _, li := range s.Items {
		if li.ProductID == productID {
			out = append(out, li)
		}
	}
	return out
}

// QuantityOf sums the quantity of every row holding the given product.
func (s State) QuantityOf(productID string) int {
	total := 0
	for _, li := range s.Items {
		if li.ProductID == productID {
			total += li.Quantity
		}
	}
	return total
}

func cloneItems(items []LineItem) []LineItem {
	if len(items) == 0 {
		return []LineItem{}
	}
	out := make([]LineItem, len(items))
	for i, li := range items {
		if li.Variant != nil {
			v := *li.Variant
			li.Variant = &v
		}
		out[i] = li
	}
	return out
}

// Identity is the current user signal. A nil *Identity means the shopper is
// anonymous.
type Identity struct {
	UserID   string
	UserType string
	// Token is forwarded to the order service as a bearer token when set.
	Token string
}

// Mode is the identity mode that selects the authoritative cart store.
type Mode int

const (
	// ModeAnonymous keeps the cart in the local persistent store.
	ModeAnonymous Mode = iota
	// ModeAuthenticated mirrors the cart to the remote order service.
	ModeAuthenticated
)

// ModeOf derives the identity mode from the identity signal.
func ModeOf(id *Identity) Mode {
	if id == nil || id.UserID == "" {
		return ModeAnonymous
	}
	return ModeAuthenticated
}

func (m Mode) String() string {
	switch m {
	case ModeAnonymous:
		return "anonymous"
	case ModeAuthenticated:
		return "authenticated"
	default:
		return "unknown"
	}
}
