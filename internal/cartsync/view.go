package cartsync

import (
	"github.com/shopspring/decimal"

	"github.com/xenking/kart-cart/internal/domain/cart"
)

// View is a consistent snapshot of everything the cart exposes to readers.
type View struct {
	Items         []cart.LineItem
	Totals        cart.Totals
	Mode          cart.Mode
	Loading       bool
	Err           error
	RequiresLogin bool
}

// View returns all read values taken under a single lock.
func (c *Controller) View() View {
	c.mu.RLock()
	defer c.mu.RUnlock()

	mode := cart.ModeOf(c.identity)
	return View{
		Items:         c.state.Clone().Items,
		Totals:        cart.ComputeTotals(c.state.Items),
		Mode:          mode,
		Loading:       c.loading > 0,
		Err:           c.loadErr,
		RequiresLogin: mode == cart.ModeAnonymous,
	}
}

// Items returns a copy of the line items in cart order.
func (c *Controller) Items() []cart.LineItem {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state.Clone().Items
}

// Totals computes the derived totals of the current cart.
func (c *Controller) Totals() cart.Totals {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return cart.ComputeTotals(c.state.Items)
}

// ItemCount is the number of units in the cart.
func (c *Controller) ItemCount() int { return c.Totals().ItemCount }

// Total is the cart subtotal at selling price.
func (c *Controller) Total() decimal.Decimal { return c.Totals().Subtotal }

// MRPTotal is the cart total at list price.
func (c *Controller) MRPTotal() decimal.Decimal { return c.Totals().MRPTotal }

// Discount is MRPTotal minus Total.
func (c *Controller) Discount() decimal.Decimal { return c.Totals().Discount }

// Mode returns the current identity mode.
func (c *Controller) Mode() cart.Mode {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return cart.ModeOf(c.identity)
}

// Loading reports whether a remote cart fetch is in flight.
func (c *Controller) Loading() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loading > 0
}

// Err returns the error of the last failed cart load, cleared by the next
// successful one.
func (c *Controller) Err() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loadErr
}

// RequiresLogin reports whether checkout needs the shopper to sign in first.
func (c *Controller) RequiresLogin() bool {
	return c.Mode() == cart.ModeAnonymous
}

// IsInCart reports whether any row holds the product.
func (c *Controller) IsInCart(productID string) bool {
	return c.GetCartItemQuantity(productID) > 0
}

// GetCartItemQuantity sums the quantity over every row of the product.
func (c *Controller) GetCartItemQuantity(productID string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state.QuantityOf(productID)
}
