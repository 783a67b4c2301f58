package cartsync

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/xenking/kart-cart/internal/domain/cart"
	"github.com/xenking/kart-cart/internal/gateway"
)

// remoteFunc performs the order service calls of a mutation against the
// current cart. changed reports whether any call succeeded, which means the
// server cart may differ from ours and must be refetched.
type remoteFunc func(ctx context.Context, id cart.Identity, current cart.State) (changed bool, err error)

// mutation is one cart operation expressed for both identity modes.
type mutation struct {
	op     string
	local  cart.Action
	remote remoteFunc
}

// AddToCart adds quantity units of product. A nil variant selects the
// product's first variant when it has one.
func (c *Controller) AddToCart(ctx context.Context, p cart.Product, quantity int, variant *cart.Variant) error {
	if p.ID == "" {
		return &cart.ValidationError{Field: "product", Reason: cart.ErrProductRequired}
	}
	if quantity < 1 {
		return &cart.ValidationError{Field: "quantity", Reason: cart.ErrInvalidQuantity}
	}
	if variant == nil {
		variant = p.DefaultVariant()
	} else {
		v := *variant
		variant = &v
	}

	return c.applyMutation(ctx, mutation{
		op:    "add",
		local: cart.AddItem{Product: p, Variant: variant, Quantity: quantity},
		remote: func(ctx context.Context, id cart.Identity, _ cart.State) (bool, error) {
			req := gateway.MutationRequest{Identity: id, ProductID: p.ID, Quantity: quantity}
			if variant != nil {
				req.VariantID = variant.ID
			}
			if err := c.gw.AddItem(ctx, req); err != nil {
				return false, err
			}
			return true, nil
		},
	})
}

// RemoveFromCart removes every row of the product. Removing a product that is
// not in the cart is a no-op.
func (c *Controller) RemoveFromCart(ctx context.Context, productID string) error {
	if productID == "" {
		return &cart.ValidationError{Field: "product", Reason: cart.ErrProductRequired}
	}
	return c.applyMutation(ctx, mutation{
		op:    "remove",
		local: cart.RemoveItem{ItemID: productID},
		remote: func(ctx context.Context, id cart.Identity, current cart.State) (bool, error) {
			return eachRow(current, productID, func(li cart.LineItem) error {
				return c.gw.RemoveItem(ctx, id, li.ItemID)
			})
		},
	})
}

// UpdateQuantity sets the quantity of every row of the product, so a product
// held in two variants ends up with quantity units of each and
// GetCartItemQuantity reports twice quantity. A quantity of zero or less
// removes the rows.
func (c *Controller) UpdateQuantity(ctx context.Context, productID string, quantity int) error {
	if productID == "" {
		return &cart.ValidationError{Field: "product", Reason: cart.ErrProductRequired}
	}
	if quantity <= 0 {
		return c.RemoveFromCart(ctx, productID)
	}
	return c.applyMutation(ctx, mutation{
		op:    "update",
		local: cart.UpdateQuantity{ItemID: productID, Quantity: quantity},
		remote: func(ctx context.Context, id cart.Identity, current cart.State) (bool, error) {
			return eachRow(current, productID, func(li cart.LineItem) error {
				return c.gw.UpdateQuantity(ctx, gateway.MutationRequest{
					Identity:  id,
					ProductID: li.ProductID,
					VariantID: li.VariantID(),
					Quantity:  quantity,
				})
			})
		},
	})
}

// ClearCart empties the cart. The identity is unchanged.
func (c *Controller) ClearCart(ctx context.Context) error {
	return c.applyMutation(ctx, mutation{
		op:    "clear",
		local: cart.ClearCart{},
		remote: func(ctx context.Context, id cart.Identity, _ cart.State) (bool, error) {
			if err := c.gw.Clear(ctx, id); err != nil {
				return false, err
			}
			return true, nil
		},
	})
}

// eachRow calls fn for every row holding productID and stops at the first
// error.
func eachRow(current cart.State, productID string, fn func(cart.LineItem) error) (bool, error) {
	changed := false
	for _, li := range current.FindByProduct(productID) {
		if err := fn(li); err != nil {
			return changed, err
		}
		changed = true
	}
	return changed, nil
}

// applyMutation runs m against the store that is authoritative for the
// current identity. Anonymous carts are reduced and persisted locally and
// cannot fail. Signed in carts are changed on the order service and then
// refetched; on failure local state is left as it was and the error returned.
func (c *Controller) applyMutation(ctx context.Context, m mutation) (rerr error) {
	c.mu.RLock()
	id, epoch := copyIdentity(c.identity), c.epoch
	c.mu.RUnlock()
	mode := cart.ModeOf(id)

	ctx, span := c.telemetry.tracer.Start(ctx, "cart."+m.op, trace.WithAttributes(
		attribute.String("cart.mode", mode.String()),
	))
	defer func() {
		if rerr != nil {
			span.RecordError(rerr)
			span.SetStatus(codes.Error, rerr.Error())
		}
		span.End()
		c.telemetry.countMutation(ctx, m.op, mode, rerr)
	}()

	if mode == cart.ModeAnonymous {
		c.applyLocal(ctx, m)
		return nil
	}
	return c.applyRemote(ctx, m, *id, epoch)
}

func (c *Controller) applyLocal(ctx context.Context, m mutation) {
	c.saveMu.Lock()
	defer c.saveMu.Unlock()

	c.mu.Lock()
	if cart.ModeOf(c.identity) != cart.ModeAnonymous {
		// A login raced us; the local cart is no longer the one on display.
		c.mu.Unlock()
		return
	}
	c.state = cart.Reduce(c.state, m.local)
	snapshot := c.state.Clone()
	c.mu.Unlock()

	if err := c.store.Save(ctx, snapshot); err != nil {
		zctx.From(ctx).Warn("Cart snapshot not saved", zap.String("op", m.op), zap.Error(err))
	}
}

func (c *Controller) applyRemote(ctx context.Context, m mutation, id cart.Identity, epoch uint64) error {
	if c.serialize {
		c.remoteMu.Lock()
		defer c.remoteMu.Unlock()
	}

	c.mu.RLock()
	current, loadErr := c.state.Clone(), c.loadErr
	c.mu.RUnlock()

	if loadErr != nil {
		// The last load failed, so the rows on display may not be the
		// server's. Per-row mutations need the real ones.
		items, err := c.fetchRemote(ctx, id)
		if err != nil {
			c.install(epoch, nil, err)
			return errors.Wrap(err, "refetch cart")
		}
		c.install(epoch, items, nil)
		current = cart.State{Items: items}
	}

	start := time.Now()
	changed, err := m.remote(ctx, id, current)
	c.telemetry.observeRemote(ctx, m.op, start, err)
	if !changed {
		return err
	}

	items, ferr := c.fetchRemote(ctx, id)
	if ferr != nil {
		c.install(epoch, nil, ferr)
		if err != nil {
			return err
		}
		return errors.Wrap(ferr, "refetch cart")
	}
	if !c.install(epoch, items, nil) {
		zctx.From(ctx).Debug("Discarded cart refetch after identity change", zap.String("op", m.op))
	}
	return err
}
