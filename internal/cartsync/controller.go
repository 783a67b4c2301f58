// Package cartsync owns the shopper's cart state and keeps it in sync with the
// authoritative store for the current identity: the local snapshot store for
// anonymous shoppers and the order service for signed in users.
package cartsync

import (
	"context"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/xenking/kart-cart/internal/domain/cart"
	"github.com/xenking/kart-cart/internal/gateway"
)

// Store persists the anonymous cart.
type Store interface {
	Load(ctx context.Context) cart.State
	Save(ctx context.Context, st cart.State) error
}

// Gateway is the order service cart API.
type Gateway interface {
	AddItem(ctx context.Context, req gateway.MutationRequest) error
	UpdateQuantity(ctx context.Context, req gateway.MutationRequest) error
	RemoveItem(ctx context.Context, id cart.Identity, cartItemID string) error
	Clear(ctx context.Context, id cart.Identity) error
	List(ctx context.Context, id cart.Identity) ([]gateway.RemoteItem, error)
}

// Option configures a Controller.
type Option func(*Controller)

// WithIdentity sets the identity the controller starts with.
func WithIdentity(id *cart.Identity) Option {
	return func(c *Controller) {
		c.identity = copyIdentity(id)
	}
}

// WithTracerProvider sets the tracer provider for mutation spans.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *Controller) {
		if tp != nil {
			c.tracerProvider = tp
		}
	}
}

// WithMeterProvider sets the meter provider for mutation metrics.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(c *Controller) {
		if mp != nil {
			c.meterProvider = mp
		}
	}
}

// WithSerializedMutations runs remote mutations one at a time, each together
// with its refetch. Without it concurrent remote mutations interleave and the
// last refetch to land wins.
func WithSerializedMutations() Option {
	return func(c *Controller) {
		c.serialize = true
	}
}

// Controller is the single owner of the cart state. All reads and writes of
// the cart go through it.
type Controller struct {
	store Store
	gw    Gateway

	// mu guards the fields below it. No I/O happens while it is held.
	mu       sync.RWMutex
	state    cart.State
	identity *cart.Identity
	// epoch increments on every identity transition. Loads started under an
	// older epoch are discarded.
	epoch   uint64
	loading int
	loadErr error

	// saveMu keeps local snapshot writes in reducer order and holds them back
	// while the snapshot is being read.
	saveMu sync.Mutex
	// remoteMu serializes remote mutations when enabled.
	remoteMu  sync.Mutex
	serialize bool

	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
	telemetry      *telemetry
}

// New creates a Controller with an empty cart. Call Load to populate it from
// the authoritative source.
func New(store Store, gw Gateway, opts ...Option) (*Controller, error) {
	if store == nil {
		return nil, errors.New("cart store is required")
	}
	if gw == nil {
		return nil, errors.New("cart gateway is required")
	}

	c := &Controller{
		store: store,
		gw:    gw,
		state: cart.State{Items: []cart.LineItem{}},
	}
	for _, o := range opts {
		o(c)
	}

	t, err := newTelemetry(c.tracerProvider, c.meterProvider)
	if err != nil {
		return nil, errors.Wrap(err, "init telemetry")
	}
	c.telemetry = t
	return c, nil
}

// Load replaces the cart with the contents of the authoritative source for
// the current identity.
func (c *Controller) Load(ctx context.Context) error {
	c.mu.RLock()
	id, epoch := copyIdentity(c.identity), c.epoch
	c.mu.RUnlock()

	return c.reload(ctx, id, epoch)
}

// SetIdentity reacts to a login or logout. When the user changes the current
// cart is discarded and reloaded from the newly authoritative source; nothing
// is carried over. A token refresh for the same user only updates the token.
func (c *Controller) SetIdentity(ctx context.Context, id *cart.Identity) error {
	next := copyIdentity(id)

	c.mu.Lock()
	prev := c.identity
	if sameUser(prev, next) {
		c.identity = next
		c.mu.Unlock()
		return nil
	}
	c.epoch++
	epoch := c.epoch
	c.identity = next
	c.state = cart.State{Items: []cart.LineItem{}}
	c.loadErr = nil
	c.mu.Unlock()

	zctx.From(ctx).Info("Cart identity changed",
		zap.Stringer("from", cart.ModeOf(prev)),
		zap.Stringer("to", cart.ModeOf(next)),
	)
	return c.reload(ctx, next, epoch)
}

// reload fetches the cart for id and installs it if the identity has not
// changed since epoch.
func (c *Controller) reload(ctx context.Context, id *cart.Identity, epoch uint64) error {
	if cart.ModeOf(id) == cart.ModeAnonymous {
		// Local mutations wait for the snapshot so they reduce against it
		// rather than the emptied state.
		c.saveMu.Lock()
		defer c.saveMu.Unlock()

		st := c.store.Load(ctx)
		c.install(epoch, st.Items, nil)
		return nil
	}

	c.mu.Lock()
	c.loading++
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.loading--
		c.mu.Unlock()
	}()

	items, err := c.fetchRemote(ctx, *id)
	if err != nil {
		c.install(epoch, nil, err)
		return err
	}
	c.install(epoch, items, nil)
	return nil
}

func (c *Controller) fetchRemote(ctx context.Context, id cart.Identity) ([]cart.LineItem, error) {
	start := time.Now()
	rows, err := c.gw.List(ctx, id)
	c.telemetry.observeRemote(ctx, "list", start, err)
	if err != nil {
		return nil, err
	}
	return gateway.Normalize(rows), nil
}

// install loads items into the state, or records loadErr, unless the identity
// moved on. It reports whether the result was applied.
func (c *Controller) install(epoch uint64, items []cart.LineItem, loadErr error) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if epoch != c.epoch {
		return false
	}
	if loadErr != nil {
		c.loadErr = loadErr
		return true
	}
	c.state = cart.Reduce(c.state, cart.LoadCart{Items: items})
	c.loadErr = nil
	return true
}

func copyIdentity(id *cart.Identity) *cart.Identity {
	if cart.ModeOf(id) == cart.ModeAnonymous {
		return nil
	}
	v := *id
	return &v
}

func sameUser(a, b *cart.Identity) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.UserID == b.UserID && a.UserType == b.UserType
}
