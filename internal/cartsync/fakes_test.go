package cartsync

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/kart-cart/internal/domain/cart"
	"github.com/xenking/kart-cart/internal/gateway"
	"github.com/xenking/kart-cart/internal/storage/snapshot"
)

// fakeOrderService is an in-memory order service cart. Rows get server ids
// r1, r2, ... and prices from the catalog keyed by variant id.
type fakeOrderService struct {
	mu      sync.Mutex
	rows    []gateway.RemoteItem
	nextID  int
	catalog map[string]cart.Variant
	calls   []string

	addErr, updateErr, removeErr, clearErr, listErr error

	// listStarted and listRelease, when set, pause List until released.
	listStarted chan struct{}
	listRelease chan struct{}

	delay       time.Duration
	inFlight    int
	maxInFlight int
}

var _ Gateway = (*fakeOrderService)(nil)

func newFakeOrderService(variants ...cart.Variant) *fakeOrderService {
	f := &fakeOrderService{catalog: map[string]cart.Variant{}}
	for _, v := range variants {
		f.catalog[v.ID] = v
	}
	return f
}

func (f *fakeOrderService) enter(call string) func() {
	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.inFlight++
	f.maxInFlight = max(f.maxInFlight, f.inFlight)
	delay := f.delay
	f.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}
	return func() {
		f.mu.Lock()
		f.inFlight--
		f.mu.Unlock()
	}
}

func (f *fakeOrderService) callLog() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeOrderService) seed(productID, variantID string, qty int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows = append(f.rows, f.newRow(productID, variantID, qty))
}

func (f *fakeOrderService) newRow(productID, variantID string, qty int) gateway.RemoteItem {
	f.nextID++
	row := gateway.RemoteItem{
		ID:          "r" + strconv.Itoa(f.nextID),
		ProductID:   productID,
		ProductName: "Product " + productID,
		Quantity:    qty,
	}
	if v, ok := f.catalog[variantID]; ok {
		row.Attr = &gateway.RemoteAttr{
			ID:    v.ID,
			Price: decimal.NullDecimal{Decimal: v.Price, Valid: true},
			MRP:   decimal.NullDecimal{Decimal: v.MRP, Valid: true},
		}
	}
	return row
}

func (f *fakeOrderService) AddItem(_ context.Context, req gateway.MutationRequest) error {
	defer f.enter("add " + req.ProductID + "/" + req.VariantID)()

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.addErr != nil {
		return f.addErr
	}
	for i, r := range f.rows {
		if r.ProductID == req.ProductID && attrID(r) == req.VariantID {
			f.rows[i].Quantity += req.Quantity
			return nil
		}
	}
	f.rows = append(f.rows, f.newRow(req.ProductID, req.VariantID, req.Quantity))
	return nil
}

func (f *fakeOrderService) UpdateQuantity(_ context.Context, req gateway.MutationRequest) error {
	defer f.enter("update " + req.ProductID + "/" + req.VariantID + "=" + strconv.Itoa(req.Quantity))()

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return f.updateErr
	}
	for i, r := range f.rows {
		if r.ProductID == req.ProductID && attrID(r) == req.VariantID {
			f.rows[i].Quantity = req.Quantity
		}
	}
	return nil
}

func (f *fakeOrderService) RemoveItem(_ context.Context, _ cart.Identity, cartItemID string) error {
	defer f.enter("remove " + cartItemID)()

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.removeErr != nil {
		return f.removeErr
	}
	kept := f.rows[:0]
	for _, r := range f.rows {
		if r.ID != cartItemID {
			kept = append(kept, r)
		}
	}
	f.rows = kept
	return nil
}

func (f *fakeOrderService) Clear(_ context.Context, _ cart.Identity) error {
	defer f.enter("clear")()

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.clearErr != nil {
		return f.clearErr
	}
	f.rows = nil
	return nil
}

func (f *fakeOrderService) List(_ context.Context, _ cart.Identity) ([]gateway.RemoteItem, error) {
	defer f.enter("list")()

	f.mu.Lock()
	started, release := f.listStarted, f.listRelease
	f.mu.Unlock()
	if started != nil {
		started <- struct{}{}
		<-release
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	return append([]gateway.RemoteItem{}, f.rows...), nil
}

func attrID(r gateway.RemoteItem) string {
	if r.Attr == nil {
		return ""
	}
	return r.Attr.ID
}

// failingKV is a snapshot backend that fails every call.
type failingKV struct{}

func (failingKV) Get(context.Context, string) ([]byte, error) {
	return nil, errors.New("disk unplugged")
}

func (failingKV) Set(context.Context, string, []byte) error {
	return errors.New("disk unplugged")
}

// blockingKV wraps a MemoryKV. While getStarted is set, Get signals it and
// waits for getRelease before reading.
type blockingKV struct {
	*snapshot.MemoryKV

	mu         sync.Mutex
	getStarted chan struct{}
	getRelease chan struct{}
}

func (b *blockingKV) block() (started, release chan struct{}) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.getStarted = make(chan struct{})
	b.getRelease = make(chan struct{})
	return b.getStarted, b.getRelease
}

func (b *blockingKV) Get(ctx context.Context, key string) ([]byte, error) {
	b.mu.Lock()
	started, release := b.getStarted, b.getRelease
	b.getStarted, b.getRelease = nil, nil
	b.mu.Unlock()

	if started != nil {
		close(started)
		<-release
	}
	return b.MemoryKV.Get(ctx, key)
}
