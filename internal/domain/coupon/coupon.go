// Package coupon previews coupon discounts against the current cart for the
// checkout summary. It reads cart totals but never changes the cart.
package coupon

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/kart-cart/internal/domain/cart"
)

// DiscountType enumerates the supported coupon discount strategies.
type DiscountType string

const (
	// DiscountPercentage applies a percentage-based discount to the subtotal.
	DiscountPercentage DiscountType = "percentage"
	// DiscountFixed applies a fixed monetary discount capped at the subtotal.
	DiscountFixed DiscountType = "fixed"
	// DiscountFreeLowest removes the cost of the cheapest unit in the cart.
	DiscountFreeLowest DiscountType = "free_lowest"
)

var (
	// ErrInvalidCoupon is returned when a coupon code is unknown or the cart
	// does not satisfy the coupon's minimum item requirement.
	ErrInvalidCoupon = errors.New("invalid coupon code")
	// ErrCouponExpired is returned when a coupon is outside its valid time window.
	ErrCouponExpired = errors.New("coupon expired")
)

// Rule defines a coupon's discount behaviour and eligibility constraints.
type Rule struct {
	Code         string
	DiscountType DiscountType
	Value        decimal.Decimal
	MinItems     int
	Description  string
	ValidFrom    *time.Time
	ValidUntil   *time.Time
	// MaxDiscount caps the computed amount when positive.
	MaxDiscount decimal.Decimal
}

// Discount holds the computed discount amount and a human-readable description.
type Discount struct {
	Amount      decimal.Decimal
	Description string
}

// Item is a cart row reduced to what discount calculation needs.
type Item struct {
	ProductID string
	Price     decimal.Decimal
	Quantity  int
}

// ItemsFromCart converts cart line items to coupon items. Rows without a
// variant are priced at zero, matching the cart totals.
func ItemsFromCart(items []cart.LineItem) []Item {
	out := make([]Item, 0, len(items))
	for _, li := range items {
		price := decimal.Zero
		if li.Variant != nil {
			price = li.Variant.Price
		}
		out = append(out, Item{
			ProductID: li.ProductID,
			Price:     price,
			Quantity:  li.Quantity,
		})
	}
	return out
}

// Repository provides lookup of coupon rules by their code.
type Repository interface {
	FindByCode(ctx context.Context, code string) (*Rule, error)
}

// StaticRepository serves a fixed set of rules. Codes match case-insensitively.
type StaticRepository struct {
	rules map[string]Rule
}

// NewStaticRepository indexes the given rules by upper-cased code.
func NewStaticRepository(rules ...Rule) *StaticRepository {
	m := make(map[string]Rule, len(rules))
	for _, r := range rules {
		m[strings.ToUpper(r.Code)] = r
	}
	return &StaticRepository{rules: m}
}

// FindByCode implements Repository.
func (r *StaticRepository) FindByCode(_ context.Context, code string) (*Rule, error) {
	rule, ok := r.rules[strings.ToUpper(code)]
	if !ok {
		return nil, ErrInvalidCoupon
	}
	return &rule, nil
}

// ParseRule reads a rule written as CODE:TYPE:VALUE[:MIN_ITEMS], for example
// "TENOFF:percentage:10" or "PAIR:free_lowest:0:2".
func ParseRule(s string) (Rule, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) < 3 || len(parts) > 4 {
		return Rule{}, errors.Errorf("coupon rule %q: want CODE:TYPE:VALUE[:MIN_ITEMS]", s)
	}

	r := Rule{Code: strings.TrimSpace(parts[0]), DiscountType: DiscountType(strings.ToLower(parts[1]))}
	if r.Code == "" {
		return Rule{}, errors.Errorf("coupon rule %q: empty code", s)
	}
	switch r.DiscountType {
	case DiscountPercentage, DiscountFixed, DiscountFreeLowest:
	default:
		return Rule{}, errors.Errorf("coupon rule %q: unknown discount type %q", s, parts[1])
	}

	v, err := decimal.NewFromString(parts[2])
	if err != nil {
		return Rule{}, errors.Wrapf(err, "coupon rule %q: value", s)
	}
	if v.IsNegative() {
		return Rule{}, errors.Errorf("coupon rule %q: negative value", s)
	}
	r.Value = v

	if len(parts) == 4 {
		n, err := strconv.Atoi(parts[3])
		if err != nil || n < 0 {
			return Rule{}, errors.Errorf("coupon rule %q: bad min items %q", s, parts[3])
		}
		r.MinItems = n
	}
	return r, nil
}

// ParseRules parses every rule in specs.
func ParseRules(specs []string) ([]Rule, error) {
	rules := make([]Rule, 0, len(specs))
	for _, s := range specs {
		r, err := ParseRule(s)
		if err != nil {
			return nil, err
		}
		rules = append(rules, r)
	}
	return rules, nil
}
