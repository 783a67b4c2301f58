package coupon

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/kart-cart/internal/domain/cart"
)

// Validator validates a coupon code against a set of cart items and returns
// the computed discount.
type Validator interface {
	Validate(ctx context.Context, code string, items []Item) (*Discount, error)
}

// RepoValidator implements Validator by looking up coupon rules from a
// Repository and applying them via Apply. Validation is a preview: it never
// records a redemption.
type RepoValidator struct {
	repo Repository
	now  func() time.Time
}

// NewRepoValidator creates a RepoValidator backed by the given Repository.
func NewRepoValidator(repo Repository) *RepoValidator {
	return &RepoValidator{repo: repo, now: time.Now}
}

// Validate looks up the rule for code, checks its validity window and
// applies it to items.
func (v *RepoValidator) Validate(ctx context.Context, code string, items []Item) (*Discount, error) {
	rule, err := v.repo.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, ErrInvalidCoupon) {
			return nil, ErrInvalidCoupon
		}
		return nil, errors.Wrap(err, "lookup coupon")
	}

	now := v.now()
	if rule.ValidFrom != nil && now.Before(*rule.ValidFrom) {
		return nil, ErrCouponExpired
	}
	if rule.ValidUntil != nil && now.After(*rule.ValidUntil) {
		return nil, ErrCouponExpired
	}

	d, err := Apply(rule, items)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// Summary is the checkout view of the cart.
type Summary struct {
	Totals            cart.Totals
	CouponCode        string
	CouponDescription string
	CouponDiscount    decimal.Decimal
	Payable           decimal.Decimal
}

// Summarize combines the cart totals with an optional coupon. Payable is the
// subtotal minus the coupon discount, floored at zero and rounded to two
// decimal places. An empty code skips coupon validation.
func Summarize(ctx context.Context, v Validator, items []cart.LineItem, code string) (*Summary, error) {
	totals := cart.ComputeTotals(items)
	s := &Summary{
		Totals:         totals,
		CouponDiscount: decimal.Zero,
	}

	if code != "" {
		d, err := v.Validate(ctx, code, ItemsFromCart(items))
		if err != nil {
			return nil, errors.Wrap(err, "validate coupon")
		}
		s.CouponCode = code
		s.CouponDescription = d.Description
		s.CouponDiscount = d.Amount
	}

	s.Payable = floorAtZero(totals.Subtotal.Sub(s.CouponDiscount)).Round(2)
	return s, nil
}
