package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/xenking/kart-cart/internal/domain/coupon"
)

const getCouponByCodeSQL = `SELECT code, discount_type, value, min_items, description,
	valid_from, valid_until, max_discount
	FROM coupons
	WHERE code = UPPER($1) AND active`

var _ coupon.Repository = (*CouponRepository)(nil)

// CouponRepository implements coupon.Repository backed by PostgreSQL.
type CouponRepository struct {
	pool *pgxpool.Pool
}

// NewCouponRepository returns a CouponRepository that uses the given pool.
func NewCouponRepository(pool *pgxpool.Pool) *CouponRepository {
	return &CouponRepository{pool: pool}
}

// FindByCode looks up an active coupon by its code.
// Returns coupon.ErrInvalidCoupon when no matching active coupon exists.
func (r *CouponRepository) FindByCode(ctx context.Context, code string) (*coupon.Rule, error) {
	var (
		rule         coupon.Rule
		discountType string
		minItems     int32
		validFrom    *time.Time
		validUntil   *time.Time
		maxDiscount  decimal.NullDecimal
	)
	err := r.pool.QueryRow(ctx, getCouponByCodeSQL, code).Scan(
		&rule.Code,
		&discountType,
		&rule.Value,
		&minItems,
		&rule.Description,
		&validFrom,
		&validUntil,
		&maxDiscount,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, coupon.ErrInvalidCoupon
		}
		return nil, fmt.Errorf("finding coupon by code %q: %w", code, err)
	}

	rule.DiscountType = coupon.DiscountType(discountType)
	rule.MinItems = int(minItems)
	rule.ValidFrom = validFrom
	rule.ValidUntil = validUntil
	if maxDiscount.Valid {
		rule.MaxDiscount = maxDiscount.Decimal
	}
	return &rule, nil
}
