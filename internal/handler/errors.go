package handler

import (
	"context"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/kart-cart/internal/domain/cart"
	"github.com/xenking/kart-cart/internal/domain/coupon"
)

// writeError maps cart and coupon errors to status codes. Anything
// unclassified is logged and reported as a 500 without details.
func writeError(ctx context.Context, w http.ResponseWriter, err error) {
	var (
		status  int
		code    string
		message string

		validation *cart.ValidationError
		api        *cart.APIError
		network    *cart.NetworkError
	)
	switch {
	case errors.As(err, &validation):
		status, code, message = http.StatusBadRequest, "invalid_request", validation.Error()
	case errors.Is(err, coupon.ErrInvalidCoupon):
		status, code, message = http.StatusUnprocessableEntity, "invalid_coupon", "invalid coupon code"
	case errors.Is(err, coupon.ErrCouponExpired):
		status, code, message = http.StatusUnprocessableEntity, "invalid_coupon", "coupon is not currently valid"
	case errors.As(err, &api):
		status, code, message = http.StatusUnprocessableEntity, "order_service_rejected", api.Message
		if message == "" {
			message = http.StatusText(api.Status)
		}
	case errors.As(err, &network):
		status, code, message = http.StatusBadGateway, "order_service_unavailable", "order service unavailable"
	default:
		zctx.From(ctx).Error("Cart request failed", zap.Error(err))
		status, code, message = http.StatusInternalServerError, "internal", "internal error"
	}

	writeJSON(w, status, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("code", func(e *jx.Encoder) { e.Str(code) })
			e.Field("message", func(e *jx.Encoder) { e.Str(message) })
		})
	})
}
