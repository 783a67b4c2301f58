package handler

import (
	"io"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/kart-cart/internal/cartsync"
	"github.com/xenking/kart-cart/internal/domain/cart"
	"github.com/xenking/kart-cart/internal/domain/coupon"
	"github.com/xenking/kart-cart/internal/jsonutil"
)

const maxBodyBytes = 1 << 20

type addItemRequest struct {
	Product  cart.Product
	Quantity int
	Variant  *cart.Variant
}

func readBody(w http.ResponseWriter, r *http.Request) (*jx.Decoder, error) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return nil, badBody(err)
	}
	if !jx.Valid(data) {
		return nil, badBody(errors.New("malformed JSON"))
	}
	return jx.DecodeBytes(data), nil
}

func badBody(err error) error {
	return &cart.ValidationError{Field: "body", Reason: err}
}

// decodeAddItem reads {product, quantity, variant}. Quantity defaults to 1.
// The product's variants may be sent as variants or attributes.
func decodeAddItem(w http.ResponseWriter, r *http.Request) (addItemRequest, error) {
	req := addItemRequest{Quantity: 1}
	d, err := readBody(w, r)
	if err != nil {
		return req, err
	}

	err = d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "product":
			req.Product, err = decodeProduct(d)
		case "quantity":
			req.Quantity, err = jsonutil.DecodeInt(d)
		case "variant":
			req.Variant, err = decodeVariant(d)
		default:
			err = d.Skip()
		}
		if err != nil {
			return errors.Wrap(err, key)
		}
		return nil
	})
	if err != nil {
		return req, badBody(err)
	}
	return req, nil
}

func decodeProduct(d *jx.Decoder) (cart.Product, error) {
	var p cart.Product
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "id":
			p.ID, err = jsonutil.DecodeID(d)
		case "name":
			p.Name, err = d.Str()
		case "image_url", "image":
			p.ImageURL, err = d.Str()
		case "variants", "attributes":
			err = d.Arr(func(d *jx.Decoder) error {
				v, err := decodeVariant(d)
				if err != nil {
					return err
				}
				if v != nil {
					p.Variants = append(p.Variants, *v)
				}
				return nil
			})
		default:
			err = d.Skip()
		}
		return err
	})
	return p, err
}

func decodeVariant(d *jx.Decoder) (*cart.Variant, error) {
	if d.Next() == jx.Null {
		return nil, d.Null()
	}
	var v cart.Variant
	mrpSet := false
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "id":
			v.ID, err = jsonutil.DecodeID(d)
		case "price":
			v.Price, err = jsonutil.DecodeDecimal(d)
		case "mrp":
			v.MRP, err = jsonutil.DecodeDecimal(d)
			mrpSet = true
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	if !mrpSet {
		v.MRP = v.Price
	}
	return &v, nil
}

// decodeQuantity reads {"quantity": n}.
func decodeQuantity(w http.ResponseWriter, r *http.Request) (int, error) {
	d, err := readBody(w, r)
	if err != nil {
		return 0, err
	}
	qty, found := 0, false
	err = d.Obj(func(d *jx.Decoder, key string) error {
		if key != "quantity" {
			return d.Skip()
		}
		found = true
		var err error
		qty, err = jsonutil.DecodeInt(d)
		return err
	})
	if err != nil {
		return 0, badBody(err)
	}
	if !found {
		return 0, &cart.ValidationError{Field: "quantity", Reason: errors.New("required")}
	}
	return qty, nil
}

// decodeIdentity reads {user_id, user_type, token}.
func decodeIdentity(w http.ResponseWriter, r *http.Request) (*cart.Identity, error) {
	d, err := readBody(w, r)
	if err != nil {
		return nil, err
	}
	var id cart.Identity
	err = d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "user_id":
			id.UserID, err = jsonutil.DecodeID(d)
		case "user_type":
			id.UserType, err = d.Str()
		case "token":
			id.Token, err = d.Str()
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil {
		return nil, badBody(err)
	}
	if id.UserID == "" {
		return nil, &cart.ValidationError{Field: "user_id", Reason: errors.New("required")}
	}
	return &id, nil
}

func writeJSON(w http.ResponseWriter, status int, fn func(e *jx.Encoder)) {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)
	fn(e)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}

func writeView(w http.ResponseWriter, status int, v cartsync.View) {
	writeJSON(w, status, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("items", func(e *jx.Encoder) {
				e.Arr(func(e *jx.Encoder) {
					for _, li := range v.Items {
						encodeLineItem(e, li)
					}
				})
			})
			e.Field("item_count", func(e *jx.Encoder) { e.Int(v.Totals.ItemCount) })
			e.Field("total", func(e *jx.Encoder) { jsonutil.EncodeDecimal(e, v.Totals.Subtotal) })
			e.Field("mrp_total", func(e *jx.Encoder) { jsonutil.EncodeDecimal(e, v.Totals.MRPTotal) })
			e.Field("discount", func(e *jx.Encoder) { jsonutil.EncodeDecimal(e, v.Totals.Discount) })
			e.Field("mode", func(e *jx.Encoder) { e.Str(v.Mode.String()) })
			e.Field("loading", func(e *jx.Encoder) { e.Bool(v.Loading) })
			e.Field("requires_login", func(e *jx.Encoder) { e.Bool(v.RequiresLogin) })
			e.Field("error", func(e *jx.Encoder) {
				if v.Err == nil {
					e.Null()
					return
				}
				e.Str(v.Err.Error())
			})
		})
	})
}

func encodeLineItem(e *jx.Encoder, li cart.LineItem) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("item_id", func(e *jx.Encoder) { e.Str(li.ItemID) })
		e.Field("product_id", func(e *jx.Encoder) { e.Str(li.ProductID) })
		e.Field("variant", func(e *jx.Encoder) {
			if li.Variant == nil {
				e.Null()
				return
			}
			e.Obj(func(e *jx.Encoder) {
				e.Field("id", func(e *jx.Encoder) { e.Str(li.Variant.ID) })
				e.Field("price", func(e *jx.Encoder) { jsonutil.EncodeDecimal(e, li.Variant.Price) })
				e.Field("mrp", func(e *jx.Encoder) { jsonutil.EncodeDecimal(e, li.Variant.MRP) })
			})
		})
		e.Field("quantity", func(e *jx.Encoder) { e.Int(li.Quantity) })
		e.Field("display_name", func(e *jx.Encoder) { e.Str(li.DisplayName) })
		e.Field("image_url", func(e *jx.Encoder) { e.Str(li.ImageURL) })
	})
}

func writeItemStatus(w http.ResponseWriter, qty int) {
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("in_cart", func(e *jx.Encoder) { e.Bool(qty > 0) })
			e.Field("quantity", func(e *jx.Encoder) { e.Int(qty) })
		})
	})
}

func writeSummary(w http.ResponseWriter, s *coupon.Summary) {
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("item_count", func(e *jx.Encoder) { e.Int(s.Totals.ItemCount) })
			e.Field("subtotal", func(e *jx.Encoder) { jsonutil.EncodeDecimal(e, s.Totals.Subtotal) })
			e.Field("mrp_total", func(e *jx.Encoder) { jsonutil.EncodeDecimal(e, s.Totals.MRPTotal) })
			e.Field("discount", func(e *jx.Encoder) { jsonutil.EncodeDecimal(e, s.Totals.Discount) })
			if s.CouponCode != "" {
				e.Field("coupon_code", func(e *jx.Encoder) { e.Str(s.CouponCode) })
				e.Field("coupon_description", func(e *jx.Encoder) { e.Str(s.CouponDescription) })
			}
			e.Field("coupon_discount", func(e *jx.Encoder) { jsonutil.EncodeDecimal(e, s.CouponDiscount) })
			e.Field("payable", func(e *jx.Encoder) { jsonutil.EncodeDecimal(e, s.Payable) })
		})
	})
}
