package snapshot

import (
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/kart-cart/internal/domain/cart"
	"github.com/xenking/kart-cart/internal/jsonutil"
)

// Encode serializes the cart state as {"items":[...]}.
func Encode(s cart.State) []byte {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)

	e.Obj(func(e *jx.Encoder) {
		e.Field("items", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, li := range s.Items {
					encodeLineItem(e, li)
				}
			})
		})
	})

	return append([]byte(nil), e.Bytes()...)
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

// Decode parses a snapshot produced by Encode. Rows that would break the cart
// invariants (no product id, non-positive quantity) are dropped.
func Decode(data []byte) (cart.State, error) {
	items := []cart.LineItem{}

	d := jx.DecodeBytes(data)
	if err := d.Obj(func(d *jx.Decoder, key string) error {
		if key != "items" {
			return d.Skip()
		}
		if d.Next() == jx.Null {
			return d.Null()
		}
		return d.Arr(func(d *jx.Decoder) error {
			li, err := decodeLineItem(d)
			if err != nil {
				return err
			}
			if li.ProductID == "" || li.Quantity <= 0 {
				return nil
			}
			if li.ItemID == "" {
				li.ItemID = li.ProductID
			}
			items = append(items, li)
			return nil
		})
	}); err != nil {
		return cart.State{}, errors.Wrap(err, "decode snapshot")
	}

	return cart.State{Items: items}, nil
}

func decodeLineItem(d *jx.Decoder) (cart.LineItem, error) {
	var li cart.LineItem
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "item_id":
			li.ItemID, err = jsonutil.DecodeID(d)
		case "product_id":
			li.ProductID, err = jsonutil.DecodeID(d)
		case "variant":
			li.Variant, err = decodeVariant(d)
		case "quantity":
			li.Quantity, err = jsonutil.DecodeInt(d)
		case "display_name":
			li.DisplayName, err = d.Str()
		case "image_url":
			li.ImageURL, err = d.Str()
		default:
			err = d.Skip()
		}
		return err
	})
	return li, err
}

func decodeVariant(d *jx.Decoder) (*cart.Variant, error) {
	if d.Next() == jx.Null {
		return nil, d.Null()
	}

	var v cart.Variant
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "id":
			v.ID, err = jsonutil.DecodeID(d)
		case "price":
			v.Price, err = jsonutil.DecodeDecimal(d)
		case "mrp":
			v.MRP, err = jsonutil.DecodeDecimal(d)
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return &v, nil
}
