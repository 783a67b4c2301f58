package gateway

import (
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/kart-cart/internal/domain/cart"
	"github.com/xenking/kart-cart/internal/jsonutil"
)

// RemoteItem is one cart row as returned by the order service.
type RemoteItem struct {
	ID           string
	ProductID    string
	Attr         *RemoteAttr
	ProductName  string
	ProductImage string
	// Price is the unit price reported on the row itself.
	Price    decimal.NullDecimal
	Quantity int
	UserID   string
	UserType string
}

// RemoteAttr is the product_attr of a row. The service sends either a bare
// id or an expanded object with pricing.
type RemoteAttr struct {
	ID    string
	Price decimal.NullDecimal
	MRP   decimal.NullDecimal
}

// Normalize converts remote rows to cart line items. Row ids become item ids.
// Pricing prefers the expanded attribute; a missing MRP falls back to the
// price. Rows without any pricing get no variant, and rows with a
// non-positive quantity are dropped.
func Normalize(rows []RemoteItem) []cart.LineItem {
	items := make([]cart.LineItem, 0, len(rows))
	for _, r := range rows {
		// Rows without a server id could never be updated or removed.
		if r.Quantity <= 0 || r.ProductID == "" || r.ID == "" {
			continue
		}

		li := cart.LineItem{
			ItemID:      r.ID,
			ProductID:   r.ProductID,
			Quantity:    r.Quantity,
			DisplayName: r.ProductName,
			ImageURL:    r.ProductImage,
		}

		price := r.Price
		mrp := decimal.NullDecimal{}
		variantID := ""
		if r.Attr != nil {
			variantID = r.Attr.ID
			if r.Attr.Price.Valid {
				price = r.Attr.Price
			}
			mrp = r.Attr.MRP
		}
		if !mrp.Valid {
			mrp = price
		}
		if price.Valid {
			li.Variant = &cart.Variant{ID: variantID, Price: price.Decimal, MRP: mrp.Decimal}
		}

		items = append(items, li)
	}
	return items
}

// decodeList accepts a bare array of rows or an object wrapping it under one
// of the common envelope keys.
func decodeList(body []byte) ([]RemoteItem, error) {
	d := jx.DecodeBytes(body)
	switch d.Next() {
	case jx.Array:
		return decodeRows(d)
	case jx.Object:
		var rows []RemoteItem
		err := d.Obj(func(d *jx.Decoder, key string) error {
			switch key {
			case "results", "data", "items", "cart", "cart_items":
				if d.Next() != jx.Array {
					return d.Skip()
				}
				r, err := decodeRows(d)
				if err != nil {
					return err
				}
				rows = r
				return nil
			default:
				return d.Skip()
			}
		})
		if err != nil {
			return nil, err
		}
		if rows == nil {
			rows = []RemoteItem{}
		}
		return rows, nil
	case jx.Null:
		return []RemoteItem{}, nil
	default:
		return nil, errors.Errorf("unexpected %s", d.Next())
	}
}

func decodeRows(d *jx.Decoder) ([]RemoteItem, error) {
	rows := []RemoteItem{}
	err := d.Arr(func(d *jx.Decoder) error {
		r, err := decodeRow(d)
		if err != nil {
			return err
		}
		rows = append(rows, r)
		return nil
	})
	return rows, err
}

func decodeRow(d *jx.Decoder) (RemoteItem, error) {
	var r RemoteItem
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "id":
			r.ID, err = jsonutil.DecodeID(d)
		case "product":
			err = decodeProduct(d, &r)
		case "product_attr":
			r.Attr, err = decodeAttr(d)
		case "product_name":
			r.ProductName, err = decodeOptString(d)
		case "product_image":
			r.ProductImage, err = decodeOptString(d)
		case "price":
			r.Price, err = decodeNullDecimal(d)
		case "qty":
			r.Quantity, err = jsonutil.DecodeInt(d)
		case "user_id":
			r.UserID, err = jsonutil.DecodeID(d)
		case "user_type":
			r.UserType, err = decodeOptString(d)
		default:
			err = d.Skip()
		}
		if err != nil {
			return errors.Wrapf(err, "field %q", key)
		}
		return nil
	})
	return r, err
}

// decodeProduct handles both a bare product id and an expanded product
// object carrying id, name and image.
func decodeProduct(d *jx.Decoder, r *RemoteItem) error {
	if d.Next() != jx.Object {
		id, err := jsonutil.DecodeID(d)
		r.ProductID = id
		return err
	}
	return d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "id":
			r.ProductID, err = jsonutil.DecodeID(d)
		case "name":
			var name string
			name, err = decodeOptString(d)
			if r.ProductName == "" {
				r.ProductName = name
			}
		case "image":
			var image string
			image, err = decodeOptString(d)
			if r.ProductImage == "" {
				r.ProductImage = image
			}
		default:
			err = d.Skip()
		}
		return err
	})
}

func decodeAttr(d *jx.Decoder) (*RemoteAttr, error) {
	switch d.Next() {
	case jx.Null:
		return nil, d.Null()
	case jx.Object:
		var a RemoteAttr
		err := d.Obj(func(d *jx.Decoder, key string) error {
			var err error
			switch key {
			case "id":
				a.ID, err = jsonutil.DecodeID(d)
			case "price":
				a.Price, err = decodeNullDecimal(d)
			case "mrp":
				a.MRP, err = decodeNullDecimal(d)
			default:
				err = d.Skip()
			}
			return err
		})
		if err != nil {
			return nil, err
		}
		return &a, nil
	default:
		id, err := jsonutil.DecodeID(d)
		if err != nil {
			return nil, err
		}
		return &RemoteAttr{ID: id}, nil
	}
}

func decodeNullDecimal(d *jx.Decoder) (decimal.NullDecimal, error) {
	if d.Next() == jx.Null {
		return decimal.NullDecimal{}, d.Null()
	}
	v, err := jsonutil.DecodeDecimal(d)
	if err != nil {
		return decimal.NullDecimal{}, err
	}
	return decimal.NullDecimal{Decimal: v, Valid: true}, nil
}

func decodeOptString(d *jx.Decoder) (string, error) {
	if d.Next() == jx.Null {
		return "", d.Null()
	}
	return d.Str()
}
