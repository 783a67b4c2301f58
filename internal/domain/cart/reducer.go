package cart

// Action is a cart state transition understood by Reduce.
type Action interface {
	action()
}

// AddItem adds Quantity units of the product variant. An existing row with
// the same product and variant is incremented instead of duplicated.
// Quantity must be positive; Reduce does not validate it.
type AddItem struct {
	Product  Product
	Variant  *Variant
	Quantity int
}

// UpdateQuantity replaces the quantity of the rows with ItemID. A quantity
// of zero or less removes them.
type UpdateQuantity struct {
	ItemID   string
	Quantity int
}

// RemoveItem removes the rows with ItemID.
type RemoveItem struct {
	ItemID string
}

// ClearCart empties the cart.
type ClearCart struct{}

// LoadCart replaces the cart contents wholesale.
type LoadCart struct {
	Items []LineItem
}

func (AddItem) action()        {}
func (UpdateQuantity) action() {}
func (RemoveItem) action()     {}
func (ClearCart) action()      {}
func (LoadCart) action()       {}

// Reduce returns the state that results from applying a to s. It is pure:
// s is never modified and the result shares no memory with it. Unknown
// actions leave the state unchanged.
func Reduce(s State, a Action) State {
	switch a := a.(type) {
	case AddItem:
		return addItem(s, a)
	case UpdateQuantity:
		if a.Quantity <= 0 {
			return removeItem(s, a.ItemID)
		}
		items := cloneItems(s.Items)
		for i := range items {
			if items[i].ItemID == a.ItemID {
				items[i].Quantity = a.Quantity
			}
		}
		return State{Items: items}
	case RemoveItem:
		return removeItem(s, a.ItemID)
	case ClearCart:
		return State{Items: []LineItem{}}
	case LoadCart:
		return State{Items: cloneItems(a.Items)}
	default:
		return s.Clone()
	}
}

func addItem(s State, a AddItem) State {
	variantID := ""
	if a.Variant != nil {
		variantID = a.Variant.ID
	}

	items := cloneItems(s.Items)
	for i := range items {
		if items[i].ProductID == a.Product.ID && items[i].VariantID() == variantID {
			items[i].Quantity += a.Quantity
			return State{Items: items}
		}
	}

	li := LineItem{
		ItemID:      a.Product.ID,
		ProductID:   a.Product.ID,
		Quantity:    a.Quantity,
		DisplayName: a.Product.Name,
		ImageURL:    a.Product.ImageURL,
	}
	if a.Variant != nil {
		v := *a.Variant
		li.Variant = &v
	}
	return State{Items: append(items, li)}
}

func removeItem(s State, itemID string) State {
	items := make([]LineItem, 0, len(s.Items))
	for _, li := range cloneItems(s.Items) {
		if li.ItemID != itemID {
			items = append(items, li)
		}
	}
	return State{Items: items}
}
