package cart

// Line is one cart row with its computed subtotal in major currency units.
type Line struct {
	LineItem
	UnitPrice float64 `json:"unitPrice"`
	Subtotal  float64 `json:"subtotal"`
}

// View is the cart page data. Totals are derived here from the item
// snapshots; the store itself holds no derived values.
type View struct {
	Items []Line  `json:"items"`
	Count int     `json:"count"`
	Total float64 `json:"total"`
}

// BuildView computes per-line subtotals and the cart total from the line
// items' minor-unit prices.
func BuildView(items []LineItem) View {
	view := View{Items: make([]Line, 0, len(items))}
	for _, item := range items {
		price := item.Item.EffectivePrice()
		line := Line{
			LineItem:  item,
			UnitPrice: float64(price) / 100,
			Subtotal:  float64(price*int64(item.Quantity)) / 100,
		}
		view.Items = append(view.Items, line)
		view.Count += item.Quantity
		view.Total += line.Subtotal
	}
	return view
}
