package model

import "time"

// --- Order Structures ---

// OrderItem is one line of a table's order. Price is in whole currency units.
type OrderItem struct {
	ID        string   `json:"id"`
	ProductID string   `json:"productId"`
	Name      string   `json:"name"`
	Price     int64    `json:"price"`
	Quantity  int      `json:"quantity"`
	Category  Category `json:"category,omitempty"` // captured when ordered, used for routing
}

// LineTotal is price times quantity.
func (i OrderItem) LineTotal() int64 {
	return i.Price * int64(i.Quantity)
}

// Removed reports whether the item was taken off the order.
func (i OrderItem) Removed() bool {
	return i.Quantity <= 0
}

// Order is the snapshot handed over at checkout.
type Order struct {
	ID         string      `json:"id"`
	TableLabel string      `json:"tableLabel"`
	CreatedAt  time.Time   `json:"createdAt"`
	Items      []OrderItem `json:"items"`
}

// ActiveItems returns the items that are still on the order, in order.
func (o Order) ActiveItems() []OrderItem {
	items := make([]OrderItem, 0, len(o.Items))
	for _, it := range o.Items {
		if !it.Removed() {
			items = append(items, it)
		}
	}
	return items
}

// Total sums the line totals of the given items.
func Total(items []OrderItem) int64 {
	var total int64
	for _, it := range items {
		total += it.LineTotal()
	}
	return total
}
