package domain

import "time"

// CartLineItem is a row in the local cart cache. ProductID is the natural
// key; ID is the store-assigned surrogate and plays no part in matching.
type CartLineItem struct {
	ID             int64  `json:"id"`
	ProductID      int64  `json:"productId"`
	Name           string `json:"name"`
	ImageURL       string `json:"imageUrl,omitempty"`
	UnitPriceCents int64  `json:"unitPriceCents"`
	Quantity       int64  `json:"quantity"`
	UserID         *int64 `json:"userId,omitempty"`
	Synced         bool   `json:"synced"`
	UpdatedAt      int64  `json:"updatedAt"`
}

// Touch stamps the item with the current wall clock in epoch milliseconds.
func (i *CartLineItem) Touch() {
	i.UpdatedAt = time.Now().UnixMilli()
}

// LineTotalCents is the extended price of the line.
func (i CartLineItem) LineTotalCents() int64 {
	return i.UnitPriceCents * i.Quantity
}

// CartAggregates are the derived totals observers care about.
type CartAggregates struct {
	TotalQuantity int64
	SubtotalCents int64
}

// Aggregate folds a line item set into its derived totals.
func Aggregate(items []CartLineItem) CartAggregates {
	var agg CartAggregates
	for _, item := range items {
		agg.TotalQuantity += item.Quantity
		agg.SubtotalCents += item.LineTotalCents()
	}
	return agg
}
