package domain

import "time"

type Cart struct {
	ID        string     `bson:"_id,omitempty" json:"id,omitempty"`
	UserID    string     `bson:"user_id" json:"user_id"`
	Items     []CartItem `bson:"items" json:"items"`
	Total     float64    `bson:"-" json:"total"`
	ItemCount int        `bson:"-" json:"item_count"`
	CreatedAt time.Time  `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time  `bson:"updated_at" json:"updated_at"`
}

// CartItem keeps the price seen when the item was added so checkout can
// detect price drift.
type CartItem struct {
	ProductID string    `bson:"product_id" json:"product_id"`
	Quantity  int       `bson:"quantity" json:"quantity"`
	Price     float64   `bson:"price" json:"price"`
	Subtotal  float64   `bson:"-" json:"subtotal"`
	AddedAt   time.Time `bson:"added_at" json:"added_at"`
}

// Recalculate refreshes the derived subtotal, total and item count fields.
func (c *Cart) Recalculate() {
	var total int64
	count := 0
	for i := range c.Items {
		line := lineCents(c.Items[i].Quantity, c.Items[i].Price)
		c.Items[i].Subtotal = fromCents(line)
		total += line
		count += c.Items[i].Quantity
	}
	c.Total = fromCents(total)
	c.ItemCount = count
}

func (c *Cart) Item(productID string) (CartItem, bool) {
	for _, item := range c.Items {
		if item.ProductID == productID {
			return item, true
		}
	}
	return CartItem{}, false
}
