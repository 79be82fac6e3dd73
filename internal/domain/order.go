package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrInvalidOrder       = errors.New("invalid order")
	ErrUnsupportedPayment = errors.New("unsupported payment status change")
)

type Address struct {
	Street  string `json:"street"`
	City    string `json:"city"`
	State   string `json:"state"`
	Zip     string `json:"zip"`
	Country string `json:"country"`
}

// Missing returns the names of empty address fields.
func (a Address) Missing() []string {
	var missing []string
	for _, f := range []struct {
		name, value string
	}{
		{"street", a.Street},
		{"city", a.City},
		{"state", a.State},
		{"zip", a.Zip},
		{"country", a.Country},
	} {
		if strings.TrimSpace(f.value) == "" {
			missing = append(missing, f.name)
		}
	}
	return missing
}

// OrderItem is a snapshot of a product taken when the order was placed.
// It never follows later product edits.
type OrderItem struct {
	ID          string  `json:"id"`
	ProductID   string  `json:"product_id"`
	ProductName string  `json:"product_name"`
	Quantity    int     `json:"quantity"`
	UnitPrice   float64 `json:"unit_price"`
	Subtotal    float64 `json:"subtotal"`
}

func NewOrderItem(p *Product, quantity int) OrderItem {
	return OrderItem{
		ID:          uuid.NewString(),
		ProductID:   p.ID,
		ProductName: p.Name,
		Quantity:    quantity,
		UnitPrice:   p.Price,
		Subtotal:    fromCents(lineCents(quantity, p.Price)),
	}
}

type Order struct {
	ID              string        `json:"id"`
	UserID          string        `json:"user_id"`
	OrderNumber     string        `json:"order_number"`
	Items           []OrderItem   `json:"items"`
	Subtotal        float64       `json:"subtotal"`
	Shipping        float64       `json:"shipping"`
	Taxes           float64       `json:"taxes"`
	Total           float64       `json:"total"`
	Status          OrderStatus   `json:"status"`
	PaymentStatus   PaymentStatus `json:"payment_status"`
	ShippingAddress Address       `json:"shipping_address"`
	CancelReason    string        `json:"cancel_reason,omitempty"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
	ShippedAt       *time.Time    `json:"shipped_at,omitempty"`
	DeliveredAt     *time.Time    `json:"delivered_at,omitempty"`
}

// NewOrder builds a PENDING order with totals derived from items.
func NewOrder(userID string, items []OrderItem, address Address, now time.Time) *Order {
	now = now.UTC()
	totals := Price(items)
	return &Order{
		ID:              uuid.NewString(),
		UserID:          userID,
		OrderNumber:     NewOrderNumber(now),
		Items:           items,
		Subtotal:        totals.Subtotal,
		Shipping:        totals.Shipping,
		Taxes:           totals.Taxes,
		Total:           totals.Total,
		Status:          OrderStatusPending,
		PaymentStatus:   PaymentStatusPending,
		ShippingAddress: address,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// NewOrderNumber returns an identifier of the form ORD-YYYYMMDD-XXXXXXXX.
func NewOrderNumber(now time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("ORD-%s-%s", now.UTC().Format("20060102"), strings.ToUpper(suffix))
}

// Validate checks the structural invariants of an order.
func (o *Order) Validate() error {
	if o.UserID == "" {
		return fmt.Errorf("%w: user id is required", ErrInvalidOrder)
	}
	if len(o.Items) == 0 {
		return fmt.Errorf("%w: order must contain at least one item", ErrInvalidOrder)
	}
	for _, item := range o.Items {
		if item.Quantity <= 0 {
			return fmt.Errorf("%w: quantity for product %s must be positive", ErrInvalidOrder, item.ProductID)
		}
		if item.UnitPrice < 0 {
			return fmt.Errorf("%w: price for product %s must not be negative", ErrInvalidOrder, item.ProductID)
		}
	}
	if missing := o.ShippingAddress.Missing(); len(missing) > 0 {
		return fmt.Errorf("%w: shipping address is missing %s", ErrInvalidOrder, strings.Join(missing, ", "))
	}
	if o.Subtotal < 0 || o.Taxes < 0 || o.Shipping < 0 || o.Total < 0 {
		return fmt.Errorf("%w: totals must not be negative", ErrInvalidOrder)
	}
	if toCents(o.Total) != toCents(o.Subtotal)+toCents(o.Taxes)+toCents(o.Shipping) {
		return fmt.Errorf("%w: total does not match subtotal, taxes and shipping", ErrInvalidOrder)
	}
	return nil
}

// Apply moves the order through the lifecycle. It leaves the order untouched
// when t is not allowed from the current status.
func (o *Order) Apply(t Transition, now time.Time) error {
	rule, ok := transitionRules[t]
	if !ok {
		return fmt.Errorf("%w: %s", ErrIllegalTransition, t)
	}
	if !o.Status.CanTransition(t) {
		return illegalTransition(t)
	}

	now = now.UTC()
	o.Status = rule.to
	o.UpdatedAt = now
	switch t {
	case TransitionShip:
		o.ShippedAt = &now
	case TransitionDeliver:
		o.DeliveredAt = &now
	case TransitionRefund:
		o.PaymentStatus = PaymentStatusRefunded
	}
	return nil
}

// ApplyPayment records a payment outcome. restock is true when the change
// refunds a live order and its reserved stock has to go back on the shelf.
func (o *Order) ApplyPayment(target PaymentStatus, now time.Time) (restock bool, err error) {
	now = now.UTC()
	switch target {
	case PaymentStatusPaid, PaymentStatusFailed:
		if o.PaymentStatus != PaymentStatusPending {
			return false, fmt.Errorf("%w: only PENDING payments can be marked %s", ErrIllegalTransition, target)
		}
		o.PaymentStatus = target
		if target == PaymentStatusPaid && o.Status == OrderStatusPending {
			o.Status = OrderStatusConfirmed
		}
		o.UpdatedAt = now
		return false, nil
	case PaymentStatusRefunded:
		if o.PaymentStatus != PaymentStatusPaid {
			return false, fmt.Errorf("%w: only PAID payments can be refunded", ErrIllegalTransition)
		}
		if o.Status == OrderStatusCancelled {
			// stock went back when the order was cancelled
			o.PaymentStatus = PaymentStatusRefunded
			o.UpdatedAt = now
			return false, nil
		}
		if err := o.Apply(TransitionRefund, now); err != nil {
			return false, err
		}
		return true, nil
	}
	return false, fmt.Errorf("%w: %s", ErrUnsupportedPayment, target)
}

// OrderSummary aggregates orders created inside a time window. Revenue and
// average exclude CANCELLED and REFUNDED orders; TotalOrders counts all.
type OrderSummary struct {
	TotalOrders       int64            `json:"total_orders"`
	TotalRevenue      float64          `json:"total_revenue"`
	AverageOrderValue float64          `json:"average_order_value"`
	OrdersByStatus    map[string]int64 `json:"orders_by_status"`
}
