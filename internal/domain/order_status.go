package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrUnknownStatus     = errors.New("unknown status")
	ErrIllegalTransition = errors.New("illegal status transition")
)

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "PENDING"
	OrderStatusConfirmed  OrderStatus = "CONFIRMED"
	OrderStatusProcessing OrderStatus = "PROCESSING"
	OrderStatusShipped    OrderStatus = "SHIPPED"
	OrderStatusDelivered  OrderStatus = "DELIVERED"
	OrderStatusCancelled  OrderStatus = "CANCELLED"
	OrderStatusRefunded   OrderStatus = "REFUNDED"
)

// OrderStatuses lists every order status in lifecycle order.
var OrderStatuses = []OrderStatus{
	OrderStatusPending,
	OrderStatusConfirmed,
	OrderStatusProcessing,
	OrderStatusShipped,
	OrderStatusDelivered,
	OrderStatusCancelled,
	OrderStatusRefunded,
}

// ParseOrderStatus accepts a status name in any case.
func ParseOrderStatus(s string) (OrderStatus, error) {
	candidate := OrderStatus(strings.ToUpper(strings.TrimSpace(s)))
	for _, st := range OrderStatuses {
		if st == candidate {
			return st, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownStatus, s)
}

// IsTerminal reports whether no further lifecycle transition can leave s.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusDelivered || s == OrderStatusCancelled || s == OrderStatusRefunded
}

// String representation (for logging)
func (s OrderStatus) String() string {
	return string(s)
}

type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "PENDING"
	PaymentStatusPaid     PaymentStatus = "PAID"
	PaymentStatusFailed   PaymentStatus = "FAILED"
	PaymentStatusRefunded PaymentStatus = "REFUNDED"
)

var PaymentStatuses = []PaymentStatus{
	PaymentStatusPending,
	PaymentStatusPaid,
	PaymentStatusFailed,
	PaymentStatusRefunded,
}

func ParsePaymentStatus(s string) (PaymentStatus, error) {
	candidate := PaymentStatus(strings.ToUpper(strings.TrimSpace(s)))
	for _, st := range PaymentStatuses {
		if st == candidate {
			return st, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownStatus, s)
}

func (s PaymentStatus) String() string {
	return string(s)
}

// Transition is a lifecycle event applied to an order.
type Transition string

const (
	TransitionConfirm Transition = "confirm"
	TransitionProcess Transition = "process"
	TransitionShip    Transition = "ship"
	TransitionDeliver Transition = "deliver"
	TransitionCancel  Transition = "cancel"
	TransitionRefund  Transition = "refund"
)

type transitionRule struct {
	from []OrderStatus
	to   OrderStatus
	verb string
}

var transitionRules = map[Transition]transitionRule{
	TransitionConfirm: {
		from: []OrderStatus{OrderStatusPending},
		to:   OrderStatusConfirmed,
		verb: "confirmed",
	},
	TransitionProcess: {
		from: []OrderStatus{OrderStatusConfirmed},
		to:   OrderStatusProcessing,
		verb: "processed",
	},
	TransitionShip: {
		from: []OrderStatus{OrderStatusProcessing},
		to:   OrderStatusShipped,
		verb: "shipped",
	},
	TransitionDeliver: {
		from: []OrderStatus{OrderStatusShipped},
		to:   OrderStatusDelivered,
		verb: "delivered",
	},
	TransitionCancel: {
		from: []OrderStatus{OrderStatusPending, OrderStatusConfirmed, OrderStatusProcessing, OrderStatusShipped},
		to:   OrderStatusCancelled,
		verb: "cancelled",
	},
	TransitionRefund: {
		from: []OrderStatus{OrderStatusPending, OrderStatusConfirmed, OrderStatusProcessing, OrderStatusShipped, OrderStatusDelivered},
		to:   OrderStatusRefunded,
		verb: "refunded",
	},
}

// TransitionTo maps a requested target status to the event that produces it.
// PENDING and REFUNDED are not reachable by a direct status update.
func TransitionTo(target OrderStatus) (Transition, bool) {
	switch target {
	case OrderStatusConfirmed:
		return TransitionConfirm, true
	case OrderStatusProcessing:
		return TransitionProcess, true
	case OrderStatusShipped:
		return TransitionShip, true
	case OrderStatusDelivered:
		return TransitionDeliver, true
	case OrderStatusCancelled:
		return TransitionCancel, true
	}
	return "", false
}

// CanTransition reports whether t may be applied to an order in status s.
func (s OrderStatus) CanTransition(t Transition) bool {
	rule, ok := transitionRules[t]
	if !ok {
		return false
	}
	for _, from := range rule.from {
		if from == s {
			return true
		}
	}
	return false
}

func illegalTransition(t Transition) error {
	rule := transitionRules[t]
	names := make([]string, len(rule.from))
	for i, s := range rule.from {
		names[i] = string(s)
	}
	return fmt.Errorf("%w: only %s orders can be %s", ErrIllegalTransition, joinOr(names), rule.verb)
}

func joinOr(names []string) string {
	if len(names) == 1 {
		return names[0]
	}
	return strings.Join(names[:len(names)-1], ", ") + " or " + names[len(names)-1]
}
