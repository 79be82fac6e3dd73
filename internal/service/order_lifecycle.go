package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/fjod/go_shop/internal/domain"
	"github.com/fjod/go_shop/internal/events"
	"github.com/fjod/go_shop/internal/repository"
	"go.uber.org/zap"
)

// RestoreReport counts the order items whose stock went back and those that
// could not be restored.
type RestoreReport struct {
	Restored int
	Failed   int
}

// UpdateOrderStatus moves an order to status. PENDING and REFUNDED cannot be
// requested directly.
func (s *OrderService) UpdateOrderStatus(ctx context.Context, id, status string) (*domain.Order, error) {
	target, err := domain.ParseOrderStatus(status)
	if err != nil {
		return nil, invalid("unknown order status %q", status)
	}
	t, ok := domain.TransitionTo(target)
	if !ok {
		return nil, invalid("order status cannot be set to %s", target)
	}
	if t == domain.TransitionCancel {
		return s.CancelOrder(ctx, id, "")
	}
	return s.transition(ctx, id, t, "")
}

// CancelOrder cancels an order that has not been delivered, cancelled or
// refunded and puts its stock back.
func (s *OrderService) CancelOrder(ctx context.Context, id, reason string) (*domain.Order, error) {
	return s.transition(ctx, id, domain.TransitionCancel, reason)
}

func (s *OrderService) transition(ctx context.Context, id string, t domain.Transition, reason string) (*domain.Order, error) {
	order, err := s.loadForWrite(ctx, id)
	if err != nil {
		return nil, err
	}

	from := order.Status
	if err := order.Apply(t, s.now()); err != nil {
		return nil, translateDomainError(err)
	}
	if t == domain.TransitionCancel && reason != "" {
		order.CancelReason = reason
	}

	if err := s.save(ctx, order); err != nil {
		return nil, err
	}
	if t == domain.TransitionCancel || t == domain.TransitionRefund {
		s.restoreStock(ctx, order)
	}
	s.invalidateOrder(ctx, order)
	s.publish(ctx, events.OrderStatusChanged, order)

	s.log(ctx).Info("order status changed",
		zap.String("order_id", order.ID),
		zap.String("from", string(from)),
		zap.String("to", string(order.Status)))
	return order, nil
}

// UpdatePaymentStatus records an externally driven payment outcome.
func (s *OrderService) UpdatePaymentStatus(ctx context.Context, id, status string) (*domain.Order, error) {
	target, err := domain.ParsePaymentStatus(status)
	if err != nil {
		return nil, invalid("unknown payment status %q", status)
	}
	if target == domain.PaymentStatusPending {
		return nil, invalid("payment status cannot be set to %s", target)
	}

	order, err := s.loadForWrite(ctx, id)
	if err != nil {
		return nil, err
	}

	from := order.PaymentStatus
	restock, err := order.ApplyPayment(target, s.now())
	if err != nil {
		return nil, translateDomainError(err)
	}

	if err := s.save(ctx, order); err != nil {
		return nil, err
	}
	if restock {
		s.restoreStock(ctx, order)
	}
	s.invalidateOrder(ctx, order)
	s.publish(ctx, events.OrderPaymentChanged, order)

	s.log(ctx).Info("payment status changed",
		zap.String("order_id", order.ID),
		zap.String("from", string(from)),
		zap.String("to", string(order.PaymentStatus)),
		zap.String("status", string(order.Status)))
	return order, nil
}

// DeleteOrder removes a cancelled or refunded order.
func (s *OrderService) DeleteOrder(ctx context.Context, id string) error {
	order, err := s.loadForWrite(ctx, id)
	if err != nil {
		return err
	}
	if order.Status != domain.OrderStatusCancelled && order.Status != domain.OrderStatusRefunded {
		return rejected("only CANCELLED or REFUNDED orders can be deleted")
	}

	err = s.orders.Delete(ctx, id)
	if errors.Is(err, repository.ErrOrderNotFound) {
		return notFound("order %s not found", id)
	}
	if err != nil {
		return fmt.Errorf("delete order %s: %w", id, err)
	}

	s.invalidateOrder(ctx, order)
	s.log(ctx).Info("order deleted", zap.String("order_id", id))
	return nil
}

// restoreStock returns every item quantity to its product. Failures are
// logged and counted, never returned.
func (s *OrderService) restoreStock(ctx context.Context, order *domain.Order) RestoreReport {
	cctx, cancel := cleanupContext(ctx)
	defer cancel()

	var report RestoreReport
	for _, item := range order.Items {
		if err := s.products.AdjustStock(cctx, item.ProductID, item.Quantity); err != nil {
			report.Failed++
			s.log(ctx).Error("stock restore failed",
				zap.String("order_id", order.ID),
				zap.String("product_id", item.ProductID),
				zap.Int("quantity", item.Quantity),
				zap.Error(err))
			continue
		}
		report.Restored++
	}
	return report
}

// loadForWrite reads the authoritative copy of an order from the store.
func (s *OrderService) loadForWrite(ctx context.Context, id string) (*domain.Order, error) {
	order, err := s.orders.GetByID(ctx, id)
	if errors.Is(err, repository.ErrOrderNotFound) {
		return nil, notFound("order %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("load order %s: %w", id, err)
	}
	return order, nil
}

func (s *OrderService) save(ctx context.Context, order *domain.Order) error {
	err := s.orders.Update(ctx, order)
	if errors.Is(err, repository.ErrOrderNotFound) {
		return notFound("order %s not found", order.ID)
	}
	if err != nil {
		return fmt.Errorf("update order %s: %w", order.ID, err)
	}
	return nil
}

func translateDomainError(err error) error {
	switch {
	case errors.Is(err, domain.ErrIllegalTransition):
		return &Error{kind: ErrBusinessLogic, msg: trimKind(err, domain.ErrIllegalTransition)}
	case errors.Is(err, domain.ErrUnsupportedPayment), errors.Is(err, domain.ErrUnknownStatus):
		return &Error{kind: ErrValidation, msg: err.Error()}
	}
	return err
}

// trimKind drops the "<sentinel>: " prefix added when the domain wrapped kind.
func trimKind(err, kind error) string {
	return strings.TrimPrefix(err.Error(), kind.Error()+": ")
}
