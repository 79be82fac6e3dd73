package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/go_shop/internal/cache"
	"github.com/fjod/go_shop/internal/domain"
	"github.com/fjod/go_shop/internal/repository"
	"go.uber.org/zap"
)

func (s *OrderService) GetOrderByID(ctx context.Context, id string) (*domain.Order, error) {
	return readThrough(ctx, s, cache.OrderKey(id), func(ctx context.Context) (*domain.Order, error) {
		order, err := s.orders.GetByID(ctx, id)
		if errors.Is(err, repository.ErrOrderNotFound) {
			return nil, notFound("order %s not found", id)
		}
		if err != nil {
			return nil, fmt.Errorf("load order %s: %w", id, err)
		}
		return order, nil
	})
}

func (s *OrderService) GetUserOrders(ctx context.Context, userID string, page, limit int) ([]*domain.Order, error) {
	p := normalizePage(page, limit)
	key := cache.UserOrdersKey(userID, p.Number, p.Limit)
	return readThrough(ctx, s, key, func(ctx context.Context) ([]*domain.Order, error) {
		orders, err := s.orders.ListByUser(ctx, userID, p)
		if err != nil {
			return nil, fmt.Errorf("list orders of user %s: %w", userID, err)
		}
		return orders, nil
	})
}

func (s *OrderService) GetOrdersByStatus(ctx context.Context, status string, page, limit int) ([]*domain.Order, error) {
	st, err := domain.ParseOrderStatus(status)
	if err != nil {
		return nil, invalid("unknown order status %q", status)
	}
	p := normalizePage(page, limit)
	key := cache.StatusOrdersKey(string(st), p.Number, p.Limit)
	return readThrough(ctx, s, key, func(ctx context.Context) ([]*domain.Order, error) {
		orders, err := s.orders.ListByStatus(ctx, st, p)
		if err != nil {
			return nil, fmt.Errorf("list %s orders: %w", st, err)
		}
		return orders, nil
	})
}

// GetOrderSummary aggregates orders created between start and end. A nil
// bound leaves that side open.
func (s *OrderService) GetOrderSummary(ctx context.Context, start, end *time.Time) (*domain.OrderSummary, error) {
	if start != nil && end != nil && end.Before(*start) {
		return nil, invalid("end date must not be before start date")
	}
	return readThrough(ctx, s, cache.SummaryKey(start, end), func(ctx context.Context) (*domain.OrderSummary, error) {
		summary, err := s.orders.Summary(ctx, start, end)
		if err != nil {
			return nil, fmt.Errorf("summarize orders: %w", err)
		}
		return summary, nil
	})
}

// readThrough serves key from the cache, falling back to load on a miss or a
// cache failure and storing what load returned.
func readThrough[T any](ctx context.Context, s *OrderService, key string, load func(context.Context) (T, error)) (T, error) {
	v, err := sharedLoad(ctx, &s.sfg, key, func(ctx context.Context) (any, error) {
		var cached T
		err := s.cache.Get(ctx, key, &cached)
		if err == nil {
			return cached, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			s.log(ctx).Warn("cache get failed", zap.String("key", key), zap.Error(err))
		}

		fresh, err := load(ctx)
		if err != nil {
			return nil, err
		}
		if err := s.cache.Set(ctx, key, fresh, s.cacheTTL); err != nil {
			s.log(ctx).Warn("cache set failed", zap.String("key", key), zap.Error(err))
		}
		return fresh, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return v.(T), nil
}
