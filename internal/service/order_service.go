package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fjod/go_shop/internal/cache"
	"github.com/fjod/go_shop/internal/domain"
	"github.com/fjod/go_shop/internal/events"
	"github.com/fjod/go_shop/internal/logger"
	"github.com/fjod/go_shop/internal/repository"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultCacheTTL = 300 * time.Second

	defaultPage  = 1
	defaultLimit = 10
	maxLimit     = 100

	cleanupTimeout = time.Second
	// bounds a load shared by every caller waiting on the same cache key
	sharedLoadTimeout = 5 * time.Second
)

type OrderDeps struct {
	Orders    repository.OrderRepository
	Products  repository.ProductRepository
	Users     repository.UserRepository
	Tx        repository.Transactor
	Cache     cache.Cache
	Publisher events.Publisher
	Logger    *zap.Logger
	CacheTTL  time.Duration
	// Now defaults to time.Now.
	Now func() time.Time
}

// OrderService runs checkout and the order and payment lifecycles.
type OrderService struct {
	orders    repository.OrderRepository
	products  repository.ProductRepository
	users     repository.UserRepository
	tx        repository.Transactor
	cache     cache.Cache
	publisher events.Publisher
	logger    *zap.Logger
	cacheTTL  time.Duration
	now       func() time.Time
	sfg       singleflight.Group // collapses concurrent cache misses per key
}

func NewOrderService(deps OrderDeps) *OrderService {
	s := &OrderService{
		orders:    deps.Orders,
		products:  deps.Products,
		users:     deps.Users,
		tx:        deps.Tx,
		cache:     deps.Cache,
		publisher: deps.Publisher,
		logger:    deps.Logger,
		cacheTTL:  deps.CacheTTL,
		now:       deps.Now,
	}
	if s.publisher == nil {
		s.publisher = events.NopPublisher{}
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.cacheTTL <= 0 {
		s.cacheTTL = DefaultCacheTTL
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

type LineItem struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type CreateOrderRequest struct {
	UserID          string
	Items           []LineItem
	ShippingAddress domain.Address
}

func (r CreateOrderRequest) validate() error {
	if strings.TrimSpace(r.UserID) == "" {
		return invalid("user id is required")
	}
	if len(r.Items) == 0 {
		return invalid("order must contain at least one item")
	}
	for _, item := range r.Items {
		if strings.TrimSpace(item.ProductID) == "" {
			return invalid("product id is required for every item")
		}
		if item.Quantity <= 0 {
			return invalid("quantity for product %s must be greater than zero", item.ProductID)
		}
	}
	if missing := r.ShippingAddress.Missing(); len(missing) > 0 {
		return invalid("shipping address is missing %s", strings.Join(missing, ", "))
	}
	return nil
}

// CreateOrder checks out the requested items for a user. The order row and the
// stock decrements are written in one transaction.
func (s *OrderService) CreateOrder(ctx context.Context, req CreateOrderRequest) (*domain.Order, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	user, err := s.users.GetByID(ctx, req.UserID)
	if errors.Is(err, repository.ErrUserNotFound) {
		return nil, notFound("user %s not found", req.UserID)
	}
	if err != nil {
		return nil, fmt.Errorf("load user %s: %w", req.UserID, err)
	}
	if !user.IsActive {
		return nil, rejected("user %s is not active", req.UserID)
	}

	products, err := s.loadProducts(ctx, req.Items)
	if err != nil {
		return nil, err
	}

	requested := make(map[string]int, len(products))
	items := make([]domain.OrderItem, 0, len(req.Items))
	for _, li := range req.Items {
		p := products[li.ProductID]
		if !p.IsActive {
			return nil, rejected("product %s is not available", p.ID)
		}
		requested[p.ID] += li.Quantity
		if p.Stock < requested[p.ID] {
			return nil, rejected("insufficient stock for product %s: requested %d, available %d",
				p.ID, requested[p.ID], p.Stock)
		}
		items = append(items, domain.NewOrderItem(p, li.Quantity))
	}

	order := domain.NewOrder(req.UserID, items, req.ShippingAddress, s.now())
	if err := order.Validate(); err != nil {
		return nil, invalid("%v", err)
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.orders.Create(ctx, order); err != nil {
			return fmt.Errorf("persist order: %w", err)
		}
		for _, item := range order.Items {
			err := s.products.AdjustStock(ctx, item.ProductID, -item.Quantity)
			switch {
			case errors.Is(err, repository.ErrInsufficientStock):
				return rejected("insufficient stock for product %s", item.ProductID)
			case errors.Is(err, repository.ErrProductNotFound):
				return notFound("product %s not found", item.ProductID)
			case err != nil:
				return fmt.Errorf("decrement stock for product %s: %w", item.ProductID, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidateLists(ctx, order.UserID)
	s.publish(ctx, events.OrderCreated, order)
	s.log(ctx).Info("order created",
		zap.String("order_id", order.ID),
		zap.String("order_number", order.OrderNumber),
		zap.String("user_id", order.UserID),
		zap.Float64("total", order.Total))
	return order, nil
}

// loadProducts fetches every distinct product of the request concurrently.
func (s *OrderService) loadProducts(ctx context.Context, items []LineItem) (map[string]*domain.Product, error) {
	ids := make([]string, 0, len(items))
	seen := make(map[string]bool, len(items))
	for _, item := range items {
		if !seen[item.ProductID] {
			seen[item.ProductID] = true
			ids = append(ids, item.ProductID)
		}
	}

	found := make([]*domain.Product, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	for i, id := range ids {
		g.Go(func() error {
			p, err := s.products.GetByID(gctx, id)
			if errors.Is(err, repository.ErrProductNotFound) {
				return notFound("product %s not found", id)
			}
			if err != nil {
				return fmt.Errorf("load product %s: %w", id, err)
			}
			found[i] = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	products := make(map[string]*domain.Product, len(found))
	for _, p := range found {
		products[p.ID] = p
	}
	return products, nil
}

func (s *OrderService) log(ctx context.Context) *zap.Logger {
	return logger.FromContext(ctx, s.logger)
}

// cleanupContext keeps request values but survives request cancellation so
// side effects of a committed write still run.
func cleanupContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
}

// sharedLoad runs fn once per key for all concurrent callers. fn gets a
// context that outlives any single caller, so one cancelled request does not
// fail the others. Each caller still stops waiting when its own ctx ends.
func sharedLoad(ctx context.Context, g *singleflight.Group, key string, fn func(context.Context) (any, error)) (any, error) {
	ch := g.DoChan(key, func() (any, error) {
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sharedLoadTimeout)
		defer cancel()
		return fn(loadCtx)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		return res.Val, res.Err
	}
}

func (s *OrderService) invalidateOrder(ctx context.Context, order *domain.Order) {
	cctx, cancel := cleanupContext(ctx)
	defer cancel()
	if err := s.cache.Delete(cctx, cache.OrderKey(order.ID)); err != nil {
		s.log(ctx).Warn("cache invalidate failed", zap.String("order_id", order.ID), zap.Error(err))
	}
	s.invalidateLists(ctx, order.UserID)
}

func (s *OrderService) invalidateLists(ctx context.Context, userID string) {
	cctx, cancel := cleanupContext(ctx)
	defer cancel()
	for _, pattern := range []string{cache.OrdersPattern, cache.UserOrdersPattern(userID)} {
		if err := s.cache.DeleteByPattern(cctx, pattern); err != nil {
			s.log(ctx).Warn("cache invalidate failed", zap.String("pattern", pattern), zap.Error(err))
		}
	}
}

func (s *OrderService) publish(ctx context.Context, t events.EventType, order *domain.Order) {
	cctx, cancel := cleanupContext(ctx)
	defer cancel()
	if err := s.publisher.Publish(cctx, events.NewOrderEvent(t, order)); err != nil {
		s.log(ctx).Warn("publish event failed",
			zap.String("event", string(t)),
			zap.String("order_id", order.ID),
			zap.Error(err))
	}
}

func normalizePage(page, limit int) repository.Page {
	if page < 1 {
		page = defaultPage
	}
	if limit < 1 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	return repository.Page{Number: page, Limit: limit}
}
