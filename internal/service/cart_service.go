package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/fjod/go_shop/internal/cache"
	"github.com/fjod/go_shop/internal/domain"
	"github.com/fjod/go_shop/internal/logger"
	"github.com/fjod/go_shop/internal/repository"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// PriceTolerance is the largest difference between the price stored in a cart
// and the live product price that checkout accepts.
const PriceTolerance = 0.01

type OrderCreator interface {
	CreateOrder(ctx context.Context, req CreateOrderRequest) (*domain.Order, error)
}

type CartService struct {
	repo     repository.CartRepository
	products repository.ProductRepository
	orders   OrderCreator
	cache    cache.Cache
	cacheTTL time.Duration
	logger   *zap.Logger
	sfg      singleflight.Group // Prevents cache stampede
}

func NewCartService(
	repo repository.CartRepository,
	products repository.ProductRepository,
	orders OrderCreator,
	c cache.Cache,
	cacheTTL time.Duration,
	log *zap.Logger,
) *CartService {
	if cacheTTL <= 0 {
		cacheTTL = DefaultCacheTTL
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &CartService{
		repo:     repo,
		products: products,
		orders:   orders,
		cache:    c,
		cacheTTL: cacheTTL,
		logger:   log,
	}
}

// GetCart returns the user's cart. A user without a cart gets an empty one.
func (s *CartService) GetCart(ctx context.Context, userID string) (*domain.Cart, error) {
	if userID == "" {
		return nil, invalid("user id is required")
	}
	key := cache.CartKey(userID)
	v, err := sharedLoad(ctx, &s.sfg, key, func(ctx context.Context) (any, error) {
		var cart domain.Cart
		err := s.cache.Get(ctx, key, &cart)
		if err == nil {
			return &cart, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			s.log(ctx).Warn("cache get error", zap.String("key", key), zap.Error(err))
		}

		stored, err := s.repo.GetCart(ctx, userID)
		if errors.Is(err, repository.ErrCartNotFound) {
			now := time.Now().UTC()
			return &domain.Cart{UserID: userID, Items: []domain.CartItem{}, CreatedAt: now, UpdatedAt: now}, nil
		}
		if err != nil {
			return nil, fmt.Errorf("load cart: %w", err)
		}
		stored.Recalculate()

		if err := s.cache.Set(ctx, key, stored, s.cacheTTL); err != nil {
			s.log(ctx).Warn("cache set error", zap.String("key", key), zap.Error(err))
		}
		return stored, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*domain.Cart), nil
}

// AddItem adds quantity units of a product, on top of any already in the cart.
func (s *CartService) AddItem(ctx context.Context, userID, productID string, quantity int) (*domain.Cart, error) {
	if quantity <= 0 {
		return nil, invalid("quantity must be greater than zero")
	}
	cart, err := s.GetCart(ctx, userID)
	if err != nil {
		return nil, err
	}
	total := quantity
	if existing, ok := cart.Item(productID); ok {
		total += existing.Quantity
	}

	p, err := s.purchasable(ctx, productID, total)
	if err != nil {
		return nil, err
	}

	if err := s.repo.AddItem(ctx, userID, domain.CartItem{ProductID: p.ID, Quantity: total, Price: p.Price}); err != nil {
		return nil, fmt.Errorf("add item: %w", err)
	}
	s.invalidate(ctx, userID)
	return s.GetCart(ctx, userID)
}

func (s *CartService) UpdateQuantity(ctx context.Context, userID, productID string, quantity int) (*domain.Cart, error) {
	if quantity <= 0 {
		return nil, invalid("quantity must be greater than zero")
	}
	if _, err := s.purchasable(ctx, productID, quantity); err != nil {
		return nil, err
	}

	err := s.repo.UpdateItemQuantity(ctx, userID, productID, quantity)
	if errors.Is(err, repository.ErrItemNotFound) {
		return nil, notFound("product %s is not in the cart", productID)
	}
	if err != nil {
		return nil, fmt.Errorf("update item quantity: %w", err)
	}
	s.invalidate(ctx, userID)
	return s.GetCart(ctx, userID)
}

func (s *CartService) RemoveItem(ctx context.Context, userID, productID string) (*domain.Cart, error) {
	err := s.repo.RemoveItem(ctx, userID, productID)
	if errors.Is(err, repository.ErrItemNotFound) || errors.Is(err, repository.ErrCartNotFound) {
		return nil, notFound("product %s is not in the cart", productID)
	}
	if err != nil {
		return nil, fmt.Errorf("remove item: %w", err)
	}
	s.invalidate(ctx, userID)
	return s.GetCart(ctx, userID)
}

// ClearCart empties the cart. Clearing a missing cart is not an error.
func (s *CartService) ClearCart(ctx context.Context, userID string) error {
	err := s.repo.DeleteCart(ctx, userID)
	if err != nil && !errors.Is(err, repository.ErrCartNotFound) {
		return fmt.Errorf("delete cart: %w", err)
	}
	s.invalidate(ctx, userID)
	return nil
}

// ValidateCartForCheckout lists every reason the cart cannot be checked out.
// An empty list means the cart is ready. The error is reserved for
// infrastructure failures.
func (s *CartService) ValidateCartForCheckout(ctx context.Context, userID string) ([]string, error) {
	cart, err := s.GetCart(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(cart.Items) == 0 {
		return []string{"cart is empty"}, nil
	}

	problems := make([]string, 0)
	for _, item := range cart.Items {
		p, err := s.products.GetByID(ctx, item.ProductID)
		if errors.Is(err, repository.ErrProductNotFound) {
			problems = append(problems, fmt.Sprintf("product %s no longer exists", item.ProductID))
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("load product %s: %w", item.ProductID, err)
		}
		if !p.IsActive {
			problems = append(problems, fmt.Sprintf("%s is no longer available", p.Name))
			continue
		}
		if p.Stock < item.Quantity {
			problems = append(problems, fmt.Sprintf("only %d units of %s left in stock", p.Stock, p.Name))
		}
		if math.Abs(p.Price-item.Price) > PriceTolerance {
			problems = append(problems, fmt.Sprintf("price of %s changed from %.2f to %.2f", p.Name, item.Price, p.Price))
		}
	}
	return problems, nil
}

// Checkout turns the cart into an order and clears it.
func (s *CartService) Checkout(ctx context.Context, userID string, address domain.Address) (*domain.Order, error) {
	problems, err := s.ValidateCartForCheckout(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(problems) > 0 {
		return nil, invalid("cart cannot be checked out: %s", strings.Join(problems, "; "))
	}

	cart, err := s.GetCart(ctx, userID)
	if err != nil {
		return nil, err
	}
	items := make([]LineItem, len(cart.Items))
	for i, item := range cart.Items {
		items[i] = LineItem{ProductID: item.ProductID, Quantity: item.Quantity}
	}

	order, err := s.orders.CreateOrder(ctx, CreateOrderRequest{
		UserID:          userID,
		Items:           items,
		ShippingAddress: address,
	})
	if err != nil {
		return nil, err
	}

	if err := s.ClearCart(ctx, userID); err != nil {
		s.log(ctx).Warn("clear cart after checkout failed",
			zap.String("user_id", userID),
			zap.String("order_id", order.ID),
			zap.Error(err))
	}
	return order, nil
}

func (s *CartService) purchasable(ctx context.Context, productID string, quantity int) (*domain.Product, error) {
	p, err := s.products.GetByID(ctx, productID)
	if errors.Is(err, repository.ErrProductNotFound) {
		return nil, notFound("product %s not found", productID)
	}
	if err != nil {
		return nil, fmt.Errorf("load product %s: %w", productID, err)
	}
	if !p.IsActive {
		return nil, rejected("product %s is not available", productID)
	}
	if p.Stock < quantity {
		return nil, rejected("insufficient stock for product %s: requested %d, available %d", productID, quantity, p.Stock)
	}
	return p, nil
}

func (s *CartService) invalidate(ctx context.Context, userID string) {
	cctx, cancel := cleanupContext(ctx)
	defer cancel()
	if err := s.cache.Delete(cctx, cache.CartKey(userID)); err != nil {
		s.log(ctx).Warn("cache invalidate error", zap.String("user_id", userID), zap.Error(err))
	}
}

func (s *CartService) log(ctx context.Context) *zap.Logger {
	return logger.FromContext(ctx, s.logger)
}
