package service

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/fjod/go_shop/internal/domain"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var testAddress = domain.Address{Street: "1 Main St", City: "Springfield", State: "IL", Zip: "62701", Country: "US"}

type fixture struct {
	svc       *OrderService
	orders    *MockOrderRepository
	products  *MockProductRepository
	users     *MockUserRepository
	cache     *MockCache
	publisher *MockPublisher
	clock     *testClock
}

type testClock struct {
	now atomic.Int64
}

func (c *testClock) Now() time.Time {
	return time.Unix(0, c.now.Add(int64(time.Second))).UTC()
}

func newFixture() *fixture {
	f := &fixture{
		orders:    NewMockOrderRepository(),
		products:  NewMockProductRepository(),
		users:     NewMockUserRepository(),
		cache:     NewMockCache(),
		publisher: &MockPublisher{},
		clock:     &testClock{},
	}
	f.clock.now.Store(time.Date(2024, 3, 5, 12, 0, 0, 0, time.UTC).UnixNano())
	f.svc = NewOrderService(OrderDeps{
		Orders:    f.orders,
		Products:  f.products,
		Users:     f.users,
		Tx:        &MockTransactor{orders: f.orders, products: f.products},
		Cache:     f.cache,
		Publisher: f.publisher,
		Logger:    zap.NewNop(),
		Now:       f.clock.Now,
	})
	return f
}

var skuSeq atomic.Int64

func (f *fixture) addProduct(price float64, stock int) *domain.Product {
	n := skuSeq.Add(1)
	p := &domain.Product{
		ID:       uuid.NewString(),
		Name:     fmt.Sprintf("Product %d", n),
		Price:    price,
		SKU:      fmt.Sprintf("SKU-%d", n),
		Stock:    stock,
		IsActive: true,
	}
	_ = f.products.Create(context.Background(), p)
	return p
}

func (f *fixture) addUser(active bool) *domain.User {
	u := &domain.User{
		ID:       uuid.NewString(),
		Email:    uuid.NewString() + "@example.com",
		Name:     "Test User",
		IsActive: active,
	}
	_ = f.users.Create(context.Background(), u)
	return u
}

func orderRequest(userID string, items ...LineItem) CreateOrderRequest {
	return CreateOrderRequest{UserID: userID, Items: items, ShippingAddress: testAddress}
}
