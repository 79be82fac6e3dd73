package http

import (
	"context"
	"time"

	"github.com/fjod/go_shop/internal/domain"
	"github.com/fjod/go_shop/internal/service"
)

type fakeOrderService struct {
	order   *domain.Order
	orders  []*domain.Order
	summary *domain.OrderSummary
	err     error

	gotRequest service.CreateOrderRequest
	gotID      string
	gotUserID  string
	gotStatus  string
	gotReason  string
	gotPage    int
	gotLimit   int
	gotStart   *time.Time
	gotEnd     *time.Time
}

func (f *fakeOrderService) CreateOrder(_ context.Context, req service.CreateOrderRequest) (*domain.Order, error) {
	f.gotRequest = req
	return f.order, f.err
}

func (f *fakeOrderService) GetOrderByID(_ context.Context, id string) (*domain.Order, error) {
	f.gotID = id
	return f.order, f.err
}

func (f *fakeOrderService) GetUserOrders(_ context.Context, userID string, page, limit int) ([]*domain.Order, error) {
	f.gotUserID, f.gotPage, f.gotLimit = userID, page, limit
	return f.orders, f.err
}

func (f *fakeOrderService) GetOrdersByStatus(_ context.Context, status string, page, limit int) ([]*domain.Order, error) {
	f.gotStatus, f.gotPage, f.gotLimit = status, page, limit
	return f.orders, f.err
}

func (f *fakeOrderService) UpdateOrderStatus(_ context.Context, id, status string) (*domain.Order, error) {
	f.gotID, f.gotStatus = id, status
	return f.order, f.err
}

func (f *fakeOrderService) UpdatePaymentStatus(_ context.Context, id, status string) (*domain.Order, error) {
	f.gotID, f.gotStatus = id, status
	return f.order, f.err
}

func (f *fakeOrderService) CancelOrder(_ context.Context, id, reason string) (*domain.Order, error) {
	f.gotID, f.gotReason = id, reason
	return f.order, f.err
}

func (f *fakeOrderService) GetOrderSummary(_ context.Context, start, end *time.Time) (*domain.OrderSummary, error) {
	f.gotStart, f.gotEnd = start, end
	return f.summary, f.err
}

func (f *fakeOrderService) DeleteOrder(_ context.Context, id string) error {
	f.gotID = id
	return f.err
}

type fakeCartService struct {
	cart     *domain.Cart
	order    *domain.Order
	problems []string
	err      error

	gotUserID    string
	gotProductID string
	gotQuantity  int
	gotAddress   domain.Address
}

func (f *fakeCartService) GetCart(_ context.Context, userID string) (*domain.Cart, error) {
	f.gotUserID = userID
	return f.cart, f.err
}

func (f *fakeCartService) AddItem(_ context.Context, userID, productID string, quantity int) (*domain.Cart, error) {
	f.gotUserID, f.gotProductID, f.gotQuantity = userID, productID, quantity
	return f.cart, f.err
}

func (f *fakeCartService) UpdateQuantity(_ context.Context, userID, productID string, quantity int) (*domain.Cart, error) {
	f.gotUserID, f.gotProductID, f.gotQuantity = userID, productID, quantity
	return f.cart, f.err
}

func (f *fakeCartService) RemoveItem(_ context.Context, userID, productID string) (*domain.Cart, error) {
	f.gotUserID, f.gotProductID = userID, productID
	return f.cart, f.err
}

func (f *fakeCartService) ClearCart(_ context.Context, userID string) error {
	f.gotUserID = userID
	return f.err
}

func (f *fakeCartService) ValidateCartForCheckout(_ context.Context, userID string) ([]string, error) {
	f.gotUserID = userID
	return f.problems, f.err
}

func (f *fakeCartService) Checkout(_ context.Context, userID string, address domain.Address) (*domain.Order, error) {
	f.gotUserID, f.gotAddress = userID, address
	return f.order, f.err
}

type fakeProductService struct {
	product  *domain.Product
	products []*domain.Product
	err      error

	gotID    string
	gotInput service.ProductInput
	gotDelta int
}

func (f *fakeProductService) CreateProduct(_ context.Context, in service.ProductInput) (*domain.Product, error) {
	f.gotInput = in
	return f.product, f.err
}

func (f *fakeProductService) GetProduct(_ context.Context, id string) (*domain.Product, error) {
	f.gotID = id
	return f.product, f.err
}

func (f *fakeProductService) ListProducts(_ context.Context, _, _ int) ([]*domain.Product, error) {
	return f.products, f.err
}

func (f *fakeProductService) UpdateProduct(_ context.Context, id string, in service.ProductInput) (*domain.Product, error) {
	f.gotID, f.gotInput = id, in
	return f.product, f.err
}

func (f *fakeProductService) DeleteProduct(_ context.Context, id string) error {
	f.gotID = id
	return f.err
}

func (f *fakeProductService) AdjustStock(_ context.Context, id string, delta int) (*domain.Product, error) {
	f.gotID, f.gotDelta = id, delta
	return f.product, f.err
}

type fakeUserService struct {
	user *domain.User
	err  error

	gotID       string
	gotEmail    string
	gotPassword string
}

func (f *fakeUserService) Register(_ context.Context, email, _, password string) (*domain.User, error) {
	f.gotEmail, f.gotPassword = email, password
	return f.user, f.err
}

func (f *fakeUserService) Authenticate(_ context.Context, email, password string) (*domain.User, error) {
	f.gotEmail, f.gotPassword = email, password
	return f.user, f.err
}

func (f *fakeUserService) GetUser(_ context.Context, id string) (*domain.User, error) {
	f.gotID = id
	return f.user, f.err
}

func (f *fakeUserService) DeactivateUser(_ context.Context, id string) (*domain.User, error) {
	f.gotID = id
	return f.user, f.err
}

func (f *fakeUserService) DeleteUser(_ context.Context, id string) error {
	f.gotID = id
	return f.err
}
