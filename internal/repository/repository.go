package repository

import (
	"context"
	"errors"
	"time"

	"github.com/fjod/go_shop/internal/domain"
)

var (
	ErrOrderNotFound        = errors.New("order not found")
	ErrDuplicateOrderNumber = errors.New("order number already exists")
	ErrProductNotFound      = errors.New("product not found")
	ErrDuplicateSKU         = errors.New("product with this sku already exists")
	ErrInsufficientStock    = errors.New("insufficient stock")
	ErrUserNotFound         = errors.New("user not found")
	ErrDuplicateEmail       = errors.New("user with this email already exists")
	ErrCartNotFound         = errors.New("cart not found")
	ErrItemNotFound         = errors.New("item not found in cart")
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type Credentials struct {
	Driver            string
	Host              string
	Port              int
	User              string
	Password          string
	DBName            string
	SQLitePath        string
	MigrationsDirPath string
}

// Page is a 1-based page of results.
type Page struct {
	Number int
	Limit  int
}

func (p Page) Offset() int {
	return (p.Number - 1) * p.Limit
}

type OrderRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Order, error)
	GetByOrderNumber(ctx context.Context, number string) (*domain.Order, error)
	Create(ctx context.Context, order *domain.Order) error
	Update(ctx context.Context, order *domain.Order) error
	Delete(ctx context.Context, id string) error
	ListByUser(ctx context.Context, userID string, page Page) ([]*domain.Order, error)
	ListByStatus(ctx context.Context, status domain.OrderStatus, page Page) ([]*domain.Order, error)
	Summary(ctx context.Context, start, end *time.Time) (*domain.OrderSummary, error)
}

type ProductRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Product, error)
	Create(ctx context.Context, p *domain.Product) error
	List(ctx context.Context, page Page) ([]*domain.Product, error)
	Update(ctx context.Context, p *domain.Product) error
	Delete(ctx context.Context, id string) error
	// AdjustStock adds delta to the product stock. It fails with
	// ErrInsufficientStock instead of letting stock go below zero.
	AdjustStock(ctx context.Context, id string, delta int) error
}

type UserRepository interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	Create(ctx context.Context, u *domain.User) error
	Update(ctx context.Context, u *domain.User) error
	Delete(ctx context.Context, id string) error
}

type CartRepository interface {
	GetCart(ctx context.Context, userID string) (*domain.Cart, error)
	AddItem(ctx context.Context, userID string, item domain.CartItem) error
	UpdateItemQuantity(ctx context.Context, userID, productID string, quantity int) error
	RemoveItem(ctx context.Context, userID, productID string) error
	DeleteCart(ctx context.Context, userID string) error
}

// Transactor runs fn inside a single database transaction. Repository calls
// made with the context passed to fn join that transaction.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}
