package repository

import (
	"context"
	"testing"
	"time"

	"github.com/fjod/go_shop/internal/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

var testAddress = domain.Address{Street: "1 Main St", City: "Springfield", State: "IL", Zip: "62701", Country: "US"}

func setupSQLite(t *testing.T) *Repository {
	t.Helper()
	cred := &Credentials{
		Driver:            DriverSQLite,
		SQLitePath:        ":memory:",
		MigrationsDirPath: "./migrations/sqlite",
	}
	repo, err := NewRepository(cred)
	require.NoError(t, err)
	require.NoError(t, repo.RunMigrations(cred))
	t.Cleanup(func() { repo.Close() })
	return repo
}

func newTestProduct(sku string, stock int, price float64) *domain.Product {
	now := time.Now().UTC().Truncate(time.Millisecond)
	return &domain.Product{
		ID:        uuid.NewString(),
		Name:      "Product " + sku,
		Price:     price,
		SKU:       sku,
		Stock:     stock,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func newTestOrder(userID string, products ...*domain.Product) *domain.Order {
	items := make([]domain.OrderItem, len(products))
	for i, p := range products {
		items[i] = domain.NewOrderItem(p, 1)
	}
	return domain.NewOrder(userID, items, testAddress, time.Now().Truncate(time.Millisecond))
}

// runStoreSuite exercises the SQL stores against whichever backend repo uses.
func runStoreSuite(t *testing.T, repo *Repository) {
	ctx := context.Background()

	t.Run("product lifecycle", func(t *testing.T) {
		products := repo.Products()
		p := newTestProduct("SKU-"+uuid.NewString()[:6], 5, 12.5)
		require.NoError(t, products.Create(ctx, p))

		got, err := products.GetByID(ctx, p.ID)
		require.NoError(t, err)
		require.Equal(t, p.Name, got.Name)
		require.Equal(t, 12.5, got.Price)
		require.Equal(t, 5, got.Stock)
		require.True(t, got.IsActive)

		dup := newTestProduct(p.SKU, 1, 1)
		require.ErrorIs(t, products.Create(ctx, dup), ErrDuplicateSKU)

		require.NoError(t, products.AdjustStock(ctx, p.ID, -5))
		require.ErrorIs(t, products.AdjustStock(ctx, p.ID, -1), ErrInsufficientStock)
		require.NoError(t, products.AdjustStock(ctx, p.ID, 2))
		got, err = products.GetByID(ctx, p.ID)
		require.NoError(t, err)
		require.Equal(t, 2, got.Stock)

		require.ErrorIs(t, products.AdjustStock(ctx, uuid.NewString(), 1), ErrProductNotFound)

		got.Name = "Renamed"
		got.Stock = 999
		got.UpdatedAt = time.Now()
		require.NoError(t, products.Update(ctx, got))
		got, err = products.GetByID(ctx, p.ID)
		require.NoError(t, err)
		require.Equal(t, "Renamed", got.Name)
		require.Equal(t, 2, got.Stock, "update must not touch stock")

		require.NoError(t, products.Delete(ctx, p.ID))
		_, err = products.GetByID(ctx, p.ID)
		require.ErrorIs(t, err, ErrProductNotFound)
		require.ErrorIs(t, products.Delete(ctx, p.ID), ErrProductNotFound)
	})

	t.Run("user lifecycle", func(t *testing.T) {
		users := repo.Users()
		now := time.Now().UTC()
		u := &domain.User{
			ID:           uuid.NewString(),
			Email:        uuid.NewString()[:8] + "@example.com",
			Name:         "Ada",
			PasswordHash: "hash",
			IsActive:     true,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		require.NoError(t, users.Create(ctx, u))

		byEmail, err := users.GetByEmail(ctx, u.Email)
		require.NoError(t, err)
		require.Equal(t, u.ID, byEmail.ID)

		clone := *u
		clone.ID = uuid.NewString()
		require.ErrorIs(t, users.Create(ctx, &clone), ErrDuplicateEmail)

		u.IsActive = false
		require.NoError(t, users.Update(ctx, u))
		got, err := users.GetByID(ctx, u.ID)
		require.NoError(t, err)
		require.False(t, got.IsActive)

		require.NoError(t, users.Delete(ctx, u.ID))
		_, err = users.GetByID(ctx, u.ID)
		require.ErrorIs(t, err, ErrUserNotFound)
	})

	t.Run("order lifecycle", func(t *testing.T) {
		orders := repo.Orders()
		p1 := newTestProduct("A-"+uuid.NewString()[:6], 10, 40)
		p2 := newTestProduct("B-"+uuid.NewString()[:6], 10, 70)
		userID := uuid.NewString()

		order := newTestOrder(userID, p1, p2)
		require.NoError(t, orders.Create(ctx, order))

		got, err := orders.GetByID(ctx, order.ID)
		require.NoError(t, err)
		require.Equal(t, order.OrderNumber, got.OrderNumber)
		require.Equal(t, testAddress, got.ShippingAddress)
		require.Equal(t, domain.OrderStatusPending, got.Status)
		require.Equal(t, 121.0, got.Total)
		require.Len(t, got.Items, 2)
		require.Equal(t, p1.Name, got.Items[0].ProductName)
		require.Equal(t, 70.0, got.Items[1].UnitPrice)
		require.Nil(t, got.ShippedAt)

		byNumber, err := orders.GetByOrderNumber(ctx, order.OrderNumber)
		require.NoError(t, err)
		require.Equal(t, order.ID, byNumber.ID)

		require.NoError(t, got.Apply(domain.TransitionConfirm, time.Now()))
		require.NoError(t, got.Apply(domain.TransitionProcess, time.Now()))
		require.NoError(t, got.Apply(domain.TransitionShip, time.Now()))
		require.NoError(t, orders.Update(ctx, got))

		shipped, err := orders.GetByID(ctx, order.ID)
		require.NoError(t, err)
		require.Equal(t, domain.OrderStatusShipped, shipped.Status)
		require.NotNil(t, shipped.ShippedAt)

		second := newTestOrder(userID, p1)
		require.NoError(t, orders.Create(ctx, second))

		list, err := orders.ListByUser(ctx, userID, Page{Number: 1, Limit: 10})
		require.NoError(t, err)
		require.Len(t, list, 2)
		for _, o := range list {
			require.NotEmpty(t, o.Items)
		}

		page2, err := orders.ListByUser(ctx, userID, Page{Number: 2, Limit: 1})
		require.NoError(t, err)
		require.Len(t, page2, 1)

		byStatus, err := orders.ListByStatus(ctx, domain.OrderStatusShipped, Page{Number: 1, Limit: 100})
		require.NoError(t, err)
		require.NotEmpty(t, byStatus)
		for _, o := range byStatus {
			require.Equal(t, domain.OrderStatusShipped, o.Status)
		}

		require.NoError(t, orders.Delete(ctx, second.ID))
		_, err = orders.GetByID(ctx, second.ID)
		require.ErrorIs(t, err, ErrOrderNotFound)
		require.ErrorIs(t, orders.Delete(ctx, second.ID), ErrOrderNotFound)

		var items int
		require.NoError(t, repo.db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM order_items WHERE order_id = $1`, second.ID).Scan(&items))
		require.Zero(t, items, "items are removed with their order")
	})

	t.Run("duplicate order number", func(t *testing.T) {
		orders := repo.Orders()
		p := newTestProduct("C-"+uuid.NewString()[:6], 1, 5)
		first := newTestOrder(uuid.NewString(), p)
		require.NoError(t, orders.Create(ctx, first))

		clash := newTestOrder(uuid.NewString(), p)
		clash.OrderNumber = first.OrderNumber
		require.ErrorIs(t, orders.Create(ctx, clash), ErrDuplicateOrderNumber)
		_, err := orders.GetByID(ctx, clash.ID)
		require.ErrorIs(t, err, ErrOrderNotFound)
	})

	t.Run("malformed ids are not found", func(t *testing.T) {
		const id = "not-a-uuid"

		_, err := repo.Orders().GetByID(ctx, id)
		require.ErrorIs(t, err, ErrOrderNotFound)
		require.ErrorIs(t, repo.Orders().Update(ctx, &domain.Order{ID: id}), ErrOrderNotFound)
		require.ErrorIs(t, repo.Orders().Delete(ctx, id), ErrOrderNotFound)
		list, err := repo.Orders().ListByUser(ctx, id, Page{Number: 1, Limit: 10})
		require.NoError(t, err)
		require.Empty(t, list)

		_, err = repo.Products().GetByID(ctx, id)
		require.ErrorIs(t, err, ErrProductNotFound)
		require.ErrorIs(t, repo.Products().Update(ctx, &domain.Product{ID: id, SKU: id}), ErrProductNotFound)
		require.ErrorIs(t, repo.Products().AdjustStock(ctx, id, 1), ErrProductNotFound)
		require.ErrorIs(t, repo.Products().Delete(ctx, id), ErrProductNotFound)

		_, err = repo.Users().GetByID(ctx, id)
		require.ErrorIs(t, err, ErrUserNotFound)
		require.ErrorIs(t, repo.Users().Update(ctx, &domain.User{ID: id, Email: id}), ErrUserNotFound)
		require.ErrorIs(t, repo.Users().Delete(ctx, id), ErrUserNotFound)
	})

	t.Run("transaction rollback", func(t *testing.T) {
		p := newTestProduct("TX-"+uuid.NewString()[:6], 3, 10)
		require.NoError(t, repo.Products().Create(ctx, p))
		order := newTestOrder(uuid.NewString(), p)

		err := repo.WithinTx(ctx, func(ctx context.Context) error {
			if err := repo.Orders().Create(ctx, order); err != nil {
				return err
			}
			if err := repo.Products().AdjustStock(ctx, p.ID, -2); err != nil {
				return err
			}
			return repo.Products().AdjustStock(ctx, p.ID, -2)
		})
		require.ErrorIs(t, err, ErrInsufficientStock)

		_, err = repo.Orders().GetByID(ctx, order.ID)
		require.ErrorIs(t, err, ErrOrderNotFound)
		got, err := repo.Products().GetByID(ctx, p.ID)
		require.NoError(t, err)
		require.Equal(t, 3, got.Stock)
	})
}
