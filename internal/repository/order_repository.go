package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fjod/go_shop/internal/domain"
)

type OrderStore struct {
	r *Repository
}

const orderColumns = `id, user_id, order_number, subtotal, shipping, taxes, total, status, payment_status,
	shipping_address, cancel_reason, created_at, updated_at, shipped_at, delivered_at`

func scanOrder(row interface{ Scan(...any) error }) (*domain.Order, error) {
	var (
		order       domain.Order
		addressJSON []byte
		shippedAt   sql.NullTime
		deliveredAt sql.NullTime
	)
	if err := row.Scan(
		&order.ID,
		&order.UserID,
		&order.OrderNumber,
		&order.Subtotal,
		&order.Shipping,
		&order.Taxes,
		&order.Total,
		&order.Status,
		&order.PaymentStatus,
		&addressJSON,
		&order.CancelReason,
		&order.CreatedAt,
		&order.UpdatedAt,
		&shippedAt,
		&deliveredAt,
	); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(addressJSON, &order.ShippingAddress); err != nil {
		return nil, fmt.Errorf("unmarshal shipping address: %w", err)
	}
	if shippedAt.Valid {
		t := shippedAt.Time.UTC()
		order.ShippedAt = &t
	}
	if deliveredAt.Valid {
		t := deliveredAt.Time.UTC()
		order.DeliveredAt = &t
	}
	order.CreatedAt = order.CreatedAt.UTC()
	order.UpdatedAt = order.UpdatedAt.UTC()
	return &order, nil
}

// Create inserts the order row and its items atomically. When ctx already
// carries a transaction the writes join it.
func (s *OrderStore) Create(ctx context.Context, order *domain.Order) error {
	addressJSON, err := json.Marshal(order.ShippingAddress)
	if err != nil {
		return fmt.Errorf("failed to marshal shipping address: %w", err)
	}

	return s.r.WithinTx(ctx, func(ctx context.Context) error {
		q := s.r.conn(ctx)
		query := `INSERT INTO orders (` + orderColumns + `)
		          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`

		_, err := q.ExecContext(ctx, query,
			order.ID,
			order.UserID,
			order.OrderNumber,
			order.Subtotal,
			order.Shipping,
			order.Taxes,
			order.Total,
			order.Status,
			order.PaymentStatus,
			string(addressJSON),
			order.CancelReason,
			order.CreatedAt.UTC(),
			order.UpdatedAt.UTC(),
			nullTime(order.ShippedAt),
			nullTime(order.DeliveredAt))
		if err != nil {
			if isUniqueViolation(err) {
				return ErrDuplicateOrderNumber
			}
			return fmt.Errorf("insert order: %w", err)
		}

		itemQuery := `INSERT INTO order_items (id, order_id, position, product_id, product_name, quantity, unit_price, subtotal)
		              VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
		for i, item := range order.Items {
			if _, err := q.ExecContext(ctx, itemQuery,
				item.ID,
				order.ID,
				i,
				item.ProductID,
				item.ProductName,
				item.Quantity,
				item.UnitPrice,
				item.Subtotal); err != nil {
				return fmt.Errorf("insert order item: %w", err)
			}
		}
		return nil
	})
}

func (s *OrderStore) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	return s.getOne(ctx, "id", id)
}

func (s *OrderStore) GetByOrderNumber(ctx context.Context, number string) (*domain.Order, error) {
	return s.getOne(ctx, "order_number", number)
}

func (s *OrderStore) getOne(ctx context.Context, column string, value string) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE ` + column + ` = $1`

	order, err := scanOrder(s.r.conn(ctx).QueryRowContext(ctx, query, value))
	if errors.Is(err, sql.ErrNoRows) || isMalformedID(err) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query order by %s: %w", column, err)
	}
	if err := s.attachItems(ctx, []*domain.Order{order}); err != nil {
		return nil, err
	}
	return order, nil
}

// Update persists the mutable lifecycle fields of an order.
func (s *OrderStore) Update(ctx context.Context, order *domain.Order) error {
	query := `UPDATE orders
	          SET status = $1, payment_status = $2, cancel_reason = $3, updated_at = $4, shipped_at = $5, delivered_at = $6
	          WHERE id = $7`

	res, err := s.r.conn(ctx).ExecContext(ctx, query,
		order.Status,
		order.PaymentStatus,
		order.CancelReason,
		order.UpdatedAt.UTC(),
		nullTime(order.ShippedAt),
		nullTime(order.DeliveredAt),
		order.ID)
	if isMalformedID(err) {
		return ErrOrderNotFound
	}
	if err != nil {
		return fmt.Errorf("update order: %w", err)
	}
	return expectAffected(res, ErrOrderNotFound)
}

func (s *OrderStore) Delete(ctx context.Context, id string) error {
	res, err := s.r.conn(ctx).ExecContext(ctx, `DELETE FROM orders WHERE id = $1`, id)
	if isMalformedID(err) {
		return ErrOrderNotFound
	}
	if err != nil {
		return fmt.Errorf("delete order: %w", err)
	}
	return expectAffected(res, ErrOrderNotFound)
}

func (s *OrderStore) ListByUser(ctx context.Context, userID string, page Page) ([]*domain.Order, error) {
	return s.list(ctx, "user_id", userID, page)
}

func (s *OrderStore) ListByStatus(ctx context.Context, status domain.OrderStatus, page Page) ([]*domain.Order, error) {
	return s.list(ctx, "status", string(status), page)
}

func (s *OrderStore) list(ctx context.Context, column string, value string, page Page) ([]*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE ` + column + ` = $1
	          ORDER BY created_at DESC, id
	          LIMIT $2 OFFSET $3`

	rows, err := s.r.conn(ctx).QueryContext(ctx, query, value, page.Limit, page.Offset())
	if isMalformedID(err) {
		return make([]*domain.Order, 0), nil
	}
	if err != nil {
		return nil, fmt.Errorf("query orders by %s: %w", column, err)
	}
	defer rows.Close()

	orders := make([]*domain.Order, 0)
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order row: %w", err)
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	rows.Close()

	if err := s.attachItems(ctx, orders); err != nil {
		return nil, err
	}
	return orders, nil
}

// attachItems loads the items of all given orders with one query.
func (s *OrderStore) attachItems(ctx context.Context, orders []*domain.Order) error {
	if len(orders) == 0 {
		return nil
	}
	byID := make(map[string]*domain.Order, len(orders))
	placeholders := make([]string, len(orders))
	args := make([]any, len(orders))
	for i, o := range orders {
		o.Items = make([]domain.OrderItem, 0)
		byID[o.ID] = o
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = o.ID
	}

	query := `SELECT order_id, id, product_id, product_name, quantity, unit_price, subtotal
	          FROM order_items
	          WHERE order_id IN (` + strings.Join(placeholders, ", ") + `)
	          ORDER BY order_id, position`

	rows, err := s.r.conn(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("query order items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			orderID string
			item    domain.OrderItem
		)
		if err := rows.Scan(
			&orderID,
			&item.ID,
			&item.ProductID,
			&item.ProductName,
			&item.Quantity,
			&item.UnitPrice,
			&item.Subtotal,
		); err != nil {
			return fmt.Errorf("scan order item: %w", err)
		}
		if o, ok := byID[orderID]; ok {
			o.Items = append(o.Items, item)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("row iteration error: %w", err)
	}
	return nil
}

// Summary aggregates orders created in [start, end]. Either bound may be nil.
func (s *OrderStore) Summary(ctx context.Context, start, end *time.Time) (*domain.OrderSummary, error) {
	var (
		conds []string
		args  []any
	)
	if start != nil {
		args = append(args, start.UTC())
		conds = append(conds, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if end != nil {
		args = append(args, end.UTC())
		conds = append(conds, fmt.Sprintf("created_at <= $%d", len(args)))
	}
	query := `SELECT status, COUNT(*), COALESCE(SUM(total), 0) FROM orders`
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, " AND ")
	}
	query += ` GROUP BY status`

	rows, err := s.r.conn(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query order summary: %w", err)
	}
	defer rows.Close()

	summary := &domain.OrderSummary{OrdersByStatus: make(map[string]int64, len(domain.OrderStatuses))}
	for _, st := range domain.OrderStatuses {
		summary.OrdersByStatus[string(st)] = 0
	}

	var revenueOrders int64
	for rows.Next() {
		var (
			status string
			count  int64
			sum    float64
		)
		if err := rows.Scan(&status, &count, &sum); err != nil {
			return nil, fmt.Errorf("scan order summary: %w", err)
		}
		summary.OrdersByStatus[status] = count
		summary.TotalOrders += count
		st := domain.OrderStatus(status)
		if st == domain.OrderStatusCancelled || st == domain.OrderStatusRefunded {
			continue
		}
		summary.TotalRevenue += sum
		revenueOrders += count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	summary.TotalRevenue = domain.Round2(summary.TotalRevenue)
	if revenueOrders > 0 {
		summary.AverageOrderValue = domain.Round2(summary.TotalRevenue / float64(revenueOrders))
	}
	return summary, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}
