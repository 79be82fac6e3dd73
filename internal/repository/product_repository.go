package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/go_shop/internal/domain"
)

type ProductStore struct {
	r *Repository
}

const productColumns = `id, name, description, price, sku, stock, category_id, is_active, created_at, updated_at`

func scanProduct(row interface{ Scan(...any) error }) (*domain.Product, error) {
	p := &domain.Product{}
	err := row.Scan(
		&p.ID,
		&p.Name,
		&p.Description,
		&p.Price,
		&p.SKU,
		&p.Stock,
		&p.CategoryID,
		&p.IsActive,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	return p, err
}

func (s *ProductStore) GetByID(ctx context.Context, id string) (*domain.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1`

	p, err := scanProduct(s.r.conn(ctx).QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) || isMalformedID(err) {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query product by id: %w", err)
	}
	return p, nil
}

func (s *ProductStore) Create(ctx context.Context, p *domain.Product) error {
	query := `INSERT INTO products (` + productColumns + `)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := s.r.conn(ctx).ExecContext(ctx, query,
		p.ID,
		p.Name,
		p.Description,
		p.Price,
		p.SKU,
		p.Stock,
		p.CategoryID,
		p.IsActive,
		p.CreatedAt.UTC(),
		p.UpdatedAt.UTC())
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateSKU
		}
		return fmt.Errorf("insert product: %w", err)
	}
	return nil
}

func (s *ProductStore) List(ctx context.Context, page Page) ([]*domain.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products
	          ORDER BY created_at DESC, id
	          LIMIT $1 OFFSET $2`

	rows, err := s.r.conn(ctx).QueryContext(ctx, query, page.Limit, page.Offset())
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	products := make([]*domain.Product, 0)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return products, nil
}

// Update writes the descriptive fields of a product. Stock is only changed
// through AdjustStock.
func (s *ProductStore) Update(ctx context.Context, p *domain.Product) error {
	query := `UPDATE products
	          SET name = $1, description = $2, price = $3, sku = $4, category_id = $5, is_active = $6, updated_at = $7
	          WHERE id = $8`

	res, err := s.r.conn(ctx).ExecContext(ctx, query,
		p.Name,
		p.Description,
		p.Price,
		p.SKU,
		p.CategoryID,
		p.IsActive,
		p.UpdatedAt.UTC(),
		p.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateSKU
		}
		if isMalformedID(err) {
			return ErrProductNotFound
		}
		return fmt.Errorf("update product: %w", err)
	}
	return expectAffected(res, ErrProductNotFound)
}

func (s *ProductStore) Delete(ctx context.Context, id string) error {
	res, err := s.r.conn(ctx).ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id)
	if isMalformedID(err) {
		return ErrProductNotFound
	}
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	return expectAffected(res, ErrProductNotFound)
}

func (s *ProductStore) AdjustStock(ctx context.Context, id string, delta int) error {
	query := `UPDATE products
	          SET stock = stock + $1, updated_at = $2
	          WHERE id = $3 AND stock + $1 >= 0`

	q := s.r.conn(ctx)
	res, err := q.ExecContext(ctx, query, delta, time.Now().UTC(), id)
	if isMalformedID(err) {
		return ErrProductNotFound
	}
	if err != nil {
		return fmt.Errorf("adjust stock: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("adjust stock: %w", err)
	}
	if n > 0 {
		return nil
	}

	var exists int
	err = q.QueryRowContext(ctx, `SELECT 1 FROM products WHERE id = $1`, id).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrProductNotFound
	}
	if err != nil {
		return fmt.Errorf("check product: %w", err)
	}
	return ErrInsufficientStock
}

func expectAffected(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return notFound
	}
	return nil
}
