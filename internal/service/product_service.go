package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fjod/go_shop/internal/domain"
	"github.com/fjod/go_shop/internal/logger"
	"github.com/fjod/go_shop/internal/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type ProductInput struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Price       float64 `json:"price"`
	SKU         string  `json:"sku"`
	Stock       int     `json:"stock"`
	CategoryID  string  `json:"category_id"`
	IsActive    *bool   `json:"is_active,omitempty"`
}

func (in ProductInput) validate() error {
	var problems []string
	if strings.TrimSpace(in.Name) == "" {
		problems = append(problems, "name is required")
	}
	if strings.TrimSpace(in.SKU) == "" {
		problems = append(problems, "sku is required")
	}
	if in.Price < 0 {
		problems = append(problems, "price must not be negative")
	}
	if in.Stock < 0 {
		problems = append(problems, "stock must not be negative")
	}
	if len(problems) > 0 {
		return invalid("%s", strings.Join(problems, "; "))
	}
	return nil
}

type ProductService struct {
	repo   repository.ProductRepository
	logger *zap.Logger
}

func NewProductService(repo repository.ProductRepository, log *zap.Logger) *ProductService {
	if log == nil {
		log = zap.NewNop()
	}
	return &ProductService{repo: repo, logger: log}
}

func (s *ProductService) CreateProduct(ctx context.Context, in ProductInput) (*domain.Product, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	p := &domain.Product{
		ID:          uuid.NewString(),
		Name:        strings.TrimSpace(in.Name),
		Description: in.Description,
		Price:       domain.Round2(in.Price),
		SKU:         strings.TrimSpace(in.SKU),
		Stock:       in.Stock,
		CategoryID:  in.CategoryID,
		IsActive:    in.IsActive == nil || *in.IsActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err := s.repo.Create(ctx, p)
	if errors.Is(err, repository.ErrDuplicateSKU) {
		return nil, rejected("product with sku %s already exists", p.SKU)
	}
	if err != nil {
		return nil, fmt.Errorf("create product: %w", err)
	}
	logger.FromContext(ctx, s.logger).Info("product created", zap.String("product_id", p.ID), zap.String("sku", p.SKU))
	return p, nil
}

func (s *ProductService) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	p, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, repository.ErrProductNotFound) {
		return nil, notFound("product %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("load product %s: %w", id, err)
	}
	return p, nil
}

func (s *ProductService) ListProducts(ctx context.Context, page, limit int) ([]*domain.Product, error) {
	products, err := s.repo.List(ctx, normalizePage(page, limit))
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	return products, nil
}

// UpdateProduct replaces the descriptive fields of a product. Stock changes go
// through AdjustStock.
func (s *ProductService) UpdateProduct(ctx context.Context, id string, in ProductInput) (*domain.Product, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	p, err := s.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}

	p.Name = strings.TrimSpace(in.Name)
	p.Description = in.Description
	p.Price = domain.Round2(in.Price)
	p.SKU = strings.TrimSpace(in.SKU)
	p.CategoryID = in.CategoryID
	if in.IsActive != nil {
		p.IsActive = *in.IsActive
	}
	p.UpdatedAt = time.Now().UTC()

	err = s.repo.Update(ctx, p)
	switch {
	case errors.Is(err, repository.ErrDuplicateSKU):
		return nil, rejected("product with sku %s already exists", p.SKU)
	case errors.Is(err, repository.ErrProductNotFound):
		return nil, notFound("product %s not found", id)
	case err != nil:
		return nil, fmt.Errorf("update product %s: %w", id, err)
	}
	return p, nil
}

func (s *ProductService) DeleteProduct(ctx context.Context, id string) error {
	err := s.repo.Delete(ctx, id)
	if errors.Is(err, repository.ErrProductNotFound) {
		return notFound("product %s not found", id)
	}
	if err != nil {
		return fmt.Errorf("delete product %s: %w", id, err)
	}
	return nil
}

// AdjustStock adds delta (which may be negative) to the product stock.
func (s *ProductService) AdjustStock(ctx context.Context, id string, delta int) (*domain.Product, error) {
	if delta == 0 {
		return nil, invalid("stock delta must not be zero")
	}
	err := s.repo.AdjustStock(ctx, id, delta)
	switch {
	case errors.Is(err, repository.ErrProductNotFound):
		return nil, notFound("product %s not found", id)
	case errors.Is(err, repository.ErrInsufficientStock):
		return nil, rejected("stock of product %s cannot go below zero", id)
	case err != nil:
		return nil, fmt.Errorf("adjust stock of product %s: %w", id, err)
	}
	return s.GetProduct(ctx, id)
}
