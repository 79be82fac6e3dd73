package service

import (
	"context"
	"encoding/json"
	"path"
	"sort"
	"sync"
	"time"

	"github.com/fjod/go_shop/internal/cache"
	"github.com/fjod/go_shop/internal/domain"
	"github.com/fjod/go_shop/internal/events"
	"github.com/fjod/go_shop/internal/repository"
)

func cloneOrder(o *domain.Order) *domain.Order {
	c := *o
	c.Items = append([]domain.OrderItem(nil), o.Items...)
	if o.ShippedAt != nil {
		t := *o.ShippedAt
		c.ShippedAt = &t
	}
	if o.DeliveredAt != nil {
		t := *o.DeliveredAt
		c.DeliveredAt = &t
	}
	return &c
}

// MockOrderRepository implements repository.OrderRepository for testing
type MockOrderRepository struct {
	mu        sync.RWMutex
	orders    map[string]*domain.Order
	getCalls  int
	CreateErr error
	UpdateErr error

	// GetGate, when set, holds GetByID until it is closed or ctx ends.
	// GetStarted receives a value as each held call begins.
	GetGate    chan struct{}
	GetStarted chan struct{}
}

func NewMockOrderRepository() *MockOrderRepository {
	return &MockOrderRepository{orders: make(map[string]*domain.Order)}
}

func (m *MockOrderRepository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	if m.GetGate != nil {
		if m.GetStarted != nil {
			m.GetStarted <- struct{}{}
		}
		select {
		case <-m.GetGate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getCalls++
	o, ok := m.orders[id]
	if !ok {
		return nil, repository.ErrOrderNotFound
	}
	return cloneOrder(o), nil
}

func (m *MockOrderRepository) GetByOrderNumber(_ context.Context, number string) (*domain.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, o := range m.orders {
		if o.OrderNumber == number {
			return cloneOrder(o), nil
		}
	}
	return nil, repository.ErrOrderNotFound
}

func (m *MockOrderRepository) Create(_ context.Context, o *domain.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CreateErr != nil {
		return m.CreateErr
	}
	for _, existing := range m.orders {
		if existing.OrderNumber == o.OrderNumber {
			return repository.ErrDuplicateOrderNumber
		}
	}
	m.orders[o.ID] = cloneOrder(o)
	return nil
}

func (m *MockOrderRepository) Update(_ context.Context, o *domain.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.UpdateErr != nil {
		return m.UpdateErr
	}
	if _, ok := m.orders[o.ID]; !ok {
		return repository.ErrOrderNotFound
	}
	m.orders[o.ID] = cloneOrder(o)
	return nil
}

func (m *MockOrderRepository) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.orders[id]; !ok {
		return repository.ErrOrderNotFound
	}
	delete(m.orders, id)
	return nil
}

func (m *MockOrderRepository) list(match func(*domain.Order) bool, page repository.Page) []*domain.Order {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var all []*domain.Order
	for _, o := range m.orders {
		if match(o) {
			all = append(all, cloneOrder(o))
		}
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].ID < all[j].ID
		}
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})
	out := make([]*domain.Order, 0)
	for i := page.Offset(); i < len(all) && len(out) < page.Limit; i++ {
		out = append(out, all[i])
	}
	return out
}

func (m *MockOrderRepository) ListByUser(_ context.Context, userID string, page repository.Page) ([]*domain.Order, error) {
	return m.list(func(o *domain.Order) bool { return o.UserID == userID }, page), nil
}

func (m *MockOrderRepository) ListByStatus(_ context.Context, status domain.OrderStatus, page repository.Page) ([]*domain.Order, error) {
	return m.list(func(o *domain.Order) bool { return o.Status == status }, page), nil
}

func (m *MockOrderRepository) Summary(_ context.Context, start, end *time.Time) (*domain.OrderSummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s := &domain.OrderSummary{OrdersByStatus: map[string]int64{}}
	var revenueOrders int64
	for _, o := range m.orders {
		if start != nil && o.CreatedAt.Before(*start) || end != nil && o.CreatedAt.After(*end) {
			continue
		}
		s.TotalOrders++
		s.OrdersByStatus[string(o.Status)]++
		if o.Status != domain.OrderStatusCancelled && o.Status != domain.OrderStatusRefunded {
			s.TotalRevenue += o.Total
			revenueOrders++
		}
	}
	s.TotalRevenue = domain.Round2(s.TotalRevenue)
	if revenueOrders > 0 {
		s.AverageOrderValue = domain.Round2(s.TotalRevenue / float64(revenueOrders))
	}
	return s, nil
}

func (m *MockOrderRepository) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.orders)
}

func (m *MockOrderRepository) GetCalls() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getCalls
}

func (m *MockOrderRepository) snapshot() map[string]*domain.Order {
	m.mu.RLock()
	defer m.mu.RUnlock()
	snap := make(map[string]*domain.Order, len(m.orders))
	for id, o := range m.orders {
		snap[id] = cloneOrder(o)
	}
	return snap
}

func (m *MockOrderRepository) restore(snap map[string]*domain.Order) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orders = snap
}

// MockProductRepository implements repository.ProductRepository for testing
type MockProductRepository struct {
	mu       sync.RWMutex
	products map[string]*domain.Product
	// AdjustErr makes AdjustStock fail for the given product ids.
	AdjustErr map[string]error
}

func NewMockProductRepository() *MockProductRepository {
	return &MockProductRepository{
		products:  make(map[string]*domain.Product),
		AdjustErr: make(map[string]error),
	}
}

func (m *MockProductRepository) GetByID(_ context.Context, id string) (*domain.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.products[id]
	if !ok {
		return nil, repository.ErrProductNotFound
	}
	c := *p
	return &c, nil
}

func (m *MockProductRepository) Create(_ context.Context, p *domain.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.products {
		if existing.SKU == p.SKU {
			return repository.ErrDuplicateSKU
		}
	}
	c := *p
	m.products[p.ID] = &c
	return nil
}

func (m *MockProductRepository) List(_ context.Context, page repository.Page) ([]*domain.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.products))
	for id := range m.products {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := make([]*domain.Product, 0)
	for i := page.Offset(); i < len(ids) && len(out) < page.Limit; i++ {
		c := *m.products[ids[i]]
		out = append(out, &c)
	}
	return out, nil
}

func (m *MockProductRepository) Update(_ context.Context, p *domain.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.products[p.ID]
	if !ok {
		return repository.ErrProductNotFound
	}
	for id, other := range m.products {
		if id != p.ID && other.SKU == p.SKU {
			return repository.ErrDuplicateSKU
		}
	}
	c := *p
	c.Stock = existing.Stock
	m.products[p.ID] = &c
	return nil
}

func (m *MockProductRepository) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.products[id]; !ok {
		return repository.ErrProductNotFound
	}
	delete(m.products, id)
	return nil
}

func (m *MockProductRepository) AdjustStock(_ context.Context, id string, delta int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.AdjustErr[id]; err != nil {
		return err
	}
	p, ok := m.products[id]
	if !ok {
		return repository.ErrProductNotFound
	}
	if p.Stock+delta < 0 {
		return repository.ErrInsufficientStock
	}
	p.Stock += delta
	return nil
}

func (m *MockProductRepository) Stock(id string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.products[id].Stock
}

func (m *MockProductRepository) snapshot() map[string]domain.Product {
	m.mu.RLock()
	defer m.mu.RUnlock()
	snap := make(map[string]domain.Product, len(m.products))
	for id, p := range m.products {
		snap[id] = *p
	}
	return snap
}

func (m *MockProductRepository) restore(snap map[string]domain.Product) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.products = make(map[string]*domain.Product, len(snap))
	for id, p := range snap {
		c := p
		m.products[id] = &c
	}
}

// MockUserRepository implements repository.UserRepository for testing
type MockUserRepository struct {
	mu    sync.RWMutex
	users map[string]*domain.User
	calls int
}

func NewMockUserRepository() *MockUserRepository {
	return &MockUserRepository{users: make(map[string]*domain.User)}
}

func (m *MockUserRepository) GetByID(_ context.Context, id string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	u, ok := m.users[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	c := *u
	return &c, nil
}

func (m *MockUserRepository) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.users {
		if u.Email == email {
			c := *u
			return &c, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

func (m *MockUserRepository) Create(_ context.Context, u *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if existing.Email == u.Email {
			return repository.ErrDuplicateEmail
		}
	}
	c := *u
	m.users[u.ID] = &c
	return nil
}

func (m *MockUserRepository) Update(_ context.Context, u *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[u.ID]; !ok {
		return repository.ErrUserNotFound
	}
	c := *u
	m.users[u.ID] = &c
	return nil
}

func (m *MockUserRepository) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[id]; !ok {
		return repository.ErrUserNotFound
	}
	delete(m.users, id)
	return nil
}

// MockTransactor rolls the mock stores back when fn fails.
type MockTransactor struct {
	orders   *MockOrderRepository
	products *MockProductRepository
}

func (m *MockTransactor) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	orders := m.orders.snapshot()
	products := m.products.snapshot()
	if err := fn(ctx); err != nil {
		m.orders.restore(orders)
		m.products.restore(products)
		return err
	}
	return nil
}

// MockCache is an in-memory cache.Cache that stores JSON like Redis does.
type MockCache struct {
	mu      sync.Mutex
	data    map[string][]byte
	ttls    map[string]time.Duration
	GetErr  error
	SetErr  error
	DelErr  error
	gets    int
	hits    int
	sets    int
	deletes []string
}

func NewMockCache() *MockCache {
	return &MockCache{data: make(map[string][]byte), ttls: make(map[string]time.Duration)}
}

func (m *MockCache) Get(_ context.Context, key string, dst any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gets++
	if m.GetErr != nil {
		return m.GetErr
	}
	data, ok := m.data[key]
	if !ok {
		return cache.ErrCacheMiss
	}
	m.hits++
	return json.Unmarshal(data, dst)
}

func (m *MockCache) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sets++
	if m.SetErr != nil {
		return m.SetErr
	}
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.data[key] = data
	m.ttls[key] = ttl
	return nil
}

func (m *MockCache) Delete(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deletes = append(m.deletes, keys...)
	if m.DelErr != nil {
		return m.DelErr
	}
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

func (m *MockCache) DeleteByPattern(_ context.Context, pattern string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deletes = append(m.deletes, pattern)
	if m.DelErr != nil {
		return m.DelErr
	}
	for k := range m.data {
		if ok, _ := path.Match(pattern, k); ok {
			delete(m.data, k)
		}
	}
	return nil
}

func (m *MockCache) Has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.data[key]
	return ok
}

func (m *MockCache) TTL(key string) time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ttls[key]
}

func (m *MockCache) Hits() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.hits
}

// MockPublisher records published events.
type MockPublisher struct {
	mu     sync.Mutex
	events []events.OrderEvent
	Err    error
}

func (m *MockPublisher) Publish(_ context.Context, e events.OrderEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.events = append(m.events, e)
	return nil
}

func (m *MockPublisher) Types() []events.EventType {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]events.EventType, len(m.events))
	for i, e := range m.events {
		out[i] = e.Type
	}
	return out
}

// MockCartRepository implements repository.CartRepository for testing
type MockCartRepository struct {
	mu    sync.Mutex
	carts map[string]*domain.Cart
}

func NewMockCartRepository() *MockCartRepository {
	return &MockCartRepository{carts: make(map[string]*domain.Cart)}
}

func (m *MockCartRepository) GetCart(_ context.Context, userID string) (*domain.Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.carts[userID]
	if !ok {
		return nil, repository.ErrCartNotFound
	}
	cp := *c
	cp.Items = append([]domain.CartItem(nil), c.Items...)
	return &cp, nil
}

func (m *MockCartRepository) AddItem(_ context.Context, userID string, item domain.CartItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.carts[userID]
	if !ok {
		c = &domain.Cart{UserID: userID, CreatedAt: time.Now()}
		m.carts[userID] = c
	}
	c.UpdatedAt = time.Now()
	for i := range c.Items {
		if c.Items[i].ProductID == item.ProductID {
			c.Items[i].Quantity = item.Quantity
			c.Items[i].Price = item.Price
			return nil
		}
	}
	c.Items = append(c.Items, item)
	return nil
}

func (m *MockCartRepository) UpdateItemQuantity(_ context.Context, userID, productID string, quantity int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.carts[userID]; ok {
		for i := range c.Items {
			if c.Items[i].ProductID == productID {
				c.Items[i].Quantity = quantity
				return nil
			}
		}
	}
	return repository.ErrItemNotFound
}

func (m *MockCartRepository) RemoveItem(_ context.Context, userID, productID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.carts[userID]; ok {
		for i := range c.Items {
			if c.Items[i].ProductID == productID {
				c.Items = append(c.Items[:i], c.Items[i+1:]...)
				return nil
			}
		}
	}
	return repository.ErrItemNotFound
}

func (m *MockCartRepository) DeleteCart(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.carts[userID]; !ok {
		return repository.ErrCartNotFound
	}
	delete(m.carts, userID)
	return nil
}
