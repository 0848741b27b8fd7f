package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"craftmarket/internal/models"
)

// Memory is an in-process order store for tests and local development.
type Memory struct {
	mu     sync.RWMutex
	orders map[string]models.Order
}

func NewMemory() *Memory {
	return &Memory{orders: make(map[string]models.Order)}
}

func (m *Memory) CreateOrder(_ context.Context, order *models.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orders[order.OrderID] = *order
	return nil
}

func (m *Memory) GetOrder(_ context.Context, orderID string) (*models.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	order, ok := m.orders[orderID]
	if !ok {
		return nil, ErrNotFound
	}
	return &order, nil
}

func (m *Memory) GetOrderByGatewayID(_ context.Context, gatewayOrderID string) (*models.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, order := range m.orders {
		if order.GatewayOrderID != "" && order.GatewayOrderID == gatewayOrderID {
			o := order
			return &o, nil
		}
	}
	return nil, ErrNotFound
}

func (m *Memory) FindOpenOrder(_ context.Context, buyerID, itemID string) (*models.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, order := range m.orders {
		if order.BuyerID == buyerID && order.ItemID == itemID && order.Status.Open() {
			o := order
			return &o, nil
		}
	}
	return nil, ErrNotFound
}

func (m *Memory) ListOrdersByBuyer(_ context.Context, buyerID string) ([]*models.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var orders []*models.Order
	for _, order := range m.orders {
		if order.BuyerID == buyerID {
			o := order
			orders = append(orders, &o)
		}
	}
	sort.Slice(orders, func(i, j int) bool {
		return orders[i].CreatedAt.After(orders[j].CreatedAt)
	})
	return orders, nil
}

func (m *Memory) AttachGatewayOrder(_ context.Context, orderID, gatewayOrderID string) error {
	return m.update(orderID, []models.OrderStatus{models.OrderCreated}, func(o *models.Order) {
		o.GatewayOrderID = gatewayOrderID
	})
}

func (m *Memory) MarkApproved(_ context.Context, orderID string) error {
	return m.update(orderID, []models.OrderStatus{models.OrderCreated}, func(o *models.Order) {
		o.Status = models.OrderApproved
	})
}

func (m *Memory) MarkPaid(_ context.Context, orderID, captureID string) error {
	return m.update(orderID, []models.OrderStatus{models.OrderCreated, models.OrderApproved}, func(o *models.Order) {
		o.Status = models.OrderPaid
		o.CaptureID = captureID
	})
}

func (m *Memory) MarkPayoutSent(_ context.Context, orderID, batchID, itemID string) error {
	return m.update(orderID, []models.OrderStatus{models.OrderPaid}, func(o *models.Order) {
		o.Status = models.OrderPayoutSent
		o.PayoutBatchID = batchID
		o.PayoutItemID = itemID
	})
}

func (m *Memory) MarkPayoutFailed(_ context.Context, orderID string) error {
	return m.update(orderID, []models.OrderStatus{models.OrderPaid}, func(o *models.Order) {
		o.Status = models.OrderPayoutFailed
	})
}

func (m *Memory) MarkCanceled(_ context.Context, orderID, reason string) error {
	return m.update(orderID, []models.OrderStatus{models.OrderCreated, models.OrderApproved}, func(o *models.Order) {
		now := time.Now().UTC()
		o.Status = models.OrderCanceled
		o.CancelReason = reason
		o.CanceledAt = &now
	})
}

func (m *Memory) MarkExpired(_ context.Context, orderID, reason string) error {
	return m.update(orderID, []models.OrderStatus{models.OrderCreated, models.OrderApproved}, func(o *models.Order) {
		now := time.Now().UTC()
		o.Status = models.OrderExpired
		o.CancelReason = reason
		o.CanceledAt = &now
	})
}

func (m *Memory) update(orderID string, from []models.OrderStatus, mutate func(*models.Order)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	order, ok := m.orders[orderID]
	if !ok {
		return ErrNotFound
	}
	allowed := false
	for _, s := range from {
		if order.Status == s {
			allowed = true
			break
		}
	}
	if !allowed {
		return ErrStateConflict
	}
	mutate(&order)
	order.UpdatedAt = time.Now().UTC()
	m.orders[orderID] = order
	return nil
}

// MemoryCatalog is an in-process item lookup for tests.
type MemoryCatalog struct {
	mu    sync.RWMutex
	items map[string]models.Item
}

func NewMemoryCatalog() *MemoryCatalog {
	return &MemoryCatalog{items: make(map[string]models.Item)}
}

func (c *MemoryCatalog) PutItem(item models.Item) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[item.ItemID] = item
}

func (c *MemoryCatalog) GetItem(_ context.Context, itemID string) (*models.Item, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	item, ok := c.items[itemID]
	if !ok {
		return nil, ErrNotFound
	}
	return &item, nil
}

func (c *MemoryCatalog) MarkItemSold(_ context.Context, itemID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	item, ok := c.items[itemID]
	if !ok {
		return ErrNotFound
	}
	item.Sold = true
	c.items[itemID] = item
	return nil
}

// MemoryIdentity is an in-process payout destination lookup for tests.
type MemoryIdentity struct {
	mu     sync.RWMutex
	emails map[string]string
}

func NewMemoryIdentity() *MemoryIdentity {
	return &MemoryIdentity{emails: make(map[string]string)}
}

func (i *MemoryIdentity) SetPayoutEmail(userID, email string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.emails[userID] = email
}

func (i *MemoryIdentity) PayoutEmail(_ context.Context, userID string) (string, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	email, ok := i.emails[userID]
	if !ok {
		return "", ErrNotFound
	}
	return email, nil
}
