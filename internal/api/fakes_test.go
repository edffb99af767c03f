package api

import (
	"sort"
	"sync"

	"github.com/mealwire/order-service/internal/events"
	"github.com/mealwire/order-service/internal/store"
	"github.com/mealwire/order-service/pkg/models"
)

// memStore is an in-memory Store used by the handler tests.
type memStore struct {
	mutex     sync.Mutex
	companies map[int64]*models.Company
	menuItems map[int64]*models.MenuItem
	orders    map[int64]*models.Order

	nextCompanyID int64
	nextMenuID    int64
	nextOrderID   int64
}

func newMemStore() *memStore {
	return &memStore{
		companies: make(map[int64]*models.Company),
		menuItems: make(map[int64]*models.MenuItem),
		orders:    make(map[int64]*models.Order),
	}
}

func (s *memStore) Ping() error { return nil }

func (s *memStore) CreateCompany(company *models.Company) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.nextCompanyID++
	company.ID = s.nextCompanyID
	stored := *company
	s.companies[company.ID] = &stored
	return nil
}

func (s *memStore) CompanyByAPIKey(key string) (*models.Company, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	for _, company := range s.companies {
		if company.APIKey == key {
			c := *company
			return &c, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *memStore) CreateMenuItem(item *models.MenuItem) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.nextMenuID++
	item.ID = s.nextMenuID
	stored := *item
	s.menuItems[item.ID] = &stored
	return nil
}

func (s *memStore) ListMenuItems() ([]models.MenuItem, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	items := []models.MenuItem{}
	for _, item := range s.menuItems {
		items = append(items, *item)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items, nil
}

func (s *memStore) MenuItemByID(id int64) (*models.MenuItem, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	item, ok := s.menuItems[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	m := *item
	return &m, nil
}

func (s *memStore) MenuItemForCompany(id, companyID int64) (*models.MenuItem, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	item, ok := s.menuItems[id]
	if !ok || item.CompanyID != companyID {
		return nil, store.ErrNotFound
	}
	m := *item
	return &m, nil
}

func (s *memStore) CreateOrder(order *models.Order) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.nextOrderID++
	order.ID = s.nextOrderID
	stored := *order
	stored.Items = append([]models.OrderItem(nil), order.Items...)
	s.orders[order.ID] = &stored
	return nil
}

func (s *memStore) ListOrders() ([]models.Order, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	orders := []models.Order{}
	for _, order := range s.orders {
		o := *order
		o.Items = append([]models.OrderItem(nil), order.Items...)
		orders = append(orders, o)
	}
	sort.Slice(orders, func(i, j int) bool { return orders[i].ID < orders[j].ID })
	return orders, nil
}

func (s *memStore) OrderByID(id int64) (*models.Order, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	order, ok := s.orders[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	o := *order
	o.Items = append([]models.OrderItem(nil), order.Items...)
	return &o, nil
}

func (s *memStore) OrderForCompany(id, companyID int64) (*models.Order, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	order, ok := s.orders[id]
	if !ok || order.CompanyID != companyID {
		return nil, store.ErrNotFound
	}
	o := *order
	o.Items = append([]models.OrderItem(nil), order.Items...)
	return &o, nil
}

func (s *memStore) UpdateOrderStatus(id int64, status string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	order, ok := s.orders[id]
	if !ok {
		return store.ErrNotFound
	}
	order.Status = status
	return nil
}

func (s *memStore) orderCount() int {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return len(s.orders)
}

type sentMessage struct {
	to   string
	body string
}

// captureSender records every dispatched message.
type captureSender struct {
	mutex sync.Mutex
	sends []sentMessage
}

func (c *captureSender) Send(to, body string) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.sends = append(c.sends, sentMessage{to: to, body: body})
	return nil
}

func (c *captureSender) sent() []sentMessage {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return append([]sentMessage(nil), c.sends...)
}

// capturePublisher records every published lifecycle event.
type capturePublisher struct {
	created       []events.OrderCreatedEvent
	statusChanged []events.OrderStatusChangedEvent
	cancelled     []events.OrderCancelledEvent
}

func (p *capturePublisher) PublishOrderCreated(event events.OrderCreatedEvent) error {
	p.created = append(p.created, event)
	return nil
}

func (p *capturePublisher) PublishOrderStatusChanged(event events.OrderStatusChangedEvent) error {
	p.statusChanged = append(p.statusChanged, event)
	return nil
}

func (p *capturePublisher) PublishOrderCancelled(event events.OrderCancelledEvent) error {
	p.cancelled = append(p.cancelled, event)
	return nil
}
