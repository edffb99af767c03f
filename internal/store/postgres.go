package store

import (
	"database/sql"
	"errors"

	"github.com/mealwire/order-service/pkg/models"
)

// ErrNotFound is returned when a lookup matches no row, including lookups
// scoped to a company that owns no such row.
var ErrNotFound = errors.New("not found")

// Postgres persists companies, menu items and orders. All order writes happen
// inside a single transaction so an order can never exist without its items.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

func (s *Postgres) Ping() error {
	return s.db.Ping()
}

// CreateSchema creates the tables and indexes if they don't exist. Deleting a
// company cascades to its menu items and orders; deleting an order cascades to
// its items.
func (s *Postgres) CreateSchema() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS companies (
			id SERIAL PRIMARY KEY,
			name VARCHAR(255) UNIQUE NOT NULL,
			whatsapp_number VARCHAR(20) NOT NULL,
			api_key VARCHAR(100) UNIQUE NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS menu_items (
			id SERIAL PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			description VARCHAR(500),
			price DECIMAL(10,2) NOT NULL,
			available BOOLEAN NOT NULL DEFAULT TRUE,
			category VARCHAR(100),
			company_id INTEGER NOT NULL REFERENCES companies(id) ON DELETE CASCADE
		)`,
		`CREATE TABLE IF NOT EXISTS orders (
			id SERIAL PRIMARY KEY,
			customer_name VARCHAR(255) NOT NULL,
			whatsapp_number VARCHAR(20) NOT NULL,
			status VARCHAR(50) NOT NULL DEFAULT 'pending',
			created_at TIMESTAMP NOT NULL,
			estimated_delivery TIMESTAMP NOT NULL,
			company_id INTEGER NOT NULL REFERENCES companies(id) ON DELETE CASCADE
		)`,
		`CREATE TABLE IF NOT EXISTS order_items (
			id SERIAL PRIMARY KEY,
			order_id INTEGER NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
			menu_item_id INTEGER NOT NULL REFERENCES menu_items(id),
			quantity INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_companies_api_key ON companies(api_key)`,
		`CREATE INDEX IF NOT EXISTS idx_menu_items_company_id ON menu_items(company_id)`,
		`CREATE INDEX IF NOT EXISTS idx_orders_company_id ON orders(company_id)`,
		`CREATE INDEX IF NOT EXISTS idx_order_items_order_id ON order_items(order_id)`,
	}

	for _, query := range queries {
		if _, err := s.db.Exec(query); err != nil {
			return err
		}
	}

	return nil
}

func (s *Postgres) CreateCompany(company *models.Company) error {
	query := `
		INSERT INTO companies (name, whatsapp_number, api_key)
		VALUES ($1, $2, $3) RETURNING id
	`
	return s.db.QueryRow(query, company.Name, company.WhatsAppNumber, company.APIKey).
		Scan(&company.ID)
}

func (s *Postgres) CompanyByAPIKey(key string) (*models.Company, error) {
	company := &models.Company{}
	query := `
		SELECT id, name, whatsapp_number, api_key
		FROM companies WHERE api_key = $1
	`
	err := s.db.QueryRow(query, key).Scan(
		&company.ID, &company.Name, &company.WhatsAppNumber, &company.APIKey,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return company, nil
}

func (s *Postgres) CreateMenuItem(item *models.MenuItem) error {
	query := `
		INSERT INTO menu_items (name, description, price, available, category, company_id)
		VALUES ($1, $2, $3, $4, $5, $6) RETURNING id
	`
	return s.db.QueryRow(query, item.Name, item.Description, item.Price,
		item.Available, item.Category, item.CompanyID).Scan(&item.ID)
}

func (s *Postgres) ListMenuItems() ([]models.MenuItem, error) {
	query := `
		SELECT id, name, description, price, available, category, company_id
		FROM menu_items ORDER BY id
	`
	rows, err := s.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []models.MenuItem{}
	for rows.Next() {
		var item models.MenuItem
		err := rows.Scan(&item.ID, &item.Name, &item.Description, &item.Price,
			&item.Available, &item.Category, &item.CompanyID)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (s *Postgres) MenuItemByID(id int64) (*models.MenuItem, error) {
	query := `
		SELECT id, name, description, price, available, category, company_id
		FROM menu_items WHERE id = $1
	`
	return s.scanMenuItem(s.db.QueryRow(query, id))
}

// MenuItemForCompany looks up a menu item filtered by both id and owning
// company, so one tenant can never order off another tenant's menu.
func (s *Postgres) MenuItemForCompany(id, companyID int64) (*models.MenuItem, error) {
	query := `
		SELECT id, name, description, price, available, category, company_id
		FROM menu_items WHERE id = $1 AND company_id = $2
	`
	return s.scanMenuItem(s.db.QueryRow(query, id, companyID))
}

func (s *Postgres) scanMenuItem(row *sql.Row) (*models.MenuItem, error) {
	item := &models.MenuItem{}
	err := row.Scan(&item.ID, &item.Name, &item.Description, &item.Price,
		&item.Available, &item.Category, &item.CompanyID)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return item, nil
}

// CreateOrder inserts the order row and all of its item rows in one
// transaction and fills in the assigned order id.
func (s *Postgres) CreateOrder(order *models.Order) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := `
		INSERT INTO orders (customer_name, whatsapp_number, status, created_at, estimated_delivery, company_id)
		VALUES ($1, $2, $3, $4, $5, $6) RETURNING id
	`
	err = tx.QueryRow(query, order.CustomerName, order.WhatsAppNumber, order.Status,
		order.CreatedAt, order.EstimatedDelivery, order.CompanyID).Scan(&order.ID)
	if err != nil {
		return err
	}

	for _, item := range order.Items {
		itemQuery := `
			INSERT INTO order_items (order_id, menu_item_id, quantity)
			VALUES ($1, $2, $3)
		`
		if _, err := tx.Exec(itemQuery, order.ID, item.MenuItemID, item.Quantity); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (s *Postgres) ListOrders() ([]models.Order, error) {
	query := `
		SELECT id, customer_name, whatsapp_number, status, created_at, estimated_delivery, company_id
		FROM orders ORDER BY created_at DESC
	`
	rows, err := s.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	orders := []models.Order{}
	for rows.Next() {
		var order models.Order
		err := rows.Scan(&order.ID, &order.CustomerName, &order.WhatsAppNumber,
			&order.Status, &order.CreatedAt, &order.EstimatedDelivery, &order.CompanyID)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range orders {
		items, err := s.orderItems(orders[i].ID)
		if err != nil {
			return nil, err
		}
		orders[i].Items = items
	}

	return orders, nil
}

func (s *Postgres) OrderByID(id int64) (*models.Order, error) {
	query := `
		SELECT id, customer_name, whatsapp_number, status, created_at, estimated_delivery, company_id
		FROM orders WHERE id = $1
	`
	return s.scanOrder(s.db.QueryRow(query, id))
}

// OrderForCompany resolves an order scoped to its owning tenant. Items are
// loaded like every other order read.
func (s *Postgres) OrderForCompany(id, companyID int64) (*models.Order, error) {
	query := `
		SELECT id, customer_name, whatsapp_number, status, created_at, estimated_delivery, company_id
		FROM orders WHERE id = $1 AND company_id = $2
	`
	return s.scanOrder(s.db.QueryRow(query, id, companyID))
}

func (s *Postgres) scanOrder(row *sql.Row) (*models.Order, error) {
	order := &models.Order{}
	err := row.Scan(&order.ID, &order.CustomerName, &order.WhatsAppNumber,
		&order.Status, &order.CreatedAt, &order.EstimatedDelivery, &order.CompanyID)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	items, err := s.orderItems(order.ID)
	if err != nil {
		return nil, err
	}
	order.Items = items
	return order, nil
}

func (s *Postgres) orderItems(orderID int64) ([]models.OrderItem, error) {
	query := `
		SELECT menu_item_id, quantity
		FROM order_items WHERE order_id = $1
	`
	rows, err := s.db.Query(query, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []models.OrderItem{}
	for rows.Next() {
		var item models.OrderItem
		if err := rows.Scan(&item.MenuItemID, &item.Quantity); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (s *Postgres) UpdateOrderStatus(id int64, status string) error {
	result, err := s.db.Exec(`UPDATE orders SET status = $1 WHERE id = $2`, status, id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
