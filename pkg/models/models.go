package models

import (
	"time"
)

// Order lifecycle statuses. The update endpoint accepts everything except
// StatusCanceled, which is only reachable through cancellation.
const (
	StatusPending        = "pending"
	StatusPreparing      = "preparing"
	StatusOutForDelivery = "out-for-delivery"
	StatusDelivered      = "delivered"
	StatusCanceled       = "canceled"
)

// ValidUpdateStatus reports whether s is accepted by the status-update endpoint.
func ValidUpdateStatus(s string) bool {
	switch s {
	case StatusPending, StatusPreparing, StatusOutForDelivery, StatusDelivered:
		return true
	}
	return false
}

// Company is a tenant. Its API key is the only credential; menu items and
// orders belong to exactly one company.
type Company struct {
	ID             int64  `json:"id"`
	Name           string `json:"name"`
	WhatsAppNumber string `json:"whatsapp_number"`
	APIKey         string `json:"api_key"`
}

type MenuItem struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Price       float64 `json:"price"`
	Available   bool    `json:"available"`
	Category    string  `json:"category"`
	CompanyID   int64   `json:"company_id"`
}

type Order struct {
	ID                int64       `json:"id"`
	CustomerName      string      `json:"customer_name"`
	WhatsAppNumber    string      `json:"whatsapp_number"`
	Status            string      `json:"status"`
	CreatedAt         time.Time   `json:"created_at"`
	EstimatedDelivery time.Time   `json:"estimated_delivery"`
	CompanyID         int64       `json:"company_id"`
	Items             []OrderItem `json:"items"`
}

type OrderItem struct {
	MenuItemID int64 `json:"menu_item_id"`
	Quantity   int   `json:"quantity"`
}

// TotalItems is the sum of line-item quantities, used in the confirmation
// message ("your order for N item(s)").
func (o *Order) TotalItems() int {
	total := 0
	for _, item := range o.Items {
		total += item.Quantity
	}
	return total
}

type CompanyCreateRequest struct {
	Name           string `json:"name"`
	WhatsAppNumber string `json:"whatsapp_number"`
	APIKey         string `json:"api_key"`
}

type MenuItemCreateRequest struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Price       float64 `json:"price"`
	Available   bool    `json:"available"`
	Category    string  `json:"category"`
}

type OrderCreateRequest struct {
	CustomerName   string      `json:"customer_name"`
	WhatsAppNumber string      `json:"whatsapp_number"`
	Items          []OrderItem `json:"items"`
}

type OrderStatusUpdateRequest struct {
	Status string `json:"status"`
}

type OrderCreateResponse struct {
	OrderID int64  `json:"order_id"`
	Message string `json:"message"`
}

type OrderStatusResponse struct {
	OrderID int64  `json:"order_id"`
	Status  string `json:"status"`
	Message string `json:"message"`
}
