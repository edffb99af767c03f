package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/mealwire/order-service/internal/events"
	"github.com/mealwire/order-service/internal/store"
	"github.com/mealwire/order-service/internal/whatsapp"
	"github.com/mealwire/order-service/pkg/models"
)

// apiKeyHeader carries the tenant credential on every mutating call.
const apiKeyHeader = "X-API-Key"

// deliveryOffset is added to the order creation time to produce the
// estimated delivery timestamp.
const deliveryOffset = 30 * time.Minute

// Store is the persistence surface the handlers need. The Postgres store
// implements it; tests substitute an in-memory fake.
type Store interface {
	Ping() error
	CreateCompany(company *models.Company) error
	CompanyByAPIKey(key string) (*models.Company, error)
	CreateMenuItem(item *models.MenuItem) error
	ListMenuItems() ([]models.MenuItem, error)
	MenuItemByID(id int64) (*models.MenuItem, error)
	MenuItemForCompany(id, companyID int64) (*models.MenuItem, error)
	CreateOrder(order *models.Order) error
	ListOrders() ([]models.Order, error)
	OrderByID(id int64) (*models.Order, error)
	OrderForCompany(id, companyID int64) (*models.Order, error)
	UpdateOrderStatus(id int64, status string) error
}

// EventPublisher publishes order lifecycle events. Optional; a nil publisher
// disables publishing.
type EventPublisher interface {
	PublishOrderCreated(event events.OrderCreatedEvent) error
	PublishOrderStatusChanged(event events.OrderStatusChangedEvent) error
	PublishOrderCancelled(event events.OrderCancelledEvent) error
}

type Handler struct {
	store     Store
	sender    whatsapp.Sender
	publisher EventPublisher
	logger    *logrus.Logger
}

func NewHandler(st Store, sender whatsapp.Sender, logger *logrus.Logger) *Handler {
	return &Handler{
		store:  st,
		sender: sender,
		logger: logger,
	}
}

func (h *Handler) SetEventPublisher(publisher EventPublisher) {
	h.publisher = publisher
}

// Routes builds the router. Trailing slashes are accepted on every path.
func (h *Handler) Routes() *mux.Router {
	router := mux.NewRouter().StrictSlash(true)
	router.HandleFunc("/health", h.HealthCheck).Methods("GET")
	router.HandleFunc("/companies/", h.CreateCompany).Methods("POST")
	router.HandleFunc("/menu/", h.CreateMenuItem).Methods("POST")
	router.HandleFunc("/menu/", h.ListMenuItems).Methods("GET")
	router.HandleFunc("/menu/{id:[0-9]+}", h.GetMenuItem).Methods("GET")
	router.HandleFunc("/orders/", h.CreateOrder).Methods("POST")
	router.HandleFunc("/orders/", h.ListOrders).Methods("GET")
	router.HandleFunc("/orders/{id:[0-9]+}", h.GetOrder).Methods("GET")
	router.HandleFunc("/orders/{id:[0-9]+}", h.UpdateOrderStatus).Methods("PATCH")
	router.HandleFunc("/orders/{id:[0-9]+}", h.CancelOrder).Methods("DELETE")
	router.Use(loggingMiddleware(h.logger))
	return router
}

// authenticate resolves the tenant from the API key header. An absent or
// empty header never matches, even if a company somehow stored an empty key.
func (h *Handler) authenticate(r *http.Request) (*models.Company, error) {
	key := r.Header.Get(apiKeyHeader)
	if key == "" {
		return nil, store.ErrNotFound
	}
	return h.store.CompanyByAPIKey(key)
}

func (h *Handler) CreateCompany(w http.ResponseWriter, r *http.Request) {
	var req models.CompanyCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.WithError(err).Error("Failed to decode company request")
		h.respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.Name == "" || req.WhatsAppNumber == "" {
		h.respondWithError(w, http.StatusBadRequest, "name and whatsapp_number are required")
		return
	}
	if req.APIKey == "" {
		req.APIKey = uuid.New().String()
	}

	company := &models.Company{
		Name:           req.Name,
		WhatsAppNumber: req.WhatsAppNumber,
		APIKey:         req.APIKey,
	}

	if err := h.store.CreateCompany(company); err != nil {
		h.logger.WithError(err).Error("Failed to create company")
		h.respondWithError(w, http.StatusInternalServerError, "Failed to create company")
		return
	}

	h.logger.WithFields(logrus.Fields{
		"company_id": company.ID,
		"name":       company.Name,
	}).Info("Company registered")

	h.respondWithJSON(w, http.StatusOK, company)
}

func (h *Handler) CreateMenuItem(w http.ResponseWriter, r *http.Request) {
	company, err := h.authenticate(r)
	if err != nil {
		h.respondUnauthorized(w, err)
		return
	}

	var req models.MenuItemCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.WithError(err).Error("Failed to decode menu item request")
		h.respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.Name == "" {
		h.respondWithError(w, http.StatusBadRequest, "name is required")
		return
	}

	item := &models.MenuItem{
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		Available:   req.Available,
		Category:    req.Category,
		CompanyID:   company.ID,
	}

	if err := h.store.CreateMenuItem(item); err != nil {
		h.logger.WithError(err).Error("Failed to create menu item")
		h.respondWithError(w, http.StatusInternalServerError, "Failed to create menu item")
		return
	}

	h.logger.WithFields(logrus.Fields{
		"menu_item_id": item.ID,
		"company_id":   company.ID,
		"name":         item.Name,
	}).Info("Menu item created")

	h.respondWithJSON(w, http.StatusOK, item)
}

func (h *Handler) ListMenuItems(w http.ResponseWriter, r *http.Request) {
	items, err := h.store.ListMenuItems()
	if err != nil {
		h.logger.WithError(err).Error("Failed to list menu items")
		h.respondWithError(w, http.StatusInternalServerError, "Failed to list menu items")
		return
	}
	h.respondWithJSON(w, http.StatusOK, items)
}

func (h *Handler) GetMenuItem(w http.ResponseWriter, r *http.Request) {
	id := pathID(r)
	item, err := h.store.MenuItemByID(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			h.respondWithError(w, http.StatusNotFound, "Menu item not found")
			return
		}
		h.logger.WithError(err).Error("Failed to get menu item")
		h.respondWithError(w, http.StatusInternalServerError, "Failed to get menu item")
		return
	}
	h.respondWithJSON(w, http.StatusOK, item)
}

func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	company, err := h.authenticate(r)
	if err != nil {
		h.respondUnauthorized(w, err)
		return
	}

	var req models.OrderCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.WithError(err).Error("Failed to decode order request")
		h.respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	// Validate every line item before touching the database. The first
	// missing or unavailable item is reported, but the whole list is checked
	// so nothing is persisted for a partially valid order.
	var badItem int64 = -1
	for _, line := range req.Items {
		item, err := h.store.MenuItemForCompany(line.MenuItemID, company.ID)
		switch {
		case errors.Is(err, store.ErrNotFound):
			if badItem < 0 {
				badItem = line.MenuItemID
			}
		case err != nil:
			h.logger.WithError(err).Error("Failed to look up menu item")
			h.respondWithError(w, http.StatusInternalServerError, "Failed to create order")
			return
		case !item.Available:
			if badItem < 0 {
				badItem = line.MenuItemID
			}
		}
	}
	if badItem >= 0 {
		h.respondWithError(w, http.StatusBadRequest, fmt.Sprintf("Item %d not available", badItem))
		return
	}

	now := time.Now().UTC()
	order := &models.Order{
		CustomerName:      req.CustomerName,
		WhatsAppNumber:    req.WhatsAppNumber,
		Status:            models.StatusPending,
		CreatedAt:         now,
		EstimatedDelivery: now.Add(deliveryOffset),
		CompanyID:         company.ID,
		Items:             req.Items,
	}

	if err := h.store.CreateOrder(order); err != nil {
		h.logger.WithError(err).Error("Failed to save order")
		h.respondWithError(w, http.StatusInternalServerError, "Failed to save order")
		return
	}

	message := fmt.Sprintf(
		"Hello %s, your order #%d for %d item(s) has been received! Estimated delivery: %s.",
		order.CustomerName, order.ID, order.TotalItems(),
		order.EstimatedDelivery.Format("2006-01-02 15:04:05"),
	)
	h.dispatch(order, message)

	if h.publisher != nil {
		event := events.OrderCreatedEvent{
			OrderID:           order.ID,
			CompanyID:         order.CompanyID,
			CustomerName:      order.CustomerName,
			TotalItems:        order.TotalItems(),
			EstimatedDelivery: order.EstimatedDelivery,
			CreatedAt:         order.CreatedAt,
		}
		if err := h.publisher.PublishOrderCreated(event); err != nil {
			h.logger.WithError(err).Error("Failed to publish order created event")
		}
	}

	h.logger.WithFields(logrus.Fields{
		"order_id":    order.ID,
		"company_id":  company.ID,
		"total_items": order.TotalItems(),
	}).Info("Order created")

	h.respondWithJSON(w, http.StatusOK, models.OrderCreateResponse{
		OrderID: order.ID,
		Message: "Order created and WhatsApp notification sent!",
	})
}

func (h *Handler) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	company, err := h.authenticate(r)
	if err != nil {
		h.respondUnauthorized(w, err)
		return
	}

	var req models.OrderStatusUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.WithError(err).Error("Failed to decode status update request")
		h.respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if !models.ValidUpdateStatus(req.Status) {
		h.respondWithError(w, http.StatusBadRequest, "Invalid status")
		return
	}

	order, ok := h.resolveOrder(w, r, company)
	if !ok {
		return
	}

	if err := h.store.UpdateOrderStatus(order.ID, req.Status); err != nil {
		h.logger.WithError(err).Error("Failed to update order status")
		h.respondWithError(w, http.StatusInternalServerError, "Failed to update order status")
		return
	}
	order.Status = req.Status

	message := fmt.Sprintf("Hello %s, your order #%d status has been updated to '%s'.",
		order.CustomerName, order.ID, order.Status)
	h.dispatch(order, message)

	if h.publisher != nil {
		event := events.OrderStatusChangedEvent{
			OrderID:   order.ID,
			CompanyID: order.CompanyID,
			Status:    order.Status,
		}
		if err := h.publisher.PublishOrderStatusChanged(event); err != nil {
			h.logger.WithError(err).Error("Failed to publish status change event")
		}
	}

	h.logger.WithFields(logrus.Fields{
		"order_id":   order.ID,
		"company_id": company.ID,
		"status":     order.Status,
	}).Info("Order status updated")

	h.respondWithJSON(w, http.StatusOK, models.OrderStatusResponse{
		OrderID: order.ID,
		Status:  order.Status,
		Message: "WhatsApp notification sent!",
	})
}

// CancelOrder forces the order to canceled. The order and its items stay in
// the store; cancellation is a status change, not a delete.
func (h *Handler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	company, err := h.authenticate(r)
	if err != nil {
		h.respondUnauthorized(w, err)
		return
	}

	order, ok := h.resolveOrder(w, r, company)
	if !ok {
		return
	}

	if err := h.store.UpdateOrderStatus(order.ID, models.StatusCanceled); err != nil {
		h.logger.WithError(err).Error("Failed to cancel order")
		h.respondWithError(w, http.StatusInternalServerError, "Failed to cancel order")
		return
	}
	order.Status = models.StatusCanceled

	message := fmt.Sprintf("Hello %s, your order #%d has been canceled.",
		order.CustomerName, order.ID)
	h.dispatch(order, message)

	if h.publisher != nil {
		event := events.OrderCancelledEvent{
			OrderID:   order.ID,
			CompanyID: order.CompanyID,
		}
		if err := h.publisher.PublishOrderCancelled(event); err != nil {
			h.logger.WithError(err).Error("Failed to publish cancellation event")
		}
	}

	h.logger.WithFields(logrus.Fields{
		"order_id":   order.ID,
		"company_id": company.ID,
	}).Info("Order canceled")

	h.respondWithJSON(w, http.StatusOK, models.OrderStatusResponse{
		OrderID: order.ID,
		Status:  order.Status,
		Message: "Order canceled and WhatsApp notification sent!",
	})
}

func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.store.ListOrders()
	if err != nil {
		h.logger.WithError(err).Error("Failed to list orders")
		h.respondWithError(w, http.StatusInternalServerError, "Failed to list orders")
		return
	}
	h.respondWithJSON(w, http.StatusOK, orders)
}

func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	id := pathID(r)
	order, err := h.store.OrderByID(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			h.respondWithError(w, http.StatusNotFound, "Order not found")
			return
		}
		h.logger.WithError(err).Error("Failed to get order")
		h.respondWithError(w, http.StatusInternalServerError, "Failed to get order")
		return
	}
	h.respondWithJSON(w, http.StatusOK, order)
}

func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Ping(); err != nil {
		h.respondWithJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status":  "unhealthy",
			"service": "order-service",
			"error":   "database connection failed",
		})
		return
	}

	h.respondWithJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "order-service",
	})
}

// resolveOrder loads the order scoped to the requesting tenant, writing a 404
// when it does not exist or belongs to someone else.
func (h *Handler) resolveOrder(w http.ResponseWriter, r *http.Request, company *models.Company) (*models.Order, bool) {
	id := pathID(r)
	order, err := h.store.OrderForCompany(id, company.ID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			h.respondWithError(w, http.StatusNotFound, "Order not found")
			return nil, false
		}
		h.logger.WithError(err).Error("Failed to get order")
		h.respondWithError(w, http.StatusInternalServerError, "Failed to get order")
		return nil, false
	}
	return order, true
}

// dispatch sends a notification to the order's customer. Send failures are
// logged but never fail the request; the store mutation already committed.
func (h *Handler) dispatch(order *models.Order, message string) {
	to := whatsapp.NormalizeNumber(order.WhatsAppNumber)
	if err := h.sender.Send(to, message); err != nil {
		h.logger.WithError(err).WithFields(logrus.Fields{
			"order_id": order.ID,
			"to":       to,
		}).Error("Failed to send WhatsApp notification")
	}
}

func (h *Handler) respondUnauthorized(w http.ResponseWriter, err error) {
	if !errors.Is(err, store.ErrNotFound) {
		h.logger.WithError(err).Error("Failed to resolve API key")
		h.respondWithError(w, http.StatusInternalServerError, "Failed to resolve API key")
		return
	}
	h.respondWithError(w, http.StatusUnauthorized, "Invalid API key")
}

// pathID relies on the route pattern {id:[0-9]+}; non-numeric ids never reach
// the handler.
func pathID(r *http.Request) int64 {
	id, _ := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	return id
}

func (h *Handler) respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, _ := json.Marshal(payload)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

func (h *Handler) respondWithError(w http.ResponseWriter, code int, message string) {
	h.respondWithJSON(w, code, map[string]interface{}{
		"success": false,
		"message": message,
	})
}
