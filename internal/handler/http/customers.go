package http

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/cypherlabdev/bookshop-service/internal/service"
)

// CustomerHandler exposes customers and their orders
type CustomerHandler struct {
	customers service.CustomerService
	orders    service.OrderService
	logger    zerolog.Logger
}

// NewCustomerHandler creates a new customers handler
func NewCustomerHandler(customers service.CustomerService, orders service.OrderService, logger zerolog.Logger) *CustomerHandler {
	return &CustomerHandler{
		customers: customers,
		orders:    orders,
		logger:    logger.With().Str("component", "customer_handler").Logger(),
	}
}

// Routes mounts /customers and the nested order routes
func (h *CustomerHandler) Routes(r chi.Router) {
	r.Route("/customers", func(r chi.Router) {
		r.Post("/", h.createCustomer)
		r.Route("/{customer_id}", func(r chi.Router) {
			r.Get("/", h.getCustomer)
			r.Put("/", h.updateCustomer)
			r.Delete("/", h.deleteCustomer)

			r.Post("/orders", h.createOrder)
			r.Get("/orders/{order_id}", h.getOrder)
			r.Put("/orders/{order_id}", h.updateOrder)
			r.Delete("/orders/{order_id}", h.deleteOrder)
		})
	})
}

func (h *CustomerHandler) createCustomer(w http.ResponseWriter, r *http.Request) {
	serve(w, r, h.logger, h.customers.CreateCustomer)
}

func (h *CustomerHandler) getCustomer(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "customer_id")
	serve(w, r, h.logger, func(ctx context.Context, req *service.Request) (*service.Result, error) {
		return h.customers.GetCustomer(ctx, req, id)
	})
}

func (h *CustomerHandler) updateCustomer(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "customer_id")
	serve(w, r, h.logger, func(ctx context.Context, req *service.Request) (*service.Result, error) {
		return h.customers.UpdateCustomer(ctx, req, id)
	})
}

func (h *CustomerHandler) deleteCustomer(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "customer_id")
	serve(w, r, h.logger, func(ctx context.Context, req *service.Request) (*service.Result, error) {
		return h.customers.DeleteCustomer(ctx, req, id)
	})
}

func (h *CustomerHandler) createOrder(w http.ResponseWriter, r *http.Request) {
	customerID := chi.URLParam(r, "customer_id")
	serve(w, r, h.logger, func(ctx context.Context, req *service.Request) (*service.Result, error) {
		return h.orders.CreateOrder(ctx, req, customerID)
	})
}

func (h *CustomerHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	customerID, orderID := chi.URLParam(r, "customer_id"), chi.URLParam(r, "order_id")
	serve(w, r, h.logger, func(ctx context.Context, req *service.Request) (*service.Result, error) {
		return h.orders.GetOrder(ctx, req, customerID, orderID)
	})
}

func (h *CustomerHandler) updateOrder(w http.ResponseWriter, r *http.Request) {
	customerID, orderID := chi.URLParam(r, "customer_id"), chi.URLParam(r, "order_id")
	serve(w, r, h.logger, func(ctx context.Context, req *service.Request) (*service.Result, error) {
		return h.orders.UpdateOrder(ctx, req, customerID, orderID)
	})
}

func (h *CustomerHandler) deleteOrder(w http.ResponseWriter, r *http.Request) {
	customerID, orderID := chi.URLParam(r, "customer_id"), chi.URLParam(r, "order_id")
	serve(w, r, h.logger, func(ctx context.Context, req *service.Request) (*service.Result, error) {
		return h.orders.DeleteOrder(ctx, req, customerID, orderID)
	})
}
