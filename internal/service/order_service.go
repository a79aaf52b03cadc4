package service

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/cypherlabdev/bookshop-service/internal/auth"
	"github.com/cypherlabdev/bookshop-service/internal/client"
	"github.com/cypherlabdev/bookshop-service/internal/fault"
	"github.com/cypherlabdev/bookshop-service/internal/models"
	"github.com/cypherlabdev/bookshop-service/internal/validation"
)

const (
	msgOrderID       = "The order ID is invalid"
	msgOrderNotFound = "The requested order does not exist"
	msgOrderNotOwned = "No order with the specified id belongs to this customer"

	statusShipped = "shipped"
)

// OrderServiceImpl implements the OrderService interface
type OrderServiceImpl struct {
	deps   Dependencies
	logger zerolog.Logger
}

// NewOrderService creates a new order service instance
func NewOrderService(deps Dependencies) OrderService {
	deps.withDefaults()
	return &OrderServiceImpl{
		deps:   deps,
		logger: deps.Logger.With().Str("component", "order_service").Logger(),
	}
}

// GetOrder returns an order belonging to customerID
func (s *OrderServiceImpl) GetOrder(ctx context.Context, req *Request, customerID, orderID string) (res *Result, err error) {
	defer func(start time.Time) { s.deps.track(models.TableOrders, "get", start, err) }(time.Now())

	order, err := s.customerOrder(ctx, req, customerID, orderID, auth.LevelUser)
	if err != nil {
		return nil, err
	}
	return &Result{Status: http.StatusOK, Payload: envelope("order", order)}, nil
}

// CreateOrder places a new order for customerID after checking every
// referenced book with the books service
func (s *OrderServiceImpl) CreateOrder(ctx context.Context, req *Request, customerID string) (res *Result, err error) {
	defer func(start time.Time) { s.deps.track(models.TableOrders, "create", start, err) }(time.Now())

	if _, err := auth.Authorize(req.Authorization, auth.LevelAdmin); err != nil {
		return nil, err
	}
	if err := requireJSON(req.ContentType); err != nil {
		return nil, err
	}
	if err := validation.CheckID(customerID, msgCustomerID, models.CustomerID); err != nil {
		return nil, err
	}
	if _, err := loadCustomer(ctx, s.deps, s.logger, customerID); err != nil {
		return nil, err
	}
	if err := checkBodyID(req.Body, models.CustomerID, customerID, "The customer IDs do not match"); err != nil {
		return nil, err
	}
	if req.BodyInvalid {
		return nil, bodyNotObject(req)
	}

	order, err := validation.Validate(req.Body, validation.KindOrder, nil)
	if err != nil {
		return nil, err
	}
	if err := s.checkBooks(ctx, req, order); err != nil {
		return nil, err
	}
	if s.deps.Faults.ShouldFail(fault.BookAvailability) {
		return nil, models.InvalidInput("The requested book is not available at this time", models.Parameter("book_ids"))
	}

	id := validation.NewID()
	order[models.OrderID] = id
	if err := s.save(ctx, id, order, "The server was unable to save the order at this time"); err != nil {
		return nil, err
	}

	s.logger.Info().Str("order_id", id).Str("customer_id", customerID).Msg("order created")
	s.deps.publish(ctx, s.logger, models.EventTypeOrderCreated, models.TableOrders, id, "", order)

	return &Result{Status: http.StatusCreated, Payload: envelope("order", order), Location: location(req.BaseURL, id)}, nil
}

// UpdateOrder merges the request body into a stored order
func (s *OrderServiceImpl) UpdateOrder(ctx context.Context, req *Request, customerID, orderID string) (res *Result, err error) {
	defer func(start time.Time) { s.deps.track(models.TableOrders, "update", start, err) }(time.Now())

	if _, err := auth.Authorize(req.Authorization, auth.LevelAdmin); err != nil {
		return nil, err
	}
	if err := requireJSON(req.ContentType); err != nil {
		return nil, err
	}
	if err := checkOrderIDs(customerID, orderID); err != nil {
		return nil, err
	}
	stored, err := s.ownedOrder(ctx, customerID, orderID)
	if err != nil {
		return nil, err
	}
	if err := checkBodyID(req.Body, models.CustomerID, customerID, "The customer IDs do not match"); err != nil {
		return nil, err
	}
	if err := checkBodyID(req.Body, models.OrderID, orderID, "Order ID param does not match the specified ID"); err != nil {
		return nil, err
	}
	if req.BodyInvalid {
		return nil, bodyNotObject(req)
	}

	order, err := validation.Validate(req.Body, validation.KindOrder, stored)
	if err != nil {
		return nil, err
	}
	if err := s.checkQuantity(stored, order); err != nil {
		return nil, err
	}
	if req.Body.Has("book_ids") {
		if err := s.checkBooks(ctx, req, order); err != nil {
			return nil, err
		}
	}

	order[models.OrderID] = orderID
	if err := s.save(ctx, orderID, order, "The server was unable to save the updated order details"); err != nil {
		return nil, err
	}

	s.deps.publish(ctx, s.logger, models.EventTypeOrderUpdated, models.TableOrders, orderID, "", order)

	return &Result{Status: http.StatusOK, Payload: envelope("order", order)}, nil
}

// DeleteOrder cancels an order that has not shipped yet
func (s *OrderServiceImpl) DeleteOrder(ctx context.Context, req *Request, customerID, orderID string) (res *Result, err error) {
	defer func(start time.Time) { s.deps.track(models.TableOrders, "delete", start, err) }(time.Now())

	order, err := s.customerOrder(ctx, req, customerID, orderID, auth.LevelAdmin)
	if err != nil {
		return nil, err
	}
	if status, _ := order.String("status"); strings.EqualFold(status, statusShipped) {
		return nil, models.CannotDelete("Can not delete an order that has already been shipped", models.OrderID)
	}
	if s.deps.Faults.ShouldFail(fault.DeleteEligibility) {
		return nil, models.CannotDelete("The order cannot be cancelled at this time", models.OrderID)
	}

	deleteFailed := models.BackendFailed(models.ReasonDeleteFailed, "The server was unable to cancel the order")
	if s.deps.Faults.ShouldFail(fault.StoreDelete) {
		return nil, deleteFailed
	}
	if err := s.deps.Store.Delete(ctx, models.TableOrders, orderID); err != nil {
		s.logger.Error().Err(err).Str("order_id", orderID).Msg("failed to delete order")
		return nil, deleteFailed
	}

	s.deps.publish(ctx, s.logger, models.EventTypeOrderDeleted, models.TableOrders, orderID, "", nil)

	return &Result{Status: http.StatusNoContent}, nil
}

// customerOrder runs the read path shared by get and delete
func (s *OrderServiceImpl) customerOrder(ctx context.Context, req *Request, customerID, orderID string, level auth.Level) (models.Fields, error) {
	if _, err := auth.Authorize(req.Authorization, level); err != nil {
		return nil, err
	}
	if err := checkOrderIDs(customerID, orderID); err != nil {
		return nil, err
	}
	return s.ownedOrder(ctx, customerID, orderID)
}

func checkOrderIDs(customerID, orderID string) error {
	if err := validation.CheckID(customerID, msgCustomerID, models.CustomerID); err != nil {
		return err
	}
	return validation.CheckID(orderID, msgOrderID, models.OrderID)
}

// ownedOrder loads the customer, then the order, and checks the order
// belongs to the customer. A foreign order is reported as missing.
func (s *OrderServiceImpl) ownedOrder(ctx context.Context, customerID, orderID string) (models.Fields, error) {
	if _, err := loadCustomer(ctx, s.deps, s.logger, customerID); err != nil {
		return nil, err
	}

	retrieveFailed := models.BackendFailed(models.ReasonRetrieveFailed, "The server was unable to retrieve the order details")
	if s.deps.Faults.ShouldFail(fault.StoreRead) {
		return nil, retrieveFailed
	}
	order, ok, err := s.deps.Store.Get(ctx, models.TableOrders, orderID)
	if err != nil {
		s.logger.Error().Err(err).Str("order_id", orderID).Msg("failed to read order")
		return nil, retrieveFailed
	}
	if !ok {
		return nil, models.NotFound(msgOrderNotFound, models.OrderID)
	}
	if owner, _ := order.String(models.CustomerID); owner != customerID {
		return nil, models.NotFound(msgOrderNotOwned, models.OrderID)
	}
	return order, nil
}

// checkQuantity rejects a changed quantity the shop cannot fulfil
func (s *OrderServiceImpl) checkQuantity(stored, updated models.Fields) error {
	divisor := int64(s.deps.Rules.QuantityDivisor)
	if divisor <= 0 {
		return nil
	}
	before, _ := validation.Quantity(stored["quantity"])
	after, ok := validation.Quantity(updated["quantity"])
	if !ok || after == before {
		return nil
	}
	if after%divisor == 0 {
		return models.InvalidInput("The requested quantity can not be fulfilled", models.Parameter("quantity"))
	}
	return nil
}

// checkBooks asks the books service for every referenced book in turn. The
// first failure, after retries on 503, is returned translated.
func (s *OrderServiceImpl) checkBooks(ctx context.Context, req *Request, order models.Fields) error {
	ids, _ := validation.BookIDs(order["book_ids"])
	for _, id := range ids {
		id = strings.Join(strings.Fields(id), "")
		_, err := s.deps.Caller.Call(ctx, client.Request{
			Method:  http.MethodGet,
			Service: s.deps.Peers.BooksService,
			Path:    "/books/" + id,
			Header:  req.forwardHeader(),
		}, s.deps.Policies.BookCheck)
		if err != nil {
			s.logger.Info().Err(err).Str("book_id", id).Msg("book check failed")
			return err
		}
	}
	return nil
}

func (s *OrderServiceImpl) save(ctx context.Context, orderID string, order models.Fields, message string) error {
	storeFailed := models.BackendFailed(models.ReasonStoreFailed, message)
	if s.deps.Faults.ShouldFail(fault.StoreWrite) {
		return storeFailed
	}
	if err := s.deps.Store.Put(ctx, models.TableOrders, orderID, order); err != nil {
		s.logger.Error().Err(err).Str("order_id", orderID).Msg("failed to save order")
		return storeFailed
	}
	return nil
}
