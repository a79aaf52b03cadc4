package service

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/cypherlabdev/bookshop-service/internal/auth"
	"github.com/cypherlabdev/bookshop-service/internal/fault"
	"github.com/cypherlabdev/bookshop-service/internal/models"
	"github.com/cypherlabdev/bookshop-service/internal/validation"
)

const (
	msgCustomerID       = "The customer ID is invalid"
	msgCustomerNotFound = "The customer could not be located"
)

// CustomerServiceImpl implements the CustomerService interface
type CustomerServiceImpl struct {
	deps   Dependencies
	logger zerolog.Logger
}

// NewCustomerService creates a new customer service instance
func NewCustomerService(deps Dependencies) CustomerService {
	deps.withDefaults()
	return &CustomerServiceImpl{
		deps:   deps,
		logger: deps.Logger.With().Str("component", "customer_service").Logger(),
	}
}

// GetCustomer returns the customer with customerID
func (s *CustomerServiceImpl) GetCustomer(ctx context.Context, req *Request, customerID string) (res *Result, err error) {
	defer func(start time.Time) { s.deps.track(models.TableCustomers, "get", start, err) }(time.Now())

	customer, err := s.authorizedCustomer(ctx, req, customerID, auth.LevelUser)
	if err != nil {
		return nil, err
	}
	return &Result{Status: http.StatusOK, Payload: envelope("customer", publicCustomer(customer))}, nil
}

// CreateCustomer validates and stores a new customer together with its
// username index entry
func (s *CustomerServiceImpl) CreateCustomer(ctx context.Context, req *Request) (res *Result, err error) {
	defer func(start time.Time) { s.deps.track(models.TableCustomers, "create", start, err) }(time.Now())

	if _, err := auth.Authorize(req.Authorization, auth.LevelAdmin); err != nil {
		return nil, err
	}
	if err := requireJSON(req.ContentType); err != nil {
		return nil, err
	}
	if req.BodyInvalid {
		return nil, bodyNotObject(req)
	}

	customer, err := validation.Validate(req.Body, validation.KindCustomer, nil)
	if err != nil {
		return nil, err
	}

	email, _ := customer.String("email")
	if !validation.ValidEmail(email) {
		return nil, models.InvalidInput("The email provided is not valid", models.Parameter("email"))
	}
	username, _ := customer.String("username")
	inUse, err := s.usernameInUse(ctx, username)
	if err != nil {
		return nil, err
	}
	if inUse {
		return nil, models.InvalidInput("The requested username is in use already", models.Parameter("username"))
	}
	if err := checkPassword(customer); err != nil {
		return nil, err
	}

	id := validation.NewID()
	customer[models.CustomerID] = id
	if err := s.save(ctx, id, customer); err != nil {
		return nil, err
	}
	if err := s.deps.Store.Put(ctx, models.TableUsernames, usernameKey(username), models.Fields{models.CustomerID: id}); err != nil {
		s.logger.Error().Err(err).Str("customer_id", id).Msg("failed to index username")
		return nil, storeFailed("customer")
	}

	s.logger.Info().Str("customer_id", id).Msg("customer created")
	s.deps.publish(ctx, s.logger, models.EventTypeCustomerCreated, models.TableCustomers, id, "", publicCustomer(customer))

	return &Result{Status: http.StatusCreated, Payload: envelope("customer", publicCustomer(customer)), Location: location(req.BaseURL, id)}, nil
}

// UpdateCustomer merges the request body into the stored customer
func (s *CustomerServiceImpl) UpdateCustomer(ctx context.Context, req *Request, customerID string) (res *Result, err error) {
	defer func(start time.Time) { s.deps.track(models.TableCustomers, "update", start, err) }(time.Now())

	if _, err := auth.Authorize(req.Authorization, auth.LevelAdmin); err != nil {
		return nil, err
	}
	if err := requireJSON(req.ContentType); err != nil {
		return nil, err
	}
	if err := validation.CheckID(customerID, msgCustomerID, models.CustomerID); err != nil {
		return nil, err
	}

	stored, err := s.loadCustomer(ctx, customerID)
	if err != nil {
		return nil, err
	}
	if err := checkBodyID(req.Body, models.CustomerID, customerID, "Customer ID param does not match the specified ID"); err != nil {
		return nil, err
	}
	if req.BodyInvalid {
		return nil, bodyNotObject(req)
	}

	customer, err := validation.Validate(req.Body, validation.KindCustomer, stored)
	if err != nil {
		return nil, err
	}
	if req.Body.Has("email") {
		email, _ := customer.String("email")
		if !validation.ValidEmail(email) {
			return nil, models.InvalidInput("The updated email is not valid", models.Parameter("email"))
		}
	}
	if req.Body.Has("password") {
		if err := checkPassword(customer); err != nil {
			return nil, err
		}
	}

	customer[models.CustomerID] = customerID
	if err := s.save(ctx, customerID, customer); err != nil {
		return nil, err
	}

	s.deps.publish(ctx, s.logger, models.EventTypeCustomerUpdated, models.TableCustomers, customerID, "", publicCustomer(customer))

	return &Result{Status: http.StatusOK, Payload: envelope("customer", publicCustomer(customer))}, nil
}

func checkPassword(customer models.Fields) error {
	password, _ := customer.String("password")
	if !validation.StrongPassword(password) {
		return models.InvalidInput("A password must have a length of at least 7 and contain at least 1 number", models.Parameter("password"))
	}
	return nil
}

// DeleteCustomer removes a customer and frees its username
func (s *CustomerServiceImpl) DeleteCustomer(ctx context.Context, req *Request, customerID string) (res *Result, err error) {
	defer func(start time.Time) { s.deps.track(models.TableCustomers, "delete", start, err) }(time.Now())

	customer, err := s.authorizedCustomer(ctx, req, customerID, auth.LevelAdmin)
	if err != nil {
		return nil, err
	}
	if s.deps.Faults.ShouldFail(fault.DeleteEligibility) {
		return nil, models.CannotDelete("The customer cannot be deleted at this time", models.CustomerID)
	}

	deleteFailed := models.BackendFailed(models.ReasonDeleteFailed, "The server was unable to delete the customer")
	if s.deps.Faults.ShouldFail(fault.StoreDelete) {
		return nil, deleteFailed
	}
	if err := s.deps.Store.Delete(ctx, models.TableCustomers, customerID); err != nil {
		s.logger.Error().Err(err).Str("customer_id", customerID).Msg("failed to delete customer")
		return nil, deleteFailed
	}
	if username, ok := customer.String("username"); ok {
		if err := s.deps.Store.Delete(ctx, models.TableUsernames, usernameKey(username)); err != nil {
			s.logger.Warn().Err(err).Str("customer_id", customerID).Msg("failed to release username")
		}
	}

	s.deps.publish(ctx, s.logger, models.EventTypeCustomerDeleted, models.TableCustomers, customerID, "", nil)

	return &Result{Status: http.StatusNoContent}, nil
}

// authorizedCustomer runs the checks every customer read shares: the
// privilege gate, the id shape and existence
func (s *CustomerServiceImpl) authorizedCustomer(ctx context.Context, req *Request, customerID string, level auth.Level) (models.Fields, error) {
	if _, err := auth.Authorize(req.Authorization, level); err != nil {
		return nil, err
	}
	if err := validation.CheckID(customerID, msgCustomerID, models.CustomerID); err != nil {
		return nil, err
	}
	return s.loadCustomer(ctx, customerID)
}

func (s *CustomerServiceImpl) loadCustomer(ctx context.Context, customerID string) (models.Fields, error) {
	return loadCustomer(ctx, s.deps, s.logger, customerID)
}

// loadCustomer is shared with the order service, which lives on the same
// store
func loadCustomer(ctx context.Context, deps Dependencies, logger zerolog.Logger, customerID string) (models.Fields, error) {
	retrieveFailed := models.BackendFailed(models.ReasonRetrieveFailed, "The server was unable to retrieve the customer details")
	if deps.Faults.ShouldFail(fault.StoreRead) {
		return nil, retrieveFailed
	}
	customer, ok, err := deps.Store.Get(ctx, models.TableCustomers, customerID)
	if err != nil {
		logger.Error().Err(err).Str("customer_id", customerID).Msg("failed to read customer")
		return nil, retrieveFailed
	}
	if !ok {
		return nil, models.NotFound(msgCustomerNotFound, models.CustomerID)
	}
	return customer, nil
}

func (s *CustomerServiceImpl) usernameInUse(ctx context.Context, username string) (bool, error) {
	prefix := s.deps.Rules.ReservedUsernamePrefix
	if prefix != "" && strings.HasPrefix(strings.ToLower(username), strings.ToLower(prefix)) {
		return true, nil
	}
	_, ok, err := s.deps.Store.Get(ctx, models.TableUsernames, usernameKey(username))
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to read username index")
		return false, models.BackendFailed(models.ReasonRetrieveFailed, "The server was unable to retrieve the customer details")
	}
	return ok, nil
}

func (s *CustomerServiceImpl) save(ctx context.Context, customerID string, customer models.Fields) error {
	if s.deps.Faults.ShouldFail(fault.StoreWrite) {
		return storeFailed("customer")
	}
	if err := s.deps.Store.Put(ctx, models.TableCustomers, customerID, customer); err != nil {
		s.logger.Error().Err(err).Str("customer_id", customerID).Msg("failed to save customer")
		return storeFailed("customer")
	}
	return nil
}

func storeFailed(what string) error {
	return models.BackendFailed(models.ReasonStoreFailed, "The server was unable to save the "+what+" details")
}

func usernameKey(username string) string {
	return strings.ToLower(username)
}

// publicCustomer drops the password before a customer leaves the service
// boundary on the event stream
func publicCustomer(customer models.Fields) models.Fields {
	out := customer.Merge(nil)
	delete(out, "password")
	return out
}
