package service

import (
	"context"
	"net/http"

	"github.com/cypherlabdev/bookshop-service/internal/models"
)

// BookService defines the orchestration interface for the books shard
type BookService interface {
	// GetBook returns a book held by this shard, probing siblings on a miss
	// when this shard is the fallback
	GetBook(ctx context.Context, req *Request, bookID string) (*Result, error)

	// CreateBook stores a new book, or forwards it to the shard owning its
	// language
	CreateBook(ctx context.Context, req *Request) (*Result, error)

	// UpdateBook merges the request body into a stored book
	UpdateBook(ctx context.Context, req *Request, bookID string) (*Result, error)

	// DeleteBook removes a book locally or at its owning shard
	DeleteBook(ctx context.Context, req *Request, bookID string) (*Result, error)
}

// CustomerService defines the orchestration interface for customers
type CustomerService interface {
	GetCustomer(ctx context.Context, req *Request, customerID string) (*Result, error)
	CreateCustomer(ctx context.Context, req *Request) (*Result, error)
	UpdateCustomer(ctx context.Context, req *Request, customerID string) (*Result, error)
	DeleteCustomer(ctx context.Context, req *Request, customerID string) (*Result, error)
}

// OrderService defines the orchestration interface for a customer's orders
type OrderService interface {
	GetOrder(ctx context.Context, req *Request, customerID, orderID string) (*Result, error)
	CreateOrder(ctx context.Context, req *Request, customerID string) (*Result, error)
	UpdateOrder(ctx context.Context, req *Request, customerID, orderID string) (*Result, error)
	DeleteOrder(ctx context.Context, req *Request, customerID, orderID string) (*Result, error)
}

// InsightsService defines the shared author, category and usage services
type InsightsService interface {
	// LookupAuthor resolves an author name to known author records
	LookupAuthor(ctx context.Context, req *Request) (*Result, error)

	// Categorize assigns a category to a title
	Categorize(ctx context.Context, req *Request) (*Result, error)

	// Usage increments and returns the usage counter of a service
	Usage(ctx context.Context, req *Request) (*Result, error)
}

// Request carries the transport facts an orchestrator needs. The HTTP layer
// builds it; orchestrators never see an *http.Request.
type Request struct {
	Authorization string
	ContentType   string
	Accept        string
	// Async asks for concurrent dependency lookups
	Async bool
	// RequestID is forwarded to peers
	RequestID string
	Body      models.Fields
	// BodyInvalid is set when a body was sent but is not a JSON object
	BodyInvalid bool
	// BodyTooLarge marks a body cut off at the size limit; BodyInvalid is set too
	BodyTooLarge bool
	// BaseURL is the collection URL used to build Location headers
	BaseURL string
}

// Result is a successful orchestration outcome
type Result struct {
	Status   int
	Payload  any
	Location string
}

// Header names shared with the HTTP layer
const (
	HeaderAsync     = "X-Bookshop-Async"
	HeaderRequestID = "X-Request-ID"
)

// forwardHeader returns the headers propagated on every peer call
func (r *Request) forwardHeader() http.Header {
	h := http.Header{}
	if r.Authorization != "" {
		h.Set("Authorization", r.Authorization)
	}
	if r.Async {
		h.Set(HeaderAsync, "true")
	}
	if r.RequestID != "" {
		h.Set(HeaderRequestID, r.RequestID)
	}
	return h
}
