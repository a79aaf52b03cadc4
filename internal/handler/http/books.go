package http

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/cypherlabdev/bookshop-service/internal/service"
)

// BookHandler exposes the books shard over HTTP
type BookHandler struct {
	books  service.BookService
	logger zerolog.Logger
}

// NewBookHandler creates a new books handler
func NewBookHandler(books service.BookService, logger zerolog.Logger) *BookHandler {
	return &BookHandler{
		books:  books,
		logger: logger.With().Str("component", "book_handler").Logger(),
	}
}

// Routes mounts /books
func (h *BookHandler) Routes(r chi.Router) {
	r.Route("/books", func(r chi.Router) {
		r.Post("/", h.create)
		r.Get("/{book_id}", h.get)
		r.Put("/{book_id}", h.update)
		r.Delete("/{book_id}", h.delete)
	})
}

func (h *BookHandler) create(w http.ResponseWriter, r *http.Request) {
	serve(w, r, h.logger, h.books.CreateBook)
}

func (h *BookHandler) get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "book_id")
	serve(w, r, h.logger, func(ctx context.Context, req *service.Request) (*service.Result, error) {
		return h.books.GetBook(ctx, req, id)
	})
}

func (h *BookHandler) update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "book_id")
	serve(w, r, h.logger, func(ctx context.Context, req *service.Request) (*service.Result, error) {
		return h.books.UpdateBook(ctx, req, id)
	})
}

func (h *BookHandler) delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "book_id")
	serve(w, r, h.logger, func(ctx context.Context, req *service.Request) (*service.Result, error) {
		return h.books.DeleteBook(ctx, req, id)
	})
}
