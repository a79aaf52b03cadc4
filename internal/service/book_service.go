package service

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/cypherlabdev/bookshop-service/internal/auth"
	"github.com/cypherlabdev/bookshop-service/internal/client"
	"github.com/cypherlabdev/bookshop-service/internal/fault"
	"github.com/cypherlabdev/bookshop-service/internal/models"
	"github.com/cypherlabdev/bookshop-service/internal/routing"
	"github.com/cypherlabdev/bookshop-service/internal/validation"
)

const (
	msgBookID       = "The book ID is invalid"
	msgBookNotFound = "The requested book was not found in the shop"
)

// BookServiceImpl implements the BookService interface
type BookServiceImpl struct {
	deps   Dependencies
	router *routing.Router
	logger zerolog.Logger
}

// NewBookService creates a new book service instance
func NewBookService(deps Dependencies, router *routing.Router) BookService {
	deps.withDefaults()
	return &BookServiceImpl{
		deps:   deps,
		router: router,
		logger: deps.Logger.With().Str("component", "book_service").Str("shard", router.LocalShard()).Logger(),
	}
}

func bookNotFound() error {
	return models.NotFound(msgBookNotFound, models.BookID)
}

// GetBook returns the book with bookID
func (s *BookServiceImpl) GetBook(ctx context.Context, req *Request, bookID string) (res *Result, err error) {
	defer func(start time.Time) { s.deps.track(models.TableBooks, "get", start, err) }(time.Now())

	if s.deps.Faults.ShouldFail(fault.BookLookupBusy) {
		return nil, models.NewError(http.StatusServiceUnavailable, models.ReasonServiceUnavailable, "Service is busy, try again later.", nil)
	}
	if _, err := auth.Authorize(req.Authorization, auth.LevelUser); err != nil {
		return nil, err
	}
	if err := validation.CheckID(bookID, msgBookID, models.BookID); err != nil {
		return nil, err
	}

	book, _, err := s.findBook(ctx, req, bookID)
	if err != nil {
		return nil, err
	}
	return &Result{Status: http.StatusOK, Payload: envelope("book", book)}, nil
}

// CreateBook validates and stores a new book
func (s *BookServiceImpl) CreateBook(ctx context.Context, req *Request) (res *Result, err error) {
	defer func(start time.Time) { s.deps.track(models.TableBooks, "create", start, err) }(time.Now())

	if d, ok := s.foreignOwner(req, "/books"); ok {
		remote, err := s.router.Delegate(ctx, d, http.MethodPost, req.forwardHeader(), req.Body)
		if err != nil {
			return nil, err
		}
		book, err := unwrap(remote, "book")
		if err != nil {
			return nil, err
		}
		id, _ := book.String(models.BookID)
		return &Result{Status: remote.Status, Payload: envelope("book", book), Location: location(req.BaseURL, id)}, nil
	}

	if _, err := auth.Authorize(req.Authorization, auth.LevelAdmin); err != nil {
		return nil, err
	}
	if err := requireJSON(req.ContentType); err != nil {
		return nil, err
	}
	if req.BodyInvalid {
		return nil, bodyNotObject(req)
	}

	book, err := validation.Validate(req.Body, validation.KindBook, nil)
	if err != nil {
		return nil, err
	}
	if err := s.checkISBN(book); err != nil {
		return nil, err
	}

	authorID, category, err := s.lookupDependencies(ctx, req, book)
	if err != nil {
		return nil, err
	}

	if format, _ := book.String("format"); strings.EqualFold(format, validation.FormatDigital) {
		if s.deps.Faults.ShouldFail(fault.DigitalCopyFetch) {
			return nil, models.NewError(http.StatusInternalServerError, models.ReasonCopyFailed, "The server was unable to obtain the digital content", models.Parameter("format"))
		}
	}

	id := validation.NewID()
	book = book.Merge(models.Fields{
		models.BookID: id,
		"author_id":   authorID,
		"category":    category,
	})
	if err := s.save(ctx, id, book); err != nil {
		return nil, err
	}

	s.logger.Info().Str("book_id", id).Msg("book created")
	s.deps.publish(ctx, s.logger, models.EventTypeBookCreated, models.TableBooks, id, s.router.LocalShard(), book)

	return &Result{Status: http.StatusCreated, Payload: envelope("book", book), Location: location(req.BaseURL, id)}, nil
}

// UpdateBook merges the request body into the stored book
func (s *BookServiceImpl) UpdateBook(ctx context.Context, req *Request, bookID string) (res *Result, err error) {
	defer func(start time.Time) { s.deps.track(models.TableBooks, "update", start, err) }(time.Now())

	if d, ok := s.foreignOwner(req, "/books/"+bookID); ok {
		remote, err := s.router.Delegate(ctx, d, http.MethodPut, req.forwardHeader(), req.Body)
		if err != nil {
			return nil, err
		}
		book, err := unwrap(remote, "book")
		if err != nil {
			return nil, err
		}
		return &Result{Status: http.StatusOK, Payload: envelope("book", book)}, nil
	}

	if _, err := auth.Authorize(req.Authorization, auth.LevelAdmin); err != nil {
		return nil, err
	}
	if err := requireJSON(req.ContentType); err != nil {
		return nil, err
	}
	if err := validation.CheckID(bookID, msgBookID, models.BookID); err != nil {
		return nil, err
	}

	stored, err := s.localBook(ctx, bookID)
	if err != nil {
		return nil, err
	}
	if err := checkBodyID(req.Body, models.BookID, bookID, "Book ID param does not match the specified ID"); err != nil {
		return nil, err
	}
	if req.BodyInvalid {
		return nil, bodyNotObject(req)
	}

	book, err := validation.Validate(req.Body, validation.KindBook, stored)
	if err != nil {
		return nil, err
	}
	book[models.BookID] = bookID
	if err := s.save(ctx, bookID, book); err != nil {
		return nil, err
	}

	s.deps.publish(ctx, s.logger, models.EventTypeBookUpdated, models.TableBooks, bookID, s.router.LocalShard(), book)

	return &Result{Status: http.StatusOK, Payload: envelope("book", book)}, nil
}

// DeleteBook removes a book, forwarding the delete when a sibling owns it
func (s *BookServiceImpl) DeleteBook(ctx context.Context, req *Request, bookID string) (res *Result, err error) {
	defer func(start time.Time) { s.deps.track(models.TableBooks, "delete", start, err) }(time.Now())

	if _, err := auth.Authorize(req.Authorization, auth.LevelAdmin); err != nil {
		return nil, err
	}
	if err := validation.CheckID(bookID, msgBookID, models.BookID); err != nil {
		return nil, err
	}

	book, owner, err := s.findBook(ctx, req, bookID)
	if err != nil {
		return nil, err
	}
	if s.deps.Faults.ShouldFail(fault.DeleteEligibility) {
		return nil, models.CannotDelete("The book cannot be deleted at this time", models.BookID)
	}

	// a probed book lives on the shard that answered, whatever its language
	d := s.router.ForShard(owner, "/books/"+bookID)
	if owner == "" {
		language, _ := book.String("language")
		d = s.router.Route(language, "/books/"+bookID)
	}
	if !d.Local {
		if _, err := s.router.Delegate(ctx, d, http.MethodDelete, req.forwardHeader(), nil); err != nil {
			return nil, err
		}
		return &Result{Status: http.StatusNoContent}, nil
	}

	deleteFailed := models.BackendFailed(models.ReasonDeleteFailed, "The server was unable to delete the book details")
	if s.deps.Faults.ShouldFail(fault.StoreDelete) {
		return nil, deleteFailed
	}
	if err := s.deps.Store.Delete(ctx, models.TableBooks, bookID); err != nil {
		s.logger.Error().Err(err).Str("book_id", bookID).Msg("failed to delete book")
		return nil, deleteFailed
	}

	s.deps.publish(ctx, s.logger, models.EventTypeBookDeleted, models.TableBooks, bookID, s.router.LocalShard(), nil)

	return &Result{Status: http.StatusNoContent}, nil
}

// foreignOwner reports whether a write must be served by the sibling owning
// the body's language. Only a valid, known, foreign language qualifies;
// everything else is validated locally after authorization.
func (s *BookServiceImpl) foreignOwner(req *Request, path string) (routing.Decision, bool) {
	if req.BodyInvalid {
		return routing.Decision{}, false
	}
	language, ok := req.Body.String("language")
	if !ok || !validation.ValidLanguage(language) {
		return routing.Decision{}, false
	}
	d := s.router.Route(language, path)
	return d, !d.Local
}

func (s *BookServiceImpl) checkISBN(book models.Fields) error {
	isbn, _ := book.String("isbn")
	rules := s.deps.Rules
	if rules.ExistingISBNMarker != "" && strings.Contains(isbn, rules.ExistingISBNMarker) {
		return models.NewError(http.StatusBadRequest, models.ReasonExists, "There is an existing book with the same ISBN", models.Field("isbn"))
	}
	if rules.UnavailableISBNMarker != "" && strings.Contains(isbn, rules.UnavailableISBNMarker) {
		return models.NewError(http.StatusBadRequest, models.ReasonUnavailable, "The book is unavailable at this time", models.Field("isbn"))
	}
	return nil
}

// lookupDependencies resolves the author id and category of book. With
// async set both calls run concurrently; the author error still wins.
func (s *BookServiceImpl) lookupDependencies(ctx context.Context, req *Request, book models.Fields) (string, string, error) {
	var (
		authorID, category     string
		authorErr, categoryErr error
	)

	if req.Async {
		var g errgroup.Group
		g.Go(func() error {
			authorID, authorErr = s.lookupAuthor(ctx, req, book)
			return authorErr
		})
		g.Go(func() error {
			category, categoryErr = s.lookupCategory(ctx, req, book)
			return categoryErr
		})
		_ = g.Wait()
	} else {
		authorID, authorErr = s.lookupAuthor(ctx, req, book)
		if authorErr == nil {
			category, categoryErr = s.lookupCategory(ctx, req, book)
		}
	}

	if authorErr != nil {
		return "", "", authorErr
	}
	if categoryErr != nil {
		return "", "", categoryErr
	}
	return authorID, category, nil
}

func (s *BookServiceImpl) lookupAuthor(ctx context.Context, req *Request, book models.Fields) (string, error) {
	remote, err := s.deps.Caller.Call(ctx, client.Request{
		Method:  http.MethodPost,
		Service: s.deps.Peers.InsightsService,
		Path:    "/services/author",
		Header:  req.forwardHeader(),
		Body:    models.Fields{"author": book["author"]},
	}, s.deps.Policies.Dependency)
	if err != nil {
		s.logger.Error().Err(err).Msg("author lookup failed")
		return "", models.InternalError()
	}

	var out AuthorsResponse
	if err := remote.Decode(&out); err != nil {
		return "", models.InternalError()
	}
	if len(out.Authors) == 0 {
		return "", models.NewError(http.StatusBadRequest, models.ReasonUnknown, "The author is unknown", models.Parameter("author"))
	}
	return out.Authors[0].ID, nil
}

func (s *BookServiceImpl) lookupCategory(ctx context.Context, req *Request, book models.Fields) (string, error) {
	body := models.Fields{"title": book["title"]}
	if synopsis, ok := book["synopsis"]; ok {
		body["synopsis"] = synopsis
	}
	remote, err := s.deps.Caller.Call(ctx, client.Request{
		Method:  http.MethodPost,
		Service: s.deps.Peers.InsightsService,
		Path:    "/services/category",
		Header:  req.forwardHeader(),
		Body:    body,
	}, s.deps.Policies.Dependency)
	if err != nil {
		s.logger.Error().Err(err).Msg("category lookup failed")
		return "", models.InternalError()
	}

	var out CategoriesResponse
	if err := remote.Decode(&out); err != nil {
		return "", models.InternalError()
	}
	if len(out.Categories) == 0 {
		return "", nil
	}
	return out.Categories[0], nil
}

// findBook reads a book locally and, on the fallback shard, probes the
// siblings on a miss. owner names the sibling holding a probed book and is
// empty for a local one.
func (s *BookServiceImpl) findBook(ctx context.Context, req *Request, bookID string) (book models.Fields, owner string, err error) {
	book, err = s.localBook(ctx, bookID)
	if err == nil || !s.router.IsFallback() || models.AsRequestError(err).Status != http.StatusNotFound {
		return book, "", err
	}

	remote, shard, err := s.router.Probe(ctx, "/books/"+bookID, req.forwardHeader(), bookNotFound)
	if err != nil {
		return nil, "", err
	}
	s.logger.Debug().Str("book_id", bookID).Str("owner", shard).Msg("book found on sibling shard")
	book, err = unwrap(remote, "book")
	if err != nil {
		return nil, "", err
	}
	return book, shard, nil
}

func (s *BookServiceImpl) localBook(ctx context.Context, bookID string) (models.Fields, error) {
	retrieveFailed := models.BackendFailed(models.ReasonRetrieveFailed, "The server was unable to retrieve the book details")
	if s.deps.Faults.ShouldFail(fault.StoreRead) {
		return nil, retrieveFailed
	}
	book, ok, err := s.deps.Store.Get(ctx, models.TableBooks, bookID)
	if err != nil {
		s.logger.Error().Err(err).Str("book_id", bookID).Msg("failed to read book")
		return nil, retrieveFailed
	}
	if !ok {
		return nil, bookNotFound()
	}
	return book, nil
}

func (s *BookServiceImpl) save(ctx context.Context, bookID string, book models.Fields) error {
	storeFailed := models.BackendFailed(models.ReasonStoreFailed, "The server was unable to save the book details")
	if s.deps.Faults.ShouldFail(fault.StoreWrite) {
		return storeFailed
	}
	if err := s.deps.Store.Put(ctx, models.TableBooks, bookID, book); err != nil {
		s.logger.Error().Err(err).Str("book_id", bookID).Msg("failed to save book")
		return storeFailed
	}
	return nil
}
