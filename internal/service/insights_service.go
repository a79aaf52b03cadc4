package service

import (
	"context"
	"fmt"
	"hash/fnv"
	"mime"
	"net/http"
	"slices"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/cypherlabdev/bookshop-service/internal/auth"
	"github.com/cypherlabdev/bookshop-service/internal/client"
	"github.com/cypherlabdev/bookshop-service/internal/fault"
	"github.com/cypherlabdev/bookshop-service/internal/models"
	"github.com/cypherlabdev/bookshop-service/internal/validation"
)

// Services whose usage is accounted
const (
	UsageAuthor   = "author"
	UsageCategory = "category"
)

const usageStart = 1200

// Categories is the fixed set a title can be assigned to
var Categories = []string{"biography", "business", "computing", "fiction", "food", "history", "science", "social"}

// Author is one match of an author lookup
type Author struct {
	Name string `json:"author_name"`
	ID   string `json:"author_id"`
}

// AuthorsResponse is the body of /services/author
type AuthorsResponse struct {
	Authors []Author `json:"authors"`
}

// CategoriesResponse is the body of /services/category
type CategoriesResponse struct {
	Categories []string `json:"categories"`
}

// UsageResponse is the body of /services/usage
type UsageResponse struct {
	Service string `json:"service"`
	Usage   int64  `json:"usage"`
}

// InsightsServiceImpl implements the InsightsService interface
type InsightsServiceImpl struct {
	deps   Dependencies
	usage  atomic.Int64
	logger zerolog.Logger
}

// NewInsightsService creates a new insights service instance
func NewInsightsService(deps Dependencies) InsightsService {
	deps.withDefaults()
	s := &InsightsServiceImpl{
		deps:   deps,
		logger: deps.Logger.With().Str("component", "insights_service").Logger(),
	}
	s.usage.Store(usageStart)
	return s
}

// LookupAuthor resolves the author named in the body
func (s *InsightsServiceImpl) LookupAuthor(ctx context.Context, req *Request) (res *Result, err error) {
	defer func(start time.Time) { s.deps.track("services", UsageAuthor, start, err) }(time.Now())

	if err := s.admit(req); err != nil {
		return nil, err
	}
	if err := checkStringField(req.Body, "author", true, true); err != nil {
		return nil, err
	}
	if err := checkAdditionalFields(req.Body, "author"); err != nil {
		return nil, err
	}
	if err := s.recordUsage(ctx, req, UsageAuthor); err != nil {
		return nil, err
	}

	name, _ := req.Body.String("author")
	out := AuthorsResponse{Authors: []Author{}}
	if !s.unknownAuthor(name) {
		out.Authors = append(out.Authors, Author{Name: name, ID: validation.NewID()})
	}
	return &Result{Status: http.StatusOK, Payload: out}, nil
}

// Categorize assigns a category to the title in the body
func (s *InsightsServiceImpl) Categorize(ctx context.Context, req *Request) (res *Result, err error) {
	defer func(start time.Time) { s.deps.track("services", UsageCategory, start, err) }(time.Now())

	if err := s.admit(req); err != nil {
		return nil, err
	}
	if err := checkStringField(req.Body, "title", true, true); err != nil {
		return nil, err
	}
	if err := checkStringField(req.Body, "synopsis", false, false); err != nil {
		return nil, err
	}
	if err := checkAdditionalFields(req.Body, "title", "synopsis"); err != nil {
		return nil, err
	}
	if err := s.recordUsage(ctx, req, UsageCategory); err != nil {
		return nil, err
	}

	out := CategoriesResponse{Categories: []string{}}
	if !s.deps.Faults.ShouldFail(fault.CategoryUndetermined) {
		title, _ := req.Body.String("title")
		out.Categories = append(out.Categories, CategoryOf(title))
	}
	return &Result{Status: http.StatusOK, Payload: out}, nil
}

// Usage bumps the shared usage counter for a service
func (s *InsightsServiceImpl) Usage(ctx context.Context, req *Request) (res *Result, err error) {
	defer func(start time.Time) { s.deps.track("services", "usage", start, err) }(time.Now())

	if err := s.admit(req); err != nil {
		return nil, err
	}
	if err := checkStringField(req.Body, "service", true, true); err != nil {
		return nil, err
	}
	if err := checkAdditionalFields(req.Body, "service"); err != nil {
		return nil, err
	}
	service, _ := req.Body.String("service")
	if service != UsageAuthor && service != UsageCategory {
		return nil, models.InvalidInput(fmt.Sprintf("The name '%s' is not recognised as a service", service), models.Field("service"))
	}

	return &Result{Status: http.StatusOK, Payload: UsageResponse{Service: service, Usage: s.usage.Add(1)}}, nil
}

// CategoryOf maps a title onto Categories. The same title always lands in
// the same category.
func CategoryOf(title string) string {
	h := fnv.New32a()
	_, _ = h.Write([]byte(strings.ToLower(strings.TrimSpace(title))))
	return Categories[h.Sum32()%uint32(len(Categories))]
}

// admit runs the transport checks, then the admin gate
func (s *InsightsServiceImpl) admit(req *Request) error {
	if err := checkContent(req); err != nil {
		return err
	}
	_, err := auth.Authorize(req.Authorization, auth.LevelAdmin)
	return err
}

func (s *InsightsServiceImpl) unknownAuthor(name string) bool {
	prefix := s.deps.Rules.UnknownAuthorPrefix
	return prefix != "" && strings.HasPrefix(strings.ToLower(name), strings.ToLower(prefix))
}

// recordUsage reports a call to the usage service. Any failure surfaces as
// a plain internal error.
func (s *InsightsServiceImpl) recordUsage(ctx context.Context, req *Request, service string) error {
	target, path := s.deps.Peers.UsageURL, ""
	if target == "" {
		target, path = s.deps.Peers.InsightsService, "/services/usage"
	}
	_, err := s.deps.Caller.Call(ctx, client.Request{
		Method:  http.MethodPost,
		Service: target,
		Path:    path,
		Header:  req.forwardHeader(),
		Body:    models.Fields{"service": service},
	}, s.deps.Policies.Dependency)
	if err != nil {
		s.logger.Warn().Err(err).Str("service", service).Msg("failed to record usage")
		return models.InternalError()
	}
	return nil
}

// checkContent rejects non-JSON payloads, clients that cannot read JSON
// and bodies that are not objects
func checkContent(req *Request) error {
	if req.ContentType != "" {
		mediaType, _, err := mime.ParseMediaType(req.ContentType)
		if err != nil || mediaType != "application/json" {
			return models.NewError(http.StatusUnsupportedMediaType, models.ReasonUnsupportedContentType, "The specified content type is not supported by the server", nil)
		}
	}
	if !acceptsJSON(req.Accept) {
		return models.NewError(http.StatusNotAcceptable, models.ReasonUnsupportedContentType, "The requested content type is not supported by the server", nil)
	}
	if req.BodyInvalid || req.Body == nil {
		return bodyNotObject(req)
	}
	return nil
}

func acceptsJSON(accept string) bool {
	if strings.TrimSpace(accept) == "" {
		return true
	}
	for _, part := range strings.Split(accept, ",") {
		mediaType, params, err := mime.ParseMediaType(strings.TrimSpace(part))
		if err != nil {
			continue
		}
		if params["q"] == "0" {
			continue
		}
		switch mediaType {
		case "application/json", "application/*", "*/*":
			return true
		}
	}
	return false
}

func checkStringField(body models.Fields, name string, required, nonEmpty bool) error {
	value, ok := body[name]
	if !ok {
		if required {
			return models.InvalidInput(fmt.Sprintf("The field '%s' is required for this request", name), models.Field(name))
		}
		return nil
	}
	s, isString := value.(string)
	if !isString || (nonEmpty && strings.TrimSpace(s) == "") {
		kind := "string"
		if nonEmpty {
			kind = "non-empty string"
		}
		return models.InvalidInput(fmt.Sprintf("The field '%s' must be a %s", name, kind), models.Field(name))
	}
	return nil
}

// checkAdditionalFields reports the first unexpected field in sorted order
func checkAdditionalFields(body models.Fields, allowed ...string) error {
	var extra []string
	for name := range body {
		if !slices.Contains(allowed, name) {
			extra = append(extra, name)
		}
	}
	if len(extra) == 0 {
		return nil
	}
	slices.Sort(extra)
	return models.InvalidInput(fmt.Sprintf("The field '%s' is not allowed in this request", extra[0]), models.Field(extra[0]))
}
