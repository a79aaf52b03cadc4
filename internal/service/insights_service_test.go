package service

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/cypherlabdev/bookshop-service/internal/fault"
	"github.com/cypherlabdev/bookshop-service/internal/models"
)

const servicesURL = "http://bookshop-services:5000/services"

func (s *testServiceSetup) expectUsage(t *testing.T, service string) {
	s.caller.EXPECT().
		Call(gomock.Any(), requestTo("bookshop-services", "/services/usage"), s.deps.Policies.Dependency).
		Return(remoteJSON(t, http.StatusOK, UsageResponse{Service: service, Usage: 1201}), nil)
}

func TestInsightsService_LookupAuthor(t *testing.T) {
	setup := setupTestDeps(t)
	setup.deps.Rules.UnknownAuthorPrefix = "rob"
	svc := NewInsightsService(setup.deps)

	setup.expectUsage(t, UsageAuthor)
	res, err := svc.LookupAuthor(context.Background(), jsonRequest(adminAuth, servicesURL, models.Fields{"author": "Ursula K. Le Guin"}))
	require.NoError(t, err)
	out := res.Payload.(AuthorsResponse)
	require.Len(t, out.Authors, 1)
	assert.Equal(t, "Ursula K. Le Guin", out.Authors[0].Name)
	assert.NotEmpty(t, out.Authors[0].ID)

	setup.expectUsage(t, UsageAuthor)
	res, err = svc.LookupAuthor(context.Background(), jsonRequest(adminAuth, servicesURL, models.Fields{"author": "Robert Jordan"}))
	require.NoError(t, err)
	assert.Empty(t, res.Payload.(AuthorsResponse).Authors)
}

func TestInsightsService_UsageFailureIsInternal(t *testing.T) {
	setup := setupTestDeps(t)
	svc := NewInsightsService(setup.deps)

	setup.caller.EXPECT().Call(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, models.NotAuthorized())

	_, err := svc.LookupAuthor(context.Background(), jsonRequest(adminAuth, servicesURL, models.Fields{"author": "Ursula K. Le Guin"}))
	assertRequestError(t, err, http.StatusInternalServerError, models.ReasonInternalError)
}

func TestInsightsService_UsageURLOverride(t *testing.T) {
	setup := setupTestDeps(t)
	setup.deps.Peers.UsageURL = "http://accounting:7000/services/usage"
	svc := NewInsightsService(setup.deps)

	setup.caller.EXPECT().
		Call(gomock.Any(), requestTo("http://accounting:7000/services/usage", ""), gomock.Any()).
		Return(remoteJSON(t, http.StatusOK, UsageResponse{}), nil)

	_, err := svc.Categorize(context.Background(), jsonRequest(adminAuth, servicesURL, models.Fields{"title": "Dune"}))
	require.NoError(t, err)
}

func TestInsightsService_Categorize(t *testing.T) {
	setup := setupTestDeps(t)
	svc := NewInsightsService(setup.deps)

	setup.expectUsage(t, UsageCategory)
	res, err := svc.Categorize(context.Background(), jsonRequest(adminAuth, servicesURL, models.Fields{"title": "Dune", "synopsis": ""}))
	require.NoError(t, err)
	assert.Equal(t, []string{CategoryOf("Dune")}, res.Payload.(CategoriesResponse).Categories)
	assert.Contains(t, Categories, CategoryOf("Dune"))
	assert.Equal(t, CategoryOf("Dune"), CategoryOf("  dune "), "category is stable for a title")

	setup.expectUsage(t, UsageCategory)
	setup.faults.FailNext(fault.CategoryUndetermined)
	res, err = svc.Categorize(context.Background(), jsonRequest(adminAuth, servicesURL, models.Fields{"title": "Dune"}))
	require.NoError(t, err)
	assert.Empty(t, res.Payload.(CategoriesResponse).Categories)
}

func TestInsightsService_Usage(t *testing.T) {
	setup := setupTestDeps(t)
	svc := NewInsightsService(setup.deps)

	for _, want := range []int64{1201, 1202} {
		res, err := svc.Usage(context.Background(), jsonRequest(adminAuth, servicesURL, models.Fields{"service": UsageAuthor}))
		require.NoError(t, err)
		assert.Equal(t, UsageResponse{Service: UsageAuthor, Usage: want}, res.Payload)
	}

	_, err := svc.Usage(context.Background(), jsonRequest(adminAuth, servicesURL, models.Fields{"service": "weather"}))
	reqErr := assertRequestError(t, err, http.StatusBadRequest, models.ReasonInvalidInput)
	assert.Equal(t, "The name 'weather' is not recognised as a service", reqErr.Message)
}

func TestInsightsService_RequestChecks(t *testing.T) {
	tests := []struct {
		name        string
		req         *Request
		wantStatus  int
		wantReason  string
		wantMessage string
	}{
		{
			name:       "non-json content type",
			req:        &Request{Authorization: adminAuth, ContentType: "text/plain", Body: models.Fields{"service": "author"}},
			wantStatus: http.StatusUnsupportedMediaType,
			wantReason: models.ReasonUnsupportedContentType,
		},
		{
			name:       "client does not accept json",
			req:        &Request{Authorization: adminAuth, Accept: "text/html", Body: models.Fields{"service": "author"}},
			wantStatus: http.StatusNotAcceptable,
			wantReason: models.ReasonUnsupportedContentType,
		},
		{
			name:        "body is not an object",
			req:         &Request{Authorization: adminAuth, BodyInvalid: true},
			wantStatus:  http.StatusBadRequest,
			wantReason:  models.ReasonInvalidInput,
			wantMessage: "The request body must be a JSON object",
		},
		{
			name:       "not admin",
			req:        jsonRequest(userAuth, servicesURL, models.Fields{"service": "author"}),
			wantStatus: http.StatusForbidden,
			wantReason: models.ReasonNotAuthorized,
		},
		{
			name:        "missing field",
			req:         jsonRequest(adminAuth, servicesURL, models.Fields{}),
			wantStatus:  http.StatusBadRequest,
			wantReason:  models.ReasonInvalidInput,
			wantMessage: "The field 'service' is required for this request",
		},
		{
			name:        "blank field",
			req:         jsonRequest(adminAuth, servicesURL, models.Fields{"service": "  "}),
			wantStatus:  http.StatusBadRequest,
			wantReason:  models.ReasonInvalidInput,
			wantMessage: "The field 'service' must be a non-empty string",
		},
		{
			name:        "extra field",
			req:         jsonRequest(adminAuth, servicesURL, models.Fields{"service": "author", "zone": 1, "extra": true}),
			wantStatus:  http.StatusBadRequest,
			wantReason:  models.ReasonInvalidInput,
			wantMessage: "The field 'extra' is not allowed in this request",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setup := setupTestDeps(t)
			svc := NewInsightsService(setup.deps)

			_, err := svc.Usage(context.Background(), tt.req)
			reqErr := assertRequestError(t, err, tt.wantStatus, tt.wantReason)
			if tt.wantMessage != "" {
				assert.Equal(t, tt.wantMessage, reqErr.Message)
			}
		})
	}
}

func TestAcceptsJSON(t *testing.T) {
	assert.True(t, acceptsJSON(""))
	assert.True(t, acceptsJSON("application/json"))
	assert.True(t, acceptsJSON("text/html, */*;q=0.8"))
	assert.True(t, acceptsJSON("application/*"))
	assert.False(t, acceptsJSON("text/html"))
	assert.False(t, acceptsJSON("application/json;q=0"))
}
