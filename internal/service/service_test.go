package service

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/cypherlabdev/bookshop-service/internal/client"
	"github.com/cypherlabdev/bookshop-service/internal/fault"
	"github.com/cypherlabdev/bookshop-service/internal/mocks"
	"github.com/cypherlabdev/bookshop-service/internal/models"
	"github.com/cypherlabdev/bookshop-service/internal/observability"
	"github.com/cypherlabdev/bookshop-service/internal/repository"
)

var (
	adminAuth = credential("admin", "secret")
	userAuth  = credential("alice", "secret")
)

// testServiceSetup holds the collaborators shared by every orchestrator test
type testServiceSetup struct {
	deps      Dependencies
	store     *repository.MemoryStore
	faults    *fault.Scripted
	caller    *mocks.MockCaller
	publisher *mocks.MockPublisher
	metrics   *observability.Metrics
	ctrl      *gomock.Controller
}

// setupTestDeps builds an in-memory store, scripted faults and mocked peers
func setupTestDeps(t *testing.T) *testServiceSetup {
	t.Helper()
	ctrl := gomock.NewController(t)

	// isolated registry per test to avoid duplicate registration
	metrics := observability.NewMetricsWithRegistry(prometheus.NewRegistry())
	store := repository.NewMemoryStore()
	faults := fault.NewScripted()
	caller := mocks.NewMockCaller(ctrl)
	publisher := mocks.NewMockPublisher(ctrl)

	return &testServiceSetup{
		deps: Dependencies{
			Store:     store,
			Caller:    caller,
			Faults:    faults,
			Publisher: publisher,
			Policies: Policies{
				Dependency: client.NoRetry(time.Second),
				BookCheck: client.RetryPolicy{
					MaxRetries:      2,
					Backoff:         time.Millisecond,
					RetryableStatus: http.StatusServiceUnavailable,
					Timeout:         time.Second,
				},
			},
			Peers: Peers{
				BooksService:    "books-service",
				InsightsService: "bookshop-services",
			},
			Metrics: metrics,
			Logger:  zerolog.Nop(),
		},
		store:     store,
		faults:    faults,
		caller:    caller,
		publisher: publisher,
		metrics:   metrics,
		ctrl:      ctrl,
	}
}

// expectEvent expects exactly one published event of eventType
func (s *testServiceSetup) expectEvent(eventType string) {
	s.publisher.EXPECT().
		Publish(gomock.Any(), gomock.Cond(func(e models.ResourceEvent) bool { return e.Type == eventType })).
		Return(nil)
}

// seed stores record directly, bypassing the orchestrators
func (s *testServiceSetup) seed(t *testing.T, table, id string, record models.Fields) {
	t.Helper()
	require.NoError(t, s.store.Put(context.Background(), table, id, record))
}

func (s *testServiceSetup) stored(t *testing.T, table, id string) (models.Fields, bool) {
	t.Helper()
	record, ok, err := s.store.Get(context.Background(), table, id)
	require.NoError(t, err)
	return record, ok
}

func credential(id, secret string) string {
	return base64.StdEncoding.EncodeToString([]byte(id + ":" + secret))
}

func jsonRequest(authorization, baseURL string, body models.Fields) *Request {
	return &Request{
		Authorization: authorization,
		ContentType:   "application/json",
		Body:          body,
		BaseURL:       baseURL,
	}
}

func remoteJSON(t *testing.T, status int, v any) *client.RemoteResult {
	t.Helper()
	body, err := json.Marshal(v)
	require.NoError(t, err)
	return &client.RemoteResult{Status: status, Header: http.Header{}, Body: body}
}

func requestTo(service, path string) gomock.Matcher {
	return gomock.Cond(func(r client.Request) bool { return r.Service == service && r.Path == path })
}

// assertRequestError checks err is a RequestError with status and reason
func assertRequestError(t *testing.T, err error, status int, reason string) *models.RequestError {
	t.Helper()
	require.Error(t, err)
	reqErr := models.AsRequestError(err)
	assert.Equal(t, status, reqErr.Status, reqErr.Message)
	assert.Equal(t, reason, reqErr.Reason, reqErr.Message)
	return reqErr
}

func TestRequest_ForwardHeader(t *testing.T) {
	req := &Request{Authorization: adminAuth, Async: true, RequestID: "req-1"}
	h := req.forwardHeader()

	assert.Equal(t, adminAuth, h.Get("Authorization"))
	assert.Equal(t, "true", h.Get(HeaderAsync))
	assert.Equal(t, "req-1", h.Get(HeaderRequestID))
	assert.Empty(t, (&Request{}).forwardHeader())
}

func TestRequireJSON(t *testing.T) {
	assert.NoError(t, requireJSON("application/json"))
	assert.NoError(t, requireJSON("application/json; charset=utf-8"))

	for _, ct := range []string{"", "text/plain", "application/xml", ";;"} {
		err := requireJSON(ct)
		assertRequestError(t, err, http.StatusUnsupportedMediaType, models.ReasonMissingHeader)
	}
}

func TestCheckBodyID(t *testing.T) {
	assert.NoError(t, checkBodyID(models.Fields{}, models.BookID, "a", "mismatch"))
	assert.NoError(t, checkBodyID(models.Fields{models.BookID: nil}, models.BookID, "a", "mismatch"))
	assert.NoError(t, checkBodyID(models.Fields{models.BookID: "a"}, models.BookID, "a", "mismatch"))

	err := checkBodyID(models.Fields{models.BookID: "b"}, models.BookID, "a", "mismatch")
	reqErr := assertRequestError(t, err, http.StatusBadRequest, models.ReasonBadRequest)
	assert.Equal(t, models.Field(models.BookID), reqErr.Target)

	err = checkBodyID(models.Fields{models.BookID: 7}, models.BookID, "a", "mismatch")
	assertRequestError(t, err, http.StatusBadRequest, models.ReasonBadRequest)
}

func TestLocation(t *testing.T) {
	assert.Equal(t, "http://shop/books/1", location("http://shop/books", "1"))
	assert.Equal(t, "http://shop/books/1", location("http://shop/books/", "1"))
}
