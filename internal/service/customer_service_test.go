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
	"github.com/cypherlabdev/bookshop-service/internal/validation"
)

const customersURL = "http://customer-order-service:5000/customers"

func validCustomer() models.Fields {
	return models.Fields{
		"username":   "jdoe",
		"first_name": "Jane",
		"last_name":  "Doe",
		"email":      "jane@example.com",
		"password":   "secret42",
		"phone":      "555-0101",
	}
}

func TestCustomerService_CreateCustomer_Success(t *testing.T) {
	setup := setupTestDeps(t)
	svc := NewCustomerService(setup.deps)
	setup.publisher.EXPECT().
		Publish(gomock.Any(), gomock.Cond(func(e models.ResourceEvent) bool {
			_, leaked := e.Payload["password"]
			return e.Type == models.EventTypeCustomerCreated && !leaked
		})).
		Return(nil)

	res, err := svc.CreateCustomer(context.Background(), jsonRequest(adminAuth, customersURL, validCustomer()))
	require.NoError(t, err)

	assert.Equal(t, http.StatusCreated, res.Status)
	customer := res.Payload.(map[string]any)["customer"].(models.Fields)
	id, _ := customer.String(models.CustomerID)
	assert.True(t, validation.IsUUIDv4(id))
	assert.Equal(t, customersURL+"/"+id, res.Location)
	assert.False(t, customer.Has("password"), "the password is never echoed")

	saved, ok := setup.stored(t, models.TableCustomers, id)
	require.True(t, ok)
	assert.Equal(t, "secret42", saved["password"])

	index, ok := setup.stored(t, models.TableUsernames, "jdoe")
	require.True(t, ok)
	assert.Equal(t, id, index[models.CustomerID])
}

func TestCustomerService_CreateCustomer_Rules(t *testing.T) {
	tests := []struct {
		name        string
		body        models.Fields
		drop        string
		wantMessage string
	}{
		{name: "missing username", drop: "username", wantMessage: "username is a required field"},
		{name: "bad email", body: models.Fields{"email": "jane-at-example"}, wantMessage: "The email provided is not valid"},
		{name: "weak password", body: models.Fields{"password": "letters"}, wantMessage: "A password must have a length of at least 7 and contain at least 1 number"},
		{name: "email before password", body: models.Fields{"email": "nope", "password": "x"}, wantMessage: "The email provided is not valid"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setup := setupTestDeps(t)
			svc := NewCustomerService(setup.deps)

			body := validCustomer().Merge(tt.body)
			delete(body, tt.drop)
			_, err := svc.CreateCustomer(context.Background(), jsonRequest(adminAuth, customersURL, body))
			reqErr := assertRequestError(t, err, http.StatusBadRequest, models.ReasonInvalidInput)
			assert.Equal(t, tt.wantMessage, reqErr.Message)
			assert.Zero(t, setup.store.Len(models.TableCustomers))
		})
	}
}

func TestCustomerService_CreateCustomer_UsernameInUse(t *testing.T) {
	setup := setupTestDeps(t)
	setup.deps.Rules.ReservedUsernamePrefix = "rob"
	svc := NewCustomerService(setup.deps)
	setup.seed(t, models.TableUsernames, "jdoe", models.Fields{models.CustomerID: validation.NewID()})

	for _, username := range []string{"JDoe", "Roberta"} {
		_, err := svc.CreateCustomer(context.Background(), jsonRequest(adminAuth, customersURL, validCustomer().Merge(models.Fields{"username": username})))
		reqErr := assertRequestError(t, err, http.StatusBadRequest, models.ReasonInvalidInput)
		assert.Equal(t, "The requested username is in use already", reqErr.Message, username)
	}
}

func TestCustomerService_CreateCustomer_StoreFailure(t *testing.T) {
	setup := setupTestDeps(t)
	svc := NewCustomerService(setup.deps)
	setup.faults.FailNext(fault.StoreWrite)

	_, err := svc.CreateCustomer(context.Background(), jsonRequest(adminAuth, customersURL, validCustomer()))
	assertRequestError(t, err, http.StatusInternalServerError, models.ReasonStoreFailed)
	assert.Zero(t, setup.store.Len(models.TableUsernames), "no index entry without a customer")
}

func TestCustomerService_GetCustomer(t *testing.T) {
	setup := setupTestDeps(t)
	svc := NewCustomerService(setup.deps)
	id := validation.NewID()
	setup.seed(t, models.TableCustomers, id, validCustomer().Merge(models.Fields{models.CustomerID: id}))

	res, err := svc.GetCustomer(context.Background(), &Request{Authorization: userAuth}, id)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, res.Status)
	assert.False(t, res.Payload.(map[string]any)["customer"].(models.Fields).Has("password"))

	_, err = svc.GetCustomer(context.Background(), &Request{Authorization: userAuth}, "bad")
	assertRequestError(t, err, http.StatusBadRequest, models.ReasonInvalidInput)

	_, err = svc.GetCustomer(context.Background(), &Request{Authorization: userAuth}, validation.NewID())
	reqErr := assertRequestError(t, err, http.StatusNotFound, models.ReasonNotFound)
	assert.Equal(t, msgCustomerNotFound, reqErr.Message)
}

func TestCustomerService_UpdateCustomer(t *testing.T) {
	setup := setupTestDeps(t)
	svc := NewCustomerService(setup.deps)
	id := validation.NewID()
	setup.seed(t, models.TableCustomers, id, validCustomer().Merge(models.Fields{models.CustomerID: id}))
	setup.expectEvent(models.EventTypeCustomerUpdated)

	res, err := svc.UpdateCustomer(context.Background(), jsonRequest(adminAuth, customersURL, models.Fields{"phone": "555-0199", "username": "jdoe"}), id)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, res.Status)

	saved, _ := setup.stored(t, models.TableCustomers, id)
	assert.Equal(t, "555-0199", saved["phone"])

	_, err = svc.UpdateCustomer(context.Background(), jsonRequest(adminAuth, customersURL, models.Fields{"username": "someone"}), id)
	reqErr := assertRequestError(t, err, http.StatusBadRequest, models.ReasonInvalidUpdate)
	assert.Equal(t, "The username can not be changed", reqErr.Message)

	_, err = svc.UpdateCustomer(context.Background(), jsonRequest(adminAuth, customersURL, models.Fields{"email": "broken"}), id)
	reqErr = assertRequestError(t, err, http.StatusBadRequest, models.ReasonInvalidInput)
	assert.Equal(t, "The updated email is not valid", reqErr.Message)

	_, err = svc.UpdateCustomer(context.Background(), jsonRequest(adminAuth, customersURL, models.Fields{"password": "abc"}), id)
	reqErr = assertRequestError(t, err, http.StatusBadRequest, models.ReasonInvalidInput)
	assert.Equal(t, "A password must have a length of at least 7 and contain at least 1 number", reqErr.Message)

	saved, _ = setup.stored(t, models.TableCustomers, id)
	assert.Equal(t, "secret42", saved["password"], "a weak password is not stored")
}

func TestCustomerService_DeleteCustomer(t *testing.T) {
	setup := setupTestDeps(t)
	svc := NewCustomerService(setup.deps)
	id := validation.NewID()
	setup.seed(t, models.TableCustomers, id, validCustomer().Merge(models.Fields{models.CustomerID: id}))
	setup.seed(t, models.TableUsernames, "jdoe", models.Fields{models.CustomerID: id})
	setup.expectEvent(models.EventTypeCustomerDeleted)

	_, err := svc.DeleteCustomer(context.Background(), &Request{Authorization: userAuth}, id)
	assertRequestError(t, err, http.StatusForbidden, models.ReasonNotAuthorized)

	setup.faults.FailNext(fault.DeleteEligibility)
	_, err = svc.DeleteCustomer(context.Background(), &Request{Authorization: adminAuth}, id)
	assertRequestError(t, err, http.StatusBadRequest, models.ReasonCannotDelete)

	res, err := svc.DeleteCustomer(context.Background(), &Request{Authorization: adminAuth}, id)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, res.Status)
	assert.Zero(t, setup.store.Len(models.TableCustomers))
	assert.Zero(t, setup.store.Len(models.TableUsernames), "username is released")
}
