package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestError_ToWire(t *testing.T) {
	err := InvalidInput("Title is a required field", Field("title"))

	raw, marshalErr := json.Marshal(err.ToWire())
	require.NoError(t, marshalErr)

	assert.JSONEq(t, `{
		"status_code": 400,
		"errors": [{"code": "invalid_input", "message": "Title is a required field", "target": {"type": "field", "name": "title"}}]
	}`, string(raw))
}

func TestRequestError_ToWireWithoutTarget(t *testing.T) {
	raw, err := json.Marshal(InternalError().ToWire())
	require.NoError(t, err)

	assert.JSONEq(t, `{
		"status_code": 500,
		"errors": [{"code": "internal_error", "message": "The server was unable to process the request"}]
	}`, string(raw))
}

func TestNotAuthenticated_CarriesChallenge(t *testing.T) {
	err := NotAuthenticated("The caller could not be authenticated")

	assert.Equal(t, http.StatusUnauthorized, err.Status)
	assert.Equal(t, AuthChallenge, err.Headers["WWW-Authenticate"])
	assert.Equal(t, TargetHeader, err.Target.Kind)
}

func TestRequestError_WithHeaderDoesNotMutate(t *testing.T) {
	base := NotAuthorized()
	withHeader := base.WithHeader("Allow", "POST")

	assert.Nil(t, base.Headers)
	assert.Equal(t, "POST", withHeader.Headers["Allow"])
}

func TestRequestError_StructuralEquality(t *testing.T) {
	a := NotFound("The customer could not be located", "customer_id")
	b := NotFound("The customer could not be located", "customer_id")

	assert.Equal(t, a, b)
}

func TestAsRequestError(t *testing.T) {
	t.Run("wrapped request error", func(t *testing.T) {
		wrapped := fmt.Errorf("lookup: %w", NotFound("gone", "book_id"))
		assert.Equal(t, ReasonNotFound, AsRequestError(wrapped).Reason)
	})

	t.Run("plain error becomes internal_error", func(t *testing.T) {
		got := AsRequestError(errors.New("dial tcp: connection refused"))
		assert.Equal(t, http.StatusInternalServerError, got.Status)
		assert.Equal(t, ReasonInternalError, got.Reason)
		assert.NotContains(t, got.Message, "dial")
	})
}

func TestFields_PickAndMerge(t *testing.T) {
	body := Fields{"title": "Dune", "hacker": true, "book_id": "x"}

	picked := body.Pick([]string{"title", "author"})
	assert.Equal(t, Fields{"title": "Dune"}, picked)

	stored := Fields{"title": "Old", "author": "Frank"}
	merged := stored.Merge(picked)
	assert.Equal(t, Fields{"title": "Dune", "author": "Frank"}, merged)
	assert.Equal(t, "Old", stored["title"])
}

func TestFields_CloneIsDeep(t *testing.T) {
	original := Fields{"book_ids": []any{"a", "b"}}

	clone, err := original.Clone()
	require.NoError(t, err)
	clone["book_ids"].([]any)[0] = "z"

	assert.Equal(t, "a", original["book_ids"].([]any)[0])
}
