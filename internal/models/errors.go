package models

import (
	"errors"
	"fmt"
	"maps"
	"net/http"
)

// TargetKind says what part of a request an error points at
type TargetKind string

const (
	TargetField     TargetKind = "field"
	TargetParameter TargetKind = "parameter"
	TargetHeader    TargetKind = "header"
)

// Reason codes surfaced to callers
const (
	ReasonInvalidInput           = "invalid_input"
	ReasonMissingHeader          = "missing_header"
	ReasonUnsupportedContentType = "unsupported_content_type"
	ReasonNotAuthenticated       = "not_authenticated"
	ReasonNotAuthorized          = "not_authorized"
	ReasonNotFound               = "not_found"
	ReasonInvalidUpdate          = "invalid_update"
	ReasonBadRequest             = "bad_request"
	ReasonCannotDelete           = "cannot_delete"
	ReasonExists                 = "exists"
	ReasonUnavailable            = "unavailable"
	ReasonUnknown                = "unknown"
	ReasonStoreFailed            = "store_failed"
	ReasonRetrieveFailed         = "retrieve_failed"
	ReasonDeleteFailed           = "delete_failed"
	ReasonCopyFailed             = "copy_failed"
	ReasonInternalError          = "internal_error"
	ReasonServiceUnavailable     = "service_unavailable"
	ReasonUnsupportedMethod      = "unsupported_method"
	ReasonRateLimited            = "rate_limited"
)

// AuthChallenge is copied onto 401 responses
const AuthChallenge = `Basic realm="bookshop", charset="UTF-8"`

// Target identifies the offending field, parameter or header
type Target struct {
	Kind TargetKind `json:"type"`
	Name string     `json:"name,omitempty"`
}

// RequestError is the single error value every failing request resolves to.
// It is a value object: the With* helpers return modified copies.
type RequestError struct {
	Status  int
	Reason  string
	Message string
	Target  *Target
	Headers map[string]string
}

// NewError constructs a RequestError. target may be nil.
func NewError(status int, reason, message string, target *Target) *RequestError {
	return &RequestError{
		Status:  status,
		Reason:  reason,
		Message: message,
		Target:  target,
	}
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("%d %s: %s", e.Status, e.Reason, e.Message)
}

// WithHeader returns a copy carrying an extra response header
func (e *RequestError) WithHeader(key, value string) *RequestError {
	c := *e
	c.Headers = maps.Clone(e.Headers)
	if c.Headers == nil {
		c.Headers = make(map[string]string, 1)
	}
	c.Headers[key] = value
	return &c
}

// WireError is a single entry of the wire envelope
type WireError struct {
	Code    string  `json:"code"`
	Message string  `json:"message"`
	Target  *Target `json:"target,omitempty"`
}

// WireEnvelope is the transport shape of a RequestError
type WireEnvelope struct {
	StatusCode int         `json:"status_code"`
	Errors     []WireError `json:"errors"`
}

// ToWire renders the error in the envelope shared by every service
func (e *RequestError) ToWire() WireEnvelope {
	entry := WireError{Code: e.Reason, Message: e.Message}
	if e.Target != nil {
		t := *e.Target
		entry.Target = &t
	}
	return WireEnvelope{
		StatusCode: e.Status,
		Errors:     []WireError{entry},
	}
}

// AsRequestError extracts a RequestError from err. Any other error becomes a
// generic internal_error so internal detail never reaches the caller.
func AsRequestError(err error) *RequestError {
	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		return reqErr
	}
	return InternalError()
}

func Field(name string) *Target     { return &Target{Kind: TargetField, Name: name} }
func Parameter(name string) *Target { return &Target{Kind: TargetParameter, Name: name} }
func Header(name string) *Target    { return &Target{Kind: TargetHeader, Name: name} }

// InvalidInput is the 400 used by field and identifier checks
func InvalidInput(message string, target *Target) *RequestError {
	return NewError(http.StatusBadRequest, ReasonInvalidInput, message, target)
}

// NotFound is the 404 used for absent resources and ownership mismatches
func NotFound(message, parameter string) *RequestError {
	return NewError(http.StatusNotFound, ReasonNotFound, message, Parameter(parameter))
}

// InvalidUpdate is returned when an immutable field would change
func InvalidUpdate(message, field string) *RequestError {
	return NewError(http.StatusBadRequest, ReasonInvalidUpdate, message, Field(field))
}

// IdentifierMismatch is returned when a body id disagrees with the path id
func IdentifierMismatch(message, field string) *RequestError {
	return NewError(http.StatusBadRequest, ReasonBadRequest, message, Field(field))
}

// CannotDelete is returned when a delete precondition is not met
func CannotDelete(message, parameter string) *RequestError {
	return NewError(http.StatusBadRequest, ReasonCannotDelete, message, Parameter(parameter))
}

// BackendFailed is the generic 500 for store or dependency checkpoints
func BackendFailed(reason, message string) *RequestError {
	return NewError(http.StatusInternalServerError, reason, message, nil)
}

// InternalError is the catch-all 500
func InternalError() *RequestError {
	return NewError(http.StatusInternalServerError, ReasonInternalError, "The server was unable to process the request", nil)
}

// UnsupportedContentType is the 415 returned for non-JSON payloads
func UnsupportedContentType() *RequestError {
	return NewError(http.StatusUnsupportedMediaType, ReasonMissingHeader, "Content-Type is missing or is not supported", Header("Content-Type"))
}

// NotAuthenticated is the 401 returned when no principal can be derived
func NotAuthenticated(message string) *RequestError {
	return NewError(http.StatusUnauthorized, ReasonNotAuthenticated, message, Header("Authorization")).
		WithHeader("WWW-Authenticate", AuthChallenge)
}

// NotAuthorized is the 403 returned on insufficient privilege
func NotAuthorized() *RequestError {
	return NewError(http.StatusForbidden, ReasonNotAuthorized, "The caller does not have permission to perform the operation", Header("Authorization"))
}
