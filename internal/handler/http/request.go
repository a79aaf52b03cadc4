package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/cypherlabdev/bookshop-service/internal/models"
	"github.com/cypherlabdev/bookshop-service/internal/service"
)

// maxBodyBytes bounds every inbound request body
const maxBodyBytes = 1 << 20

// buildRequest turns an inbound HTTP request into the transport independent
// shape the orchestrators consume. A body that is not a JSON object is
// flagged rather than rejected so each operation reports it in its own order,
// and so does one over maxBodyBytes.
func buildRequest(r *http.Request) (*service.Request, error) {
	req := &service.Request{
		Authorization: r.Header.Get("Authorization"),
		ContentType:   r.Header.Get("Content-Type"),
		Accept:        r.Header.Get("Accept"),
		RequestID:     requestIDFrom(r.Context()),
		BaseURL:       baseURL(r),
	}
	req.Async, _ = strconv.ParseBool(r.Header.Get(service.HeaderAsync))

	if r.Body == nil || r.Method == http.MethodGet || r.Method == http.MethodDelete {
		return req, nil
	}

	raw, err := io.ReadAll(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			req.BodyInvalid = true
			req.BodyTooLarge = true
			return req, nil
		}
		return nil, err
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		req.BodyInvalid = true
		return req, nil
	}

	var body models.Fields
	if err := json.Unmarshal(raw, &body); err != nil || body == nil {
		req.BodyInvalid = true
		return req, nil
	}
	req.Body = body
	return req, nil
}

// baseURL is the absolute URL of the request path, used to build Location
func baseURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = strings.ToLower(strings.TrimSpace(strings.Split(proto, ",")[0]))
	}
	return scheme + "://" + r.Host + strings.TrimSuffix(r.URL.Path, "/")
}
