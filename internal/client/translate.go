package client

import (
	"encoding/json"
	"net/http"

	"github.com/cypherlabdev/bookshop-service/internal/models"
)

// remoteError covers both error shapes peers emit. When a body carries
// both, the legacy target wins.
type remoteError struct {
	// legacy: {"message": "...", "target": {"type": "...", "name": "..."}}
	Message string          `json:"message"`
	Target  json.RawMessage `json:"target"`

	// envelope: {"status_code": n, "errors": [{"code", "message", "target"}]}
	Errors []struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Target  *models.Target `json:"target"`
	} `json:"errors"`
}

type legacyTarget struct {
	Type string `json:"type"`
	Name string `json:"name"`
}

// TranslateError folds a failed peer response into the local error model.
// Bodies in neither known shape become internal_error.
func TranslateError(status int, body []byte) *models.RequestError {
	if status < http.StatusBadRequest || status > 599 {
		return models.InternalError()
	}

	var shape remoteError
	if err := json.Unmarshal(body, &shape); err != nil {
		return models.InternalError()
	}

	if len(shape.Target) > 0 {
		var lt legacyTarget
		if err := json.Unmarshal(shape.Target, &lt); err == nil && lt.Name != "" {
			var target *models.Target
			if lt.Type != "" {
				target = &models.Target{Kind: models.TargetKind(lt.Type)}
			}
			return models.NewError(status, lt.Name, shape.Message, target)
		}
	}

	if len(shape.Errors) > 0 && shape.Errors[0].Code != "" {
		first := shape.Errors[0]
		var target *models.Target
		if first.Target != nil && first.Target.Kind != "" {
			t := *first.Target
			target = &t
		}
		return models.NewError(status, first.Code, first.Message, target)
	}

	return models.InternalError()
}
