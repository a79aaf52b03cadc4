// Package auth inspects the Authorization header and decides whether the
// caller holds the privilege level an operation requires.
//
// Credentials are base64("identifier:secret"), optionally prefixed with a
// Basic or Bearer scheme. The secret is not verified and the identifier
// doubles as the role: "admin" is the only admin principal. This is a
// simplification for a demonstration shop, not a security model.
package auth

import (
	"encoding/base64"
	"strings"

	"github.com/cypherlabdev/bookshop-service/internal/models"
)

// Level is the privilege an operation requires
type Level int

const (
	LevelUser Level = iota
	LevelAdmin
)

func (l Level) String() string {
	if l == LevelAdmin {
		return "admin"
	}
	return "user"
}

// Principal is the caller derived from one request's credential
type Principal struct {
	ID    string
	Level Level
}

const adminIdentifier = "admin"

// Authorize decodes header and checks the principal against required.
// It returns a 401 RequestError when no principal can be derived and a 403
// when the principal lacks the required level.
func Authorize(header string, required Level) (Principal, error) {
	id, ok := decodeIdentifier(header)
	if !ok {
		return Principal{}, models.NotAuthenticated("The caller could not be authenticated")
	}

	p := Principal{ID: id, Level: LevelUser}
	if strings.EqualFold(id, adminIdentifier) {
		p.Level = LevelAdmin
	}

	if required == LevelAdmin && p.Level != LevelAdmin {
		return Principal{}, models.NotAuthorized()
	}
	return p, nil
}

func decodeIdentifier(header string) (string, bool) {
	token := strings.TrimSpace(header)
	if token == "" {
		return "", false
	}
	if scheme, rest, found := strings.Cut(token, " "); found {
		switch strings.ToLower(scheme) {
		case "basic", "bearer":
			token = strings.TrimSpace(rest)
		}
	}

	decoded, err := base64.StdEncoding.DecodeString(token)
	if err != nil {
		// tolerate clients that drop the padding
		decoded, err = base64.RawStdEncoding.DecodeString(token)
		if err != nil {
			return "", false
		}
	}

	id, _, found := strings.Cut(string(decoded), ":")
	if !found || strings.TrimSpace(id) == "" {
		return "", false
	}
	return id, true
}
