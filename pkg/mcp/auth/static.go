package auth

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"
)

// StaticTokenAuth implements simple bearer token authentication.
type StaticTokenAuth struct {
	token string
}

// NewStaticTokenAuth creates a new static token authenticator.
func NewStaticTokenAuth(token string) (auth *StaticTokenAuth) {
	auth = &StaticTokenAuth{
		token: token,
	}
	return auth
}

// Name returns the auth method name.
func (a *StaticTokenAuth) Name() (name string) {
	name = "static-bearer"
	return name
}

// Authenticate validates the static bearer token.
func (a *StaticTokenAuth) Authenticate(r *http.Request) (result *Result, err error) {
	var token string

	token, err = extractBearerToken(r)
	if err != nil {
		return result, err
	}

	if subtle.ConstantTimeCompare([]byte(token), []byte(a.token)) != 1 {
		err = errors.New("invalid token")
		return result, err
	}

	result = &Result{
		Authenticated: true,
		Method:        a.Name(),
		Username:      "static-token-user",
	}
	return result, err
}

// extractBearerToken pulls the bearer token from the Authorization header.
func extractBearerToken(r *http.Request) (token string, err error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		err = errors.New("missing Authorization header")
		return token, err
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		err = errors.New("invalid Authorization header format (expected: Bearer <token>)")
		return token, err
	}

	token = strings.TrimSpace(parts[1])
	return token, err
}
